package provider

import (
	"context"
	"fmt"

	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
)

// Provider names supported by the factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogleAI  = "googleai"
	ProviderLocal     = "local"
)

// Provider is the capability boundary to the external embedding and
// chat-completion backends. The retrieval core only consumes these
// operations, the clients behind them are not part of this module.
type Provider interface {
	// Name returns the provider identifier the instance was created for.
	Name() string
	// GenerateEmbedding embeds a single text with the given model. An empty
	// model falls back to DefaultEmbeddingModel.
	GenerateEmbedding(ctx context.Context, text string, embeddingModel string) ([]float32, error)
	// ChatCompletion runs a chat completion over the given messages.
	ChatCompletion(ctx context.Context, messages []model.Message, options CompletionOptions) (*Completion, error)
	// ModelInfo returns static metadata for a model. Unknown models get
	// zero-value info, callers apply their own defaults.
	ModelInfo(modelName string) ModelInfo
	// DefaultEmbeddingModel returns the embedding model used when none is given.
	DefaultEmbeddingModel() string
}

// CompletionOptions control a single chat completion call
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage is the token accounting reported by the backend
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the result of a chat completion call
type Completion struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// ModelInfo is static metadata about a model
type ModelInfo struct {
	ContextWindow   int
	MaxOutputTokens int
}

// Config selects and configures a provider backend
type Config struct {
	// Provider is one of the Provider... constants.
	Provider string
	// Model is the default chat model.
	Model string
	// EmbeddingModel is the default embedding model.
	EmbeddingModel string
	// APIKey authenticates against the hosted backends. Unused for local.
	APIKey string
	// BaseURL overrides the backend endpoint where supported.
	BaseURL string
}

// NewProvider creates a provider for the configured backend. An unknown
// provider name or missing credentials yield model.ErrNotConfigured.
func NewProvider(config *Config) (Provider, error) {
	if config == nil {
		return nil, helper.NewError("provider configuration validation", model.ErrNotConfigured)
	}

	switch config.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogleAI:
		return NewLangchainProvider(config)
	case ProviderLocal:
		return NewLocalProvider(config)
	default:
		return nil, helper.NewError(fmt.Sprintf("unknown provider %s", config.Provider), model.ErrNotConfigured)
	}
}
