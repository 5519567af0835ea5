package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider backs the Provider interface with a langchaingo client.
// One instance wraps one backend (openai, anthropic or googleai).
type LangchainProvider struct {
	name                  string
	config                *Config
	llm                   llms.Model
	defaultEmbeddingModel string

	mu        sync.Mutex
	embedders map[string]embeddings.Embedder
}

// NewLangchainProvider creates a provider for one of the hosted backends.
// A missing API key yields model.ErrNotConfigured.
func NewLangchainProvider(config *Config) (*LangchainProvider, error) {
	if config.APIKey == "" {
		return nil, helper.NewError(fmt.Sprintf("missing api key for provider %s", config.Provider), model.ErrNotConfigured)
	}

	llm, err := newLangchainLLM(config)
	if err != nil {
		return nil, helper.NewError("create llm client", err)
	}

	embeddingModel := config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModelFor(config.Provider)
	}

	return &LangchainProvider{
		name:                  config.Provider,
		config:                config,
		llm:                   llm,
		defaultEmbeddingModel: embeddingModel,
		embedders:             map[string]embeddings.Embedder{},
	}, nil
}

func newLangchainLLM(config *Config) (llms.Model, error) {
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
		}
		if config.Model != "" {
			opts = append(opts, openai.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(config.APIKey),
		}
		if config.Model != "" {
			opts = append(opts, anthropic.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
		}
		return anthropic.New(opts...)
	case ProviderGoogleAI:
		opts := []googleai.Option{
			googleai.WithAPIKey(config.APIKey),
		}
		if config.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(config.Model))
		}
		return googleai.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

func defaultEmbeddingModelFor(providerName string) string {
	switch providerName {
	case ProviderOpenAI:
		return "text-embedding-3-small"
	case ProviderGoogleAI:
		return "text-embedding-004"
	default:
		return ""
	}
}

// Name returns the backend identifier
func (p *LangchainProvider) Name() string {
	return p.name
}

// DefaultEmbeddingModel returns the embedding model used when none is given
func (p *LangchainProvider) DefaultEmbeddingModel() string {
	return p.defaultEmbeddingModel
}

// ModelInfo returns static metadata for a model
func (p *LangchainProvider) ModelInfo(modelName string) ModelInfo {
	if modelName == "" {
		modelName = p.config.Model
	}
	return LookupModelInfo(modelName)
}

// GenerateEmbedding embeds a single text. Embedder clients are cached per
// embedding model. Anthropic exposes no embedding endpoint, requesting an
// embedding from it yields model.ErrNotConfigured.
func (p *LangchainProvider) GenerateEmbedding(ctx context.Context, text string, embeddingModel string) ([]float32, error) {
	if embeddingModel == "" {
		embeddingModel = p.defaultEmbeddingModel
	}
	if embeddingModel == "" {
		return nil, helper.NewError(fmt.Sprintf("no embedding model for provider %s", p.name), model.ErrNotConfigured)
	}

	embedder, err := p.embedderFor(embeddingModel)
	if err != nil {
		return nil, err
	}

	vector, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, helper.NewError("generate embedding", fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err))
	}

	return vector, nil
}

func (p *LangchainProvider) embedderFor(embeddingModel string) (embeddings.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if embedder, ok := p.embedders[embeddingModel]; ok {
		return embedder, nil
	}

	client, err := p.newEmbedderClient(embeddingModel)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, helper.NewError("create embedder", err)
	}

	p.embedders[embeddingModel] = embedder
	return embedder, nil
}

func (p *LangchainProvider) newEmbedderClient(embeddingModel string) (embeddings.EmbedderClient, error) {
	switch p.name {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(p.config.APIKey),
			openai.WithEmbeddingModel(embeddingModel),
		}
		if p.config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.config.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, helper.NewError("create openai embedding client", err)
		}
		return client, nil
	case ProviderGoogleAI:
		client, err := googleai.New(
			context.Background(),
			googleai.WithAPIKey(p.config.APIKey),
			googleai.WithDefaultEmbeddingModel(embeddingModel),
		)
		if err != nil {
			return nil, helper.NewError("create googleai embedding client", err)
		}
		return client, nil
	default:
		return nil, helper.NewError(fmt.Sprintf("provider %s has no embedding endpoint", p.name), model.ErrNotConfigured)
	}
}

// ChatCompletion runs a chat completion over the given messages. Backend
// failures come back wrapped in model.ErrProviderUnavailable.
func (p *LangchainProvider) ChatCompletion(ctx context.Context, messages []model.Message, options CompletionOptions) (*Completion, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, message := range messages {
		content = append(content, llms.TextParts(chatMessageType(message.Role), message.Content))
	}

	callOptions := []llms.CallOption{
		llms.WithTemperature(options.Temperature),
	}
	if options.Model != "" {
		callOptions = append(callOptions, llms.WithModel(options.Model))
	}
	if options.MaxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(options.MaxTokens))
	}

	response, err := p.llm.GenerateContent(ctx, content, callOptions...)
	if err != nil {
		return nil, helper.NewError("chat completion", fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err))
	}
	if len(response.Choices) == 0 {
		return nil, helper.NewError("chat completion", fmt.Errorf("%w: empty response", model.ErrProviderUnavailable))
	}

	choice := response.Choices[0]
	return &Completion{
		Content:      choice.Content,
		FinishReason: choice.StopReason,
		Usage: Usage{
			PromptTokens:     generationInfoInt(choice.GenerationInfo, "PromptTokens"),
			CompletionTokens: generationInfoInt(choice.GenerationInfo, "CompletionTokens"),
			TotalTokens:      generationInfoInt(choice.GenerationInfo, "TotalTokens"),
		},
	}, nil
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func generationInfoInt(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
