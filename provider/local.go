package provider

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
)

// DefaultLocalEmbeddingModel is the sentence transformer used when no model
// is configured. It produces 384-dimensional embeddings.
const DefaultLocalEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// LocalProvider runs a sentence transformer in-process via hugot. It only
// supports embeddings, chat completion has no local backend.
type LocalProvider struct {
	embeddingModel string
	session        *hugot.Session
	pipeline       *pipelines.FeatureExtractionPipeline
}

// NewLocalProvider downloads the ONNX model if needed and starts an
// in-process feature extraction pipeline.
func NewLocalProvider(config *Config) (*LocalProvider, error) {
	embeddingModel := config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultLocalEmbeddingModel
	}

	modelPath, err := helper.PrepareModel(embeddingModel, "onnx/model.onnx")
	if err != nil {
		return nil, helper.NewError("prepare model", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, helper.NewError("create hugot session", err)
	}

	pipelineConfig := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "retriever-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, pipelineConfig)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, helper.NewError("create feature extraction pipeline", fmt.Errorf("%v (cleanup error: %v)", err, destroyErr))
		}
		return nil, helper.NewError("create feature extraction pipeline", err)
	}

	return &LocalProvider{
		embeddingModel: embeddingModel,
		session:        session,
		pipeline:       pipeline,
	}, nil
}

// Name returns the backend identifier
func (p *LocalProvider) Name() string {
	return ProviderLocal
}

// DefaultEmbeddingModel returns the configured sentence transformer
func (p *LocalProvider) DefaultEmbeddingModel() string {
	return p.embeddingModel
}

// ModelInfo returns zero-value info, local models carry no chat metadata
func (p *LocalProvider) ModelInfo(modelName string) ModelInfo {
	return ModelInfo{}
}

// GenerateEmbedding embeds a single text with the loaded pipeline. The
// pipeline is bound to one model, requesting another is not supported.
func (p *LocalProvider) GenerateEmbedding(ctx context.Context, text string, embeddingModel string) ([]float32, error) {
	if embeddingModel != "" && embeddingModel != p.embeddingModel {
		return nil, helper.NewError(fmt.Sprintf("local provider is bound to model %s", p.embeddingModel), model.ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("generate embedding", fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err))
	}

	result, err := p.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, helper.NewError("generate embedding", fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err))
	}
	if len(result.Embeddings) == 0 {
		return nil, helper.NewError("generate embedding", fmt.Errorf("%w: no embedding generated", model.ErrProviderUnavailable))
	}

	return result.Embeddings[0], nil
}

// ChatCompletion is not available locally
func (p *LocalProvider) ChatCompletion(ctx context.Context, messages []model.Message, options CompletionOptions) (*Completion, error) {
	return nil, helper.NewError("chat completion", fmt.Errorf("%w: local provider has no chat backend", model.ErrNotConfigured))
}

// Close destroys the hugot session
func (p *LocalProvider) Close() error {
	if p.session == nil {
		return nil
	}
	return p.session.Destroy()
}
