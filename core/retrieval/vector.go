package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
)

// Embedder is the slice of the provider the vector store needs
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string, embeddingModel string) ([]float32, error)
	DefaultEmbeddingModel() string
}

// EmbeddingStore is the slice of the database layer the vector store needs
type EmbeddingStore interface {
	UpsertEmbedding(embedding *model.Embedding) error
	SelectEmbeddedChunks(embeddingModel string, limit int) ([]*model.EmbeddedChunk, error)
}

// VectorStore owns the embedding lifecycle and answers exact brute-force
// similarity queries. All scoring happens in-process over a bounded
// candidate set, the database only stores and streams vectors.
type VectorStore struct {
	embeddings EmbeddingStore
	embedder   Embedder
	config     *model.SearchConfig
	logger     *slog.Logger
}

// NewVectorStore creates a vector store over the given embedding storage.
// The embedder may be nil, then only vector-level operations are available.
func NewVectorStore(embeddings EmbeddingStore, embedder Embedder, config *model.SearchConfig, logger *slog.Logger) (*VectorStore, error) {
	if embeddings == nil {
		return nil, helper.NewError("embedding store validation", fmt.Errorf("embedding store is nil"))
	}
	if config == nil {
		defaultConfig := model.DefaultSearchConfig()
		config = &defaultConfig
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &VectorStore{
		embeddings: embeddings,
		embedder:   embedder,
		config:     config,
		logger:     logger,
	}, nil
}

// Store upserts the embedding for a (chunk, model) pair and returns the
// embedding id. An existing embedding for the pair is replaced.
func (v *VectorStore) Store(chunkID int64, vector []float32, embeddingModel string) (int64, error) {
	if len(vector) == 0 {
		return 0, helper.NewError("vector validation", fmt.Errorf("%w: empty vector", model.ErrInvalidQuery))
	}
	if embeddingModel == "" {
		embeddingModel = v.embeddingModel()
	}

	embedding := &model.Embedding{
		ChunkID:   chunkID,
		Model:     embeddingModel,
		Vector:    vector,
		Dimension: len(vector),
	}
	err := v.embeddings.UpsertEmbedding(embedding)
	if err != nil {
		return 0, helper.NewError("upsert embedding", fmt.Errorf("%w: %v", model.ErrStorageFailure, err))
	}

	return embedding.ID, nil
}

// SimilaritySearch scores the stored candidate set against the query vector
// and returns results above the threshold, sorted by similarity descending.
// At most MaxCandidates stored vectors are compared, candidates beyond the
// cap are excluded. A dimension mismatch with any candidate is an
// ErrInvalidQuery.
func (v *VectorStore) SimilaritySearch(queryVector []float32, limit int, threshold float64) ([]*model.SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, helper.NewError("query vector validation", fmt.Errorf("%w: empty query vector", model.ErrInvalidQuery))
	}

	candidates, err := v.embeddings.SelectEmbeddedChunks(v.embeddingModel(), v.config.MaxCandidates)
	if err != nil {
		return nil, helper.NewError("select candidates", fmt.Errorf("%w: %v", model.ErrStorageFailure, err))
	}

	return RankCandidates(queryVector, candidates, limit, threshold)
}

// Search embeds the query text and runs a similarity search with it
func (v *VectorStore) Search(ctx context.Context, queryText string, limit int, threshold float64) ([]*model.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, model.ErrEmptyQuery
	}
	if v.embedder == nil {
		return nil, helper.NewError("embedder validation", model.ErrNotConfigured)
	}

	queryVector, err := v.embedder.GenerateEmbedding(ctx, queryText, v.config.EmbeddingModel)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	return v.SimilaritySearch(queryVector, limit, threshold)
}

func (v *VectorStore) embeddingModel() string {
	if v.config.EmbeddingModel != "" {
		return v.config.EmbeddingModel
	}
	if v.embedder != nil {
		return v.embedder.DefaultEmbeddingModel()
	}
	return ""
}

// RankCandidates scores candidates against the query vector by cosine
// similarity. Scores below the threshold are filtered out, never clamped.
// Ties keep the candidate input order, reorderings must stay reproducible.
func RankCandidates(queryVector []float32, candidates []*model.EmbeddedChunk, limit int, threshold float64) ([]*model.SearchResult, error) {
	results := make([]*model.SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		if len(candidate.Vector) != len(queryVector) {
			return nil, helper.NewError(
				"dimension validation",
				fmt.Errorf("%w: query dimension %d does not match candidate dimension %d", model.ErrInvalidQuery, len(queryVector), len(candidate.Vector)),
			)
		}

		score := CosineSimilarity(queryVector, candidate.Vector)
		if score < threshold {
			continue
		}

		results = append(results, &model.SearchResult{
			Chunk:         candidate.Chunk,
			Score:         score,
			SemanticScore: score,
			SearchType:    model.SearchTypeSemantic,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// the dot product divided by the product of magnitudes. A zero-magnitude
// vector yields 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
