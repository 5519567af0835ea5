package model

import (
	"time"

	"github.com/google/uuid"
)

type SearchType string

const (
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeKeyword  SearchType = "keyword"
	SearchTypeHybrid   SearchType = "hybrid"
)

// Chunk represents an immutable unit of indexed text. Chunks are created by
// the external ingestion pipeline and are read-only to the retrieval core.
type Chunk struct {
	ID         int64     `json:"id"`
	RID        uuid.UUID `json:"rid"`
	SourceType string    `json:"source_type"`
	SourceURL  string    `json:"source_url"`
	SourceID   string    `json:"source_id"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	WordCount  int       `json:"word_count"`
	TokenCount int       `json:"token_count"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Embedding is a fixed-dimension vector for exactly one (chunk, model) pair.
// Re-embedding a chunk with the same model replaces the stored vector.
type Embedding struct {
	ID        int64     `json:"id"`
	ChunkID   int64     `json:"chunk_id"`
	Model     string    `json:"model"`
	Vector    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddedChunk pairs a chunk with its stored vector for similarity scoring
type EmbeddedChunk struct {
	Chunk     *Chunk    `json:"chunk"`
	Vector    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
}

// SearchResult is a transient per-query record. It is never persisted and
// only lives for the duration of a single retrieval call.
type SearchResult struct {
	Chunk         *Chunk     `json:"chunk"`
	Score         float64    `json:"score"`
	SemanticScore float64    `json:"semantic_score,omitempty"`
	KeywordScore  float64    `json:"keyword_score,omitempty"`
	RerankScore   float64    `json:"rerank_score,omitempty"`
	SearchType    SearchType `json:"search_type"`
}
