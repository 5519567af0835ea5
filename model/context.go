package model

import "github.com/google/uuid"

// Message is a single turn of conversation history
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// ChunkRef identifies a chunk that was included in an assembled context.
// The ordered list of refs is handed to the citation tracker after the
// response has been generated.
type ChunkRef struct {
	ChunkID     int64     `json:"chunk_id"`
	RID         uuid.UUID `json:"rid"`
	SourceURL   string    `json:"source_url"`
	SourceType  string    `json:"source_type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Score       float64   `json:"score"`
	RerankScore float64   `json:"rerank_score,omitempty"`
}

// AssembledContext is the output of context assembly. It is consumed
// immediately by the completion call and not persisted.
type AssembledContext struct {
	Text            string     `json:"text"`
	Chunks          []ChunkRef `json:"chunks"`
	ChunksUsed      int        `json:"chunks_used"`
	TokensUsed      int        `json:"tokens_used"`      // Tokens of the formatted context text
	TokensAvailable int        `json:"tokens_available"` // Budget that was available for chunks
	TokensTotal     int        `json:"tokens_total"`     // Reservations plus tokens used
	ContextWindow   int        `json:"context_window"`
}
