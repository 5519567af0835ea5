package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/helper"
)

// Citation links a generated response to one source chunk. Position is the
// 1-based number used by in-text markers and must never be re-sorted.
type Citation struct {
	Position   int     `json:"position"`
	ChunkID    int64   `json:"chunk_id"`
	SourceURL  string  `json:"source_url"`
	SourceType string  `json:"source_type,omitempty"`
	SourceID   string  `json:"source_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// CitationList represents the JSONB citations column
type CitationList []Citation

// Value implements the driver.Valuer interface for database storage
func (c CitationList) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for database retrieval
func (c *CitationList) Scan(value interface{}) error {
	if value == nil {
		*c = CitationList{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, c)
}

// CitationRecord is the persisted citation set for one generated response,
// keyed by the message it annotates. Immutable after creation except for
// lazy title enrichment.
type CitationRecord struct {
	ID             int64        `json:"id"`
	MessageID      uuid.UUID    `json:"message_id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	Citations      CitationList `json:"citations"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SourceCount is an aggregate of how often a source was cited
type SourceCount struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title,omitempty"`
	Count     int    `json:"count"`
}

// ConversationCitationStats summarizes citations across one conversation
type ConversationCitationStats struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Messages       int       `json:"messages"`
	Citations      int       `json:"citations"`
	UniqueSources  int       `json:"unique_sources"`
}
