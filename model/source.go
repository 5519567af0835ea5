package model

import (
	"time"

	"github.com/google/uuid"
)

// Source is an authoritative record for an indexed content source. It feeds
// citation title backfill and the most-cited aggregation.
type Source struct {
	ID         int64     `json:"id"`
	RID        uuid.UUID `json:"rid"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
