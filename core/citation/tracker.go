package citation

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
)

// ChunkResolver resolves a cited chunk to its authoritative stored fields
type ChunkResolver interface {
	SelectChunk(id int64) (*model.Chunk, error)
}

// SourceResolver resolves a source key to its registered record for title
// backfill
type SourceResolver interface {
	SelectSourceByKey(sourceType string, sourceID string) (*model.Source, error)
}

// RecordStore is the persistence slice the tracker needs, the citations
// database handler satisfies it
type RecordStore interface {
	InsertCitationRecord(record *model.CitationRecord) error
	SelectCitationRecord(messageID uuid.UUID) (*model.CitationRecord, error)
	SelectCitationRecordsByConversation(conversationID uuid.UUID) ([]*model.CitationRecord, error)
	SelectAllCitationRecords(limit int) ([]*model.CitationRecord, error)
	UpdateCitationRecordCitations(messageID uuid.UUID, citations model.CitationList) (*model.CitationRecord, error)
}

// Tracker persists which chunks backed a generated response and renders
// them as numbered source references. Citation order is assigned once at
// recording time and never re-sorted.
type Tracker struct {
	records RecordStore
	chunks  ChunkResolver
	sources SourceResolver
	logger  *slog.Logger
}

// NewTracker creates a citation tracker. The chunk and source resolvers may
// be nil, then enrichment is limited to what the chunk refs already carry.
func NewTracker(records RecordStore, chunks ChunkResolver, sources SourceResolver, logger *slog.Logger) (*Tracker, error) {
	if records == nil {
		return nil, helper.NewError("record store validation", fmt.Errorf("record store is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		records: records,
		chunks:  chunks,
		sources: sources,
		logger:  logger,
	}, nil
}

// Record persists the citation set for one generated response, enriching
// the assembler's bare chunk refs with authoritative fields from the
// content store. Positions are 1-based in the order the chunks appeared in
// the assembled context.
func (t *Tracker) Record(messageID uuid.UUID, conversationID uuid.UUID, refs []model.ChunkRef) (*model.CitationRecord, error) {
	citations := make(model.CitationList, 0, len(refs))
	for i, ref := range refs {
		citation := model.Citation{
			Position:   i + 1,
			ChunkID:    ref.ChunkID,
			SourceURL:  ref.SourceURL,
			SourceType: ref.SourceType,
			Title:      ref.Title,
			Score:      citationScore(ref),
		}
		t.enrich(&citation)
		citations = append(citations, citation)
	}

	record := &model.CitationRecord{
		MessageID:      messageID,
		ConversationID: conversationID,
		Citations:      citations,
	}
	err := t.records.InsertCitationRecord(record)
	if err != nil {
		return nil, helper.NewError("insert citation record", err)
	}

	return record, nil
}

// Get retrieves the citation record for a message. Returns
// model.ErrMessageNotFound if the message has no recorded citations.
func (t *Tracker) Get(messageID uuid.UUID) (*model.CitationRecord, error) {
	return t.records.SelectCitationRecord(messageID)
}

// EnrichTitles backfills missing titles on an already persisted record.
// The cited chunk set and its ordering stay untouched.
func (t *Tracker) EnrichTitles(messageID uuid.UUID) (*model.CitationRecord, error) {
	record, err := t.records.SelectCitationRecord(messageID)
	if err != nil {
		return nil, err
	}

	changed := false
	for i := range record.Citations {
		if record.Citations[i].Title != "" {
			continue
		}
		t.enrich(&record.Citations[i])
		if record.Citations[i].Title != "" {
			changed = true
		}
	}
	if !changed {
		return record, nil
	}

	return t.records.UpdateCitationRecordCitations(messageID, record.Citations)
}

// enrich fills authoritative source fields from the content store and
// backfills the title in order: explicit title, registered source title,
// fallback derived from the URL
func (t *Tracker) enrich(citation *model.Citation) {
	if t.chunks != nil && citation.ChunkID > 0 {
		chunk, err := t.chunks.SelectChunk(citation.ChunkID)
		if err != nil {
			t.logger.Debug("cited chunk not resolvable", slog.Int64("chunk_id", citation.ChunkID), slog.Any("error", err))
		} else {
			citation.SourceType = chunk.SourceType
			citation.SourceID = chunk.SourceID
			citation.ChunkIndex = chunk.ChunkIndex
			if citation.SourceURL == "" {
				citation.SourceURL = chunk.SourceURL
			}
			if citation.Title == "" {
				citation.Title = chunk.Title
			}
		}
	}

	if citation.Title == "" && t.sources != nil && citation.SourceType != "" && citation.SourceID != "" {
		source, err := t.sources.SelectSourceByKey(citation.SourceType, citation.SourceID)
		if err == nil && source.Title != "" {
			citation.Title = source.Title
		}
	}

	if citation.Title == "" {
		citation.Title = deriveTitle(citation.SourceURL)
	}
}

// citationScore prefers the rerank score when one was assigned
func citationScore(ref model.ChunkRef) float64 {
	if ref.RerankScore > 0 {
		return ref.RerankScore
	}
	return ref.Score
}

// deriveTitle builds a readable fallback title from the URL's host and path
func deriveTitle(sourceURL string) string {
	if sourceURL == "" {
		return "Unknown source"
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Host == "" {
		return sourceURL
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	return parsed.Host + path
}
