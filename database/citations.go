package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
	loadSql "github.com/siherrmann/retriever/sql"
)

// CitationsDBHandlerFunctions defines the interface for citation record database operations.
type CitationsDBHandlerFunctions interface {
	InsertCitationRecord(record *model.CitationRecord) error
	SelectCitationRecord(messageID uuid.UUID) (*model.CitationRecord, error)
	SelectCitationRecordsByConversation(conversationID uuid.UUID) ([]*model.CitationRecord, error)
	SelectAllCitationRecords(limit int) ([]*model.CitationRecord, error)
	UpdateCitationRecordCitations(messageID uuid.UUID, citations model.CitationList) (*model.CitationRecord, error)
}

// CitationsDBHandler handles citation record database operations
type CitationsDBHandler struct {
	db *helper.Database
}

// NewCitationsDBHandler creates a new citations database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewCitationsDBHandler(db *helper.Database, force bool) (*CitationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	citationsDbHandler := &CitationsDBHandler{
		db: db,
	}

	err := loadSql.LoadCitationsSql(citationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load citations sql", err)
	}

	err = citationsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized CitationsDBHandler")

	return citationsDbHandler, nil
}

// CreateTable creates the 'citation_records' table in the database.
// If the table already exists, it does not create it again.
func (h *CitationsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_citations();`)
	if err != nil {
		return helper.NewError("initialize citation_records table", err)
	}

	h.db.Logger.Info("Checked/created table citation_records")

	return nil
}

// InsertCitationRecord inserts the citation set of one generated response
func (h *CitationsDBHandler) InsertCitationRecord(record *model.CitationRecord) error {
	conversationID := uuid.NullUUID{UUID: record.ConversationID, Valid: record.ConversationID != uuid.Nil}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_citation_record($1, $2, $3)`,
		record.MessageID,
		conversationID,
		record.Citations,
	)

	err := scanCitationRecord(row, record)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectCitationRecord retrieves the citation record for a message.
// Returns model.ErrMessageNotFound if no record exists for the message.
func (h *CitationsDBHandler) SelectCitationRecord(messageID uuid.UUID) (*model.CitationRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_citation_record($1)`,
		messageID,
	)

	record := &model.CitationRecord{}
	err := scanCitationRecord(row, record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrMessageNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

// SelectCitationRecordsByConversation retrieves all citation records of a
// conversation in creation order
func (h *CitationsDBHandler) SelectCitationRecordsByConversation(conversationID uuid.UUID) ([]*model.CitationRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_citation_records_by_conversation($1)`,
		conversationID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return h.scanCitationRecords(rows)
}

// SelectAllCitationRecords retrieves up to limit citation records in stable
// id order. A limit of 0 returns all records.
func (h *CitationsDBHandler) SelectAllCitationRecords(limit int) ([]*model.CitationRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_citation_records($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return h.scanCitationRecords(rows)
}

// UpdateCitationRecordCitations replaces the citations payload of a record.
// Only used for lazy title enrichment, the set of cited chunks never changes.
func (h *CitationsDBHandler) UpdateCitationRecordCitations(messageID uuid.UUID, citations model.CitationList) (*model.CitationRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_citation_record_citations($1, $2)`,
		messageID,
		citations,
	)

	record := &model.CitationRecord{}
	err := scanCitationRecord(row, record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrMessageNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

func scanCitationRecord(row scanner, record *model.CitationRecord) error {
	var conversationID uuid.NullUUID
	err := row.Scan(
		&record.ID,
		&record.MessageID,
		&conversationID,
		&record.Citations,
		&record.CreatedAt,
	)
	if err != nil {
		return err
	}
	record.ConversationID = conversationID.UUID
	return nil
}

// scanCitationRecords reads an aggregate result set. Records whose
// citations payload does not scan are skipped, a single unreadable record
// must not fail a whole aggregation.
func (h *CitationsDBHandler) scanCitationRecords(rows *sql.Rows) ([]*model.CitationRecord, error) {
	var records []*model.CitationRecord
	for rows.Next() {
		record := &model.CitationRecord{}
		err := scanCitationRecord(rows, record)
		if err != nil {
			h.db.Logger.Warn("Skipping citation record with unreadable payload", slog.Any("error", err))
			continue
		}
		records = append(records, record)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}
