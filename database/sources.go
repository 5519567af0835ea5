package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
	loadSql "github.com/siherrmann/retriever/sql"
)

// SourcesDBHandlerFunctions defines the interface for source database operations.
type SourcesDBHandlerFunctions interface {
	InsertSource(source *model.Source) error
	SelectSource(id int64) (*model.Source, error)
	SelectSourceByKey(sourceType string, sourceID string) (*model.Source, error)
	SelectAllSources(limit int) ([]*model.Source, error)
	DeleteSource(id int64) error
}

// SourcesDBHandler handles source-related database operations
type SourcesDBHandler struct {
	db *helper.Database
}

// NewSourcesDBHandler creates a new sources database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewSourcesDBHandler(db *helper.Database, force bool) (*SourcesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	sourcesDbHandler := &SourcesDBHandler{
		db: db,
	}

	err := loadSql.LoadSourcesSql(sourcesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load sources sql", err)
	}

	err = sourcesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized SourcesDBHandler")

	return sourcesDbHandler, nil
}

// CreateTable creates the 'sources' table in the database.
// If the table already exists, it does not create it again.
func (h *SourcesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_sources();`)
	if err != nil {
		return helper.NewError("initialize sources table", err)
	}

	h.db.Logger.Info("Checked/created table sources")

	return nil
}

// InsertSource inserts or updates a source, keyed by (source_type, source_id)
func (h *SourcesDBHandler) InsertSource(source *model.Source) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_source($1, $2, $3, $4, $5)`,
		source.SourceType,
		source.SourceID,
		source.URL,
		source.Title,
		source.Metadata,
	)

	err := scanSource(row, source)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectSource retrieves a source by ID
func (h *SourcesDBHandler) SelectSource(id int64) (*model.Source, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_source($1)`,
		id,
	)

	source := &model.Source{}
	err := scanSource(row, source)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return source, nil
}

// SelectSourceByKey retrieves a source by its (source_type, source_id) key
func (h *SourcesDBHandler) SelectSourceByKey(sourceType string, sourceID string) (*model.Source, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_source_by_key($1, $2)`,
		sourceType,
		sourceID,
	)

	source := &model.Source{}
	err := scanSource(row, source)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return source, nil
}

// SelectAllSources retrieves up to limit sources in stable id order.
// A limit of 0 returns all sources.
func (h *SourcesDBHandler) SelectAllSources(limit int) ([]*model.Source, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_sources($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source := &model.Source{}
		err := scanSource(rows, source)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		sources = append(sources, source)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return sources, nil
}

// DeleteSource deletes a source by ID
func (h *SourcesDBHandler) DeleteSource(id int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_source($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanSource(row scanner, source *model.Source) error {
	return row.Scan(
		&source.ID,
		&source.RID,
		&source.SourceType,
		&source.SourceID,
		&source.URL,
		&source.Title,
		&source.Metadata,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
}
