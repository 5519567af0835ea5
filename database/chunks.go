package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
	loadSql "github.com/siherrmann/retriever/sql"
)

// ChunksDBHandlerFunctions defines the interface for chunk database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.Chunk) error
	SelectChunk(id int64) (*model.Chunk, error)
	SelectChunkByRID(rid uuid.UUID) (*model.Chunk, error)
	SelectChunksBySource(sourceType string, sourceID string) ([]*model.Chunk, error)
	SelectCandidateChunks(limit int) ([]*model.Chunk, error)
	DeleteChunksBySource(sourceType string, sourceID string) (int, error)
}

// ChunksDBHandler handles chunk-related database operations.
// The retrieval core only reads chunks, inserts happen at the ingestion boundary.
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads the chunk-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks();`)
	if err != nil {
		return helper.NewError("initialize chunks table", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk
func (h *ChunksDBHandler) InsertChunk(chunk *model.Chunk) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		chunk.SourceType,
		chunk.SourceURL,
		chunk.SourceID,
		chunk.Title,
		chunk.Content,
		chunk.ChunkIndex,
		chunk.WordCount,
		chunk.TokenCount,
		chunk.Metadata,
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(id int64) (*model.Chunk, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	chunk := &model.Chunk{}
	err := scanChunk(row, chunk)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunkByRID retrieves a chunk by its random ID
func (h *ChunksDBHandler) SelectChunkByRID(rid uuid.UUID) (*model.Chunk, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_chunk_by_rid($1)`,
		rid,
	)

	chunk := &model.Chunk{}
	err := scanChunk(row, chunk)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksBySource retrieves all chunks of a source ordered by chunk index
func (h *ChunksDBHandler) SelectChunksBySource(sourceType string, sourceID string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_source($1, $2)`,
		sourceType,
		sourceID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SelectCandidateChunks retrieves up to limit chunks in stable id order.
// A limit of 0 returns all chunks. This is the bounded candidate set the
// keyword pass scores over.
func (h *ChunksDBHandler) SelectCandidateChunks(limit int) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_candidate_chunks($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// DeleteChunksBySource deletes all chunks of a source and returns the deleted count.
// Embeddings are removed by the foreign key cascade.
func (h *ChunksDBHandler) DeleteChunksBySource(sourceType string, sourceID string) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRow(
		`SELECT delete_chunks_by_source($1, $2)`,
		sourceType,
		sourceID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}
	return deleted, nil
}

// scanner abstracts sql.Row and sql.Rows for single-chunk scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row scanner, chunk *model.Chunk) error {
	return row.Scan(
		&chunk.ID,
		&chunk.RID,
		&chunk.SourceType,
		&chunk.SourceURL,
		&chunk.SourceID,
		&chunk.Title,
		&chunk.Content,
		&chunk.ChunkIndex,
		&chunk.WordCount,
		&chunk.TokenCount,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// IsNotFound reports whether an error from a select is a missing-row error
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
