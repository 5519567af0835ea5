package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
	loadSql "github.com/siherrmann/retriever/sql"
)

// EmbeddingsDBHandlerFunctions defines the interface for embedding database operations.
type EmbeddingsDBHandlerFunctions interface {
	UpsertEmbedding(embedding *model.Embedding) error
	SelectEmbedding(chunkID int64, embeddingModel string) (*model.Embedding, error)
	SelectEmbeddedChunks(embeddingModel string, limit int) ([]*model.EmbeddedChunk, error)
	DeleteEmbeddingsByChunk(chunkID int64) (int, error)
}

// EmbeddingsDBHandler handles embedding-related database operations
type EmbeddingsDBHandler struct {
	db *helper.Database
}

// NewEmbeddingsDBHandler creates a new embeddings database handler.
// It loads the embedding-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db: db,
	}

	err := loadSql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = embeddingsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler")

	return embeddingsDbHandler, nil
}

// CreateTable creates the 'embeddings' table in the database.
// If the table already exists, it does not create it again.
func (h *EmbeddingsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_embeddings();`)
	if err != nil {
		return helper.NewError("initialize embeddings table", err)
	}

	h.db.Logger.Info("Checked/created table embeddings")

	return nil
}

// UpsertEmbedding inserts or replaces the embedding for a (chunk, model) pair
func (h *EmbeddingsDBHandler) UpsertEmbedding(embedding *model.Embedding) error {
	embeddingVector := pgvector.NewVector(embedding.Vector)
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_embedding($1, $2, $3, $4)`,
		embedding.ChunkID,
		embedding.Model,
		embeddingVector,
		embedding.Dimension,
	)

	var vector pgvector.Vector
	err := row.Scan(
		&embedding.ID,
		&embedding.ChunkID,
		&embedding.Model,
		&vector,
		&embedding.Dimension,
		&embedding.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	embedding.Vector = vector.Slice()

	return nil
}

// SelectEmbedding retrieves the embedding for a (chunk, model) pair
func (h *EmbeddingsDBHandler) SelectEmbedding(chunkID int64, embeddingModel string) (*model.Embedding, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_embedding($1, $2)`,
		chunkID,
		embeddingModel,
	)

	embedding := &model.Embedding{}
	var vector pgvector.Vector
	err := row.Scan(
		&embedding.ID,
		&embedding.ChunkID,
		&embedding.Model,
		&vector,
		&embedding.Dimension,
		&embedding.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	embedding.Vector = vector.Slice()

	return embedding, nil
}

// SelectEmbeddedChunks retrieves up to limit chunks with their stored vectors
// for the given model, in stable embedding id order. A limit of 0 returns
// all embedded chunks. This is the bounded candidate set the semantic pass
// scores over.
func (h *EmbeddingsDBHandler) SelectEmbeddedChunks(embeddingModel string, limit int) ([]*model.EmbeddedChunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_embedded_chunks($1, $2)`,
		embeddingModel,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.EmbeddedChunk
	for rows.Next() {
		chunk := &model.Chunk{}
		var vector pgvector.Vector
		var dimension int
		err := rows.Scan(
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
			&vector,
			&dimension,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, &model.EmbeddedChunk{
			Chunk:     chunk,
			Vector:    vector.Slice(),
			Dimension: dimension,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// DeleteEmbeddingsByChunk deletes all embeddings of a chunk and returns the deleted count
func (h *EmbeddingsDBHandler) DeleteEmbeddingsByChunk(chunkID int64) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRow(
		`SELECT delete_embeddings_by_chunk($1)`,
		chunkID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}
	return deleted, nil
}
