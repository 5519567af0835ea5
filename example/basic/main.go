package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever"
	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
)

var sampleChunks = []string{
	"Hybrid search combines semantic similarity from embeddings with lexical keyword scoring. " +
		"Fusing both rankings gives better results than either pass alone.",
	"Cosine similarity measures the angle between two embedding vectors. " +
		"It is independent of vector magnitude, which makes it a robust relevance signal.",
	"Context assembly packs the most relevant chunks into a model's token budget. " +
		"Reservations for the system prompt, the response and the conversation history are subtracted first.",
	"Citations link a generated response back to the chunks that informed it. " +
		"They are rendered as numbered source references.",
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port and the
	// credentials the test container provisions
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "postgres",
		Password: "postgres",
		DBName:   "retriever_test",
		Schema:   "public",
	}

	// No provider configured: search runs keyword-only and reranking uses
	// the heuristic path. Pass a provider.Config to enable the semantic
	// pass and AI reranking.
	r, err := retriever.NewRetriever(dbConfig, nil)
	if err != nil {
		log.Fatalf("Failed to create retriever: %v", err)
	}
	defer r.Close()

	// Ingest a few chunks (normally done by an external ingestion pipeline)
	fmt.Println("Ingesting chunks...")
	for i, content := range sampleChunks {
		chunk := &model.Chunk{
			SourceType: "document",
			SourceID:   "rag-handbook",
			SourceURL:  "https://example.com/rag-handbook",
			Title:      "RAG Handbook",
			Content:    content,
			ChunkIndex: i,
		}
		if err := r.Chunks.InsertChunk(chunk); err != nil {
			log.Fatalf("Failed to insert chunk: %v", err)
		}
	}

	queryText := "How does hybrid search combine semantic and keyword results?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	// Run the retrieval funnel: search, rerank, assemble
	results, err := r.HybridSearch(context.Background(), queryText, nil)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}
	results = r.Rerank(context.Background(), queryText, results, nil)

	fmt.Printf("\nFound %d results:\n", len(results))
	for i, result := range results {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Score: %.4f (rerank %.4f)\n", result.Score, result.RerankScore)
		fmt.Printf("Type: %s\n", result.SearchType)
		fmt.Printf("Content: %s\n", result.Chunk.Content)
	}

	assembled := r.AssembleContext(queryText, results, nil, "gpt-4o", nil)
	fmt.Printf("\nAssembled context: %d chunks, %d of %d tokens used\n",
		assembled.ChunksUsed, assembled.TokensTotal, assembled.ContextWindow)

	// Record and render citations for the (externally generated) response
	messageID := uuid.New()
	if _, err := r.RecordCitations(messageID, uuid.Nil, assembled.Chunks); err != nil {
		log.Fatalf("Failed to record citations: %v", err)
	}

	rendered, err := r.RenderCitations(messageID, "Hybrid search fuses both rankings [1].", nil)
	if err != nil {
		log.Fatalf("Failed to render citations: %v", err)
	}
	fmt.Printf("\nRendered response:\n%s\n", rendered)

	fmt.Println("\nBasic example completed successfully!")
}
