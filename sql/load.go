package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed chunks.sql
var chunksSQL string

//go:embed embeddings.sql
var embeddingsSQL string

//go:embed sources.sql
var sourcesSQL string

//go:embed citations.sql
var citationsSQL string

// Function lists for verification
var ChunksFunctions = []string{
	"init_chunks",
	"insert_chunk",
	"select_chunk",
	"select_chunk_by_rid",
	"select_chunks_by_source",
	"select_candidate_chunks",
	"delete_chunks_by_source",
}

var EmbeddingsFunctions = []string{
	"init_embeddings",
	"upsert_embedding",
	"select_embedding",
	"select_embedded_chunks",
	"delete_embeddings_by_chunk",
}

var SourcesFunctions = []string{
	"init_sources",
	"insert_source",
	"select_source",
	"select_source_by_key",
	"select_all_sources",
	"delete_source",
}

var CitationsFunctions = []string{
	"init_citations",
	"insert_citation_record",
	"select_citation_record",
	"select_citation_records_by_conversation",
	"select_all_citation_records",
	"update_citation_record_citations",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, ChunksFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing chunks functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(chunksSQL)
	if err != nil {
		return fmt.Errorf("error executing chunks SQL: %w", err)
	}

	exist, err := checkFunctions(db, ChunksFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL chunks functions loaded successfully")
	return nil
}

// LoadEmbeddingsSql loads embedding-related SQL functions
func LoadEmbeddingsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, EmbeddingsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing embeddings functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(embeddingsSQL)
	if err != nil {
		return fmt.Errorf("error executing embeddings SQL: %w", err)
	}

	exist, err := checkFunctions(db, EmbeddingsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL embeddings functions loaded successfully")
	return nil
}

// LoadSourcesSql loads source-related SQL functions
func LoadSourcesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, SourcesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing sources functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(sourcesSQL)
	if err != nil {
		return fmt.Errorf("error executing sources SQL: %w", err)
	}

	exist, err := checkFunctions(db, SourcesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL sources functions loaded successfully")
	return nil
}

// LoadCitationsSql loads citation-related SQL functions
func LoadCitationsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, CitationsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing citations functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(citationsSQL)
	if err != nil {
		return fmt.Errorf("error executing citations SQL: %w", err)
	}

	exist, err := checkFunctions(db, CitationsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL citations functions loaded successfully")
	return nil
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadChunksSql(db, force); err != nil {
		return err
	}

	if err := LoadEmbeddingsSql(db, force); err != nil {
		return err
	}

	if err := LoadSourcesSql(db, force); err != nil {
		return err
	}

	if err := LoadCitationsSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
