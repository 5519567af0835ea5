package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcesNewSourcesDBHandler(t *testing.T) {
	database := initDB(t)
	defer database.Close()

	t.Run("Valid call NewSourcesDBHandler", func(t *testing.T) {
		sourcesDbHandler, err := NewSourcesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewSourcesDBHandler to not return an error")
		require.NotNil(t, sourcesDbHandler, "Expected NewSourcesDBHandler to return a non-nil instance")
		require.NotNil(t, sourcesDbHandler.db, "Expected NewSourcesDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewSourcesDBHandler with nil database", func(t *testing.T) {
		_, err := NewSourcesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating SourcesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestSourcesInsert(t *testing.T) {
	database := initDB(t)
	defer database.Close()

	sourcesDbHandler, err := NewSourcesDBHandler(database, true)
	require.NoError(t, err)

	t.Run("Insert source", func(t *testing.T) {
		source := &model.Source{
			SourceType: "document",
			SourceID:   "manual-1",
			URL:        "https://example.com/manual",
			Title:      "Service Manual",
			Metadata:   map[string]interface{}{"language": "en"},
		}

		err := sourcesDbHandler.InsertSource(source)
		assert.NoError(t, err, "Expected InsertSource to not return an error")
		assert.NotEmpty(t, source.ID, "Expected inserted source to have an ID")
		assert.NotEqual(t, uuid.Nil, source.RID, "Expected inserted source to have a random ID")
		assert.WithinDuration(t, source.CreatedAt, time.Now(), 2*time.Second, "Expected CreatedAt to be set")

		// Cleanup
		sourcesDbHandler.DeleteSource(source.ID)
	})

	t.Run("Insert source with same key updates", func(t *testing.T) {
		source := &model.Source{
			SourceType: "webpage",
			SourceID:   "page-1",
			URL:        "https://example.com/page",
			Title:      "Old Title",
			Metadata:   map[string]interface{}{},
		}
		err := sourcesDbHandler.InsertSource(source)
		require.NoError(t, err)

		updated := &model.Source{
			SourceType: "webpage",
			SourceID:   "page-1",
			URL:        "https://example.com/page",
			Title:      "New Title",
			Metadata:   map[string]interface{}{},
		}
		err = sourcesDbHandler.InsertSource(updated)
		assert.NoError(t, err, "Expected upsert to not return an error")
		assert.Equal(t, source.ID, updated.ID, "Expected upsert to keep the same row")
		assert.Equal(t, "New Title", updated.Title, "Expected title to be updated")

		// Cleanup
		sourcesDbHandler.DeleteSource(source.ID)
	})
}

func TestSourcesGet(t *testing.T) {
	database := initDB(t)
	defer database.Close()

	sourcesDbHandler, err := NewSourcesDBHandler(database, true)
	require.NoError(t, err)

	source := &model.Source{
		SourceType: "document",
		SourceID:   "handbook-1",
		URL:        "https://example.com/handbook",
		Title:      "Handbook",
		Metadata:   map[string]interface{}{},
	}
	err = sourcesDbHandler.InsertSource(source)
	require.NoError(t, err)

	t.Run("Select source by ID", func(t *testing.T) {
		retrieved, err := sourcesDbHandler.SelectSource(source.ID)
		assert.NoError(t, err, "Expected SelectSource to not return an error")
		assert.Equal(t, source.ID, retrieved.ID, "Expected source IDs to match")
		assert.Equal(t, source.Title, retrieved.Title, "Expected titles to match")
	})

	t.Run("Select source by key", func(t *testing.T) {
		retrieved, err := sourcesDbHandler.SelectSourceByKey("document", "handbook-1")
		assert.NoError(t, err, "Expected SelectSourceByKey to not return an error")
		assert.Equal(t, source.ID, retrieved.ID, "Expected source IDs to match")
	})

	t.Run("Select missing source returns not found", func(t *testing.T) {
		_, err := sourcesDbHandler.SelectSourceByKey("document", "unknown")
		assert.Error(t, err, "Expected SelectSourceByKey to return an error for unknown key")
		assert.True(t, IsNotFound(err), "Expected missing source error to be a not-found error")
	})

	// Cleanup
	sourcesDbHandler.DeleteSource(source.ID)
}

func TestSourcesGetAll(t *testing.T) {
	database := initDB(t)
	defer database.Close()

	sourcesDbHandler, err := NewSourcesDBHandler(database, true)
	require.NoError(t, err)

	sourceCount := 3
	sources := make([]*model.Source, sourceCount)
	for i := 0; i < sourceCount; i++ {
		sources[i] = &model.Source{
			SourceType: "document",
			SourceID:   "doc-" + string(rune('a'+i)),
			URL:        "https://example.com/doc",
			Title:      "Document",
			Metadata:   map[string]interface{}{},
		}
		err = sourcesDbHandler.InsertSource(sources[i])
		require.NoError(t, err)
	}

	t.Run("Select all sources in stable order", func(t *testing.T) {
		retrieved, err := sourcesDbHandler.SelectAllSources(100)
		assert.NoError(t, err, "Expected SelectAllSources to not return an error")
		require.GreaterOrEqual(t, len(retrieved), sourceCount, "Expected at least the inserted sources")
		for i := 1; i < len(retrieved); i++ {
			assert.Greater(t, retrieved[i].ID, retrieved[i-1].ID, "Expected sources ordered by id")
		}
	})

	t.Run("Select all sources respects the limit", func(t *testing.T) {
		retrieved, err := sourcesDbHandler.SelectAllSources(2)
		assert.NoError(t, err, "Expected SelectAllSources to not return an error")
		assert.Len(t, retrieved, 2, "Expected source set capped at the limit")
	})

	t.Run("Limit of zero returns all sources", func(t *testing.T) {
		retrieved, err := sourcesDbHandler.SelectAllSources(0)
		assert.NoError(t, err, "Expected SelectAllSources to not return an error")
		assert.GreaterOrEqual(t, len(retrieved), sourceCount, "Expected zero limit to mean no limit")
	})

	// Cleanup
	for _, source := range sources {
		sourcesDbHandler.DeleteSource(source.ID)
	}
}

func TestSourcesDelete(t *testing.T) {
	database := initDB(t)
	defer database.Close()

	sourcesDbHandler, err := NewSourcesDBHandler(database, true)
	require.NoError(t, err)

	source := &model.Source{
		SourceType: "document",
		SourceID:   "to-delete",
		URL:        "https://example.com/delete",
		Metadata:   map[string]interface{}{},
	}
	err = sourcesDbHandler.InsertSource(source)
	require.NoError(t, err)

	t.Run("Delete source", func(t *testing.T) {
		err := sourcesDbHandler.DeleteSource(source.ID)
		assert.NoError(t, err, "Expected DeleteSource to not return an error")

		_, err = sourcesDbHandler.SelectSource(source.ID)
		assert.True(t, IsNotFound(err), "Expected source to be gone after delete")
	})
}
