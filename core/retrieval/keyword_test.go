package retrieval

import (
	"math"
	"strings"
	"testing"

	"github.com/siherrmann/retriever/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywords(t *testing.T) {
	t.Run("Lowercases and strips punctuation", func(t *testing.T) {
		keywords := ExtractKeywords("What is Vector-Search?!")
		assert.Equal(t, []string{"vector", "search"}, keywords, "Expected normalized keywords")
	})

	t.Run("Drops short tokens", func(t *testing.T) {
		keywords := ExtractKeywords("go is a DB of id")
		assert.Empty(t, keywords, "Expected tokens of two characters or less to be dropped")
	})

	t.Run("Drops stop words", func(t *testing.T) {
		keywords := ExtractKeywords("what about the results from their search")
		assert.Equal(t, []string{"results", "search"}, keywords, "Expected stop words to be dropped")
	})

	t.Run("Deduplicates preserving first occurrence order", func(t *testing.T) {
		keywords := ExtractKeywords("search vector search index vector")
		assert.Equal(t, []string{"search", "vector", "index"}, keywords, "Expected distinct keywords in order")
	})

	t.Run("Empty query yields no keywords", func(t *testing.T) {
		assert.Empty(t, ExtractKeywords(""), "Expected no keywords for empty query")
		assert.Empty(t, ExtractKeywords("  ...  "), "Expected no keywords for punctuation-only query")
	})
}

func TestKeywordScorerScore(t *testing.T) {
	scorer := NewKeywordScorer(nil)

	t.Run("Empty inputs score zero", func(t *testing.T) {
		assert.Zero(t, scorer.Score("", []string{"vector"}), "Expected zero score for empty content")
		assert.Zero(t, scorer.Score("some content", nil), "Expected zero score for no keywords")
	})

	t.Run("No keyword match scores zero", func(t *testing.T) {
		score := scorer.Score("completely unrelated text about gardening", []string{"vector", "database"})
		assert.Zero(t, score, "Expected zero score without any keyword match")
	})

	t.Run("Full coverage beats partial coverage", func(t *testing.T) {
		keywords := []string{"vector", "database"}
		full := scorer.Score("the vector database stores embeddings", keywords)
		partial := scorer.Score("the vector index stores embeddings", keywords)
		assert.Greater(t, full, partial, "Expected full keyword coverage to score higher")
	})

	t.Run("Repeated occurrences raise the frequency term", func(t *testing.T) {
		keywords := []string{"vector"}
		once := scorer.Score("vector store with other words between and after", keywords)
		often := scorer.Score("vector vector vector store vector words vector after", keywords)
		assert.Greater(t, often, once, "Expected repeated occurrences to score higher")
	})

	t.Run("Adjacent keywords earn a proximity bonus", func(t *testing.T) {
		keywords := []string{"vector", "database"}
		near := scorer.Score("the vector database holds many filler words here now", keywords)
		far := scorer.Score("the vector holds many filler words here now database", keywords)
		assert.Greater(t, near, far, "Expected adjacent keywords to score higher")
	})

	t.Run("Score stays in unit range", func(t *testing.T) {
		keywords := []string{"vector", "database", "index"}
		content := strings.Repeat("vector database index ", 50)
		score := scorer.Score(content, keywords)
		assert.LessOrEqual(t, score, 1.0, "Expected score clamped to 1")
		assert.GreaterOrEqual(t, score, 0.0, "Expected score clamped to 0")
	})

	t.Run("Weights follow the configuration", func(t *testing.T) {
		config := model.DefaultSearchConfig()
		config.CoverageWeight = 1.0
		config.FrequencyWeight = 0.0
		config.ProximityWeight = 0.0
		coverageOnly := NewKeywordScorer(&config)

		// Single occurrence of the single keyword, coverage is the whole score.
		score := coverageOnly.Score("vector appears once in this content", []string{"vector"})
		assert.InDelta(t, 1.0, score, 0.0001, "Expected pure coverage score of 1")
	})
}

func TestFrequency(t *testing.T) {
	t.Run("Zero occurrences score zero", func(t *testing.T) {
		assert.Zero(t, Frequency(0))
		assert.Zero(t, Frequency(-1))
	})

	t.Run("Log scaled against base ten", func(t *testing.T) {
		assert.InDelta(t, math.Log(2)/math.Log(10), Frequency(1), 0.0001)
		assert.InDelta(t, math.Log(5)/math.Log(10), Frequency(4), 0.0001)
	})

	t.Run("Saturates at nine occurrences", func(t *testing.T) {
		assert.InDelta(t, 1.0, Frequency(9), 0.0001)
		assert.Equal(t, 1.0, Frequency(100), "Expected frequency capped at 1")
	})
}

func TestProximityBonus(t *testing.T) {
	t.Run("Single match earns no bonus", func(t *testing.T) {
		assert.Zero(t, proximityBonus([]int{3}, []string{"vector"}, 10))
	})

	t.Run("Repeated same keyword earns no bonus", func(t *testing.T) {
		assert.Zero(t, proximityBonus([]int{1, 5}, []string{"vector", "vector"}, 10))
	})

	t.Run("Closer distinct keywords earn a larger bonus", func(t *testing.T) {
		near := proximityBonus([]int{1, 2}, []string{"vector", "database"}, 10)
		far := proximityBonus([]int{1, 8}, []string{"vector", "database"}, 10)
		assert.Greater(t, near, far, "Expected closer keywords to earn a larger bonus")
	})

	t.Run("Gap is measured relative to content length", func(t *testing.T) {
		short := proximityBonus([]int{1, 3}, []string{"vector", "database"}, 10)
		long := proximityBonus([]int{1, 3}, []string{"vector", "database"}, 1000)
		require.Greater(t, long, short, "Expected the same gap to weigh less in longer content")
	})
}
