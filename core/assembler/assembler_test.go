package assembler

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/siherrmann/retriever/model"
	"github.com/siherrmann/retriever/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModelInfoProvider struct {
	info provider.ModelInfo
}

func (f *fakeModelInfoProvider) ModelInfo(modelName string) provider.ModelInfo {
	return f.info
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// tokenChunk builds a result whose content costs exactly the given number
// of estimator tokens (4 characters per token)
func tokenChunk(id int64, score float64, tokens int, sourceURL string) *model.SearchResult {
	return &model.SearchResult{
		Chunk: &model.Chunk{
			ID:        id,
			SourceURL: sourceURL,
			Content:   strings.Repeat("abcd", tokens),
		},
		Score:      score,
		SearchType: model.SearchTypeHybrid,
	}
}

// plainConfig disables formatting so token math stays exact
func plainConfig() *model.AssemblyConfig {
	config := model.DefaultAssemblyConfig()
	config.IncludeHeaders = false
	config.CitationMarkers = false
	config.Separator = "\n\n"
	return &config
}

func TestContextWindowResolution(t *testing.T) {
	t.Run("Explicit configuration wins", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 4096
		assembler := NewAssembler(&fakeModelInfoProvider{info: provider.ModelInfo{ContextWindow: 128000}}, nil, config, quietLogger())

		result := assembler.AssembleContext("query", nil, nil, "gpt-4o")
		assert.Equal(t, 4096, result.ContextWindow, "Expected configured window to override provider info")
	})

	t.Run("Provider model info resolves the window", func(t *testing.T) {
		assembler := NewAssembler(&fakeModelInfoProvider{info: provider.ModelInfo{ContextWindow: 128000}}, nil, plainConfig(), quietLogger())

		result := assembler.AssembleContext("query", nil, nil, "gpt-4o")
		assert.Equal(t, 128000, result.ContextWindow, "Expected window from provider model info")
	})

	t.Run("Unknown model falls back to the default window", func(t *testing.T) {
		assembler := NewAssembler(&fakeModelInfoProvider{}, nil, plainConfig(), quietLogger())

		result := assembler.AssembleContext("query", nil, nil, "unknown-model")
		assert.Equal(t, 8192, result.ContextWindow, "Expected default window for unknown model")
	})

	t.Run("Nil provider falls back to the default window", func(t *testing.T) {
		assembler := NewAssembler(nil, nil, plainConfig(), quietLogger())

		result := assembler.AssembleContext("query", nil, nil, "gpt-4o")
		assert.Equal(t, 8192, result.ContextWindow)
	})
}

func TestTokenBudget(t *testing.T) {
	t.Run("Greedy skips an oversized chunk and keeps a smaller one", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 1000
		config.SystemPromptReserve = 700
		config.ResponseReserve = 0
		config.OverheadReserve = 0
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.9, 400, "https://example.com/big"),
			tokenChunk(2, 0.5, 50, "https://example.com/small"),
		}
		assembled := assembler.AssembleContext("", results, nil, "")

		require.Equal(t, 1, assembled.ChunksUsed, "Expected only the chunk that fits the remaining budget")
		assert.Equal(t, int64(2), assembled.Chunks[0].ChunkID, "Expected the 50-token chunk selected")
		assert.Equal(t, 300, assembled.TokensAvailable)
		assert.LessOrEqual(t, assembled.TokensTotal, assembled.ContextWindow, "Expected total to stay inside the window")
	})

	t.Run("Query and history reduce the chunk budget", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 1000
		config.SystemPromptReserve = 0
		config.ResponseReserve = 0
		config.OverheadReserve = 0
		config.MessageOverhead = 10
		assembler := NewAssembler(nil, nil, config, quietLogger())

		query := strings.Repeat("abcd", 100)                            // 100 tokens
		history := []model.Message{{Role: "user", Content: strings.Repeat("abcd", 40)}} // 40 + 10 overhead

		assembled := assembler.AssembleContext(query, nil, history, "")
		assert.Equal(t, 850, assembled.TokensAvailable, "Expected 1000 - 100 query - 50 history")
	})

	t.Run("Budget is floored at zero", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 100
		config.SystemPromptReserve = 500
		assembler := NewAssembler(nil, nil, config, quietLogger())

		assembled := assembler.AssembleContext("query", []*model.SearchResult{tokenChunk(1, 0.9, 10, "")}, nil, "")
		assert.Zero(t, assembled.TokensAvailable, "Expected negative budget floored at zero")
		assert.Zero(t, assembled.ChunksUsed, "Expected no chunks without budget")
		assert.Empty(t, assembled.Text)
	})

	t.Run("Nothing fits returns an empty context", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 1000
		config.SystemPromptReserve = 900
		config.ResponseReserve = 0
		config.OverheadReserve = 0
		assembler := NewAssembler(nil, nil, config, quietLogger())

		assembled := assembler.AssembleContext("", []*model.SearchResult{tokenChunk(1, 0.9, 500, "")}, nil, "")
		assert.Zero(t, assembled.ChunksUsed)
		assert.Empty(t, assembled.Text, "Expected empty context text when no chunk fits")
	})
}

func TestSelectionStrategies(t *testing.T) {
	t.Run("Greedy takes chunks in descending relevance order", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.3, 10, "https://example.com/a"),
			tokenChunk(2, 0.9, 10, "https://example.com/b"),
			tokenChunk(3, 0.6, 10, "https://example.com/c"),
		}
		assembled := assembler.AssembleContext("", results, nil, "")

		require.Equal(t, 3, assembled.ChunksUsed)
		assert.Equal(t, int64(2), assembled.Chunks[0].ChunkID, "Expected highest relevance first")
		assert.Equal(t, int64(3), assembled.Chunks[1].ChunkID)
		assert.Equal(t, int64(1), assembled.Chunks[2].ChunkID)
	})

	t.Run("Rerank score takes precedence over the pass score", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		assembler := NewAssembler(nil, nil, config, quietLogger())

		low := tokenChunk(1, 0.9, 10, "")
		high := tokenChunk(2, 0.2, 10, "")
		high.RerankScore = 0.95

		assembled := assembler.AssembleContext("", []*model.SearchResult{low, high}, nil, "")
		require.Equal(t, 2, assembled.ChunksUsed)
		assert.Equal(t, int64(2), assembled.Chunks[0].ChunkID, "Expected rerank score to drive ordering")
	})

	t.Run("Minimum chunk score filters candidates", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.MinChunkScore = 0.5
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.9, 10, ""),
			tokenChunk(2, 0.2, 10, ""),
		}
		assembled := assembler.AssembleContext("", results, nil, "")

		require.Equal(t, 1, assembled.ChunksUsed, "Expected low-scored chunk filtered out")
		assert.Equal(t, int64(1), assembled.Chunks[0].ChunkID)
	})

	t.Run("Quality strategy enforces the quality floor", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.Strategy = model.StrategyQuality
		config.QualityFloor = 0.7
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.95, 10, ""),
			tokenChunk(2, 0.65, 10, ""),
			tokenChunk(3, 0.8, 10, ""),
		}
		assembled := assembler.AssembleContext("", results, nil, "")

		require.Equal(t, 2, assembled.ChunksUsed, "Expected chunks below the floor excluded")
		assert.Equal(t, int64(1), assembled.Chunks[0].ChunkID)
		assert.Equal(t, int64(3), assembled.Chunks[1].ChunkID)
	})

	t.Run("Balanced round-robins across sources", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.Strategy = model.StrategyBalanced
		config.MaxChunks = 2
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.9, 10, "https://example.com/a"),
			tokenChunk(2, 0.8, 10, "https://example.com/a"),
			tokenChunk(3, 0.7, 10, "https://example.com/b"),
		}
		assembled := assembler.AssembleContext("", results, nil, "")

		require.Equal(t, 2, assembled.ChunksUsed)
		sources := []string{assembled.Chunks[0].SourceURL, assembled.Chunks[1].SourceURL}
		assert.Contains(t, sources, "https://example.com/a")
		assert.Contains(t, sources, "https://example.com/b", "Expected one chunk from each source")
	})

	t.Run("Max chunks caps selection", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.MaxChunks = 2
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.9, 10, ""),
			tokenChunk(2, 0.8, 10, ""),
			tokenChunk(3, 0.7, 10, ""),
		}
		assembled := assembler.AssembleContext("", results, nil, "")
		assert.Equal(t, 2, assembled.ChunksUsed, "Expected selection capped at max chunks")
	})
}

func TestFormatting(t *testing.T) {
	t.Run("Citation markers number chunks by position", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.CitationMarkers = true
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.9, 10, ""),
			tokenChunk(2, 0.8, 10, ""),
		}
		assembled := assembler.AssembleContext("", results, nil, "")

		assert.Contains(t, assembled.Text, " [1]", "Expected first chunk marked [1]")
		assert.Contains(t, assembled.Text, " [2]", "Expected second chunk marked [2]")
	})

	t.Run("Headers carry source, title and chunk index", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.IncludeHeaders = true
		assembler := NewAssembler(nil, nil, config, quietLogger())

		result := tokenChunk(1, 0.9, 10, "https://example.com/docs")
		result.Chunk.Title = "Getting Started"
		result.Chunk.SourceType = "document"
		result.Chunk.ChunkIndex = 3

		assembled := assembler.AssembleContext("", []*model.SearchResult{result}, nil, "")
		assert.Contains(t, assembled.Text, "Source: Getting Started (document, chunk 3)", "Expected metadata header")
	})

	t.Run("Header falls back to the source URL without a title", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.IncludeHeaders = true
		assembler := NewAssembler(nil, nil, config, quietLogger())

		assembled := assembler.AssembleContext("", []*model.SearchResult{tokenChunk(1, 0.9, 10, "https://example.com/docs")}, nil, "")
		assert.Contains(t, assembled.Text, "Source: https://example.com/docs", "Expected URL fallback in header")
	})

	t.Run("Chunks joined with the configured separator", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.Separator = "\n\n---\n\n"
		assembler := NewAssembler(nil, nil, config, quietLogger())

		results := []*model.SearchResult{
			tokenChunk(1, 0.9, 10, ""),
			tokenChunk(2, 0.8, 10, ""),
		}
		assembled := assembler.AssembleContext("", results, nil, "")
		assert.Contains(t, assembled.Text, "\n\n---\n\n", "Expected configured separator between chunks")
	})

	t.Run("Oversized chunk content is truncated to the cap", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		config.MaxChunkTokens = 20
		assembler := NewAssembler(nil, nil, config, quietLogger())

		assembled := assembler.AssembleContext("", []*model.SearchResult{tokenChunk(1, 0.9, 100, "")}, nil, "")
		require.Equal(t, 1, assembled.ChunksUsed, "Expected truncated chunk still included")
		assert.LessOrEqual(t, assembled.TokensUsed, 20, "Expected content cut to the per-chunk cap")
	})

	t.Run("Chunk refs carry both scores", func(t *testing.T) {
		config := plainConfig()
		config.ContextWindow = 10000
		assembler := NewAssembler(nil, nil, config, quietLogger())

		result := tokenChunk(1, 0.8, 10, "https://example.com/a")
		result.RerankScore = 0.9
		assembled := assembler.AssembleContext("", []*model.SearchResult{result}, nil, "")

		require.Equal(t, 1, assembled.ChunksUsed)
		assert.InDelta(t, 0.8, assembled.Chunks[0].Score, 0.0001)
		assert.InDelta(t, 0.9, assembled.Chunks[0].RerankScore, 0.0001)
	})
}
