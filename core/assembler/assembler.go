package assembler

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/siherrmann/retriever/core/tokens"
	"github.com/siherrmann/retriever/model"
	"github.com/siherrmann/retriever/provider"
)

// ModelInfoProvider resolves the context window of a target model, the
// provider layer satisfies it
type ModelInfoProvider interface {
	ModelInfo(modelName string) provider.ModelInfo
}

// Assembler packs ranked chunks into a model's token budget. It is a pure
// budget-allocation step with no state between calls.
type Assembler struct {
	models  ModelInfoProvider
	counter tokens.Counter
	config  *model.AssemblyConfig
	logger  *slog.Logger
}

// NewAssembler creates a context assembler. The model info provider may be
// nil, then the default context window applies to every model.
func NewAssembler(models ModelInfoProvider, counter tokens.Counter, config *model.AssemblyConfig, logger *slog.Logger) *Assembler {
	if config == nil {
		defaultConfig := model.DefaultAssemblyConfig()
		config = &defaultConfig
	}
	if counter == nil {
		counter = tokens.Estimator{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Assembler{
		models:  models,
		counter: counter,
		config:  config,
		logger:  logger,
	}
}

// AssembleContext selects and formats a subset of the ranked chunks that
// fits the token budget left after the fixed reservations, the query and
// the conversation history. The formatted text never pushes the total over
// the context window, if even truncation cannot satisfy that the result is
// an empty context instead.
func (a *Assembler) AssembleContext(query string, results []*model.SearchResult, history []model.Message, modelName string) *model.AssembledContext {
	window := a.contextWindow(modelName)
	reservations := a.reservedTokens(query, history)

	available := window - reservations
	if available < 0 {
		available = 0
	}

	candidates := a.filterCandidates(results)

	var selected []selectedChunk
	switch a.config.Strategy {
	case model.StrategyBalanced:
		selected = a.selectBalanced(candidates, available)
	case model.StrategyQuality:
		selected = a.selectGreedy(a.filterQuality(candidates), available)
	default:
		selected = a.selectGreedy(candidates, available)
	}

	assembled := a.buildContext(selected, window, available, reservations)
	if assembled.TokensTotal > window {
		a.logger.Warn("assembled context exceeds the window, returning empty context",
			slog.Int("tokens_total", assembled.TokensTotal), slog.Int("context_window", window))
		return emptyContext(window, available, reservations)
	}

	return assembled
}

// selectedChunk pairs a formatted chunk with its ref and measured cost
type selectedChunk struct {
	text   string
	ref    model.ChunkRef
	tokens int
}

// contextWindow resolves the window size in order: explicit configuration,
// provider model info, configured default
func (a *Assembler) contextWindow(modelName string) int {
	if a.config.ContextWindow > 0 {
		return a.config.ContextWindow
	}
	if a.models != nil {
		if info := a.models.ModelInfo(modelName); info.ContextWindow > 0 {
			return info.ContextWindow
		}
	}
	if a.config.DefaultContextWindow > 0 {
		return a.config.DefaultContextWindow
	}
	return 8192
}

// reservedTokens sums the fixed reservations, the query cost and the
// conversation history cost including per-message structural overhead
func (a *Assembler) reservedTokens(query string, history []model.Message) int {
	reserved := a.config.SystemPromptReserve + a.config.ResponseReserve + a.config.OverheadReserve
	reserved += a.counter.CountTokens(query)
	for _, message := range history {
		reserved += a.counter.CountTokens(message.Content) + a.config.MessageOverhead
	}
	return reserved
}

// filterCandidates drops results below the minimum chunk score and sorts
// the rest descending by relevance, stable on ties
func (a *Assembler) filterCandidates(results []*model.SearchResult) []*model.SearchResult {
	candidates := make([]*model.SearchResult, 0, len(results))
	for _, result := range results {
		if result == nil || result.Chunk == nil {
			continue
		}
		if relevance(result) < a.config.MinChunkScore {
			continue
		}
		candidates = append(candidates, result)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return relevance(candidates[i]) > relevance(candidates[j])
	})

	return candidates
}

func (a *Assembler) filterQuality(candidates []*model.SearchResult) []*model.SearchResult {
	filtered := make([]*model.SearchResult, 0, len(candidates))
	for _, result := range candidates {
		if relevance(result) >= a.config.QualityFloor {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// relevance prefers the rerank score when one was assigned
func relevance(result *model.SearchResult) float64 {
	if result.RerankScore > 0 {
		return result.RerankScore
	}
	return result.Score
}

// selectGreedy takes candidates in relevance order until the budget or the
// chunk cap is exhausted. A chunk that would overflow the remaining budget
// is skipped whole, later smaller chunks may still fit.
func (a *Assembler) selectGreedy(candidates []*model.SearchResult, available int) []selectedChunk {
	selected := make([]selectedChunk, 0, a.config.MaxChunks)
	used := 0

	for _, result := range candidates {
		if a.config.MaxChunks > 0 && len(selected) >= a.config.MaxChunks {
			break
		}
		chunk, cost := a.formatChunk(result, len(selected)+1, len(selected) > 0)
		if used+cost > available {
			continue
		}
		selected = append(selected, chunk)
		used += cost
	}

	return selected
}

// selectBalanced round-robins across distinct sources so no single source
// dominates the context, with the same budget and cap rules as greedy
func (a *Assembler) selectBalanced(candidates []*model.SearchResult, available int) []selectedChunk {
	sourceOrder := make([]string, 0)
	queues := make(map[string][]*model.SearchResult)
	for _, result := range candidates {
		key := sourceKey(result.Chunk)
		if _, ok := queues[key]; !ok {
			sourceOrder = append(sourceOrder, key)
		}
		queues[key] = append(queues[key], result)
	}

	selected := make([]selectedChunk, 0, a.config.MaxChunks)
	used := 0
	remaining := len(candidates)

	for remaining > 0 {
		if a.config.MaxChunks > 0 && len(selected) >= a.config.MaxChunks {
			break
		}
		progressed := false
		for _, key := range sourceOrder {
			queue := queues[key]
			if len(queue) == 0 {
				continue
			}
			if a.config.MaxChunks > 0 && len(selected) >= a.config.MaxChunks {
				break
			}
			queues[key] = queue[1:]
			remaining--
			progressed = true

			chunk, cost := a.formatChunk(queue[0], len(selected)+1, len(selected) > 0)
			if used+cost > available {
				continue
			}
			selected = append(selected, chunk)
			used += cost
		}
		if !progressed {
			break
		}
	}

	return selected
}

// formatChunk renders one chunk with the optional header and citation
// marker and returns its token cost including the separator it would add
func (a *Assembler) formatChunk(result *model.SearchResult, position int, needsSeparator bool) (selectedChunk, int) {
	content := a.truncateToTokens(result.Chunk.Content, a.config.MaxChunkTokens)

	var builder strings.Builder
	if a.config.IncludeHeaders {
		builder.WriteString(chunkHeader(result.Chunk))
	}
	builder.WriteString(content)
	if a.config.CitationMarkers {
		builder.WriteString(fmt.Sprintf(" [%d]", position))
	}
	text := builder.String()

	cost := a.counter.CountTokens(text)
	if needsSeparator {
		cost += a.counter.CountTokens(a.config.Separator)
	}

	return selectedChunk{
		text: text,
		ref: model.ChunkRef{
			ChunkID:     result.Chunk.ID,
			RID:         result.Chunk.RID,
			SourceURL:   result.Chunk.SourceURL,
			SourceType:  result.Chunk.SourceType,
			Title:       result.Chunk.Title,
			Score:       result.Score,
			RerankScore: result.RerankScore,
		},
		tokens: cost,
	}, cost
}

func chunkHeader(chunk *model.Chunk) string {
	label := chunk.Title
	if label == "" {
		label = chunk.SourceURL
	}
	return fmt.Sprintf("Source: %s (%s, chunk %d)\n", label, chunk.SourceType, chunk.ChunkIndex)
}

// truncateToTokens cuts content down to the per-chunk token cap. The cut
// starts at the estimated character position and shrinks until the counter
// agrees.
func (a *Assembler) truncateToTokens(content string, maxTokens int) string {
	if maxTokens <= 0 || a.counter.CountTokens(content) <= maxTokens {
		return content
	}

	runes := []rune(content)
	cut := maxTokens * 4
	if cut > len(runes) {
		cut = len(runes)
	}
	truncated := string(runes[:cut])
	for a.counter.CountTokens(truncated) > maxTokens && len(truncated) > 0 {
		runes = []rune(truncated)
		truncated = string(runes[:len(runes)*9/10])
	}
	return truncated
}

// buildContext joins the selected chunks and measures the final accounting
// on the actual formatted text
func (a *Assembler) buildContext(selected []selectedChunk, window, available, reservations int) *model.AssembledContext {
	if len(selected) == 0 {
		return emptyContext(window, available, reservations)
	}

	parts := make([]string, 0, len(selected))
	refs := make([]model.ChunkRef, 0, len(selected))
	for _, chunk := range selected {
		parts = append(parts, chunk.text)
		refs = append(refs, chunk.ref)
	}

	text := strings.Join(parts, a.config.Separator)
	tokensUsed := a.counter.CountTokens(text)

	return &model.AssembledContext{
		Text:            text,
		Chunks:          refs,
		ChunksUsed:      len(refs),
		TokensUsed:      tokensUsed,
		TokensAvailable: available,
		TokensTotal:     reservations + tokensUsed,
		ContextWindow:   window,
	}
}

func emptyContext(window, available, reservations int) *model.AssembledContext {
	return &model.AssembledContext{
		Text:            "",
		Chunks:          []model.ChunkRef{},
		ChunksUsed:      0,
		TokensUsed:      0,
		TokensAvailable: available,
		TokensTotal:     reservations,
		ContextWindow:   window,
	}
}

func sourceKey(chunk *model.Chunk) string {
	if chunk.SourceURL != "" {
		return chunk.SourceURL
	}
	return chunk.SourceType + "/" + chunk.SourceID
}
