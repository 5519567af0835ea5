package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/siherrmann/retriever/helper"
	"github.com/siherrmann/retriever/model"
)

// SemanticSearcher is the semantic pass of the engine, the vector store
// satisfies it
type SemanticSearcher interface {
	Search(ctx context.Context, queryText string, limit int, threshold float64) ([]*model.SearchResult, error)
}

// ChunkStore is the slice of the database layer the keyword pass needs
type ChunkStore interface {
	SelectCandidateChunks(limit int) ([]*model.Chunk, error)
}

// Engine runs the hybrid retrieval funnel entry: a semantic and a keyword
// pass in parallel, fused into one ranked list.
type Engine struct {
	semantic SemanticSearcher
	chunks   ChunkStore
	scorer   *KeywordScorer
	config   *model.SearchConfig
	logger   *slog.Logger
}

// NewEngine creates a hybrid search engine. The semantic searcher may be
// nil, then every query runs keyword-only.
func NewEngine(semantic SemanticSearcher, chunks ChunkStore, config *model.SearchConfig, logger *slog.Logger) (*Engine, error) {
	if chunks == nil {
		return nil, helper.NewError("chunk store validation", fmt.Errorf("chunk store is nil"))
	}
	if config == nil {
		defaultConfig := model.DefaultSearchConfig()
		config = &defaultConfig
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		semantic: semantic,
		chunks:   chunks,
		scorer:   NewKeywordScorer(config),
		config:   config,
		logger:   logger,
	}, nil
}

// Search runs both passes and fuses their rankings. An empty query is
// rejected before any provider call. A failing semantic pass degrades to
// keyword-only results, a failing keyword pass fails the call since there
// is no further fallback.
func (e *Engine) Search(ctx context.Context, queryText string) ([]*model.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, model.ErrEmptyQuery
	}

	var (
		wg              sync.WaitGroup
		semanticResults []*model.SearchResult
		semanticErr     error
		keywordResults  []*model.SearchResult
		keywordErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if e.semantic == nil {
			return
		}
		// The semantic pass keeps the full candidate ranking, fusion needs
		// pass-internal ranks before the combined limit applies.
		semanticResults, semanticErr = e.semantic.Search(ctx, queryText, 0, e.config.MinSimilarity)
	}()
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = e.keywordSearch(queryText)
	}()
	wg.Wait()

	if keywordErr != nil {
		return nil, helper.NewError("keyword pass", keywordErr)
	}
	if semanticErr != nil {
		e.logger.Warn("semantic pass failed, degrading to keyword-only results", slog.Any("error", semanticErr))
		semanticResults = nil
	}

	// Raw keyword scores pass through unscaled only when the semantic pass
	// never ran. A semantic pass that ran and found nothing still goes
	// through fusion so scores stay comparable across queries.
	semanticDegraded := e.semantic == nil || semanticErr != nil

	var fused []*model.SearchResult
	switch {
	case semanticDegraded:
		fused = keywordResults
	case e.config.Fusion == model.FusionRRF:
		fused = e.fuseRRF(semanticResults, keywordResults)
	default:
		fused = e.fuseWeighted(semanticResults, keywordResults)
	}

	filtered := fused[:0]
	for _, result := range fused {
		if result.Score >= e.config.Threshold {
			filtered = append(filtered, result)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	if e.config.Limit > 0 && len(filtered) > e.config.Limit {
		filtered = filtered[:e.config.Limit]
	}

	return filtered, nil
}

// keywordSearch scores the bounded candidate set lexically and returns the
// chunks above the minimum keyword score, ranked descending
func (e *Engine) keywordSearch(queryText string) ([]*model.SearchResult, error) {
	keywords := ExtractKeywords(queryText)
	if len(keywords) == 0 {
		return nil, nil
	}

	candidates, err := e.chunks.SelectCandidateChunks(e.config.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStorageFailure, err)
	}

	results := make([]*model.SearchResult, 0, len(candidates))
	for _, chunk := range candidates {
		score := e.scorer.Score(chunk.Content, keywords)
		if score < e.config.MinKeywordScore {
			continue
		}
		results = append(results, &model.SearchResult{
			Chunk:        chunk,
			Score:        score,
			KeywordScore: score,
			SearchType:   model.SearchTypeKeyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// fuseWeighted combines both passes with normalized weights. A chunk
// missing from one pass contributes 0 for that pass. The search type is
// hybrid only for chunks present in both passes.
func (e *Engine) fuseWeighted(semantic, keyword []*model.SearchResult) []*model.SearchResult {
	semanticWeight, keywordWeight := normalizeWeights(e.config.SemanticWeight, e.config.KeywordWeight)

	merged := make(map[int64]*model.SearchResult, len(semantic)+len(keyword))
	order := make([]int64, 0, len(semantic)+len(keyword))

	for _, result := range semantic {
		combined := &model.SearchResult{
			Chunk:         result.Chunk,
			SemanticScore: result.SemanticScore,
			SearchType:    model.SearchTypeSemantic,
		}
		merged[result.Chunk.ID] = combined
		order = append(order, result.Chunk.ID)
	}

	for _, result := range keyword {
		if existing, ok := merged[result.Chunk.ID]; ok {
			existing.KeywordScore = result.KeywordScore
			existing.SearchType = model.SearchTypeHybrid
			continue
		}
		combined := &model.SearchResult{
			Chunk:        result.Chunk,
			KeywordScore: result.KeywordScore,
			SearchType:   model.SearchTypeKeyword,
		}
		merged[result.Chunk.ID] = combined
		order = append(order, result.Chunk.ID)
	}

	fused := make([]*model.SearchResult, 0, len(order))
	for _, id := range order {
		result := merged[id]
		result.Score = semanticWeight*result.SemanticScore + keywordWeight*result.KeywordScore
		fused = append(fused, result)
	}

	return fused
}

// fuseRRF combines both passes by reciprocal rank, 1-based within each
// pass's own ordering
func (e *Engine) fuseRRF(semantic, keyword []*model.SearchResult) []*model.SearchResult {
	k := e.config.RRFK
	if k <= 0 {
		k = 60
	}

	merged := make(map[int64]*model.SearchResult, len(semantic)+len(keyword))
	order := make([]int64, 0, len(semantic)+len(keyword))

	for rank, result := range semantic {
		combined := &model.SearchResult{
			Chunk:         result.Chunk,
			Score:         1.0 / float64(k+rank+1),
			SemanticScore: result.SemanticScore,
			SearchType:    model.SearchTypeSemantic,
		}
		merged[result.Chunk.ID] = combined
		order = append(order, result.Chunk.ID)
	}

	for rank, result := range keyword {
		if existing, ok := merged[result.Chunk.ID]; ok {
			existing.Score += 1.0 / float64(k+rank+1)
			existing.KeywordScore = result.KeywordScore
			existing.SearchType = model.SearchTypeHybrid
			continue
		}
		combined := &model.SearchResult{
			Chunk:        result.Chunk,
			Score:        1.0 / float64(k+rank+1),
			KeywordScore: result.KeywordScore,
			SearchType:   model.SearchTypeKeyword,
		}
		merged[result.Chunk.ID] = combined
		order = append(order, result.Chunk.ID)
	}

	fused := make([]*model.SearchResult, 0, len(order))
	for _, id := range order {
		fused = append(fused, merged[id])
	}

	return fused
}

// normalizeWeights scales the pass weights to sum to 1, falling back to an
// even split when both are zero
func normalizeWeights(semanticWeight, keywordWeight float64) (float64, float64) {
	sum := semanticWeight + keywordWeight
	if sum <= 0 {
		return 0.5, 0.5
	}
	return semanticWeight / sum, keywordWeight / sum
}
