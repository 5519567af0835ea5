package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/siherrmann/retriever/core/retrieval"
	"github.com/siherrmann/retriever/model"
	"github.com/siherrmann/retriever/provider"
)

// CompletionProvider is the slice of the provider the AI scoring path needs
type CompletionProvider interface {
	ChatCompletion(ctx context.Context, messages []model.Message, options provider.CompletionOptions) (*provider.Completion, error)
}

const judgmentSystemPrompt = "You are a relevance judge. Rate how relevant the given text is to the query " +
	"on a scale from 0.0 (irrelevant) to 1.0 (perfectly relevant). Reply with only the score."

var decimalPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Reranker rescores the head of a ranked result list with a second, more
// expensive relevance pass. It reorders, it never fails a retrieval call.
type Reranker struct {
	provider CompletionProvider
	cache    ScoreCache
	config   *model.RerankConfig
	logger   *slog.Logger
}

// NewReranker creates a reranker. The provider may be nil, then AI and
// combined scoring degrade to the input order.
func NewReranker(completionProvider CompletionProvider, cache ScoreCache, config *model.RerankConfig, logger *slog.Logger) *Reranker {
	if config == nil {
		defaultConfig := model.DefaultRerankConfig()
		config = &defaultConfig
	}
	if cache == nil {
		cache = NewMemoryScoreCache(1024, config.CacheTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reranker{
		provider: completionProvider,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// Rerank rescores the top RerankLimit results and reorders them by rerank
// score. Results beyond the limit pass through unscored, appended after the
// reranked head. With no usable provider the AI paths return the input
// order with the original score copied into the rerank score.
func (r *Reranker) Rerank(ctx context.Context, query string, results []*model.SearchResult) []*model.SearchResult {
	if len(results) == 0 {
		return results
	}

	needsProvider := r.config.Method == model.RerankMethodAI || r.config.Method == model.RerankMethodCombined
	if needsProvider && r.provider == nil {
		r.logger.Warn("rerank provider unavailable, keeping input order")
		return passThrough(results)
	}

	headSize := r.config.RerankLimit
	if headSize <= 0 || headSize > len(results) {
		headSize = len(results)
	}
	head := results[:headSize]
	tail := results[headSize:]

	var scores []float64
	switch r.config.Method {
	case model.RerankMethodAI:
		scores = r.aiScores(ctx, query, head)
	case model.RerankMethodCombined:
		aiScores := r.aiScores(ctx, query, head)
		heuristicScores := r.heuristicScores(query, head)
		scores = make([]float64, headSize)
		for i := range scores {
			scores[i] = r.config.AIWeight*aiScores[i] + r.config.HeuristicWeight*heuristicScores[i]
		}
	default:
		scores = r.heuristicScores(query, head)
	}

	scored := make([]*model.SearchResult, headSize)
	for i, result := range head {
		scored[i] = result
		scored[i].RerankScore = scores[i]
	}

	filtered := make([]*model.SearchResult, 0, headSize)
	for _, result := range scored {
		if result.RerankScore >= r.config.MinScore {
			filtered = append(filtered, result)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].RerankScore > filtered[j].RerankScore
	})

	reordered := append(filtered, tail...)
	if r.config.OutputLimit > 0 && len(reordered) > r.config.OutputLimit {
		reordered = reordered[:r.config.OutputLimit]
	}

	return reordered
}

// passThrough keeps the input order and copies the original pass score
// into the rerank score
func passThrough(results []*model.SearchResult) []*model.SearchResult {
	for _, result := range results {
		result.RerankScore = result.Score
	}
	return results
}

// aiScores judges each result with a temperature-0 completion, bounded
// concurrency and a per-call timeout. Parse failures and provider errors
// fall back to the default score, a rerank never fails the call.
func (r *Reranker) aiScores(ctx context.Context, query string, results []*model.SearchResult) []float64 {
	scores := make([]float64, len(results))

	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, result := range results {
		if score, ok := r.cache.Get(ctx, query, result.Chunk.ID); ok {
			scores[i] = score
			continue
		}

		wg.Add(1)
		go func(i int, result *model.SearchResult) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			scores[i] = r.judgeOne(ctx, query, result)
			r.cache.Set(ctx, query, result.Chunk.ID, scores[i])
		}(i, result)
	}
	wg.Wait()

	return scores
}

func (r *Reranker) judgeOne(ctx context.Context, query string, result *model.SearchResult) float64 {
	callCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	messages := []model.Message{
		{Role: "system", Content: judgmentSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Query: %s\n\nText: %s\n\nScore:", query, result.Chunk.Content)},
	}
	completion, err := r.provider.ChatCompletion(callCtx, messages, provider.CompletionOptions{
		Model:       r.config.Model,
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		r.logger.Warn("judgment call failed, using default score",
			slog.Int64("chunk_id", result.Chunk.ID), slog.Any("error", err))
		return r.config.DefaultScore
	}

	return ParseScore(completion.Content, r.config.DefaultScore)
}

// ParseScore extracts the first decimal in [0, 1] from a judgment reply,
// falling back to the default on anything unparseable
func ParseScore(reply string, defaultScore float64) float64 {
	for _, match := range decimalPattern.FindAllString(reply, -1) {
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}
		if value >= 0 && value <= 1 {
			return value
		}
	}
	return defaultScore
}

// heuristicScores computes the lexical rerank score for each result
func (r *Reranker) heuristicScores(query string, results []*model.SearchResult) []float64 {
	keywords := retrieval.ExtractKeywords(query)
	loweredQuery := strings.ToLower(strings.TrimSpace(query))

	scores := make([]float64, len(results))
	for i, result := range results {
		scores[i] = r.heuristicScore(loweredQuery, keywords, result)
	}
	return scores
}

// heuristicScore combines the original pass score, an exact phrase bonus,
// keyword coverage and log frequency, then discounts contents far from the
// optimal length
func (r *Reranker) heuristicScore(loweredQuery string, keywords []string, result *model.SearchResult) float64 {
	content := result.Chunk.Content
	loweredContent := strings.ToLower(content)

	score := r.config.OriginalWeight * result.Score

	if loweredQuery != "" && strings.Contains(loweredContent, loweredQuery) {
		score += r.config.PhraseBonus
	}

	if len(keywords) > 0 {
		matched := 0
		occurrences := 0
		for _, keyword := range keywords {
			count := strings.Count(loweredContent, keyword)
			if count > 0 {
				matched++
				occurrences += count
			}
		}
		score += r.config.CoverageWeight * (float64(matched) / float64(len(keywords)))
		score += r.config.FrequencyWeight * retrieval.Frequency(occurrences)
	}

	return score * r.lengthNormalization(len(content))
}

// lengthNormalization discounts contents far from the optimal length. At
// the optimum the factor is 1, at zero or double the optimum it is 0.5.
func (r *Reranker) lengthNormalization(contentLength int) float64 {
	optimal := r.config.OptimalLength
	if optimal <= 0 {
		return 1
	}
	deviation := math.Abs(float64(contentLength)-float64(optimal)) / float64(optimal)
	return 1 / (1 + deviation)
}
