package model

import "time"

// FusionMethod defines how the semantic and keyword passes are combined
type FusionMethod string

const (
	FusionWeighted FusionMethod = "weighted" // Weighted score combination
	FusionRRF      FusionMethod = "rrf"      // Reciprocal Rank Fusion
)

// SearchConfig represents configuration for a hybrid search query
type SearchConfig struct {
	// Result shaping
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold,omitempty"` // Minimum combined score, filters, never clamps

	// Semantic pass
	EmbeddingModel string  `json:"embedding_model,omitempty"` // Empty uses the provider default
	MaxCandidates  int     `json:"max_candidates"`            // Brute-force scan ceiling, candidates beyond are excluded
	MinSimilarity  float64 `json:"min_similarity,omitempty"`

	// Keyword pass
	MinKeywordScore float64 `json:"min_keyword_score"`
	CoverageWeight  float64 `json:"coverage_weight"`
	FrequencyWeight float64 `json:"frequency_weight"`
	ProximityWeight float64 `json:"proximity_weight"`

	// Fusion
	Fusion         FusionMethod `json:"fusion"`
	SemanticWeight float64      `json:"semantic_weight"`
	KeywordWeight  float64      `json:"keyword_weight"`
	RRFK           int          `json:"rrf_k"`
}

// DefaultSearchConfig returns a sensible default configuration
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Limit:           10,
		Threshold:       0.0,
		MaxCandidates:   10000,
		MinSimilarity:   0.0,
		MinKeywordScore: 0.05,
		CoverageWeight:  0.5,
		FrequencyWeight: 0.3,
		ProximityWeight: 0.2,
		Fusion:          FusionWeighted,
		SemanticWeight:  0.7,
		KeywordWeight:   0.3,
		RRFK:            60,
	}
}

// RerankMethod selects the reranker scoring path
type RerankMethod string

const (
	RerankMethodAI        RerankMethod = "ai"
	RerankMethodHeuristic RerankMethod = "heuristic"
	RerankMethodCombined  RerankMethod = "combined"
)

// RerankConfig represents configuration for second-stage reranking.
// The heuristic constants are empirically chosen defaults, they are exposed
// here instead of being hard-coded.
type RerankConfig struct {
	Method      RerankMethod `json:"method"`
	RerankLimit int          `json:"rerank_limit"` // Only the top N results are rescored
	OutputLimit int          `json:"output_limit,omitempty"`
	MinScore    float64      `json:"min_score,omitempty"`

	// AI scoring
	Model        string        `json:"model,omitempty"` // Empty uses the provider default
	Timeout      time.Duration `json:"timeout"`
	Concurrency  int           `json:"concurrency"`
	CacheTTL     time.Duration `json:"cache_ttl"`
	DefaultScore float64       `json:"default_score"` // Fallback on parse failure or provider error

	// Heuristic scoring
	OriginalWeight  float64 `json:"original_weight"`
	PhraseBonus     float64 `json:"phrase_bonus"`
	CoverageWeight  float64 `json:"coverage_weight"`
	FrequencyWeight float64 `json:"frequency_weight"`
	OptimalLength   int     `json:"optimal_length"` // Content length with no normalization penalty

	// Combined scoring
	AIWeight        float64 `json:"ai_weight"`
	HeuristicWeight float64 `json:"heuristic_weight"`
}

// DefaultRerankConfig returns a sensible default configuration
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Method:          RerankMethodHeuristic,
		RerankLimit:     20,
		OutputLimit:     10,
		MinScore:        0.0,
		Timeout:         10 * time.Second,
		Concurrency:     4,
		CacheTTL:        15 * time.Minute,
		DefaultScore:    0.5,
		OriginalWeight:  0.3,
		PhraseBonus:     0.3,
		CoverageWeight:  0.2,
		FrequencyWeight: 0.2,
		OptimalLength:   500,
		AIWeight:        0.7,
		HeuristicWeight: 0.3,
	}
}

// AssemblyStrategy selects how chunks are packed into the token budget
type AssemblyStrategy string

const (
	StrategyGreedy   AssemblyStrategy = "greedy"
	StrategyBalanced AssemblyStrategy = "balanced" // Round-robin across distinct sources
	StrategyQuality  AssemblyStrategy = "quality"  // Greedy with a fixed quality floor
)

// AssemblyConfig represents configuration for context assembly
type AssemblyConfig struct {
	Strategy      AssemblyStrategy `json:"strategy"`
	MaxChunks     int              `json:"max_chunks"`
	MinChunkScore float64          `json:"min_chunk_score"`
	QualityFloor  float64          `json:"quality_floor"` // Only used by StrategyQuality

	// Token budget reservations
	ContextWindow        int `json:"context_window,omitempty"` // 0 resolves from provider model info
	SystemPromptReserve  int `json:"system_prompt_reserve"`
	ResponseReserve      int `json:"response_reserve"`
	OverheadReserve      int `json:"overhead_reserve"`
	MessageOverhead      int `json:"message_overhead"` // Structural tokens per history message
	MaxChunkTokens       int `json:"max_chunk_tokens"` // Hard per-chunk truncation cap
	DefaultContextWindow int `json:"default_context_window"`

	// Formatting
	IncludeHeaders  bool   `json:"include_headers"`
	CitationMarkers bool   `json:"citation_markers"`
	Separator       string `json:"separator"`
}

// DefaultAssemblyConfig returns a sensible default configuration
func DefaultAssemblyConfig() AssemblyConfig {
	return AssemblyConfig{
		Strategy:             StrategyGreedy,
		MaxChunks:            8,
		MinChunkScore:        0.0,
		QualityFloor:         0.7,
		SystemPromptReserve:  500,
		ResponseReserve:      1024,
		OverheadReserve:      200,
		MessageOverhead:      10,
		MaxChunkTokens:       1500,
		DefaultContextWindow: 8192,
		IncludeHeaders:       true,
		CitationMarkers:      true,
		Separator:            "\n\n---\n\n",
	}
}

// CitationFormat selects the citation rendering layout
type CitationFormat string

const (
	CitationFormatInline   CitationFormat = "inline"   // Rewrite [n] markers in place
	CitationFormatFootnote CitationFormat = "footnote" // Footnote markers with a back-reference list
	CitationFormatEndnote  CitationFormat = "endnote"  // End-of-response source list
)

// CitationRenderConfig represents configuration for citation rendering
type CitationRenderConfig struct {
	Format        CitationFormat `json:"format"`
	IncludeScores bool           `json:"include_scores"`
}

// DefaultCitationRenderConfig returns a sensible default configuration
func DefaultCitationRenderConfig() CitationRenderConfig {
	return CitationRenderConfig{
		Format:        CitationFormatEndnote,
		IncludeScores: false,
	}
}
