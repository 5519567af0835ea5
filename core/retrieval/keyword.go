package retrieval

import (
	"math"
	"strings"

	"github.com/siherrmann/retriever/model"
)

// Fixed stop-word set for keyword extraction. Kept deliberately small, the
// short-token rule already drops most function words.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "their": {}, "about": {},
	"would": {}, "there": {}, "been": {}, "were": {}, "into": {},
	"them": {}, "then": {}, "than": {}, "some": {}, "how": {}, "who": {},
	"its": {}, "does": {}, "your": {},
}

// ExtractKeywords normalizes a query into its distinct keywords: lowercase,
// punctuation stripped, tokens of two characters or less and stop words
// dropped. Order of first occurrence is preserved.
func ExtractKeywords(query string) []string {
	tokens := tokenize(query)

	seen := map[string]struct{}{}
	keywords := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) <= 2 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}

	return keywords
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit
func tokenize(text string) []string {
	normalized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, text)
	return strings.Fields(normalized)
}

// KeywordScorer computes lexical relevance scores over chunk text
type KeywordScorer struct {
	config *model.SearchConfig
}

// NewKeywordScorer creates a scorer with the configured pass weights
func NewKeywordScorer(config *model.SearchConfig) *KeywordScorer {
	if config == nil {
		defaultConfig := model.DefaultSearchConfig()
		config = &defaultConfig
	}
	return &KeywordScorer{config: config}
}

// Score computes the keyword score of a content against the extracted query
// keywords: coverage, log-scaled frequency and a proximity bonus, combined
// with the configured weights and clamped to [0, 1].
func (s *KeywordScorer) Score(content string, keywords []string) float64 {
	if len(keywords) == 0 || content == "" {
		return 0
	}

	tokens := tokenize(content)
	if len(tokens) == 0 {
		return 0
	}

	keywordSet := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		keywordSet[keyword] = struct{}{}
	}

	// One scan collects occurrence counts per keyword and the token
	// positions of all keyword hits.
	occurrences := map[string]int{}
	positions := make([]int, 0, len(tokens))
	matchedAt := make([]string, 0, len(tokens))
	for i, token := range tokens {
		if _, ok := keywordSet[token]; ok {
			occurrences[token]++
			positions = append(positions, i)
			matchedAt = append(matchedAt, token)
		}
	}

	coverage := float64(len(occurrences)) / float64(len(keywords))

	totalOccurrences := 0
	for _, count := range occurrences {
		totalOccurrences += count
	}
	frequency := Frequency(totalOccurrences)

	proximity := proximityBonus(positions, matchedAt, len(tokens))

	score := s.config.CoverageWeight*coverage +
		s.config.FrequencyWeight*frequency +
		s.config.ProximityWeight*proximity

	return clamp01(score)
}

// Frequency maps an occurrence count to [0, 1] on a log scale, saturating
// at ten occurrences
func Frequency(occurrences int) float64 {
	if occurrences <= 0 {
		return 0
	}
	return math.Min(1.0, math.Log(1+float64(occurrences))/math.Log(10))
}

// proximityBonus grows towards 1 as the minimum distance between
// occurrences of two different keywords shrinks relative to the content
// length. A single matched keyword earns no bonus.
func proximityBonus(positions []int, matched []string, contentTokens int) float64 {
	if len(positions) < 2 || contentTokens == 0 {
		return 0
	}

	minDistance := -1
	for i := 1; i < len(positions); i++ {
		if matched[i] == matched[i-1] {
			continue
		}
		distance := positions[i] - positions[i-1]
		if minDistance < 0 || distance < minDistance {
			minDistance = distance
		}
	}
	if minDistance < 0 {
		return 0
	}

	return clamp01(1.0 - float64(minDistance)/float64(contentTokens))
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
