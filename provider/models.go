package provider

import "strings"

// Static model metadata. The backends expose no reliable metadata endpoint,
// so context windows are tracked here and consumers fall back to a
// conservative default for unknown models.
var modelInfos = map[string]ModelInfo{
	// OpenAI
	"gpt-4o":        {ContextWindow: 128000, MaxOutputTokens: 16384},
	"gpt-4o-mini":   {ContextWindow: 128000, MaxOutputTokens: 16384},
	"gpt-4-turbo":   {ContextWindow: 128000, MaxOutputTokens: 4096},
	"gpt-4":         {ContextWindow: 8192, MaxOutputTokens: 8192},
	"gpt-3.5-turbo": {ContextWindow: 16385, MaxOutputTokens: 4096},

	// Anthropic
	"claude-3-5-sonnet": {ContextWindow: 200000, MaxOutputTokens: 8192},
	"claude-3-5-haiku":  {ContextWindow: 200000, MaxOutputTokens: 8192},
	"claude-3-opus":     {ContextWindow: 200000, MaxOutputTokens: 4096},
	"claude-3-haiku":    {ContextWindow: 200000, MaxOutputTokens: 4096},

	// Google
	"gemini-1.5-pro":   {ContextWindow: 2097152, MaxOutputTokens: 8192},
	"gemini-1.5-flash": {ContextWindow: 1048576, MaxOutputTokens: 8192},
	"gemini-2.0-flash": {ContextWindow: 1048576, MaxOutputTokens: 8192},
}

// LookupModelInfo returns the static metadata for a model. Versioned model
// names match on their base name prefix. Unknown models return zero-value
// info, callers apply their own context window default.
func LookupModelInfo(modelName string) ModelInfo {
	if info, ok := modelInfos[modelName]; ok {
		return info
	}

	// Longest matching prefix wins, e.g. gpt-4o-mini before gpt-4.
	var best string
	for name := range modelInfos {
		if strings.HasPrefix(modelName, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return modelInfos[best]
	}

	return ModelInfo{}
}
