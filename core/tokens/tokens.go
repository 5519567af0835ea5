package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/siherrmann/retriever/helper"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens of a text. The assembler uses it for all budget
// accounting, so one request must always use one counter.
type Counter interface {
	CountTokens(text string) int
}

// Estimator approximates token counts at roughly four characters per token.
// Used where an exact tokenizer is unavailable or too heavy, e.g. for
// conversation history reservations.
type Estimator struct{}

// CountTokens estimates the token count of a text. The estimate counts
// runes, not bytes, so multibyte text is not overcounted. Non-empty text
// counts at least one token.
func (e Estimator) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	count := len([]rune(text)) / 4
	if count < 1 {
		return 1
	}
	return count
}

// TiktokenCounter counts tokens with a real BPE encoding.
type TiktokenCounter struct {
	encodingName string
	mu           sync.RWMutex
	tke          *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for a model or encoding name. It
// first tries the argument as an encoding, then as a model name, then
// falls back to cl100k_base.
func NewTiktokenCounter(modelOrEncoding string) (*TiktokenCounter, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}

	encodingName := modelOrEncoding
	tke, err := tiktoken.GetEncoding(modelOrEncoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(modelOrEncoding)
		if err != nil {
			encodingName = defaultEncoding
			tke, err = tiktoken.GetEncoding(defaultEncoding)
			if err != nil {
				return nil, helper.NewError("get default encoding", err)
			}
		}
	}

	return &TiktokenCounter{
		encodingName: encodingName,
		tke:          tke,
	}, nil
}

// CountTokens counts the tokens of a text with the configured encoding
func (c *TiktokenCounter) CountTokens(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tke.Encode(text, nil, nil))
}

// Encoding returns the name of the encoding actually in use
func (c *TiktokenCounter) Encoding() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encodingName
}
