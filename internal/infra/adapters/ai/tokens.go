package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"langtest-practice/internal/domain/ports/adapter"
)

const fallbackEncoding = "cl100k_base"

// TokenCounter counts prompt tokens with tiktoken, caching one encoder per model.
// When no encoder can be loaded it estimates four characters per token.
type TokenCounter struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encs: map[string]*tiktoken.Tiktoken{}}
}

func (c *TokenCounter) encoder(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encs[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	c.encs[model] = enc
	return enc
}

func (c *TokenCounter) Count(model, text string) int {
	if enc := c.encoder(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// CountMessages adds the per-message framing overhead used by chat models.
func (c *TokenCounter) CountMessages(model string, messages []adapter.Message) int {
	n := 3
	for _, m := range messages {
		n += 4 + c.Count(model, m.Role) + c.Count(model, m.Content)
	}
	return n
}

func EstimateTokens(text string) int {
	return (len([]rune(text)) + 3) / 4
}
