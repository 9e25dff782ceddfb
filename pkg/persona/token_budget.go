package persona

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter is the bounded-truncation oracle required by §4.12 ("never
// by simple character slicing without reconciliation"), grounded on the
// pack's tiktoken-go counter.
type TokenCounter struct {
	mu      sync.RWMutex
	encoder *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for modelName, falling back to cl100k_base
// if the model-specific encoding is unavailable.
func NewTokenCounter(modelName string) *TokenCounter {
	enc, err := tiktoken.GetEncoding(encodingForModel(modelName))
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &TokenCounter{}
		}
	}
	return &TokenCounter{encoder: enc}
}

func encodingForModel(modelName string) string {
	m := strings.ToLower(modelName)
	switch {
	case strings.Contains(m, "gpt-4"), strings.Contains(m, "gpt-3.5"):
		return "cl100k_base"
	case strings.Contains(m, "davinci"), strings.Contains(m, "curie"):
		return "p50k_base"
	default:
		return "cl100k_base"
	}
}

// Count returns the token length of text, or a rough word/char estimate if
// no encoder is available.
func (c *TokenCounter) Count(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.encoder == nil {
		return estimateTokens(text)
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// TruncateToBudget trims a rendered Markdown block to at most maxTokens,
// cutting on line boundaries and reconciling at the end rather than slicing
// mid-character (§4.12).
func (c *TokenCounter) TruncateToBudget(text string, maxTokens int) string {
	if maxTokens <= 0 || c.Count(text) <= maxTokens {
		return text
	}

	lines := strings.Split(text, "\n")
	var kept []string
	used := 0
	for _, line := range lines {
		cost := c.Count(line) + 1 // +1 for the newline rejoined below
		if used+cost > maxTokens && len(kept) > 0 {
			break
		}
		kept = append(kept, line)
		used += cost
	}
	out := strings.Join(kept, "\n")
	for len(kept) > 0 && c.Count(out) > maxTokens {
		kept = kept[:len(kept)-1]
		out = strings.Join(kept, "\n")
	}
	return out
}

func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := len(text) / 4
	if words > chars {
		return words
	}
	return chars
}
