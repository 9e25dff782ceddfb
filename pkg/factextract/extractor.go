// Package factextract implements the Fact Extractor (C3): a pure function
// over conversation messages that calls the language model with a
// fact-extraction prompt and parses back a list of atomic declarative facts.
package factextract

import (
	"context"

	"github.com/liliang-cn/agentmem/pkg/llmprovider"
	"github.com/tidwall/gjson"
)

// Message is one conversation turn, same shape the Pool's Working Memory uses.
type Message struct {
	Role    string
	Content string
}

// Extractor calls an LLM provider with the fact-extraction prompt and parses
// its reply into atomic facts. Non-JSON or malformed output yields an empty
// list — non-fatal, per §4.3.
type Extractor struct {
	provider llmprovider.Provider
}

func New(provider llmprovider.Provider) *Extractor {
	return &Extractor{provider: provider}
}

const systemPrompt = `You extract atomic declarative facts about the user from a conversation.
Rules:
- Preserve numeric values (amounts, percentages, counts) verbatim.
- Keep person + role + organisation together as one fact.
- Resolve relative times to absolute where possible.
- Emit only facts useful for future personalisation.
Respond with a JSON array of short declarative strings and nothing else.`

// Extract returns the facts the model found, or an empty list if the reply
// could not be parsed as a JSON array of strings.
func (e *Extractor) Extract(ctx context.Context, messages []Message) ([]string, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	lmMessages := make([]llmprovider.Message, len(messages))
	for i, m := range messages {
		lmMessages[i] = llmprovider.Message{Role: m.Role, Content: m.Content}
	}

	reply, err := e.provider.CreateMessage(ctx, lmMessages, systemPrompt)
	if err != nil {
		// LMTransient (§7): fall back to the safe default for extraction — empty list.
		return nil, nil
	}

	return parseFacts(reply.Content), nil
}

// parseFacts tolerantly extracts a JSON array of strings from the model's
// reply, using gjson rather than a strict encoding/json.Unmarshal so stray
// prose around the JSON (a common LM failure mode) does not abort the whole
// call — it degrades to an empty list instead (§4.3, §7 LMMalformed).
func parseFacts(raw string) []string {
	result := gjson.Parse(raw)
	if !result.IsArray() {
		// The model may have wrapped the array in prose; look for the first
		// bracketed JSON array substring.
		start := indexOf(raw, '[')
		end := lastIndexOf(raw, ']')
		if start < 0 || end < 0 || end <= start {
			return nil
		}
		result = gjson.Parse(raw[start : end+1])
		if !result.IsArray() {
			return nil
		}
	}

	var facts []string
	result.ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.String && value.String() != "" {
			facts = append(facts, value.String())
		}
		return true
	})
	return facts
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lastIndexOf(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
