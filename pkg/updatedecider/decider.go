// Package updatedecider implements the Update Decider (C4): a fails-closed
// decision procedure that, given a new fact and up to 30 existing memories,
// decides ADD/UPDATE/DELETE/NONE for each.
package updatedecider

import (
	"context"
	"fmt"

	"github.com/liliang-cn/agentmem/pkg/llmprovider"
	"github.com/tidwall/gjson"
)

// Event is one of the four decision outcomes §4.4 names.
type Event string

const (
	EventAdd    Event = "ADD"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
	EventNone   Event = "NONE"
)

// ExistingMemory is one candidate the decider reasons over.
type ExistingMemory struct {
	ID   string
	Text string
}

// Item is one line of the decision output.
type Item struct {
	ID        string
	Text      string
	Event     Event
	OldMemory string
}

// Decision is the full output: one Item per existing memory (UPDATE/DELETE/
// NONE) plus zero or more fresh ADD items (Testable Property 8: closure).
type Decision struct {
	Memory []Item
}

// MaxExisting bounds K per §4.4 ("K (<=30) existing memory records").
const MaxExisting = 30

// Decider calls the language model with the update-decision prompt and
// parses its JSON reply.
type Decider struct {
	provider llmprovider.Provider
}

func New(provider llmprovider.Provider) *Decider {
	return &Decider{provider: provider}
}

const systemPrompt = `You maintain a user memory store. Given one new fact and a numbered list of
existing memories, decide for each existing memory whether it should be
UPDATE, DELETE, or NONE, and whether the new fact should be ADDed fresh.

Rules:
- ADD: the new fact has no semantic equivalent in existing memory.
- UPDATE: the new fact refines or rephrases an existing entry; reuse its id; the new text replaces the old.
- DELETE: the new fact contradicts an existing entry; mark that id for removal.
- NONE: the new fact is already present.
- A numeric change (amount 100 -> 150), a state change (pending -> signed),
  a time change, or a relationship change must force UPDATE.
- Use only the provided ids (the short numeric labels given) for UPDATE/DELETE/NONE. ADD may mint a fresh id.

Respond with a JSON object: {"memory": [{"id": "<label or fresh id>", "text": "...", "event": "ADD|UPDATE|DELETE|NONE", "old_memory": "..."}]}`

// Decide asks the model to classify newFact against existing, mapping the
// short numeric labels ("0","1",...) presented to the model back onto the
// real persistent ids. On parse failure or LM error it fails closed to a
// single ADD for the new fact — never losing data (§4.4, §7).
func (d *Decider) Decide(ctx context.Context, newFact string, existing []ExistingMemory) (Decision, error) {
	if len(existing) > MaxExisting {
		existing = existing[:MaxExisting]
	}

	labelToID := make(map[string]string, len(existing))
	prompt := fmt.Sprintf("New fact: %q\n\nExisting memories:\n", newFact)
	for i, m := range existing {
		label := fmt.Sprintf("%d", i)
		labelToID[label] = m.ID
		prompt += fmt.Sprintf("%s: %s\n", label, m.Text)
	}

	reply, err := d.provider.CreateMessage(ctx, []llmprovider.Message{{Role: "user", Content: prompt}}, systemPrompt)
	if err != nil {
		return fallbackAdd(newFact), nil
	}

	decision, ok := parseDecision(reply.Content, labelToID)
	if !ok {
		return fallbackAdd(newFact), nil
	}
	return closeDecision(decision, existing), nil
}

func fallbackAdd(newFact string) Decision {
	return Decision{Memory: []Item{{Text: newFact, Event: EventAdd}}}
}

func parseDecision(raw string, labelToID map[string]string) (Decision, bool) {
	result := gjson.Get(raw, "memory")
	if !result.Exists() || !result.IsArray() {
		return Decision{}, false
	}

	var items []Item
	ok := true
	result.ForEach(func(_, value gjson.Result) bool {
		id := value.Get("id").String()
		text := value.Get("text").String()
		event := Event(value.Get("event").String())
		switch event {
		case EventAdd, EventUpdate, EventDelete, EventNone:
		default:
			ok = false
			return false
		}
		if event != EventAdd {
			if realID, found := labelToID[id]; found {
				id = realID
			}
		}
		items = append(items, Item{
			ID:        id,
			Text:      text,
			Event:     event,
			OldMemory: value.Get("old_memory").String(),
		})
		return true
	})
	if !ok {
		return Decision{}, false
	}
	return Decision{Memory: items}, true
}

// closeDecision enforces Testable Property 8: every existing id appears
// exactly once with event in {UPDATE, DELETE, NONE}; entries the model
// omitted default to NONE.
func closeDecision(d Decision, existing []ExistingMemory) Decision {
	seen := make(map[string]bool, len(existing))
	var out []Item
	for _, item := range d.Memory {
		if item.Event == EventAdd {
			out = append(out, item)
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	for _, m := range existing {
		if !seen[m.ID] {
			out = append(out, Item{ID: m.ID, Text: m.Text, Event: EventNone})
		}
	}
	return Decision{Memory: out}
}
