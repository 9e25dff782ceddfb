package pool

import (
	"context"
	"time"

	"github.com/liliang-cn/agentmem/pkg/store"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

// AddOptions carries the optional fields of an Add call (§4.2, §3 Memory record).
type AddOptions struct {
	MemoryType string
	Source     string
	Visibility string
	TTL        time.Duration
	Metadata   map[string]any

	// candidateK bounds how many existing memories are offered to the
	// decider per new fact; 0 uses the default.
	candidateK int
}

const defaultCandidateK = 10

// AddResult reports one fact's outcome after the ingestion pipeline ran.
type AddResult struct {
	Fact  string
	Event updatedecider.Event
	ID    string
}

// Add runs the full ingestion pipeline (§4.2 -> §4.3 -> §4.4): extract atomic
// facts from messages, then for each fact fetch candidate existing memories
// and ask the decider whether to ADD/UPDATE/DELETE/NONE, applying the result
// to the store and appending a history entry. Requires SetFactExtractor and
// SetDecider to have been called; if either is nil, Add is a no-op returning
// an empty result and a nil error, and messages are not stored.
func (p *Pool) Add(ctx context.Context, userID string, messages []Message, opts AddOptions) ([]AddResult, error) {
	s, ok := p.ensure(ctx)
	if !ok || p.factExtractor == nil || p.decider == nil {
		return nil, nil
	}

	facts, err := p.factExtractor(ctx, userID, messages)
	if err != nil {
		return nil, err
	}

	k := opts.candidateK
	if k <= 0 {
		k = defaultCandidateK
	}

	results := make([]AddResult, 0, len(facts))
	for _, fact := range facts {
		if p.factFilter != nil && p.factFilter(fact) {
			continue
		}
		existingRecs, err := s.List(ctx, p.cfg.Collection, store.ListFilters{UserID: userID, Limit: k})
		if err != nil {
			return results, err
		}
		existing := make([]updatedecider.ExistingMemory, len(existingRecs))
		for i, r := range existingRecs {
			existing[i] = updatedecider.ExistingMemory{ID: r.ID, Text: r.Text}
		}

		decision, err := p.decider(ctx, fact, existing)
		if err != nil {
			return results, err
		}

		for _, item := range decision.Memory {
			res, err := p.applyDecision(ctx, s, userID, fact, item, opts)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// ApplyDecision executes one decider Item against the store — the same
// step Add runs per extracted fact, exposed so callers that invoke the
// Update Decider directly against a smaller candidate set (the explicit
// memory-card API, §4.9) do not have to duplicate the apply/audit logic.
func (p *Pool) ApplyDecision(ctx context.Context, userID, fact string, item updatedecider.Item, opts AddOptions) (AddResult, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return AddResult{}, nil
	}
	return p.applyDecision(ctx, s, userID, fact, item, opts)
}

func (p *Pool) applyDecision(ctx context.Context, s *store.Store, userID, fact string, item updatedecider.Item, opts AddOptions) (AddResult, error) {
	now := time.Now().UTC()

	switch item.Event {
	case updatedecider.EventAdd:
		vec, err := p.embedQuery(ctx, item.Text)
		if err != nil {
			return AddResult{}, err
		}
		rec := &store.Record{
			Vector:   vec,
			Text:     item.Text,
			UserID:   userID,
			Metadata: addMetadata(opts),
		}
		if opts.TTL != 0 {
			exp := now.Add(opts.TTL)
			rec.ExpiresAt = &exp
		}
		if err := s.Upsert(ctx, p.cfg.Collection, rec); err != nil {
			return AddResult{}, err
		}
		_ = s.AppendHistory(ctx, store.HistoryEntry{
			Collection: p.cfg.Collection, MemoryID: rec.ID, Event: "ADD", NewText: item.Text, Actor: "pool", At: now,
		})
		return AddResult{Fact: fact, Event: item.Event, ID: rec.ID}, nil

	case updatedecider.EventUpdate:
		vec, err := p.embedQuery(ctx, item.Text)
		if err != nil {
			return AddResult{}, err
		}
		old := item.OldMemory
		if err := s.Update(ctx, p.cfg.Collection, item.ID, vec, &item.Text, nil); err != nil {
			return AddResult{}, err
		}
		_ = s.AppendHistory(ctx, store.HistoryEntry{
			Collection: p.cfg.Collection, MemoryID: item.ID, Event: "UPDATE",
			OldText: old, NewText: item.Text, Actor: "pool", At: now,
		})
		return AddResult{Fact: fact, Event: item.Event, ID: item.ID}, nil

	case updatedecider.EventDelete:
		old := item.OldMemory
		if err := s.Delete(ctx, p.cfg.Collection, item.ID); err != nil {
			return AddResult{}, err
		}
		_ = s.AppendHistory(ctx, store.HistoryEntry{
			Collection: p.cfg.Collection, MemoryID: item.ID, Event: "DELETE", OldText: old, Actor: "pool", At: now,
		})
		return AddResult{Fact: fact, Event: item.Event, ID: item.ID}, nil

	default: // NONE
		_ = s.AppendHistory(ctx, store.HistoryEntry{
			Collection: p.cfg.Collection, MemoryID: item.ID, Event: "NONE", NewText: item.Text, Actor: "pool", At: now,
		})
		return AddResult{Fact: fact, Event: item.Event, ID: item.ID}, nil
	}
}

func addMetadata(opts AddOptions) map[string]any {
	m := map[string]any{}
	for k, v := range opts.Metadata {
		m[k] = v
	}
	if opts.MemoryType != "" {
		m["memory_type"] = opts.MemoryType
	}
	if opts.Source != "" {
		m["source"] = opts.Source
	}
	if opts.Visibility != "" {
		m["visibility"] = opts.Visibility
	}
	return m
}
