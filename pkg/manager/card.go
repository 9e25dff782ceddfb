package manager

import (
	"context"
	"time"

	"github.com/liliang-cn/agentmem/pkg/pool"
	"github.com/liliang-cn/agentmem/pkg/store"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

// cardCandidateK is the fixed top-K of similar existing memories offered to
// the decider when creating an explicit memory card (§4.9).
const cardCandidateK = 5

// Card is the explicit-memory-card view returned by the card API (§4.9).
type Card struct {
	ID        string
	Content   string
	Category  string
	CreatedAt time.Time
	Metadata  map[string]any
}

// CreateMemoryCard runs the Update Decider against the top-5 semantically
// similar existing memories and applies the resulting decision to the Pool.
// The returned Card's id is the Pool id for ADD/UPDATE, or a synthetic
// "deleted"/"noop" id otherwise; content may be the decider's rewritten text.
func (m *Manager) CreateMemoryCard(ctx context.Context, content, category string, metadata map[string]any) (Card, error) {
	if m.cfg.Decider == nil {
		return Card{}, nil
	}

	hits, err := m.cfg.Pool.Search(ctx, m.userID, content, cardCandidateK, 0)
	if err != nil {
		return Card{}, err
	}
	existing := make([]updatedecider.ExistingMemory, len(hits))
	for i, h := range hits {
		existing[i] = updatedecider.ExistingMemory{ID: h.Record.ID, Text: h.Record.Text}
	}

	decision, err := m.cfg.Decider(ctx, content, existing)
	if err != nil {
		return Card{}, err
	}

	opts := cardOptions(category, metadata)

	var primary Card
	sawAdd, sawUpdate, sawDelete := false, false, false
	for _, item := range decision.Memory {
		res, err := m.cfg.Pool.ApplyDecision(ctx, m.userID, content, item, opts)
		if err != nil {
			return Card{}, err
		}
		switch item.Event {
		case updatedecider.EventAdd:
			sawAdd = true
			primary = Card{ID: res.ID, Content: item.Text, Category: category, CreatedAt: time.Now(), Metadata: metadata}
		case updatedecider.EventUpdate:
			if !sawAdd {
				sawUpdate = true
				primary = Card{ID: res.ID, Content: item.Text, Category: category, CreatedAt: time.Now(), Metadata: metadata}
			}
		case updatedecider.EventDelete:
			sawDelete = true
		}
	}

	if !sawAdd && !sawUpdate {
		id := "noop"
		if sawDelete {
			id = "deleted"
		}
		primary = Card{ID: id, Content: content, Category: category, CreatedAt: time.Now(), Metadata: metadata}
	}
	return primary, nil
}

func cardOptions(category string, metadata map[string]any) pool.AddOptions {
	merged := map[string]any{"category": category}
	for k, v := range metadata {
		merged[k] = v
	}
	return pool.AddOptions{MemoryType: "explicit", Metadata: merged}
}

// ListMemoryCards fetches recent explicit memories for the user, optionally
// filtered by category, dropping expired entries unless requested, sorted
// by created_at descending (§4.9).
func (m *Manager) ListMemoryCards(ctx context.Context, category string, limit int, includeExpired bool) ([]Card, error) {
	recs, err := m.cfg.Pool.GetAll(ctx, m.userID, 0)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []Card
	for _, r := range recs {
		if !isExplicitCard(r.Metadata, category) {
			continue
		}
		if !includeExpired && r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, recordToCard(r))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SearchMemoryCards runs the Pool's hybrid search, filters to explicit
// memory cards, and trims to limit (§4.9).
func (m *Manager) SearchMemoryCards(ctx context.Context, query, category string, limit int) ([]Card, error) {
	searchLimit := limit
	if searchLimit <= 0 {
		searchLimit = 10
	}
	hits, err := m.cfg.Pool.Search(ctx, m.userID, query, searchLimit*3, 0)
	if err != nil {
		return nil, err
	}
	var out []Card
	for _, h := range hits {
		if !isExplicitCard(h.Record.Metadata, category) {
			continue
		}
		out = append(out, recordToCard(h.Record))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteMemoryCard resolves card_id to the underlying Pool id and deletes it.
func (m *Manager) DeleteMemoryCard(ctx context.Context, cardID string) error {
	return m.cfg.Pool.Delete(ctx, cardID)
}

func isExplicitCard(metadata map[string]any, category string) bool {
	if metadata["memory_type"] != "explicit" {
		return false
	}
	if category != "" && metadata["category"] != category {
		return false
	}
	return true
}

func recordToCard(r store.Record) Card {
	return Card{ID: r.ID, Content: r.Text, Category: categoryOf(r.Metadata), CreatedAt: r.CreatedAt, Metadata: r.Metadata}
}

func categoryOf(metadata map[string]any) string {
	if v, ok := metadata["category"].(string); ok {
		return v
	}
	return ""
}
