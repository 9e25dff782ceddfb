package manager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/agentmem/pkg/pool"
	"github.com/liliang-cn/agentmem/pkg/systemmem"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

type axisEmbedder struct{ dim int }

func (e axisEmbedder) Dimension() int { return e.dim }
func (e axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	if len(text) > 0 {
		v[int(text[0])%e.dim] = 1.0
	}
	return v, nil
}

func alwaysAddDecider(_ context.Context, fact string, _ []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
	return updatedecider.Decision{Memory: []updatedecider.Item{{Text: fact, Event: updatedecider.EventAdd}}}, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	p := pool.New(pool.Config{
		StorePath:  filepath.Join(dir, "pool.db"),
		Collection: "cards",
		Dimension:  8,
		Embedder:   axisEmbedder{dim: 8},
	})
	cfg := Config{
		StorageRoot: filepath.Join(dir, "users"),
		Pool:        p,
		Decider:     alwaysAddDecider,
		Skills:      systemmem.NewSkillRegistry(),
		Cache:       systemmem.NewCache(100),
	}
	return New(cfg, "u1")
}

func TestCreateAndListMemoryCard(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	card, err := m.CreateMemoryCard(ctx, "prefers dark mode", "preference", nil)
	if err != nil {
		t.Fatalf("CreateMemoryCard: %v", err)
	}
	if card.ID == "" || card.ID == "noop" {
		t.Fatalf("expected a real pool id, got %q", card.ID)
	}

	cards, err := m.ListMemoryCards(ctx, "", 10, false)
	if err != nil {
		t.Fatalf("ListMemoryCards: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].Content != "prefers dark mode" {
		t.Fatalf("unexpected content: %q", cards[0].Content)
	}
}

func TestSearchMemoryCardsFiltersNonCards(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.CreateMemoryCard(ctx, "likes espresso", "preference", nil); err != nil {
		t.Fatalf("CreateMemoryCard: %v", err)
	}
	// A plain pool memory, applied without the explicit memory_type tag,
	// must not surface as a card.
	if _, err := m.cfg.Pool.ApplyDecision(ctx, "u1", "likes tea",
		updatedecider.Item{Text: "likes tea", Event: updatedecider.EventAdd}, pool.AddOptions{}); err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}

	results, err := m.SearchMemoryCards(ctx, "likes espresso", "", 10)
	if err != nil {
		t.Fatalf("SearchMemoryCards: %v", err)
	}
	for _, c := range results {
		if c.Content == "likes tea" {
			t.Fatalf("non-card record leaked into card search results")
		}
	}
}

func TestStartEndTaskAppendsEpisode(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	m.StartTask("task-1", "summarize the report")
	m.Working().AddMessage("user", "please summarize")
	if err := m.EndTask(ctx, "summarized successfully", true, nil); err != nil {
		t.Fatalf("EndTask: %v", err)
	}

	ep, err := m.Episodic()
	if err != nil {
		t.Fatalf("Episodic: %v", err)
	}
	episodes := ep.List(0)
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	if episodes[0].TaskID != "task-1" || episodes[0].Result != "summarized successfully" {
		t.Fatalf("unexpected episode: %+v", episodes[0])
	}
}

func TestDeleteMemoryCard(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	card, err := m.CreateMemoryCard(ctx, "birthday is in March", "fact", nil)
	if err != nil {
		t.Fatalf("CreateMemoryCard: %v", err)
	}
	if err := m.DeleteMemoryCard(ctx, card.ID); err != nil {
		t.Fatalf("DeleteMemoryCard: %v", err)
	}
	cards, err := m.ListMemoryCards(ctx, "", 10, false)
	if err != nil {
		t.Fatalf("ListMemoryCards: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("expected card deleted, got %d remaining", len(cards))
	}
}
