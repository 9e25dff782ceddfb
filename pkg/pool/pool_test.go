package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

// axisEmbedder returns a vector with a 1.0 in the dimension selected by the
// first rune of the text, giving deterministic, distinguishable similarity
// without a real model.
type axisEmbedder struct{ dim int }

func (e axisEmbedder) Dimension() int { return e.dim }
func (e axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	if len(text) == 0 {
		return v, nil
	}
	v[int(text[0])%e.dim] = 1.0
	return v, nil
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	p := New(Config{
		StorePath:  filepath.Join(dir, "pool.db"),
		Collection: "test_memories",
		Dimension:  8,
		Embedder:   axisEmbedder{dim: 8},
	})
	return p
}

func TestPoolSearchHybridScoreMonotone(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	p.SetFactExtractor(func(_ context.Context, _ string, msgs []Message) ([]string, error) {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.Content
		}
		return out, nil
	})
	p.SetDecider(func(_ context.Context, fact string, _ []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
		return updatedecider.Decision{Memory: []updatedecider.Item{{Text: fact, Event: updatedecider.EventAdd}}}, nil
	})

	facts := []string{"alpha likes coffee", "bravo likes tea", "charlie likes juice"}
	msgs := make([]Message, len(facts))
	for i, f := range facts {
		msgs[i] = Message{Role: "user", Content: f}
	}
	if _, err := p.Add(ctx, "u1", msgs, AddOptions{}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := p.Search(ctx, "u1", "alpha likes coffee", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("scores not descending at index %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestPoolStickyUnavailable(t *testing.T) {
	ctx := context.Background()
	p := New(Config{
		StorePath:  "/nonexistent-dir-xyz/sub/pool.db",
		Collection: "c",
		Dimension:  4,
	})

	if p.HealthCheck(ctx) {
		t.Fatalf("expected HealthCheck to fail for an unopenable path")
	}
	// A second call must not retry: still unavailable, no panic.
	if p.HealthCheck(ctx) {
		t.Fatalf("expected HealthCheck to remain unavailable (sticky)")
	}

	if _, err := p.GetAll(ctx, "u1", 10); err != nil {
		t.Fatalf("GetAll on unavailable pool should no-op, not error: %v", err)
	}
}

func TestPoolResetUser(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	p.SetFactExtractor(func(_ context.Context, _ string, msgs []Message) ([]string, error) {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.Content
		}
		return out, nil
	})
	p.SetDecider(func(_ context.Context, fact string, _ []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
		return updatedecider.Decision{Memory: []updatedecider.Item{{Text: fact, Event: updatedecider.EventAdd}}}, nil
	})

	for i := 0; i < 3; i++ {
		msg := []Message{{Role: "user", Content: fmt.Sprintf("fact %d", i)}}
		if _, err := p.Add(ctx, "u1", msg, AddOptions{}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := p.Add(ctx, "u2", []Message{{Role: "user", Content: "other user fact"}}, AddOptions{}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, err := p.ResetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ResetUser: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}

	remaining, err := p.GetAll(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected u1 empty after reset, got %d", len(remaining))
	}
	other, err := p.GetAll(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("expected u2 untouched, got %d", len(other))
	}
}
