package qualitycontrol

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/liliang-cn/agentmem/pkg/pool"
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

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	dir := t.TempDir()
	return pool.New(pool.Config{
		StorePath:  filepath.Join(dir, "pool.db"),
		Collection: "qc",
		Dimension:  8,
		Embedder:   axisEmbedder{dim: 8},
	})
}

func TestShouldReject(t *testing.T) {
	c := New(nil, nil)
	if !c.ShouldReject("") {
		t.Fatalf("empty content should be rejected")
	}
	if !c.ShouldReject("ab") {
		t.Fatalf("content under 5 chars should be rejected")
	}
	if c.ShouldReject("hello there") {
		t.Fatalf("content of adequate length should not be format-rejected")
	}
}

func TestDetectConflictsUpdate(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	var existingID string
	if _, err := p.ApplyDecision(ctx, "u1", "contract amount 100",
		updatedecider.Item{Text: "contract amount 100", Event: updatedecider.EventAdd}, pool.AddOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	recs, err := p.GetAll(ctx, "u1", 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("seed lookup: %v %d", err, len(recs))
	}
	existingID = recs[0].ID

	decider := func(_ context.Context, fact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
		return updatedecider.Decision{Memory: []updatedecider.Item{
			{ID: existing[0].ID, Text: fact, Event: updatedecider.EventUpdate, OldMemory: existing[0].Text},
		}}, nil
	}
	c := New(p, decider)

	conflicts, err := c.DetectConflicts(ctx, "u1", "contract amount 150")
	if err != nil {
		t.Fatalf("DetectConflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Type != ConflictPreferenceChange {
		t.Fatalf("expected preference_change, got %v", conflicts[0].Type)
	}
	if conflicts[0].MemoryID != existingID {
		t.Fatalf("expected conflict memory id %q, got %q", existingID, conflicts[0].MemoryID)
	}
}

func TestResolveConflictExplicitFirstDeletes(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	c := New(p, nil)

	res, err := p.ApplyDecision(ctx, "u1", "old fact",
		updatedecider.Item{Text: "old fact", Event: updatedecider.EventAdd}, pool.AddOptions{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	conflict := Conflict{Type: ConflictFactContradiction, MemoryID: res.ID, OldText: "old fact", NewText: "new fact"}
	if err := c.ResolveConflict(ctx, conflict, PriorityExplicitFirst); err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	if _, err := p.Get(ctx, res.ID); err == nil {
		t.Fatalf("expected memory deleted after explicit_first resolution")
	}
}

func TestResolveConflictKeepBothIsNoop(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	c := New(p, nil)

	res, err := p.ApplyDecision(ctx, "u1", "fact a",
		updatedecider.Item{Text: "fact a", Event: updatedecider.EventAdd}, pool.AddOptions{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	conflict := Conflict{MemoryID: res.ID, OldText: "fact a", NewText: "fact b"}
	if err := c.ResolveConflict(ctx, conflict, PriorityKeepBoth); err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	rec, err := p.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("expected memory untouched: %v", err)
	}
	if rec.Text != "fact a" {
		t.Fatalf("keep_both must not modify text, got %q", rec.Text)
	}
}

func TestCleanExpiredMemories(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	c := New(p, nil)

	if _, err := p.ApplyDecision(ctx, "u1", "expires soon",
		updatedecider.Item{Text: "expires soon", Event: updatedecider.EventAdd},
		pool.AddOptions{TTL: -time.Hour}); err != nil {
		t.Fatalf("seed expired: %v", err)
	}
	if _, err := p.ApplyDecision(ctx, "u1", "fresh fact",
		updatedecider.Item{Text: "fresh fact", Event: updatedecider.EventAdd}, pool.AddOptions{}); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	removed, err := c.CleanExpiredMemories(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("CleanExpiredMemories: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	remaining, err := p.GetAll(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Text != "fresh fact" {
		t.Fatalf("unexpected remaining records: %+v", remaining)
	}
}

func TestGetMemoryTTLStatus(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)
	c := New(p, nil)

	if _, err := p.ApplyDecision(ctx, "u1", "expiring very soon",
		updatedecider.Item{Text: "expiring very soon", Event: updatedecider.EventAdd},
		pool.AddOptions{TTL: time.Hour}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := p.ApplyDecision(ctx, "u1", "no ttl",
		updatedecider.Item{Text: "no ttl", Event: updatedecider.EventAdd}, pool.AddOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	status, err := c.GetMemoryTTLStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetMemoryTTLStatus: %v", err)
	}
	if status.WithTTL != 1 {
		t.Fatalf("expected 1 with ttl, got %d", status.WithTTL)
	}
	if status.ExpiringSoon != 1 {
		t.Fatalf("expected 1 expiring soon, got %d", status.ExpiringSoon)
	}
	if status.Expired != 0 {
		t.Fatalf("expected 0 expired, got %d", status.Expired)
	}
}
