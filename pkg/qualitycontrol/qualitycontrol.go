// Package qualitycontrol implements the Quality Controller (C10): the
// single-writer gatekeeper for explicit memory additions — format
// pre-filtering, conflict detection/resolution, and TTL housekeeping (§4.10).
package qualitycontrol

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/liliang-cn/agentmem/pkg/pool"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

// minContentLen is the format pre-filter threshold (§4.10 "<5 chars rejected").
const minContentLen = 5

// conflictCandidateK is the fixed top-K offered to the decider when
// detecting conflicts (§4.10 "top-5 similar").
const conflictCandidateK = 5

// DeciderFn classifies one new fact against existing memories.
type DeciderFn func(ctx context.Context, newFact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error)

// Controller is bound to a Pool and an Update Decider.
type Controller struct {
	pool    *pool.Pool
	decider DeciderFn
}

func New(p *pool.Pool, decider DeciderFn) *Controller {
	return &Controller{pool: p, decider: decider}
}

// ShouldReject is a format pre-filter only: empty or under 5 characters is
// rejected outright; everything else still goes to the Update Decider,
// which may itself rule NONE (§4.10).
func (c *Controller) ShouldReject(content string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(content)) < minContentLen
}

// AnalyzeUpdate runs the Update Decider against existing, returning the raw
// decision — ids are already resolved to real persistent ids by the decider
// (§4.4), so no separate temp->real mapping is needed here (§4.10).
func (c *Controller) AnalyzeUpdate(ctx context.Context, newMemory string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error) {
	return c.decider(ctx, newMemory, existing)
}

// UpdateActions splits one decision into its four event buckets (§4.10).
type UpdateActions struct {
	Add    []updatedecider.Item
	Update []updatedecider.Item
	Delete []updatedecider.Item
	None   []updatedecider.Item
}

// ExtractUpdateActions buckets a decision's items by event.
func (c *Controller) ExtractUpdateActions(d updatedecider.Decision) UpdateActions {
	var out UpdateActions
	for _, item := range d.Memory {
		switch item.Event {
		case updatedecider.EventAdd:
			out.Add = append(out.Add, item)
		case updatedecider.EventUpdate:
			out.Update = append(out.Update, item)
		case updatedecider.EventDelete:
			out.Delete = append(out.Delete, item)
		default:
			out.None = append(out.None, item)
		}
	}
	return out
}

// ConflictType distinguishes why a decision item was flagged as a conflict.
type ConflictType string

const (
	ConflictPreferenceChange ConflictType = "preference_change"
	ConflictFactContradiction ConflictType = "fact_contradiction"
)

// Conflict is one UPDATE or DELETE decision item surfaced for resolution (§4.10).
type Conflict struct {
	Type       ConflictType
	MemoryID   string
	OldText    string
	NewText    string
	Suggestion string
}

// DetectConflicts queries the Pool for the top-5 similar memories, runs the
// decider, and emits one conflict per UPDATE (preference_change) and per
// DELETE (fact_contradiction) (§4.10).
func (c *Controller) DetectConflicts(ctx context.Context, userID, newMemory string) ([]Conflict, error) {
	hits, err := c.pool.Search(ctx, userID, newMemory, conflictCandidateK, 0)
	if err != nil {
		return nil, err
	}
	existing := make([]updatedecider.ExistingMemory, len(hits))
	for i, h := range hits {
		existing[i] = updatedecider.ExistingMemory{ID: h.Record.ID, Text: h.Record.Text}
	}

	decision, err := c.decider(ctx, newMemory, existing)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, item := range decision.Memory {
		switch item.Event {
		case updatedecider.EventUpdate:
			conflicts = append(conflicts, Conflict{
				Type: ConflictPreferenceChange, MemoryID: item.ID, OldText: item.OldMemory, NewText: item.Text,
				Suggestion: fmt.Sprintf("update memory %s to %q", item.ID, item.Text),
			})
		case updatedecider.EventDelete:
			conflicts = append(conflicts, Conflict{
				Type: ConflictFactContradiction, MemoryID: item.ID, OldText: item.OldMemory, NewText: item.Text,
				Suggestion: fmt.Sprintf("memory %s appears contradicted and is a deletion candidate", item.ID),
			})
		}
	}
	return conflicts, nil
}

// ResolutionPriority is one of the four explicit-memory priority policies (§4.10).
type ResolutionPriority string

const (
	PriorityExplicitFirst ResolutionPriority = "explicit_first"
	PriorityNewestFirst   ResolutionPriority = "newest_first"
	PriorityKeepBoth      ResolutionPriority = "keep_both"
	PriorityUpdateOld     ResolutionPriority = "update_old"
)

// ResolveConflict applies one of the four priority policies to a conflict (§4.10).
func (c *Controller) ResolveConflict(ctx context.Context, conflict Conflict, priority ResolutionPriority) error {
	switch priority {
	case PriorityExplicitFirst:
		return c.pool.Delete(ctx, conflict.MemoryID)
	case PriorityNewestFirst, PriorityUpdateOld:
		return c.pool.Update(ctx, conflict.MemoryID, nil, &conflict.NewText, nil)
	case PriorityKeepBoth:
		// No-op: both entries stand, marked for human review (§4.10).
		return nil
	default:
		return fmt.Errorf("qualitycontrol: unknown resolution priority %q", priority)
	}
}

// CleanExpiredMemories deletes every record owned by userID whose expires_at
// is in the past, optionally restricted to memoryTypes (§4.10).
func (c *Controller) CleanExpiredMemories(ctx context.Context, userID string, memoryTypes []string) (int, error) {
	recs, err := c.pool.GetAll(ctx, userID, 0)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	allow := toSet(memoryTypes)
	removed := 0
	for _, r := range recs {
		if r.ExpiresAt == nil || !r.ExpiresAt.Before(now) {
			continue
		}
		if len(allow) > 0 && !allow[memoryTypeOf(r.Metadata)] {
			continue
		}
		if err := c.pool.Delete(ctx, r.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// TypeCounts is one memory_type's TTL breakdown.
type TypeCounts struct {
	WithTTL      int
	Expired      int
	ExpiringSoon int
}

// TTLStatus is the totals + per-type TTL breakdown (§4.10).
type TTLStatus struct {
	WithTTL      int
	Expired      int
	ExpiringSoon int
	ByType       map[string]TypeCounts
}

// expiringSoonWindow is the "next 7d" window named in §4.10.
const expiringSoonWindow = 7 * 24 * time.Hour

// GetMemoryTTLStatus returns TTL totals and per-memory_type counts (§4.10).
func (c *Controller) GetMemoryTTLStatus(ctx context.Context, userID string) (TTLStatus, error) {
	recs, err := c.pool.GetAll(ctx, userID, 0)
	if err != nil {
		return TTLStatus{}, err
	}
	now := time.Now()
	soon := now.Add(expiringSoonWindow)

	status := TTLStatus{ByType: map[string]TypeCounts{}}
	for _, r := range recs {
		if r.ExpiresAt == nil {
			continue
		}
		t := memoryTypeOf(r.Metadata)
		tc := status.ByType[t]

		status.WithTTL++
		tc.WithTTL++
		if r.ExpiresAt.Before(now) {
			status.Expired++
			tc.Expired++
		} else if r.ExpiresAt.Before(soon) {
			status.ExpiringSoon++
			tc.ExpiringSoon++
		}
		status.ByType[t] = tc
	}
	return status, nil
}

func memoryTypeOf(metadata map[string]any) string {
	if v, ok := metadata["memory_type"].(string); ok {
		return v
	}
	return "unspecified"
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, v := range items {
		out[v] = true
	}
	return out
}
