// Package pool implements the Memory Pool (C2): a lazily-constructed,
// process-wide singleton holding the Vector Store, embedder, and LM client,
// exposing search/add/get_all/update/delete/reset_user/health_check (§4.2).
//
// Grounded primarily on original_source/core/memory/mem0/pool.py's
// Mem0MemoryPool for exact hybrid-weighting and lazy-init/sticky-failure
// semantics, and on the store's own singleton-with-reset-entry-point
// structuring (§9).
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/liliang-cn/agentmem/pkg/embedding"
	"github.com/liliang-cn/agentmem/pkg/logging"
	"github.com/liliang-cn/agentmem/pkg/memerr"
	"github.com/liliang-cn/agentmem/pkg/store"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
)

// hybridPrefetchMultiplier is the fixed, non-configurable pre-merge
// multiplier for both vector and BM25 searches (§4.2, Open Question 2 in
// DESIGN.md — kept fixed per spec.md's own description).
const hybridPrefetchMultiplier = 2

// vectorWeight/keywordWeight are the fixed hybrid merge weights (§4.2,
// Testable Property 2).
const (
	vectorWeight  = 0.6
	keywordWeight = 0.4
)

// FactExtractorFn extracts atomic facts from conversation messages,
// mirroring the store layer's own hook-function extensibility pattern.
type FactExtractorFn func(ctx context.Context, userID string, messages []Message) ([]string, error)

// DeciderFn classifies one new fact against existing memories.
type DeciderFn func(ctx context.Context, newFact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error)

// FactFilterFn reports whether a freshly extracted fact should be dropped
// before it ever reaches the decider (§4.10 format pre-filter, run before
// persistence candidates reach scoring). A nil filter rejects nothing.
type FactFilterFn func(fact string) bool

// Message is one conversation turn passed to Add.
type Message struct {
	Role    string
	Content string
}

// Config wires the Pool's dependencies at construction.
type Config struct {
	StorePath  string
	Collection string
	Dimension  int
	Embedder   embedding.Provider
	Logger     logging.Logger
}

// Pool is the process-wide singleton owning the Vector Store, the embedder,
// and a sticky "unavailable" flag (§4.2, §5, §7, Testable Property 10).
type Pool struct {
	cfg Config
	log logging.Logger

	mu          sync.Mutex
	store       *store.Store
	constructed bool
	unavailable bool

	factExtractor FactExtractorFn
	decider       DeciderFn
	factFilter    FactFilterFn
}

// New returns a Pool that has not yet attempted construction. The first
// operation that needs the store triggers lazy construction.
func New(cfg Config) *Pool {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Pool{cfg: cfg, log: cfg.Logger}
}

// SetFactExtractor wires the C3 hook used by Add.
func (p *Pool) SetFactExtractor(fn FactExtractorFn) { p.factExtractor = fn }

// SetDecider wires the C4 hook used by Add.
func (p *Pool) SetDecider(fn DeciderFn) { p.decider = fn }

// SetFactFilter wires the C10 format pre-filter hook used by Add.
func (p *Pool) SetFactFilter(fn FactFilterFn) { p.factFilter = fn }

// ensure attempts construction exactly once. On failure it sets unavailable
// for the Pool's lifetime — no retries, no further error logging on
// subsequent calls (§4.2, §7 StoreUnavailable, Testable Property 10).
func (p *Pool) ensure(ctx context.Context) (*store.Store, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable {
		return nil, false
	}
	if p.constructed {
		return p.store, true
	}

	s, err := store.Open(ctx, p.cfg.StorePath, store.WithLogger(p.log))
	if err != nil {
		p.unavailable = true
		p.log.Warn("memory pool: store construction failed; marking unavailable", "error", err)
		return nil, false
	}
	if err := s.CreateCollection(ctx, p.cfg.Collection, p.cfg.Dimension); err != nil {
		p.unavailable = true
		p.log.Warn("memory pool: collection creation failed; marking unavailable", "error", err)
		return nil, false
	}

	p.store = s
	p.constructed = true
	return p.store, true
}

// Reset drops the cached store handle and clears the unavailable flag —
// used after credentials change (§4.2, §9 "reset() entry point").
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		p.store.Close()
	}
	p.store = nil
	p.constructed = false
	p.unavailable = false
}

// HealthCheck reports whether the Pool's store is available.
func (p *Pool) HealthCheck(ctx context.Context) bool {
	_, ok := p.ensure(ctx)
	return ok
}

// GetAll returns every record owned by user_id, most recent first (§4.2).
func (p *Pool) GetAll(ctx context.Context, userID string, limit int) ([]store.Record, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return nil, nil
	}
	recs, err := s.List(ctx, p.cfg.Collection, store.ListFilters{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, len(recs))
	for i, r := range recs {
		out[i] = *r
	}
	return out, nil
}

// Update passes an update through to the store.
func (p *Pool) Update(ctx context.Context, id string, vector []float32, text *string, metadata map[string]any) error {
	s, ok := p.ensure(ctx)
	if !ok {
		return nil
	}
	return s.Update(ctx, p.cfg.Collection, id, vector, text, metadata)
}

// Delete passes a delete through to the store.
func (p *Pool) Delete(ctx context.Context, id string) error {
	s, ok := p.ensure(ctx)
	if !ok {
		return nil
	}
	return s.Delete(ctx, p.cfg.Collection, id)
}

// ResetUser deletes every record owned by user_id.
func (p *Pool) ResetUser(ctx context.Context, userID string) (int, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return 0, nil
	}
	return s.DeleteByUser(ctx, p.cfg.Collection, userID)
}

// Get fetches a single record.
func (p *Pool) Get(ctx context.Context, id string) (*store.Record, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return nil, memerr.ErrStoreUnavailable
	}
	return s.Get(ctx, p.cfg.Collection, id)
}

// SweepExpired removes expired records (§4.10 clean_expired_memories relies on this).
func (p *Pool) SweepExpired(ctx context.Context) (int, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return 0, nil
	}
	return s.SweepExpired(ctx, p.cfg.Collection, nowFn())
}

// History returns the audit trail for one memory id.
func (p *Pool) History(ctx context.Context, memoryID string) ([]store.HistoryEntry, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return nil, nil
	}
	return s.ListHistory(ctx, memoryID)
}

// embedQuery is a seam so tests can avoid a real embedder.
func (p *Pool) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if p.cfg.Embedder == nil {
		return nil, fmt.Errorf("memory pool: no embedder configured")
	}
	return p.cfg.Embedder.Embed(ctx, text)
}
