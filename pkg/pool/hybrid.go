package pool

import (
	"context"
	"sort"
	"time"

	"github.com/liliang-cn/agentmem/pkg/store"
)

// nowFn is a seam for deterministic TTL-sweep tests.
var nowFn = time.Now

// SearchResult is one hybrid-merged hit.
type SearchResult struct {
	Record        store.Record
	Score         float64
	VectorScore   float64
	KeywordScore  float64
}

// Search embeds query, runs vector KNN and BM25 keyword search each over
// 2*limit candidates, merges by id with the fixed 0.6/0.4 weighting, drops
// anything under minScore, sorts descending, and trims to limit (§4.2,
// Testable Property 2).
func (p *Pool) Search(ctx context.Context, userID, query string, limit int, minScore float64) ([]SearchResult, error) {
	s, ok := p.ensure(ctx)
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	prefetch := limit * hybridPrefetchMultiplier

	vec, err := p.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	vecHits, err := s.Search(ctx, p.cfg.Collection, vec, store.SearchOptions{Limit: prefetch, UserID: userID})
	if err != nil {
		return nil, err
	}
	kwHits, err := s.KeywordSearch(ctx, p.cfg.Collection, query, userID, prefetch)
	if err != nil {
		return nil, err
	}

	merged := map[string]*SearchResult{}
	order := []string{}
	for _, h := range vecHits {
		merged[h.Record.ID] = &SearchResult{Record: h.Record, VectorScore: h.Score}
		order = append(order, h.Record.ID)
	}
	for _, h := range kwHits {
		if r, ok := merged[h.Record.ID]; ok {
			r.KeywordScore = h.Score
		} else {
			merged[h.Record.ID] = &SearchResult{Record: h.Record, KeywordScore: h.Score}
			order = append(order, h.Record.ID)
		}
	}

	out := make([]SearchResult, 0, len(order))
	for _, id := range order {
		r := merged[id]
		r.Score = vectorWeight*r.VectorScore + keywordWeight*r.KeywordScore
		if r.Score < minScore {
			continue
		}
		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
