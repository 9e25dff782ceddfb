package retrieval

import (
	"context"
	"sort"
)

// minRerankScore is the drop threshold (§4.11 "scoring < 5 are dropped").
const minRerankScore = 5.0

// RerankedEntry is one candidate after the optional rerank stage.
type RerankedEntry struct {
	Entry  Entry
	Score  float64 // rerank_score in [1, 10]
	Reason string
}

// RerankerFn is the caller-provided hook implementing the optional rerank
// stage between retrieval and formatting (§4.11), mirroring the teacher's
// FactExtractorFn/RerankerFn hook-function extensibility pattern.
type RerankerFn func(ctx context.Context, query string, candidates []Entry) ([]RerankedEntry, error)

// Rerank runs fn against candidates and returns up to topK entries scoring
// >= 5, highest first. On any error, or if fn is nil, it falls back to the
// first topK candidates unchanged (§4.11).
func Rerank(ctx context.Context, fn RerankerFn, query string, candidates []Entry, topK int) []Entry {
	fallback := truncate(candidates, topK)
	if fn == nil {
		return fallback
	}

	reranked, err := fn(ctx, query, candidates)
	if err != nil {
		return fallback
	}

	var kept []RerankedEntry
	for _, r := range reranked {
		if r.Score < minRerankScore {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}

	out := make([]Entry, len(kept))
	for i, k := range kept {
		out[i] = k.Entry
	}
	return out
}

func truncate(entries []Entry, topK int) []Entry {
	if topK <= 0 || len(entries) <= topK {
		return entries
	}
	return entries[:topK]
}
