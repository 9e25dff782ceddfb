package embedding

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// CachedProvider memoizes Embed by exact text match using ristretto's
// TinyLFU admission policy. This is a pure throughput optimization over the
// underlying provider and makes no ordering or eviction guarantees — unlike
// the C8 System Cache (pkg/systemmem), nothing in §4.2 or the Testable
// Properties requires deterministic eviction here, so the probabilistic
// cache the wider example pack already depends on is the right fit.
type CachedProvider struct {
	inner Provider
	cache *ristretto.Cache
}

// NewCachedProvider wraps inner with an in-memory memoization cache sized
// for roughly maxEntries distinct texts.
func NewCachedProvider(inner Provider, maxEntries int64) (*CachedProvider, error) {
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

func (c *CachedProvider) Dimension() int { return c.inner.Dimension() }
