package systemmem

import (
	"testing"
	"time"
)

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	// touch "a" so "b" becomes least-recently-used
	c.Get("a")
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted as least-recently-used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive (recently touched)")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10)
	c.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry to be a miss")
	}
}

func TestCacheCleanupExpired(t *testing.T) {
	c := NewCache(10)
	c.Set("k1", "v", time.Millisecond)
	c.Set("k2", "v", time.Hour)
	time.Sleep(5 * time.Millisecond)

	removed := c.CleanupExpired()
	if removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry remaining, got %d", c.Len())
	}
}
