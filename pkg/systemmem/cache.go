package systemmem

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a process-wide TTL + LRU cache (§4.8). Implemented on
// container/list + a map, not a third-party cache library: §4.8 and
// Testable Property 10 require exact, test-observable MRU-on-get and
// least-recently-accessed eviction, which a probabilistic/sampled policy
// (the kind every cache library in the example pack offers) cannot
// deterministically guarantee. See DESIGN.md for the full justification.
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	ll       *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key       string
	value     any
	expiresAt *time.Time
}

func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{maxSize: maxSize, ll: list.New(), items: map[string]*list.Element{}}
}

// Set stamps expires_at from ttl (zero means no expiry) and evicts the
// least-recently-accessed entry if size exceeds max_size.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).value = value
		el.Value.(*cacheEntry).expiresAt = expiresAt
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	for c.ll.Len() > c.maxSize {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Get returns the value and true, moving the entry to most-recently-used.
// An expired entry is deleted and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if entry.expiresAt != nil && time.Now().After(*entry.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}

	c.ll.MoveToFront(el)
	return entry.value, true
}

// CleanupExpired sweeps every expired entry and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*cacheEntry)
		if entry.expiresAt != nil && now.After(*entry.expiresAt) {
			c.ll.Remove(el)
			delete(c.items, entry.key)
			removed++
		}
		el = next
	}
	return removed
}

// Len reports the current entry count, including not-yet-swept expired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
