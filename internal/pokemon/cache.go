package pokemon

import (
	"sync"
	"time"
)

// cache is a small concurrency-safe TTL map for reference data lookups.
type cache[T any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]cachedItem[T]
	now   func() time.Time
}

type cachedItem[T any] struct {
	value     T
	expiresAt time.Time
}

func newCache[T any](ttl time.Duration) *cache[T] {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &cache[T]{
		ttl:   ttl,
		items: make(map[string]cachedItem[T]),
		now:   time.Now,
	}
}

func (c *cache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil || key == "" {
		return zero, false
	}

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.now().After(item.expiresAt) {
		// Expired - evict eagerly
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

func (c *cache[T]) Set(key string, value T) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.items[key] = cachedItem[T]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
