package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val     V
	expires time.Time
}

// TTL is a size-bounded in-process cache with per-entry expiry.
// Eviction is lazy on read plus oldest-first when the bound is hit.
type TTL[V any] struct {
	mu      sync.RWMutex
	items   map[string]entry[V]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func NewTTL[V any](ttl time.Duration, maxSize int) *TTL[V] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 512
	}
	return &TTL[V]{
		items:   make(map[string]entry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.val, true
}

func (c *TTL[V]) Set(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.maxSize {
		c.evictLocked()
	}
	c.items[key] = entry[V]{val: val, expires: c.now().Add(c.ttl)}
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictLocked drops expired entries first, then the entry closest to expiry.
func (c *TTL[V]) evictLocked() {
	now := c.now()
	for k, e := range c.items {
		if now.After(e.expires) {
			delete(c.items, k)
		}
	}
	if len(c.items) < c.maxSize {
		return
	}
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.items {
		if first || e.expires.Before(oldest) {
			oldestKey = k
			oldest = e.expires
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
