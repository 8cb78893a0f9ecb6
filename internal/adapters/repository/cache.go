package repository

import (
	"sync"
	"time"
)

const (
	defaultCacheTTL        = 30 * time.Second
	defaultCacheMaxEntries = 1024
)

// CacheKey identifies a cached aggregation: the validator scope plus the
// snapshot hash it was computed from.
type CacheKey struct {
	Validator string
	Hash      uint64
}

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a small TTL cache keyed by snapshot identity. A changed snapshot
// has a different hash, so entries never go stale for changed input; the TTL
// only bounds how long a result for unchanged input is reused.
type Cache[V any] struct {
	mu      sync.Mutex
	cfg     cacheConfig
	entries map[CacheKey]cacheEntry[V]
}

// NewCache creates a cache.
func NewCache[V any](opts ...CacheOption) *Cache[V] {
	cfg := cacheConfig{ttl: defaultCacheTTL, now: time.Now, maxEntries: defaultCacheMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache[V]{cfg: cfg, entries: make(map[CacheKey]cacheEntry[V])}
}

// Get returns a fresh cached value.
func (c *Cache[V]) Get(key CacheKey) (V, bool) {
	var zero V
	if c.cfg.ttl <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.cfg.now().Before(e.expires) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key. Expired entries are swept first; if the cache
// is still full the entry closest to expiry is evicted.
func (c *Cache[V]) Put(key CacheKey, value V) {
	if c.cfg.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cfg.now()
	if len(c.entries) >= c.cfg.maxEntries {
		c.sweep(now)
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.maxEntries {
		c.evictSoonest()
	}
	c.entries[key] = cacheEntry[V]{value: value, expires: now.Add(c.cfg.ttl)}
}

// Len returns the number of entries, fresh or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) sweep(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache[V]) evictSoonest() {
	var (
		victim CacheKey
		first  = true
		at     time.Time
	)
	for k, e := range c.entries {
		if first || e.expires.Before(at) {
			victim, at, first = k, e.expires, false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}
