package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxReports bounds the number of stored batches; the oldest are dropped
// first. n <= 0 keeps everything.
func WithMaxReports(n int) Option {
	return func(s *MemoryStore) {
		s.maxReports = n
	}
}

// CacheOption applies a configuration option to a Cache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	ttl        time.Duration
	now        func() time.Time
	maxEntries int
}

// WithTTL sets how long cached values stay fresh. ttl <= 0 disables caching.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) {
		c.ttl = ttl
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxEntries bounds the number of cached values.
func WithMaxEntries(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}
