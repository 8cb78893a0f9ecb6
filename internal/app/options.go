package service

import (
	"time"

	"github.com/okian/duelboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the fingerprint cache; 0 means unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxStoredReports caps how many batches the store keeps; 0 means unbounded.
func WithMaxStoredReports(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxStoredReports = n
		}
	}
}

// WithCacheTTL sets how long an aggregation is reused for an unchanged
// snapshot. 0 disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithValidators sets the display names of known validator hotkeys.
func WithValidators(names map[string]string) Option {
	return func(s *Service) {
		s.validatorNames = make(map[string]string, len(names))
		for k, v := range names {
			s.validatorNames[k] = v
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
