package worker

import (
	"time"

	"github.com/okian/duelboard/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithShutdownTimeout bounds how long Stop waits for the queue to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
