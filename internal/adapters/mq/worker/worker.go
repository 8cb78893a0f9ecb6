// Package worker drains the ingestion queue into the snapshot store.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/pkg/logger"
	"github.com/okian/duelboard/pkg/metrics"
)

const defaultShutdownTimeout = 10 * time.Second

// Appender stores batches.
type Appender interface {
	Append(ctx context.Context, reports ...model.BatchReport) error
}

// Source is where workers read batches from.
type Source interface {
	Dequeue() <-chan model.BatchReport
	Close() error
}

// Pool runs a fixed number of workers over one Source.
type Pool struct {
	size            int
	source          Source
	sink            Appender
	shutdownTimeout time.Duration
	logger          logger.Logger

	wg        sync.WaitGroup
	once      sync.Once
	stored    atomic.Int64
	failed    atomic.Int64
	startOnce sync.Once
}

// NewPool creates a worker pool. size < 1 is treated as 1.
func NewPool(size int, source Source, sink Appender, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:            size,
		source:          source,
		sink:            sink,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They exit when the source closes.
// ctx is only used for store writes and logging; cancelling it does not
// stop the workers, so queued batches are never lost on shutdown.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx = context.WithoutCancel(ctx)
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.run(ctx, "worker-"+strconv.Itoa(i))
		}
		metrics.UpdateWorkerCount(p.size)
	})
}

func (p *Pool) run(ctx context.Context, name string) {
	defer p.wg.Done()
	log := p.logger
	for r := range p.source.Dequeue() {
		if err := p.sink.Append(ctx, r); err != nil {
			p.failed.Add(1)
			metrics.RecordWorkerError()
			log.Error(ctx, "store batch failed", logger.String("worker", name), logger.String("batch_id", r.BatchID), logger.Error(err))
			continue
		}
		p.stored.Add(1)
		log.Debug(ctx, "stored batch", logger.String("worker", name), logger.String("batch_id", r.BatchID), logger.String("validator", r.Validator))
	}
}

// Stop closes the source and waits for queued batches to drain.
func (p *Pool) Stop(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if cerr := p.source.Close(); cerr != nil {
			p.logger.Error(ctx, "close queue failed", logger.Error(cerr))
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		timer := time.NewTimer(p.shutdownTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			err = fmt.Errorf("worker pool drain timed out after %s", p.shutdownTimeout)
		case <-ctx.Done():
			err = fmt.Errorf("worker pool drain interrupted: %w", ctx.Err())
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Stored returns how many batches the pool has written.
func (p *Pool) Stored() int64 { return p.stored.Load() }

// Failed returns how many batch writes failed.
func (p *Pool) Failed() int64 { return p.failed.Load() }
