// Package queue is the bounded hand-off between batch ingestion and the
// workers that store batches.
package queue

import (
	"context"
	"sync"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/pkg/metrics"
)

const defaultCapacity = 10000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a batch. Returns false if the queue is full, closed, or
	// ctx is done.
	Enqueue(ctx context.Context, r model.BatchReport) bool

	// Dequeue returns the channel workers read from. It is closed, after
	// the remaining batches drain, once the queue is closed.
	Dequeue() <-chan model.BatchReport

	// Len returns the number of queued batches.
	Len() int

	// Close stops accepting batches.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	items    chan model.BatchReport
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.BatchReport, q.capacity)
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, r model.BatchReport) bool { //nolint:gocritic // hugeParam: passed by value into the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordError("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordError("queue", "context_cancelled")
		return false
	}
	select {
	case q.items <- r:
		metrics.UpdateQueueSize(len(q.items))
		return true
	default:
		metrics.RecordError("queue", "queue_full")
		return false
	}
}

func (q *InMemoryQueue) Dequeue() <-chan model.BatchReport {
	return q.items
}

func (q *InMemoryQueue) Len() int {
	n := len(q.items)
	metrics.UpdateQueueSize(n)
	return n
}

// Close is idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
