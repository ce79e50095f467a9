// Package queue carries fetched match details from the single producer to
// the consumers.
//
// The producer closes the queue after its last Enqueue; consumers read until
// the channel is closed and drained. Closing is the end-of-stream signal, so
// consumers never need to know how many details to expect.
package queue

import (
	"context"
	"sync"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Detail is the payload type flowing through the queue.
type Detail = model.MatchDetail

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a detail, blocking while the queue is full.
	// Returns ErrClosed after Close, or the context error if ctx ends first.
	Enqueue(ctx context.Context, d Detail) error

	// Dequeue returns a channel that receives details as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Detail

	// Close ends the stream. Only the producer may call it.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	details  chan Detail
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.details = make(chan Detail, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a detail to the queue, waiting for room.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Detail) error { //nolint:gocritic // hugeParam: Detail is passed by value for channel semantics
	// The read lock is held across the send so Close cannot close the channel
	// under a blocked sender.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.details <- d:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.details))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	}
}

// Dequeue returns a channel that receives details as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Detail {
	out := make(chan Detail)
	go func() {
		defer close(out)
		for d := range q.details {
			select {
			case out <- d:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.details))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close ends the stream; buffered details are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.details)
	q.closed = true
	return nil
}
