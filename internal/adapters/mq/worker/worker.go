// Package worker consumes fetched match details and turns them into match records.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

const defaultWorkerCount = 4

// Scorer computes the match record of a fetched match.
type Scorer interface {
	Score(ctx context.Context, in model.MatchDetail) (model.MatchRecord, error)
}

// Sink receives finished match records. It must be safe for concurrent use.
type Sink interface {
	Add(ctx context.Context, rec model.MatchRecord) error
}

// Queue defines how workers receive match details.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.MatchDetail
}

// InMemoryWorker reads details until the queue is closed and drained.
type InMemoryWorker struct {
	queue  Queue
	scorer Scorer
	sink   Sink
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		scorer:   scorer,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes details until the queue closes, ctx ends, or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	details := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case d, ok := <-details:
			if !ok {
				return
			}
			if err := w.process(ctx, d); err != nil {
				w.logger.Error(ctx, "error processing match", logger.Int64("match_id", d.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, d model.MatchDetail) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(time.Since(start))
	}()

	rec, err := w.scorer.Score(ctx, d)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		return fmt.Errorf("score match %d: %w", d.ID, err)
	}
	if err := w.sink.Add(ctx, rec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sink_error")
		return fmt.Errorf("collect match %d: %w", d.ID, err)
	}
	return nil
}

// Pool runs several workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers named worker-0..N.
func NewPool(workerCount int, queue Queue, scorer Scorer, sink Sink, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &Pool{workers: make([]*InMemoryWorker, workerCount), logger: log}
	for i := range p.workers {
		name := "worker-" + strconv.Itoa(i)
		p.workers[i] = NewInMemoryWorker(queue, scorer, sink, WithName(name), WithLogger(log.Named(name)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has returned, normally because the queue
// was closed and drained.
func (p *Pool) Wait() {
	for _, w := range p.workers {
		<-w.done
	}
	metrics.UpdateWorkerCount(0)
}

// Shutdown stops every worker, waiting at most until ctx ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return err
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}

// Collector is a Sink that keeps every record in memory.
type Collector struct {
	mu   sync.Mutex
	recs []model.MatchRecord
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends rec.
func (c *Collector) Add(_ context.Context, rec model.MatchRecord) error {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	return nil
}

// Records returns a copy of the collected records.
func (c *Collector) Records() []model.MatchRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.MatchRecord, len(c.recs))
	copy(out, c.recs)
	return out
}

// Len returns the number of collected records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}
