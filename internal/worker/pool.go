// Package worker publishes domain events in the background so request
// handlers never wait on the event transport.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ewilliams-labs/songform/internal/core/ports"
	"github.com/ewilliams-labs/songform/internal/metrics"
)

// publishTimeout bounds a single Publish call.
const publishTimeout = 10 * time.Second

// Pool manages background workers that drain the event queue.
type Pool struct {
	publisher ports.EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	jobs      chan ports.Event
	workers   int
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a worker pool with the given worker count and queue size.
func NewPool(publisher ports.EventPublisher, logger *slog.Logger, m *metrics.Metrics, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		publisher: publisher,
		logger:    logger.With("component", "worker"),
		metrics:   m,
		jobs:      make(chan ports.Event, queueSize),
		workers:   workers,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for e := range p.jobs {
				p.process(e)
			}
		}()
	}
}

// Stop closes the queue and waits for queued events to be published.
// Events dispatched after Stop are dropped.
func (p *Pool) Stop() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Dispatch queues an event without blocking. When the queue is full or
// the pool is stopped the event is dropped with a warning.
func (p *Pool) Dispatch(e ports.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.EventDropped()
		p.logger.Warn("dropping event, pool stopped", "type", e.Type, "entity_id", e.EntityID)
		return
	}
	select {
	case p.jobs <- e:
	default:
		p.metrics.EventDropped()
		p.logger.Warn("dropping event, queue full", "type", e.Type, "entity_id", e.EntityID)
	}
}

func (p *Pool) process(e ports.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, e); err != nil {
		p.metrics.EventPublished(e.Type, false)
		p.logger.Warn("publish failed", "type", e.Type, "entity_id", e.EntityID, "error", err)
		return
	}
	p.metrics.EventPublished(e.Type, true)
	p.logger.Debug("published event", "type", e.Type, "entity_id", e.EntityID)
}
