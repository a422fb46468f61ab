package api

import (
	"context"
	"sync/atomic"
	"time"
)

// WorkerPool bounds the number of policy queries running at once.
type WorkerPool struct {
	sem    chan struct{}
	queued int64
	active int64
	total  int64
}

// DefaultMaxWorkers is used when a pool is created with a non-positive size.
const DefaultMaxWorkers = 8

// NewWorkerPool creates a pool of max slots.
func NewWorkerPool(max int) *WorkerPool {
	if max <= 0 {
		max = DefaultMaxWorkers
	}
	return &WorkerPool{sem: make(chan struct{}, max)}
}

// Acquire waits for a slot.
// Returns an error if the context is cancelled while waiting.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	atomic.AddInt64(&p.queued, 1)
	defer atomic.AddInt64(&p.queued, -1)

	select {
	case p.sem <- struct{}{}:
		atomic.AddInt64(&p.active, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AcquireWithTimeout waits at most timeout for a slot.
func (p *WorkerPool) AcquireWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Acquire(ctx)
}

// TryAcquire takes a slot without blocking.
// Returns true if acquired, false if pool is full.
func (p *WorkerPool) TryAcquire() bool {
	select {
	case p.sem <- struct{}{}:
		atomic.AddInt64(&p.active, 1)
		return true
	default:
		return false
	}
}

// Release frees a slot.
func (p *WorkerPool) Release() {
	atomic.AddInt64(&p.active, -1)
	atomic.AddInt64(&p.total, 1)
	<-p.sem
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Active int64 `json:"active"`
	Queued int64 `json:"queued"`
	Total  int64 `json:"total"`
	Max    int   `json:"max"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Active: atomic.LoadInt64(&p.active),
		Queued: atomic.LoadInt64(&p.queued),
		Total:  atomic.LoadInt64(&p.total),
		Max:    cap(p.sem),
	}
}
