package transport

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded delivery stream shared by the bus implementations.
// Deliver never blocks: when the buffer is full the delivery is dropped
// and counted. Deliver after Close is a no-op.
type Queue struct {
	ch      chan Delivery
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewQueue returns a queue buffering up to n deliveries.
func NewQueue(n int) *Queue {
	if n <= 0 {
		n = DefaultQueueSize
	}
	return &Queue{ch: make(chan Delivery, n)}
}

// Deliver enqueues d and reports whether it was accepted.
func (q *Queue) Deliver(d Delivery) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- d:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan Delivery {
	return q.ch
}

// Dropped returns the number of deliveries lost to a full buffer.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Close closes the stream. It reports false if it was already closed.
func (q *Queue) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	close(q.ch)
	return true
}
