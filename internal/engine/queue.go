package engine

import (
	"context"
	"sync"
)

// pendingCall is a call waiting for the Run loop.
type pendingCall struct {
	ctx   context.Context
	req   Request
	reply chan callOutcome // buffered, size 1
}

type callOutcome struct {
	result Result
	err    error
}

// callQueue is an unbounded, thread-safe FIFO of pending calls.
//
// A buffered signal channel of size 1 wakes the Run loop; multiple enqueues
// coalesce into one wakeup, and Run drains with TryDequeue until empty.
type callQueue struct {
	mu     sync.Mutex
	calls  []*pendingCall
	closed bool
	signal chan struct{}
}

func newCallQueue() *callQueue {
	return &callQueue{
		calls:  make([]*pendingCall, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a call. Returns false if the queue is closed.
func (q *callQueue) Enqueue(c *pendingCall) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.calls = append(q.calls, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front call without blocking.
func (q *callQueue) TryDequeue() (*pendingCall, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.calls) == 0 {
		return nil, false
	}

	c := q.calls[0]
	// Clear the slot so the backing array does not pin finished calls.
	q.calls[0] = nil
	if len(q.calls) == 1 {
		q.calls = q.calls[:0]
	} else {
		q.calls = q.calls[1:]
	}
	return c, true
}

// Wait returns a channel that fires when calls may be available, and is
// closed when the queue is closed.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued calls.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Close stops further enqueues and wakes the Run loop.
func (q *callQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drain removes and returns every queued call.
func (q *callQueue) Drain() []*pendingCall {
	q.mu.Lock()
	defer q.mu.Unlock()

	calls := q.calls
	q.calls = nil
	return calls
}

// Closed reports whether Close has been called.
func (q *callQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
