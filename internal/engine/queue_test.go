package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(fn string) *pendingCall {
	return &pendingCall{
		ctx:   context.Background(),
		req:   Request{Function: fn},
		reply: make(chan callOutcome, 1),
	}
}

func TestCallQueue_FIFO(t *testing.T) {
	q := newCallQueue()
	for _, fn := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(newPending(fn)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		p, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, p.req.Function)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestCallQueue_SignalCoalesces(t *testing.T) {
	q := newCallQueue()
	q.Enqueue(newPending("a"))
	q.Enqueue(newPending("b"))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a wakeup after enqueue")
	}
	select {
	case <-q.Wait():
		t.Fatal("two enqueues should produce one wakeup")
	default:
	}
}

func TestCallQueue_Close(t *testing.T) {
	q := newCallQueue()
	q.Enqueue(newPending("a"))
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(newPending("b")))

	select {
	case <-q.Wait():
	default:
		t.Fatal("Wait should fire after Close")
	}

	drained := q.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "a", drained[0].req.Function)
	assert.Equal(t, 0, q.Len())
}
