package testutil

import (
	"strconv"
	"sync"
)

// DeterministicClock is a resettable logical clock for scenarios.
//
// The harness uses it for the ${now} placeholder so that timestamps in
// fixtures are "1", "2", ... instead of wall-clock values, which keeps
// golden traces stable.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances and returns the clock.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Timestamp is Next formatted as a decimal string.
func (c *DeterministicClock) Timestamp() string {
	return strconv.FormatInt(c.Next(), 10)
}

// Current returns the last value handed out.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next Next returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
