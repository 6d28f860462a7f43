package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator yields prefix-000001, prefix-000002, ...
//
// Unlike engine.FixedGenerator it never runs out, so a scenario can make any
// number of calls and still produce the same call ids on every run.
// It implements engine.CallIDGenerator.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator returns a generator using prefix.
// An empty prefix becomes "req".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
