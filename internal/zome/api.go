package zome

import (
	"context"

	"github.com/roach88/holopos/internal/ir"
)

// API is the capability surface handed to a zome function.
type API interface {
	// AgentID is the address of the calling agent.
	AgentID() string

	// Commit validates and stores an entry, returning its address.
	Commit(ctx context.Context, entryType string, content ir.IRObject) (string, error)

	// Get returns the entry at address. A missing entry is a NotFound APIError.
	Get(ctx context.Context, address string) (ir.Entry, error)

	// Link appends a tagged link from base to target.
	Link(ctx context.Context, base, tag, target string) (string, error)

	// GetLinks returns target addresses linked from base under tag, oldest first.
	GetLinks(ctx context.Context, base, tag string) ([]string, error)

	// Query returns every entry of a type in commit order.
	Query(ctx context.Context, entryType string) ([]ir.Entry, error)
}

// Handler implements one zome function.
type Handler func(ctx context.Context, api API, args ir.IRObject) (ir.IRValue, error)

// Validator checks an entry's content before it is committed.
type Validator func(content ir.IRObject) error
