package zome

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/holopos/internal/ir"
)

// Definition is the Go side of a zome: its function handlers and the
// validators for the entry types it commits.
type Definition struct {
	Name            string
	EntryValidators map[string]Validator
	Functions       map[string]Handler
}

// Registry maps zome names to definitions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	zomes map[string]Definition
}

// NewRegistry returns a registry holding defs.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{zomes: make(map[string]Definition)}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition. Names must be unique.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("register zome: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.zomes[d.Name]; exists {
		return fmt.Errorf("register zome: %q already registered", d.Name)
	}
	r.zomes[d.Name] = d
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.zomes[name]
	return d, ok
}

// Names returns registered zome names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.zomes))
	for n := range r.zomes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Handler returns the handler for zome/function.
func (r *Registry) Handler(zome, function string) (Handler, error) {
	d, ok := r.Lookup(zome)
	if !ok {
		return nil, UnknownFunction("zome %q is not registered", zome)
	}
	h, ok := d.Functions[function]
	if !ok {
		return nil, UnknownFunction("zome %q has no function %q", zome, function)
	}
	return h, nil
}

// ValidateEntry runs the validator registered for entryType, if any.
// Entry types without a validator are accepted. Validator errors that are
// not APIErrors are reported as ValidationFailed.
func (r *Registry) ValidateEntry(zome, entryType string, content ir.IRObject) error {
	d, ok := r.Lookup(zome)
	if !ok {
		return UnknownFunction("zome %q is not registered", zome)
	}
	v, ok := d.EntryValidators[entryType]
	if !ok {
		return nil
	}
	if err := v(content); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return ValidationFailed("%s: %v", entryType, err)
	}
	return nil
}
