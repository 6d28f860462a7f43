package pos

import (
	"context"
	"testing"

	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/zome"
)

// memAPI is an in-memory zome.API that runs the zome's validators.
type memAPI struct {
	t        *testing.T
	registry *zome.Registry
	entries  map[string]ir.Entry
	links    []ir.Link
	seq      int64

	// failLinkTag makes Link fail for this tag.
	failLinkTag string
}

func newMemAPI(t *testing.T) *memAPI {
	t.Helper()
	reg, err := zome.NewRegistry(Definition())
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return &memAPI{t: t, registry: reg, entries: make(map[string]ir.Entry)}
}

func (m *memAPI) AgentID() string { return "alice" }

func (m *memAPI) Commit(_ context.Context, entryType string, content ir.IRObject) (string, error) {
	if err := m.registry.ValidateEntry(ZomeName, entryType, content); err != nil {
		return "", err
	}
	addr, err := ir.EntryAddress(entryType, content)
	if err != nil {
		return "", zome.Internal("%v", err)
	}
	if _, ok := m.entries[addr]; !ok {
		m.seq++
		m.entries[addr] = ir.Entry{Address: addr, Type: entryType, Content: content, Author: "alice", Seq: m.seq}
	}
	return addr, nil
}

func (m *memAPI) Get(_ context.Context, address string) (ir.Entry, error) {
	e, ok := m.entries[address]
	if !ok {
		return ir.Entry{}, zome.NotFound("no entry at %s", address)
	}
	return e, nil
}

func (m *memAPI) Link(_ context.Context, base, tag, target string) (string, error) {
	if tag == m.failLinkTag {
		return "", zome.Internal("link %s failed", tag)
	}
	m.seq++
	l := ir.Link{ID: ir.LinkID(base, tag, target, m.seq), Base: base, Tag: tag, Target: target, Seq: m.seq}
	m.links = append(m.links, l)
	return l.ID, nil
}

func (m *memAPI) GetLinks(_ context.Context, base, tag string) ([]string, error) {
	var out []string
	for _, l := range m.links {
		if l.Base == base && l.Tag == tag {
			out = append(out, l.Target)
		}
	}
	return out, nil
}

func (m *memAPI) Query(_ context.Context, entryType string) ([]ir.Entry, error) {
	var out []ir.Entry
	for seq := int64(1); seq <= m.seq; seq++ {
		for _, e := range m.entries {
			if e.Seq == seq && e.Type == entryType {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// call runs a registered function with args built from Go values.
func (m *memAPI) call(fn string, args map[string]any) (ir.IRValue, error) {
	m.t.Helper()
	obj, err := ir.ObjectFromGo(args)
	if err != nil {
		m.t.Fatalf("ObjectFromGo() failed: %v", err)
	}
	h, err := m.registry.Handler(ZomeName, fn)
	if err != nil {
		m.t.Fatalf("Handler(%s) failed: %v", fn, err)
	}
	return h(m.t.Context(), m, obj)
}
