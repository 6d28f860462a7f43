package engine

import (
	"context"
	"errors"

	"github.com/roach88/holopos/internal/dna"
	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/store"
	"github.com/roach88/holopos/internal/zome"
)

// instanceAPI is the zome.API handed to a handler for one call. It is only
// used from the Run goroutine, so it writes to the store without locking.
type instanceAPI struct {
	engine *Engine
	zome   *dna.Zome
}

var _ zome.API = (*instanceAPI)(nil)

func (a *instanceAPI) AgentID() string {
	return a.engine.agentID
}

func (a *instanceAPI) Commit(ctx context.Context, entryType string, content ir.IRObject) (string, error) {
	if _, ok := a.zome.EntryType(entryType); !ok {
		return "", zome.InvalidInput("zome %q has no entry type %q", a.zome.Name, entryType)
	}
	if content == nil {
		content = ir.IRObject{}
	}
	if err := a.engine.registry.ValidateEntry(a.zome.Name, entryType, content); err != nil {
		return "", err
	}

	addr, err := a.engine.store.CommitEntry(ctx, ir.Entry{
		Type:    entryType,
		Content: content,
		Author:  a.engine.agentID,
		Seq:     a.engine.clock.Next(),
	})
	if err != nil {
		return "", zome.Internal("commit %s: %v", entryType, err)
	}
	return addr, nil
}

func (a *instanceAPI) Get(ctx context.Context, address string) (ir.Entry, error) {
	entry, err := a.engine.store.GetEntry(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return ir.Entry{}, zome.NotFound("no entry at %s", address)
	}
	if err != nil {
		return ir.Entry{}, zome.Internal("get %s: %v", address, err)
	}
	return entry, nil
}

func (a *instanceAPI) Link(ctx context.Context, base, tag, target string) (string, error) {
	from, err := a.Get(ctx, base)
	if err != nil {
		return "", err
	}
	to, err := a.Get(ctx, target)
	if err != nil {
		return "", err
	}
	if !a.zome.AllowsLink(from.Type, tag, to.Type) {
		return "", zome.ValidationFailed("link %q from %s to %s is not defined", tag, from.Type, to.Type)
	}

	id, err := a.engine.store.LinkEntries(ctx, ir.Link{
		Base:   base,
		Tag:    tag,
		Target: target,
		Author: a.engine.agentID,
		Seq:    a.engine.clock.Next(),
	})
	if err != nil {
		return "", zome.Internal("link %s: %v", tag, err)
	}
	return id, nil
}

func (a *instanceAPI) GetLinks(ctx context.Context, base, tag string) ([]string, error) {
	links, err := a.engine.store.GetLinks(ctx, base, tag)
	if err != nil {
		return nil, zome.Internal("get links %s: %v", tag, err)
	}
	targets := make([]string, len(links))
	for i, l := range links {
		targets[i] = l.Target
	}
	return targets, nil
}

func (a *instanceAPI) Query(ctx context.Context, entryType string) ([]ir.Entry, error) {
	if _, ok := a.zome.EntryType(entryType); !ok {
		return nil, zome.InvalidInput("zome %q has no entry type %q", a.zome.Name, entryType)
	}
	entries, err := a.engine.store.QueryEntries(ctx, entryType)
	if err != nil {
		return nil, zome.Internal("query %s: %v", entryType, err)
	}
	return entries, nil
}
