package pos

import (
	"context"
	"log/slog"

	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/zome"
)

func createProduct(ctx context.Context, api zome.API, args ir.IRObject) (ir.IRValue, error) {
	var p Product
	if err := zome.Decode(args, "product", &p); err != nil {
		return nil, err
	}
	addr, err := api.Commit(ctx, EntryProduct, p.IR())
	if err != nil {
		return nil, err
	}
	return ir.IRString(addr), nil
}

func createBasket(ctx context.Context, api zome.API, args ir.IRObject) (ir.IRValue, error) {
	var b Basket
	if err := zome.Decode(args, "basket", &b); err != nil {
		return nil, err
	}
	addr, err := api.Commit(ctx, EntryBasket, b.IR())
	if err != nil {
		return nil, err
	}
	return ir.IRString(addr), nil
}

func addProduct(ctx context.Context, api zome.API, args ir.IRObject) (ir.IRValue, error) {
	productAddr, err := zome.String(args, "product_addr")
	if err != nil {
		return nil, err
	}
	basketAddr, err := zome.String(args, "basket_addr")
	if err != nil {
		return nil, err
	}
	var position Position
	if err := zome.Decode(args, "position", &position); err != nil {
		return nil, err
	}

	if _, err := getTyped(ctx, api, productAddr, EntryProduct); err != nil {
		return nil, err
	}
	if _, err := getTyped(ctx, api, basketAddr, EntryBasket); err != nil {
		return nil, err
	}

	positionAddr, err := api.Commit(ctx, EntryPosition, position.IR())
	if err != nil {
		return nil, err
	}
	// The basket link is written last: a position shows up in get_basket
	// only once add_product has fully succeeded.
	if _, err := api.Link(ctx, positionAddr, TagProduct, productAddr); err != nil {
		return nil, err
	}
	if _, err := api.Link(ctx, basketAddr, TagPositions, positionAddr); err != nil {
		return nil, err
	}
	return ir.IRString(positionAddr), nil
}

func getBasket(ctx context.Context, api zome.API, args ir.IRObject) (ir.IRValue, error) {
	basketAddr, err := zome.String(args, "basket_addr")
	if err != nil {
		return nil, err
	}

	e, err := getTyped(ctx, api, basketAddr, EntryBasket)
	if err != nil {
		return nil, err
	}
	var basket Basket
	if err := zome.DecodeValue(e.Content, &basket); err != nil {
		return nil, zome.Internal("basket %s: %v", basketAddr, err)
	}

	targets, err := api.GetLinks(ctx, basketAddr, TagPositions)
	if err != nil {
		return nil, err
	}

	resp := BasketResponse{Name: basket.Name, Sum: basket.Sum, Positions: make([]Position, 0, len(targets))}
	for _, addr := range targets {
		// Positions that cannot be loaded are left out rather than failing
		// the whole read.
		pe, err := getTyped(ctx, api, addr, EntryPosition)
		if err != nil {
			slog.Debug("skipping position", "basket", basketAddr, "position", addr, "error", err)
			continue
		}
		var p Position
		if err := zome.DecodeValue(pe.Content, &p); err != nil {
			slog.Debug("skipping position", "basket", basketAddr, "position", addr, "error", err)
			continue
		}
		resp.Positions = append(resp.Positions, p)
	}
	return resp.IR(), nil
}

func getProducts(ctx context.Context, api zome.API, _ ir.IRObject) (ir.IRValue, error) {
	entries, err := api.Query(ctx, EntryProduct)
	if err != nil {
		return nil, err
	}
	products := make(ir.IRArray, 0, len(entries))
	for _, e := range entries {
		var p Product
		if err := zome.DecodeValue(e.Content, &p); err != nil {
			continue
		}
		products = append(products, p.IR())
	}
	return products, nil
}

// getTyped loads an entry and checks its type. A missing entry keeps the
// API's NotFound error; a wrong type is InvalidInput.
func getTyped(ctx context.Context, api zome.API, addr, entryType string) (ir.Entry, error) {
	e, err := api.Get(ctx, addr)
	if err != nil {
		return ir.Entry{}, err
	}
	if e.Type != entryType {
		return ir.Entry{}, zome.InvalidInput("%s is a %s entry, not a %s", addr, e.Type, entryType)
	}
	return e, nil
}
