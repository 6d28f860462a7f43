package pos

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/holopos/internal/ir"
)

// Product is an item offered for sale.
type Product struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// IR implements zome.Encoder.
func (p Product) IR() ir.IRObject {
	return ir.IRObject{
		"name":        ir.IRString(p.Name),
		"description": ir.IRString(p.Description),
		"price":       ir.NewIRDecimal(p.Price),
	}
}

// Basket holds a customer's positions. Sum is stored as given.
type Basket struct {
	Name string          `json:"name"`
	Sum  decimal.Decimal `json:"sum"`
}

// IR implements zome.Encoder.
func (b Basket) IR() ir.IRObject {
	return ir.IRObject{
		"name": ir.IRString(b.Name),
		"sum":  ir.NewIRDecimal(b.Sum),
	}
}

// Position is a quantity of one product in one basket.
type Position struct {
	Amount    int    `json:"amount"`
	Timestamp string `json:"timestamp"`
}

// IR implements zome.Encoder.
func (p Position) IR() ir.IRObject {
	return ir.IRObject{
		"amount":    ir.IRInt(p.Amount),
		"timestamp": ir.IRString(p.Timestamp),
	}
}

// BasketResponse is a basket with its positions in insertion order.
type BasketResponse struct {
	Name      string          `json:"name"`
	Sum       decimal.Decimal `json:"sum"`
	Positions []Position      `json:"positions"`
}

// IR implements zome.Encoder. Positions is never null.
func (r BasketResponse) IR() ir.IRObject {
	positions := make(ir.IRArray, len(r.Positions))
	for i, p := range r.Positions {
		positions[i] = p.IR()
	}
	obj := Basket{Name: r.Name, Sum: r.Sum}.IR()
	obj["positions"] = positions
	return obj
}
