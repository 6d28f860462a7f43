package pos

import (
	"fmt"
	"strings"

	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/zome"
)

// MaxAmount is the largest quantity a single position can hold.
const MaxAmount = 127

func validateProduct(content ir.IRObject) error {
	var p Product
	if err := zome.DecodeValue(content, &p); err != nil {
		return fmt.Errorf("product: %w", err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return zome.ValidationFailed("product name must not be empty")
	}
	if p.Price.IsNegative() {
		return zome.ValidationFailed("product price must not be negative, got %s", p.Price)
	}
	return nil
}

func validateBasket(content ir.IRObject) error {
	var b Basket
	if err := zome.DecodeValue(content, &b); err != nil {
		return fmt.Errorf("basket: %w", err)
	}
	if b.Sum.IsNegative() {
		return zome.ValidationFailed("basket sum must not be negative, got %s", b.Sum)
	}
	return nil
}

func validatePosition(content ir.IRObject) error {
	var p Position
	if err := zome.DecodeValue(content, &p); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if p.Amount < 1 || p.Amount > MaxAmount {
		return zome.ValidationFailed("position amount must be between 1 and %d, got %d", MaxAmount, p.Amount)
	}
	if strings.TrimSpace(p.Timestamp) == "" {
		return zome.ValidationFailed("position timestamp must not be empty")
	}
	return nil
}
