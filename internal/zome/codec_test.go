package zome

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/holopos/internal/ir"
)

type item struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type encodedItem item

func (e encodedItem) IR() ir.IRObject {
	return ir.IRObject{"name": ir.IRString(e.Name), "price": ir.NewIRDecimal(e.Price)}
}

func TestDecode(t *testing.T) {
	args := ir.IRObject{"item": ir.IRObject{"name": ir.IRString("tea"), "price": ir.IRDecimal("5.31")}}

	var got item
	require.NoError(t, Decode(args, "item", &got))
	assert.Equal(t, "tea", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("5.31")))
}

func TestDecodeErrors(t *testing.T) {
	var got item

	err := Decode(ir.IRObject{}, "item", &got)
	assert.True(t, IsKind(err, KindInvalidInput))
	assert.Contains(t, err.Error(), `missing argument "item"`)

	err = Decode(ir.IRObject{"item": ir.IRString("tea")}, "item", &got)
	assert.True(t, IsKind(err, KindInvalidInput))

	err = Decode(ir.IRObject{"item": ir.IRObject{"name": ir.IRString("tea"), "colour": ir.IRString("green")}}, "item", &got)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestEncode(t *testing.T) {
	// Encoders keep decimals numeric.
	v, err := Encode(encodedItem{Name: "tea", Price: decimal.RequireFromString("5.31")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"name": ir.IRString("tea"), "price": ir.IRDecimal("5.31")}, v)

	v, err = Encode([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("a"), ir.IRString("b")}, v)

	_, err = Encode(func() {})
	assert.True(t, IsKind(err, KindInternal))
}

func TestString(t *testing.T) {
	s, err := String(ir.IRObject{"basket_addr": ir.IRString("abc")}, "basket_addr")
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	_, err = String(ir.IRObject{"basket_addr": ir.IRInt(1)}, "basket_addr")
	assert.True(t, IsKind(err, KindInvalidInput))
	_, err = String(ir.IRObject{}, "basket_addr")
	assert.True(t, IsKind(err, KindInvalidInput))
}
