package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/zome"
)

var (
	mockProduct = map[string]any{"name": "test product", "description": "yummi", "price": 5.31}
	mockBasket  = map[string]any{"name": "Test", "sum": 0}
)

func mustAddr(t *testing.T) func(v ir.IRValue, err error) string {
	return func(v ir.IRValue, err error) string {
		t.Helper()
		require.NoError(t, err)
		s, ok := v.(ir.IRString)
		require.True(t, ok, "want address string, got %T", v)
		require.NotEmpty(t, s)
		return string(s)
	}
}

func TestCreateProduct(t *testing.T) {
	api := newMemAPI(t)

	v, err := api.call(FnCreateProduct, map[string]any{"product": mockProduct})
	addr := mustAddr(t)(v, err)

	e, err := api.Get(t.Context(), addr)
	require.NoError(t, err)
	assert.Equal(t, EntryProduct, e.Type)
	assert.Equal(t, ir.IRDecimal("5.31"), e.Content["price"])
}

func TestCreateProductSameContentSameAddress(t *testing.T) {
	api := newMemAPI(t)

	a := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	b := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	assert.Equal(t, a, b)
}

func TestCreateProductValidation(t *testing.T) {
	tests := []struct {
		name    string
		product map[string]any
		kind    zome.ErrorKind
	}{
		{"empty name", map[string]any{"name": " ", "description": "", "price": 1}, zome.KindValidationFailed},
		{"negative price", map[string]any{"name": "x", "description": "", "price": -0.5}, zome.KindValidationFailed},
		{"wrong type", map[string]any{"name": 7, "description": "", "price": 1}, zome.KindInvalidInput},
		{"unknown field", map[string]any{"name": "x", "price": 1, "colour": "red"}, zome.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newMemAPI(t).call(FnCreateProduct, map[string]any{"product": tt.product})
			assert.True(t, zome.IsKind(err, tt.kind), "got %v", err)
		})
	}

	_, err := newMemAPI(t).call(FnCreateProduct, map[string]any{})
	assert.True(t, zome.IsKind(err, zome.KindInvalidInput))
}

func TestCreateProductPriceAsString(t *testing.T) {
	api := newMemAPI(t)
	p := map[string]any{"name": "tea", "description": "green", "price": "5.310"}

	addr := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": p}))
	e, err := api.Get(t.Context(), addr)
	require.NoError(t, err)
	assert.Equal(t, ir.IRDecimal("5.31"), e.Content["price"])
}

func TestCreateBasket(t *testing.T) {
	api := newMemAPI(t)
	mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))

	_, err := api.call(FnCreateBasket, map[string]any{"basket": map[string]any{"name": "x", "sum": -1}})
	assert.True(t, zome.IsKind(err, zome.KindValidationFailed))
}

func TestAddProductAndGetBasket(t *testing.T) {
	api := newMemAPI(t)
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	basket := mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))

	positions := []map[string]any{
		{"amount": 5, "timestamp": "1546300800000"},
		{"amount": 2, "timestamp": "1546300800001"},
	}
	for _, p := range positions {
		mustAddr(t)(api.call(FnAddProduct, map[string]any{"product_addr": product, "basket_addr": basket, "position": p}))
	}

	v, err := api.call(FnGetBasket, map[string]any{"basket_addr": basket})
	require.NoError(t, err)

	assert.Equal(t, ir.IRObject{
		"name": ir.IRString("Test"),
		"sum":  ir.IRDecimal("0"),
		"positions": ir.IRArray{
			ir.IRObject{"amount": ir.IRInt(5), "timestamp": ir.IRString("1546300800000")},
			ir.IRObject{"amount": ir.IRInt(2), "timestamp": ir.IRString("1546300800001")},
		},
	}, v)
}

func TestAddProductRepeatedPositionCountsTwice(t *testing.T) {
	api := newMemAPI(t)
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	basket := mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))

	same := map[string]any{"amount": 1, "timestamp": "T"}
	a := mustAddr(t)(api.call(FnAddProduct, map[string]any{"product_addr": product, "basket_addr": basket, "position": same}))
	b := mustAddr(t)(api.call(FnAddProduct, map[string]any{"product_addr": product, "basket_addr": basket, "position": same}))
	assert.Equal(t, a, b, "identical positions share an address")

	v, err := api.call(FnGetBasket, map[string]any{"basket_addr": basket})
	require.NoError(t, err)
	assert.Len(t, v.(ir.IRObject)["positions"], 2)
}

func TestAddProductLinksPositionToProduct(t *testing.T) {
	api := newMemAPI(t)
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	basket := mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))
	pos := mustAddr(t)(api.call(FnAddProduct, map[string]any{
		"product_addr": product, "basket_addr": basket, "position": map[string]any{"amount": 3, "timestamp": "T"},
	}))

	targets, err := api.GetLinks(t.Context(), pos, TagProduct)
	require.NoError(t, err)
	assert.Equal(t, []string{product}, targets)
}

func TestAddProductFailedLinkLeavesBasketUnchanged(t *testing.T) {
	api := newMemAPI(t)
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	basket := mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))

	api.failLinkTag = TagProduct
	_, err := api.call(FnAddProduct, map[string]any{
		"product_addr": product, "basket_addr": basket, "position": map[string]any{"amount": 3, "timestamp": "T"},
	})
	require.Error(t, err)

	v, err := api.call(FnGetBasket, map[string]any{"basket_addr": basket})
	require.NoError(t, err)
	assert.Empty(t, v.(ir.IRObject)["positions"])
}

func TestAddProductErrors(t *testing.T) {
	api := newMemAPI(t)
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	basket := mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))
	position := map[string]any{"amount": 5, "timestamp": "T"}

	tests := []struct {
		name string
		args map[string]any
		kind zome.ErrorKind
	}{
		{"missing product", map[string]any{"product_addr": "nope", "basket_addr": basket, "position": position}, zome.KindNotFound},
		{"missing basket", map[string]any{"product_addr": product, "basket_addr": "nope", "position": position}, zome.KindNotFound},
		{"swapped addresses", map[string]any{"product_addr": basket, "basket_addr": product, "position": position}, zome.KindInvalidInput},
		{"zero amount", map[string]any{"product_addr": product, "basket_addr": basket, "position": map[string]any{"amount": 0, "timestamp": "T"}}, zome.KindValidationFailed},
		{"amount too large", map[string]any{"product_addr": product, "basket_addr": basket, "position": map[string]any{"amount": 128, "timestamp": "T"}}, zome.KindValidationFailed},
		{"empty timestamp", map[string]any{"product_addr": product, "basket_addr": basket, "position": map[string]any{"amount": 1, "timestamp": ""}}, zome.KindValidationFailed},
		{"address not a string", map[string]any{"product_addr": 1, "basket_addr": basket, "position": position}, zome.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.call(FnAddProduct, tt.args)
			assert.True(t, zome.IsKind(err, tt.kind), "got %v", err)
		})
	}

	// None of the failures left a position behind.
	v, err := api.call(FnGetBasket, map[string]any{"basket_addr": basket})
	require.NoError(t, err)
	assert.Empty(t, v.(ir.IRObject)["positions"])
}

func TestGetBasketSkipsUnloadablePositions(t *testing.T) {
	api := newMemAPI(t)
	basket := mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))

	// A link to something that is not a position, and one to nothing at all.
	_, _ = api.Link(t.Context(), basket, TagPositions, product)
	_, _ = api.Link(t.Context(), basket, TagPositions, "dangling")
	mustAddr(t)(api.call(FnAddProduct, map[string]any{
		"product_addr": product, "basket_addr": basket, "position": map[string]any{"amount": 1, "timestamp": "T"},
	}))

	v, err := api.call(FnGetBasket, map[string]any{"basket_addr": basket})
	require.NoError(t, err)
	assert.Len(t, v.(ir.IRObject)["positions"], 1)
}

func TestGetBasketErrors(t *testing.T) {
	api := newMemAPI(t)
	product := mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))

	_, err := api.call(FnGetBasket, map[string]any{"basket_addr": "nope"})
	assert.True(t, zome.IsKind(err, zome.KindNotFound))

	_, err = api.call(FnGetBasket, map[string]any{"basket_addr": product})
	assert.True(t, zome.IsKind(err, zome.KindInvalidInput))
}

func TestGetProducts(t *testing.T) {
	api := newMemAPI(t)

	v, err := api.call(FnGetProducts, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{}, v)

	mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": mockProduct}))
	mustAddr(t)(api.call(FnCreateProduct, map[string]any{"product": map[string]any{"name": "tea", "description": "", "price": 2}}))
	mustAddr(t)(api.call(FnCreateBasket, map[string]any{"basket": mockBasket}))

	v, err = api.call(FnGetProducts, nil)
	require.NoError(t, err)
	products := v.(ir.IRArray)
	require.Len(t, products, 2)
	assert.Equal(t, ir.IRString("test product"), products[0].(ir.IRObject)["name"])
	assert.Equal(t, ir.IRString("tea"), products[1].(ir.IRObject)["name"])
}
