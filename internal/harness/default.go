package harness

import "github.com/roach88/holopos/internal/pos"

// DefaultAgent is the agent the built-in scenario calls as.
const DefaultAgent = "alice"

// DefaultPOSScenario is the point-of-sale acceptance suite: create a
// product, create a basket, add positions and read the basket back.
func DefaultPOSScenario(bundlePath string) *Scenario {
	ok := true
	call := func(fn string) string { return pos.ZomeName + "/" + pos.Capability + "/" + fn }

	createProduct := Step{
		Call:   call(pos.FnCreateProduct),
		Args:   map[string]any{"product": "${product}"},
		Save:   "product_addr",
		Expect: &Expect{Ok: &ok},
	}
	createBasket := Step{
		Call:   call(pos.FnCreateBasket),
		Args:   map[string]any{"basket": "${basket}"},
		Save:   "basket_addr",
		Expect: &Expect{Ok: &ok},
	}
	addProduct := func(position string) Step {
		return Step{
			Call: call(pos.FnAddProduct),
			Args: map[string]any{
				"product_addr": "${product_addr}",
				"basket_addr":  "${basket_addr}",
				"position":     "${" + position + "}",
			},
			Expect: &Expect{Ok: &ok},
		}
	}

	return &Scenario{
		Name:        "pos_basket",
		Description: "products, baskets and positions",
		Bundle:      bundlePath,
		Agent:       DefaultAgent,
		Fixtures: map[string]any{
			"product":   map[string]any{"name": "test product", "description": "yummi", "price": 5.31},
			"basket":    map[string]any{"name": "Test", "sum": 0},
			"position":  map[string]any{"amount": 5, "timestamp": "${now}"},
			"position2": map[string]any{"amount": 2, "timestamp": "${now}"},
		},
		Tests: []TestCase{
			{
				Name:  "can create a product",
				Steps: []Step{createProduct},
			},
			{
				Name:  "can create a basket",
				Steps: []Step{createBasket},
			},
			{
				Name:  "can add products to a basket",
				Steps: []Step{createProduct, createBasket, addProduct("position")},
			},
			{
				Name: "can get a basket with its positions",
				Steps: []Step{
					createProduct,
					createBasket,
					addProduct("position"),
					addProduct("position2"),
					{
						Call: call(pos.FnGetBasket),
						Args: map[string]any{"basket_addr": "${basket_addr}"},
						Expect: &Expect{
							Ok:     &ok,
							Len:    &LenCheck{Path: "positions", Count: 2},
							Equals: map[string]any{
								"name":               "Test",
								"positions.0.amount": 5,
								"positions.1.amount": 2,
							},
						},
					},
				},
				Assertions: []Assertion{
					{Type: AssertCallCount, Function: pos.FnAddProduct, Count: 2},
					{Type: AssertCallOrder, Functions: []string{pos.FnCreateProduct, pos.FnCreateBasket, pos.FnAddProduct, pos.FnGetBasket}},
					{Type: AssertAllOk},
				},
			},
		},
	}
}
