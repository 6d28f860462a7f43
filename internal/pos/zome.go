package pos

import (
	"github.com/roach88/holopos/internal/dna"
	"github.com/roach88/holopos/internal/zome"
)

// Names used by the bundle and the handlers.
const (
	ZomeName   = "pos"
	Capability = "main"

	EntryProduct  = "product"
	EntryBasket   = "basket"
	EntryPosition = "position"

	TagPositions = "positions"
	TagProduct   = "product"

	FnCreateProduct = "create_product"
	FnCreateBasket  = "create_basket"
	FnAddProduct    = "add_product"
	FnGetBasket     = "get_basket"
	FnGetProducts   = "get_products"
)

// Definition returns the zome's handlers and entry validators.
func Definition() zome.Definition {
	return zome.Definition{
		Name: ZomeName,
		EntryValidators: map[string]zome.Validator{
			EntryProduct:  validateProduct,
			EntryBasket:   validateBasket,
			EntryPosition: validatePosition,
		},
		Functions: map[string]zome.Handler{
			FnCreateProduct: createProduct,
			FnCreateBasket:  createBasket,
			FnAddProduct:    addProduct,
			FnGetBasket:     getBasket,
			FnGetProducts:   getProducts,
		},
	}
}

// Bundle returns the manifest shipped as dist/bundle.json.
func Bundle() *dna.Bundle {
	return &dna.Bundle{
		Name:        "holopos",
		Description: "Point of sale: products, baskets and the positions that fill them",
		Version:     "0.1.0",
		UUID:        "00000000-0000-0000-0000-000000000000",
		Zomes: []dna.Zome{{
			Name:        ZomeName,
			Description: "Products, baskets and positions",
			EntryTypes: []dna.EntryType{
				{
					Name:        EntryProduct,
					Description: "products that are offered in a facility",
					Sharing:     "public",
				},
				{
					Name:        EntryBasket,
					Description: "basket holds all items per customer",
					Sharing:     "public",
					Links:       []dna.LinkDef{{Tag: TagPositions, Target: EntryPosition}},
				},
				{
					Name:        EntryPosition,
					Description: "represents the product position in a basket",
					Sharing:     "public",
					Links:       []dna.LinkDef{{Tag: TagProduct, Target: EntryProduct}},
				},
			},
			Capabilities: []dna.Capability{{
				Name:       Capability,
				Visibility: "public",
				Functions: []dna.FunctionSig{
					{
						Name:   FnCreateProduct,
						Inputs: []dna.NamedArg{{Name: "product", Type: EntryProduct}},
						Output: dna.TypeAddress,
					},
					{
						Name:   FnCreateBasket,
						Inputs: []dna.NamedArg{{Name: "basket", Type: EntryBasket}},
						Output: dna.TypeAddress,
					},
					{
						Name: FnAddProduct,
						Inputs: []dna.NamedArg{
							{Name: "product_addr", Type: dna.TypeAddress},
							{Name: "basket_addr", Type: dna.TypeAddress},
							{Name: "position", Type: EntryPosition},
						},
						Output: dna.TypeAddress,
					},
					{
						Name:   FnGetBasket,
						Inputs: []dna.NamedArg{{Name: "basket_addr", Type: dna.TypeAddress}},
						Output: dna.TypeObject,
					},
					{
						Name:   FnGetProducts,
						Inputs: []dna.NamedArg{},
						Output: "[]" + EntryProduct,
					},
				},
			}},
		}},
	}
}
