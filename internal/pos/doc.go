// Package pos is the point-of-sale zome: products, baskets, and the
// positions that record a quantity of a product in a basket.
//
// Products and baskets are content-addressed entries. add_product commits a
// position and links basket -> position ("positions") and position ->
// product ("product"); get_basket follows the positions links in the order
// they were added.
package pos
