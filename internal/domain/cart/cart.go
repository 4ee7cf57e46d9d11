// Package cart models a shopper's cart as an explicitly owned container.
// A Cart is loaded for one owner, mutated through its methods, and saved
// back through a Store; nothing is shared between owners.
package cart

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrInvalidQuantity is returned for a non-positive add quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrOutOfStock is returned when adding a product with no stock.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrInvalidSize is returned for a size the product is not offered in.
	ErrInvalidSize = errors.New("size is not available for product")
	// ErrLineNotFound is returned when a line to update does not exist.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrNoOwner is returned when neither a user nor a guest id is known.
	ErrNoOwner = errors.New("cart owner is required")
)

// Item is the persisted form of a cart line.
type Item struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Line is a cart entry joined with its current product record.
type Line struct {
	Product  product.Product
	Size     string
	Quantity int
}

// Total is the line price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the lines of one owner. The units of a product summed over
// all of its sizes always stay within 1..stock.
type Cart struct {
	Owner string
	lines []Line
}

// New creates an empty cart for owner.
func New(owner string) *Cart {
	return &Cart{Owner: owner}
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	return slices.Clone(c.lines)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Count returns the total number of units.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal sums every line total.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// PricingLines converts the cart to pricing input.
func (c *Cart) PricingLines() []pricing.Line {
	out := make([]pricing.Line, len(c.lines))
	for i, l := range c.lines {
		out[i] = pricing.Line{Price: l.Product.Price, Quantity: l.Quantity}
	}
	return out
}

// Items returns the persisted form of the cart.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.lines))
	for i, l := range c.lines {
		out[i] = Item{ProductID: l.Product.ID, Size: l.Size, Quantity: l.Quantity}
	}
	return out
}

func (c *Cart) index(productID, size string) int {
	return slices.IndexFunc(c.lines, func(l Line) bool {
		return l.Product.ID == productID && l.Size == size
	})
}

// units sums the quantity of productID over every line except skip.
func (c *Cart) units(productID string, skip int) int {
	n := 0
	for i, l := range c.lines {
		if i != skip && l.Product.ID == productID {
			n += l.Quantity
		}
	}
	return n
}

// Add puts qty units of p into the cart, merging with an existing line of
// the same size. Stock is shared by all sizes of p, so the line is clamped
// to whatever the other sizes leave over; clamped reports whether that
// happened. An empty size is accepted for any product.
func (c *Cart) Add(p product.Product, qty int, size string) (clamped bool, err error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	if !p.InStock() {
		return false, ErrOutOfStock
	}
	if size != "" && len(p.Sizes) > 0 && !slices.Contains(p.Sizes, size) {
		return false, ErrInvalidSize
	}

	i := c.index(p.ID, size)
	avail := p.Stock - c.units(p.ID, i)
	if i >= 0 {
		want := c.lines[i].Quantity + qty
		c.lines[i].Product = p
		c.lines[i].Quantity = min(want, avail)
		return want > avail, nil
	}
	if avail <= 0 {
		return false, ErrOutOfStock
	}

	c.lines = append(c.lines, Line{Product: p, Size: size, Quantity: min(qty, avail)})
	return qty > avail, nil
}

// SetQuantity replaces a line quantity. A quantity of zero or less removes
// the line; a quantity above the stock left by other sizes is clamped.
func (c *Cart) SetQuantity(productID, size string, qty int) (clamped bool, err error) {
	i := c.index(productID, size)
	if i < 0 {
		return false, ErrLineNotFound
	}
	if qty <= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
		return false, nil
	}
	avail := c.lines[i].Product.Stock - c.units(productID, i)
	c.lines[i].Quantity = min(qty, avail)
	return qty > avail, nil
}

// Remove deletes a line. Removing a missing line is a no-op.
func (c *Cart) Remove(productID, size string) {
	if i := c.index(productID, size); i >= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
	}
}

// Clear drops every line.
func (c *Cart) Clear() {
	c.lines = nil
}

// Restore rebuilds a cart from persisted items and the current product
// records. Items whose product is gone, sold out or no longer offered in
// the stored size are dropped, the rest are clamped to current stock.
// changed reports whether anything moved.
func Restore(owner string, items []Item, products []product.Product) (c *Cart, changed bool) {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c = New(owner)
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.InStock() || it.Quantity <= 0 {
			changed = true
			continue
		}
		clamped, err := c.Add(p, it.Quantity, it.Size)
		changed = changed || clamped || err != nil
	}
	return c, changed
}

// Store persists carts by owner.
type Store interface {
	Load(ctx context.Context, owner string) ([]Item, error)
	Save(ctx context.Context, owner string, items []Item) error
	Delete(ctx context.Context, owner string) error
}
