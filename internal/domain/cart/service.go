package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// Service loads, mutates and saves carts.
type Service struct {
	store    Store
	products product.Repository
}

// NewService creates a cart Service.
func NewService(store Store, products product.Repository) *Service {
	return &Service{store: store, products: products}
}

// Get loads the owner's cart joined with current product data.
func (s *Service) Get(ctx context.Context, owner string) (*Cart, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	items, err := s.store.Load(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(items) == 0 {
		return New(owner), nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get cart products")
	}

	c, changed := Restore(owner, items, products)
	if changed {
		zctx.From(ctx).Debug("Cart adjusted to current stock", zap.String("owner", owner))
		if err := s.store.Save(ctx, owner, c.Items()); err != nil {
			return nil, errors.Wrap(err, "save cart")
		}
	}
	return c, nil
}

// AddResult reports the cart after an add and whether the quantity was
// clamped to stock.
type AddResult struct {
	Cart    *Cart
	Clamped bool
}

// Add adds qty units of a product to the owner's cart.
func (s *Service) Add(ctx context.Context, owner, productID string, qty int, size string) (*AddResult, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	clamped, err := c.Add(*p, qty, size)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, owner, c.Items()); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return &AddResult{Cart: c, Clamped: clamped}, nil
}

// SetQuantity changes a line quantity; zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, owner, productID, size string, qty int) (*AddResult, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	clamped, err := c.SetQuantity(productID, size, qty)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, owner, c.Items()); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return &AddResult{Cart: c, Clamped: clamped}, nil
}

// Remove deletes a line from the owner's cart.
func (s *Service) Remove(ctx context.Context, owner, productID, size string) (*Cart, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	c.Remove(productID, size)
	if err := s.store.Save(ctx, owner, c.Items()); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the owner's cart.
func (s *Service) Clear(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrNoOwner
	}
	if err := s.store.Delete(ctx, owner); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
