// Package recent tracks the products a user looked at most recently.
package recent

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// Limit is the number of distinct products kept per user.
const Limit = 8

// Repository records views. Record must keep at most keep distinct products
// per user, dropping the oldest views first.
type Repository interface {
	Record(ctx context.Context, userID, productID string, at time.Time, keep int) error
	ProductIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

// Service records and lists recently viewed products.
type Service struct {
	repo     Repository
	products product.Repository
	now      func() time.Time
}

// NewService creates a recently viewed Service.
func NewService(repo Repository, products product.Repository) *Service {
	return &Service{repo: repo, products: products, now: time.Now}
}

// Record notes that the user viewed a product. Viewing the same product again
// moves it to the front instead of duplicating it.
func (s *Service) Record(ctx context.Context, userID, productID string) error {
	if err := s.repo.Record(ctx, userID, productID, s.now(), Limit); err != nil {
		return errors.Wrap(err, "record view")
	}
	return nil
}

// List returns up to Limit products, most recent first.
func (s *Service) List(ctx context.Context, userID string) ([]product.Product, error) {
	ids, err := s.repo.ProductIDs(ctx, userID, Limit)
	if err != nil {
		return nil, errors.Wrap(err, "list recently viewed")
	}
	return product.FetchOrdered(ctx, s.products, ids)
}

// Push applies a view to an in-memory most-recent-first list: id moves to
// the front and the list is trimmed to limit.
func Push(ids []string, id string, limit int) []string {
	out := make([]string, 0, min(len(ids)+1, limit))
	out = append(out, id)
	for _, v := range ids {
		if len(out) == limit {
			break
		}
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
