// Package wishlist keeps per-user saved products.
package wishlist

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrAlreadyExists is returned when the product is already saved.
var ErrAlreadyExists = errors.New("product already in wishlist")

// Repository stores wishlist entries as (user, product) pairs, newest first.
type Repository interface {
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	ProductIDs(ctx context.Context, userID string) ([]string, error)
}

// Service exposes the wishlist as canonical product records.
type Service struct {
	repo     Repository
	products product.Repository
}

// NewService creates a wishlist Service.
func NewService(repo Repository, products product.Repository) *Service {
	return &Service{repo: repo, products: products}
}

// Add saves a product for the user.
func (s *Service) Add(ctx context.Context, userID, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	if err := s.repo.Add(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return ErrAlreadyExists
		}
		return errors.Wrap(err, "add to wishlist")
	}
	return nil
}

// Remove deletes a saved product. Removing an absent entry is not an error.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return errors.Wrap(err, "remove from wishlist")
	}
	return nil
}

// List returns the saved products, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]product.Product, error) {
	ids, err := s.repo.ProductIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list wishlist")
	}
	return product.FetchOrdered(ctx, s.products, ids)
}

// Contains reports whether the user saved the product.
func (s *Service) Contains(ctx context.Context, userID, productID string) (bool, error) {
	ids, err := s.repo.ProductIDs(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "list wishlist")
	}
	for _, id := range ids {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}
