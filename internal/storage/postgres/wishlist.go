package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/wishlist"
)

const (
	addWishlistSQL    = `INSERT INTO wishlist (user_id, product_id) VALUES ($1, $2)`
	removeWishlistSQL = `DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2`
	listWishlistSQL   = `SELECT product_id FROM wishlist WHERE user_id = $1 ORDER BY created_at DESC`
)

var _ wishlist.Repository = (*WishlistRepository)(nil)

// WishlistRepository implements wishlist.Repository backed by PostgreSQL.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// NewWishlistRepository returns a WishlistRepository that uses the given pool.
func NewWishlistRepository(pool *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{pool: pool}
}

// Add saves a product for the user.
func (r *WishlistRepository) Add(ctx context.Context, userID, productID string) error {
	if _, err := r.pool.Exec(ctx, addWishlistSQL, userID, productID); err != nil {
		if isUniqueViolation(err) {
			return wishlist.ErrAlreadyExists
		}
		return fmt.Errorf("adding %q to wishlist: %w", productID, err)
	}
	return nil
}

// Remove deletes a saved product.
func (r *WishlistRepository) Remove(ctx context.Context, userID, productID string) error {
	if _, err := r.pool.Exec(ctx, removeWishlistSQL, userID, productID); err != nil {
		return fmt.Errorf("removing %q from wishlist: %w", productID, err)
	}
	return nil
}

// ProductIDs lists saved product ids, newest first.
func (r *WishlistRepository) ProductIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, listWishlistSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
