package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT items FROM carts WHERE owner = $1`

	saveCartSQL = `INSERT INTO carts (owner, items, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (owner) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`

	deleteCartSQL = `DELETE FROM carts WHERE owner = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps one JSONB row per cart owner.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Load returns the owner's items, or nil when there is no cart.
func (s *CartStore) Load(ctx context.Context, owner string) ([]cart.Item, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, loadCartSQL, owner).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cart of %q: %w", owner, err)
	}
	var items []cart.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart of %q: %w", owner, err)
	}
	return items, nil
}

// Save replaces the owner's items.
func (s *CartStore) Save(ctx context.Context, owner string, items []cart.Item) error {
	if items == nil {
		items = []cart.Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling cart: %w", err)
	}
	if _, err := s.pool.Exec(ctx, saveCartSQL, owner, raw); err != nil {
		return fmt.Errorf("saving cart of %q: %w", owner, err)
	}
	return nil
}

// Delete drops the owner's cart.
func (s *CartStore) Delete(ctx context.Context, owner string) error {
	if _, err := s.pool.Exec(ctx, deleteCartSQL, owner); err != nil {
		return fmt.Errorf("deleting cart of %q: %w", owner, err)
	}
	return nil
}
