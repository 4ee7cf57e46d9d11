package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/recent"
)

const (
	recordViewSQL = `INSERT INTO recently_viewed (user_id, product_id, viewed_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET viewed_at = EXCLUDED.viewed_at`

	trimViewsSQL = `DELETE FROM recently_viewed
		WHERE user_id = $1 AND product_id NOT IN (
			SELECT product_id FROM recently_viewed WHERE user_id = $1
			ORDER BY viewed_at DESC LIMIT $2
		)`

	listViewsSQL = `SELECT product_id FROM recently_viewed WHERE user_id = $1
		ORDER BY viewed_at DESC LIMIT $2`
)

var _ recent.Repository = (*RecentRepository)(nil)

// RecentRepository implements recent.Repository backed by PostgreSQL.
type RecentRepository struct {
	pool *pgxpool.Pool
}

// NewRecentRepository returns a RecentRepository that uses the given pool.
func NewRecentRepository(pool *pgxpool.Pool) *RecentRepository {
	return &RecentRepository{pool: pool}
}

// Record moves the product to the front of the user's history and keeps at
// most keep entries.
func (r *RecentRepository) Record(ctx context.Context, userID, productID string, at time.Time, keep int) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, recordViewSQL, userID, productID, at); err != nil {
			return fmt.Errorf("recording view of %q: %w", productID, err)
		}
		if _, err := tx.Exec(ctx, trimViewsSQL, userID, keep); err != nil {
			return fmt.Errorf("trimming views: %w", err)
		}
		return nil
	})
}

// ProductIDs lists viewed product ids, most recent first.
func (r *RecentRepository) ProductIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, listViewsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
