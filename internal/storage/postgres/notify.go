package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/notify"
)

const (
	createNotificationSQL = `INSERT INTO stock_notifications (id, product_id, user_id, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	countPendingNotificationsSQL = `SELECT count(*) FROM stock_notifications
		WHERE product_id = $1 AND NOT notified`
)

var _ notify.Repository = (*NotifyRepository)(nil)

// NotifyRepository implements notify.Repository backed by PostgreSQL.
type NotifyRepository struct {
	pool *pgxpool.Pool
}

// NewNotifyRepository returns a NotifyRepository that uses the given pool.
func NewNotifyRepository(pool *pgxpool.Pool) *NotifyRepository {
	return &NotifyRepository{pool: pool}
}

// Create stores a notification request.
func (r *NotifyRepository) Create(ctx context.Context, n *notify.Request) error {
	_, err := r.pool.Exec(ctx, createNotificationSQL, n.ID, n.ProductID, n.UserID, n.Email, n.Phone, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating stock notification: %w", err)
	}
	return nil
}

// CountPending counts requests not yet notified.
func (r *NotifyRepository) CountPending(ctx context.Context, productID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countPendingNotificationsSQL, productID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stock notifications: %w", err)
	}
	return n, nil
}
