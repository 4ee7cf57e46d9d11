package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, details, subtotal, discount, tax, total, amount_minor,
		currency, status, coupon_code, discount_percent, provider_order_id, payment_id,
		payment_signature, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	attachProviderOrderSQL = `UPDATE orders SET provider_order_id = $2, updated_at = now()
		WHERE id = $1`

	getOrderByProviderIDSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND provider_order_id = $2`

	markOrderPaidSQL = `UPDATE orders SET status = 'paid', payment_id = $2, payment_signature = $3,
		updated_at = now()
		WHERE id = $1 AND status = 'created'`

	markOrderFailedSQL = `UPDATE orders SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'created'
		RETURNING coupon_code`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`

	hasPurchasedSQL = `SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE user_id = $1 AND status = 'paid' AND items @> jsonb_build_array(jsonb_build_object('product_id', $2::text))
	)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and, when it carries a coupon, redeems one
// use in the same transaction. Items and details are serialized to JSON for
// the JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	detailsJSON, err := json.Marshal(o.Details)
	if err != nil {
		return fmt.Errorf("marshaling order details: %w", err)
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if o.CouponCode != "" {
			if err := redeemCoupon(ctx, tx, o.CouponCode, o.CreatedAt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.UserID, itemsJSON, detailsJSON, o.Subtotal, o.Discount, o.Tax, o.Total,
			o.AmountMinor, o.Currency, string(o.Status), o.CouponCode, o.DiscountPercent,
			o.ProviderOrderID, o.PaymentID, o.Signature, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return nil
	})
}

// AttachProviderOrder stores the gateway order id.
func (r *OrderRepository) AttachProviderOrder(ctx context.Context, id, providerOrderID string) error {
	tag, err := r.pool.Exec(ctx, attachProviderOrderSQL, id, providerOrderID)
	if err != nil {
		return fmt.Errorf("attaching provider order to %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// GetByProviderOrderID returns the user's order for a gateway order id.
func (r *OrderRepository) GetByProviderOrderID(ctx context.Context, userID, providerOrderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByProviderIDSQL, userID, providerOrderID)
	if err != nil {
		return nil, fmt.Errorf("getting order for %q: %w", providerOrderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order for %q: %w", providerOrderID, err)
	}
	return &o, nil
}

// MarkPaid moves a created order to paid.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, paymentID, signature string) error {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id, paymentID, signature)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, r.pool, id)
	}
	return nil
}

// MarkFailed moves a created order to failed and releases its coupon use.
func (r *OrderRepository) MarkFailed(ctx context.Context, id string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var code string
		err := tx.QueryRow(ctx, markOrderFailedSQL, id).Scan(&code)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.transitionError(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("marking order %q failed: %w", id, err)
		}
		if code == "" {
			return nil
		}
		return releaseCoupon(ctx, tx, code)
	})
}

func (r *OrderRepository) transitionError(ctx context.Context, q querier, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrInvalidTransition
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns all orders, newest first. An empty status matches any.
func (r *OrderRepository) List(ctx context.Context, status order.Status) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// HasPurchased reports whether the user has a paid order with the product.
func (r *OrderRepository) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, hasPurchasedSQL, userID, productID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking purchase of %q: %w", productID, err)
	}
	return ok, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		detailsJSON []byte
		status      string
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &detailsJSON, &o.Subtotal, &o.Discount, &o.Tax, &o.Total,
		&o.AmountMinor, &o.Currency, &status, &o.CouponCode, &o.DiscountPercent,
		&o.ProviderOrderID, &o.PaymentID, &o.Signature, &createdAt, &updatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(detailsJSON, &o.Details); err != nil {
		return o, fmt.Errorf("unmarshaling order details: %w", err)
	}
	o.Status = order.Status(status)
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt
	return o, nil
}
