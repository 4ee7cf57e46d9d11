package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_percent, valid_until, max_uses, current_uses, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons ORDER BY created_at DESC`

	activeCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons
		WHERE valid_until >= $1 AND current_uses < max_uses
		ORDER BY discount_percent DESC, valid_until
		LIMIT $2`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			discount_percent = EXCLUDED.discount_percent,
			valid_until = EXCLUDED.valid_until,
			max_uses = GREATEST(EXCLUDED.max_uses, coupons.current_uses)`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	redeemCouponSQL = `UPDATE coupons SET current_uses = current_uses + 1
		WHERE UPPER(code) = UPPER($1) AND current_uses < max_uses AND valid_until >= $2`

	releaseCouponSQL = `UPDATE coupons SET current_uses = current_uses - 1
		WHERE UPPER(code) = UPPER($1) AND current_uses > 0`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return findCoupon(ctx, r.pool, code)
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Active returns redeemable coupons with the largest discount first.
func (r *CouponRepository) Active(ctx context.Context, now time.Time, limit int) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, activeCouponsSQL, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a coupon. A code that already exists in any letter case
// fails with coupon.ErrDuplicateCode.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		c.ID, c.Code, c.DiscountPercent, c.ValidUntil, c.MaxUses, c.CurrentUses, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts a coupon or refreshes the terms of an existing code,
// keeping its usage count.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, c.DiscountPercent, c.ValidUntil, c.MaxUses, c.CurrentUses, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func findCoupon(ctx context.Context, q querier, code string) (*coupon.Coupon, error) {
	rows, err := q.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// redeemCoupon takes one use of code inside tx. When no row qualifies the
// coupon is re-read to report why.
func redeemCoupon(ctx context.Context, tx pgx.Tx, code string, now time.Time) error {
	tag, err := tx.Exec(ctx, redeemCouponSQL, code, now)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	c, err := findCoupon(ctx, tx, code)
	if err != nil {
		return err
	}
	if err := c.Check(now); err != nil {
		return err
	}
	return coupon.ErrExhausted
}

func releaseCoupon(ctx context.Context, tx pgx.Tx, code string) error {
	if _, err := tx.Exec(ctx, releaseCouponSQL, code); err != nil {
		return fmt.Errorf("releasing coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountPercent, &c.ValidUntil, &c.MaxUses, &c.CurrentUses, &c.CreatedAt,
	)
	return c, err
}
