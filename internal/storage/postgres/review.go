package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/review"
)

const (
	reviewColumns = `id, product_id, user_id, author, rating, title, comment,
		verified_purchase, helpful_count, created_at`

	listReviewsSQL = `SELECT ` + reviewColumns + `
		FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`

	createReviewSQL = `INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	incrementHelpfulSQL = `UPDATE reviews SET helpful_count = helpful_count + 1
		WHERE id = $1 RETURNING helpful_count`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// ListByProduct returns the product's reviews, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]review.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanReview)
}

// Create inserts a review.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	_, err := r.pool.Exec(ctx, createReviewSQL,
		rv.ID, rv.ProductID, rv.UserID, rv.Author, rv.Rating, rv.Title, rv.Comment,
		rv.VerifiedPurchase, rv.HelpfulCount, rv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating review: %w", err)
	}
	return nil
}

// IncrementHelpful adds one helpful vote and returns the new count.
func (r *ReviewRepository) IncrementHelpful(ctx context.Context, id string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, incrementHelpfulSQL, id).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, review.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("marking review %q helpful: %w", id, err)
	}
	return n, nil
}

func scanReview(row pgx.CollectableRow) (review.Review, error) {
	var rv review.Review
	err := row.Scan(
		&rv.ID, &rv.ProductID, &rv.UserID, &rv.Author, &rv.Rating, &rv.Title, &rv.Comment,
		&rv.VerifiedPurchase, &rv.HelpfulCount, &rv.CreatedAt,
	)
	return rv, err
}
