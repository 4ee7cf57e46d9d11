// Package review stores product reviews and summarizes ratings.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrInvalid is returned for a review that fails validation.
	ErrInvalid = errors.New("invalid review")
	// ErrNotFound is returned when a review does not exist.
	ErrNotFound = errors.New("review not found")
)

// Review is one user's rating and comment on a product.
type Review struct {
	ID               string
	ProductID        string
	UserID           string
	Author           string
	Rating           int
	Title            string
	Comment          string
	VerifiedPurchase bool
	HelpfulCount     int
	CreatedAt        time.Time
}

// Draft is the user input for a new review.
type Draft struct {
	Rating  int
	Title   string
	Comment string
	Author  string
}

// Validate checks rating bounds and the required comment.
func (d Draft) Validate() error {
	if d.Rating < 1 || d.Rating > 5 {
		return errors.Wrap(ErrInvalid, "rating must be between 1 and 5")
	}
	if strings.TrimSpace(d.Comment) == "" {
		return errors.Wrap(ErrInvalid, "comment is required")
	}
	return nil
}

// Summary aggregates the ratings of a product. Distribution[i] counts the
// reviews with rating i+1.
type Summary struct {
	Count        int
	Average      decimal.Decimal
	Distribution [5]int
}

// Summarize computes a Summary. The average is rounded to one decimal.
func Summarize(reviews []Review) Summary {
	var s Summary
	total := 0
	for _, r := range reviews {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		s.Distribution[r.Rating-1]++
		s.Count++
		total += r.Rating
	}
	if s.Count > 0 {
		s.Average = decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(s.Count))).Round(1)
	}
	return s
}

// Repository persists reviews.
type Repository interface {
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
	Create(ctx context.Context, r *Review) error
	IncrementHelpful(ctx context.Context, id string) (int, error)
}

// PurchaseChecker reports whether a user has a paid order containing a
// product.
type PurchaseChecker interface {
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
}

// Service manages reviews.
type Service struct {
	repo      Repository
	products  product.Repository
	purchases PurchaseChecker
	now       func() time.Time
}

// NewService creates a review Service.
func NewService(repo Repository, products product.Repository, purchases PurchaseChecker) *Service {
	return &Service{repo: repo, products: products, purchases: purchases, now: time.Now}
}

// List returns the reviews of a product, newest first, with their summary.
func (s *Service) List(ctx context.Context, productID string) ([]Review, Summary, error) {
	reviews, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, Summary{}, errors.Wrap(err, "list reviews")
	}
	return reviews, Summarize(reviews), nil
}

// Create stores a review. It is marked as a verified purchase when the user
// has paid for the product.
func (s *Service) Create(ctx context.Context, userID, productID string, d Draft) (*Review, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	verified, err := s.purchases.HasPurchased(ctx, userID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "check purchase")
	}

	r := &Review{
		ID:               uuid.New().String(),
		ProductID:        productID,
		UserID:           userID,
		Author:           strings.TrimSpace(d.Author),
		Rating:           d.Rating,
		Title:            strings.TrimSpace(d.Title),
		Comment:          strings.TrimSpace(d.Comment),
		VerifiedPurchase: verified,
		CreatedAt:        s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create review")
	}
	return r, nil
}

// MarkHelpful increments the helpful counter and returns the new value.
func (s *Service) MarkHelpful(ctx context.Context, id string) (int, error) {
	n, err := s.repo.IncrementHelpful(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "mark helpful")
	}
	return n, nil
}
