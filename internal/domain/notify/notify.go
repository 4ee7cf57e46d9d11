// Package notify records back-in-stock notification requests.
package notify

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrInvalid is returned when the contact details are unusable.
	ErrInvalid = errors.New("invalid notification request")
	// ErrInStock is returned when the product can already be bought.
	ErrInStock = errors.New("product is in stock")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// Request asks to be told when a product is back in stock.
type Request struct {
	ID        string
	ProductID string
	UserID    string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Validate requires an email or a phone; an email, when given, must be
// well formed.
func (r Request) Validate() error {
	email := strings.TrimSpace(r.Email)
	phone := strings.TrimSpace(r.Phone)
	if email == "" && phone == "" {
		return errors.Wrap(ErrInvalid, "email or phone is required")
	}
	if email != "" && !ValidEmail(email) {
		return errors.Wrap(ErrInvalid, "invalid email address")
	}
	return nil
}

// Repository stores notification requests.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	CountPending(ctx context.Context, productID string) (int, error)
}

// Service accepts notification requests for out-of-stock products.
type Service struct {
	repo     Repository
	products product.Repository
	now      func() time.Time
}

// NewService creates a notify Service.
func NewService(repo Repository, products product.Repository) *Service {
	return &Service{repo: repo, products: products, now: time.Now}
}

// Subscribe validates and stores a request.
func (s *Service) Subscribe(ctx context.Context, r Request) (*Request, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, r.ProductID)
	if err != nil {
		return nil, err
	}
	if p.InStock() {
		return nil, ErrInStock
	}

	r.ID = uuid.New().String()
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.CreatedAt = s.now()
	if err := s.repo.Create(ctx, &r); err != nil {
		return nil, errors.Wrap(err, "create notification request")
	}
	return &r, nil
}

// Pending returns the number of requests waiting for a product.
func (s *Service) Pending(ctx context.Context, productID string) (int, error) {
	n, err := s.repo.CountPending(ctx, productID)
	if err != nil {
		return 0, errors.Wrap(err, "count notification requests")
	}
	return n, nil
}
