package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Validator checks whether a code can currently be applied.
type Validator interface {
	Validate(ctx context.Context, code string) (*Coupon, error)
}

var _ Validator = (*Service)(nil)

// Service implements coupon lookup, validation and admin management on top
// of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Validate looks up the coupon for code and checks its validity window and
// usage cap. It does not reserve a use.
func (s *Service) Validate(ctx context.Context, code string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}

	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := c.Check(s.now()); err != nil {
		return nil, err
	}
	return c, nil
}

// Active returns the redeemable coupons with the highest discount first.
func (s *Service) Active(ctx context.Context, limit int) ([]Coupon, error) {
	if limit <= 0 {
		limit = ActiveLimit
	}
	coupons, err := s.repo.Active(ctx, s.now(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}
	return coupons, nil
}

// List returns every coupon for the admin view.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, d Draft) (*Coupon, error) {
	now := s.now()
	if err := d.Validate(now); err != nil {
		return nil, err
	}
	c := &Coupon{
		ID:              uuid.New().String(),
		Code:            NormalizeCode(d.Code),
		DiscountPercent: d.DiscountPercent,
		ValidUntil:      d.ValidUntil,
		MaxUses:         d.MaxUses,
		CreatedAt:       now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Delete removes a coupon. Orders keep their snapshot of the code.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}
