package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no coupon matches the entered code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon is past its valid_until timestamp.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when a coupon has no remaining uses.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrInvalid is returned when a new coupon violates an invariant.
	ErrInvalid = errors.New("invalid coupon")
	// ErrDuplicateCode is returned when the code is already taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

var hundred = decimal.NewFromInt(100)

// ActiveLimit is the number of offers shown on the storefront.
const ActiveLimit = 3

// Coupon is a percentage discount with a validity window and usage cap.
type Coupon struct {
	ID              string
	Code            string
	DiscountPercent decimal.Decimal
	ValidUntil      time.Time
	MaxUses         int
	CurrentUses     int
	CreatedAt       time.Time
}

// Check reports whether c can be redeemed at now. Expiry is checked before
// usage so an expired coupon is always reported as expired.
func (c *Coupon) Check(now time.Time) error {
	if now.After(c.ValidUntil) {
		return ErrExpired
	}
	if c.CurrentUses >= c.MaxUses {
		return ErrExhausted
	}
	return nil
}

// Remaining returns the number of unused redemptions.
func (c *Coupon) Remaining() int {
	return max(c.MaxUses-c.CurrentUses, 0)
}

// NormalizeCode canonicalizes a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Draft holds the admin input for a new coupon.
type Draft struct {
	Code            string
	DiscountPercent decimal.Decimal
	ValidUntil      time.Time
	MaxUses         int
}

// Validate checks the draft against the coupon invariants.
func (d Draft) Validate(now time.Time) error {
	switch {
	case NormalizeCode(d.Code) == "":
		return errors.Wrap(ErrInvalid, "code is required")
	case !d.DiscountPercent.IsPositive() || d.DiscountPercent.GreaterThan(hundred):
		return errors.Wrap(ErrInvalid, "discount percent must be in (0, 100]")
	case d.MaxUses < 1:
		return errors.Wrap(ErrInvalid, "max uses must be at least 1")
	case !d.ValidUntil.After(now):
		return errors.Wrap(ErrInvalid, "valid until must be in the future")
	}
	return nil
}

// Repository provides lookup and mutation of coupons. Redemption is not part
// of it: orders reserve a use inside their own transaction.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Active(ctx context.Context, now time.Time, limit int) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
}
