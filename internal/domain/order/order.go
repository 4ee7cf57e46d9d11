package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/notify"
)

// Status is the payment state of an order.
type Status string

// Order statuses. An order starts as created and moves once to paid or
// failed.
const (
	StatusCreated Status = "created"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// ParseStatus accepts "" as "any status".
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case "", StatusCreated, StatusPaid, StatusFailed:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	return from == StatusCreated && (to == StatusPaid || to == StatusFailed)
}

var (
	// ErrNotFound is returned when an order does not exist for the caller.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when there is nothing to check out.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTransition is returned when the order already left created.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrInvalidDetails wraps every delivery details FieldError.
	ErrInvalidDetails = errors.New("invalid delivery details")
	// ErrMissingPayment is returned when a verification parameter is absent.
	ErrMissingPayment = errors.New("missing payment verification parameters")
)

// ProductNotFoundError indicates an ordered product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// QuantityError indicates a line quantity outside 1..stock.
type QuantityError struct {
	ProductID string
	Quantity  int
	Stock     int
}

func (e *QuantityError) Error() string {
	if e.Quantity <= 0 {
		return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
	}
	return fmt.Sprintf("only %d left in stock for product %s", e.Stock, e.ProductID)
}

// FieldError names the first invalid delivery field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Unwrap returns ErrInvalidDetails.
func (e *FieldError) Unwrap() error { return ErrInvalidDetails }

// Details is where and to whom an order ships.
type Details struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Pincode  string `json:"pincode"`
}

// Normalize trims every field.
func (d Details) Normalize() Details {
	return Details{
		FullName: strings.TrimSpace(d.FullName),
		Email:    strings.TrimSpace(d.Email),
		Phone:    strings.TrimSpace(d.Phone),
		Address:  strings.TrimSpace(d.Address),
		City:     strings.TrimSpace(d.City),
		Pincode:  strings.TrimSpace(d.Pincode),
	}
}

// Validate returns a *FieldError for the first missing or malformed field.
func (d Details) Validate() error {
	d = d.Normalize()
	for _, f := range []struct{ name, value string }{
		{"full_name", d.FullName},
		{"email", d.Email},
		{"phone", d.Phone},
		{"address", d.Address},
		{"city", d.City},
		{"pincode", d.Pincode},
	} {
		if f.value == "" {
			return &FieldError{Field: f.name, Message: "is required"}
		}
	}
	if !notify.ValidEmail(d.Email) {
		return &FieldError{Field: "email", Message: "is not a valid email address"}
	}
	if !delivery.ValidPincode(d.Pincode) {
		return &FieldError{Field: "pincode", Message: "must be 6 digits"}
	}
	return nil
}

// Item is an order line priced at order time.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
}

// Order is a priced checkout with its payment state.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	Details         Details
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	AmountMinor     int64
	Currency        string
	Status          Status
	CouponCode      string
	DiscountPercent decimal.Decimal
	ProviderOrderID string
	PaymentID       string
	Signature       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Encode writes the event payload of an order.
func (o *Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("user_id")
	e.Str(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("amount_minor")
	e.Int64(o.AmountMinor)
	e.FieldStart("currency")
	e.Str(o.Currency)
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Repository persists orders.
type Repository interface {
	// Create inserts o and, when o.CouponCode is set, redeems one use of the
	// coupon in the same transaction. A coupon that is used up or expired
	// at that moment fails with coupon.ErrExhausted or coupon.ErrExpired.
	Create(ctx context.Context, o *Order) error
	AttachProviderOrder(ctx context.Context, id, providerOrderID string) error
	GetByProviderOrderID(ctx context.Context, userID, providerOrderID string) (*Order, error)
	// MarkPaid and MarkFailed move a created order; any other state fails
	// with ErrInvalidTransition. MarkFailed releases a redeemed coupon use.
	MarkPaid(ctx context.Context, id, paymentID, signature string) error
	MarkFailed(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, status Status) ([]Order, error)
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
}
