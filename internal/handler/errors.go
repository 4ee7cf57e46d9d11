package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/chat"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/notify"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

// statusOf maps a domain error to its HTTP status. Unknown errors are 500.
func statusOf(err error) int {
	var (
		fieldErr    *order.FieldError
		quantityErr *order.QuantityError
		missingErr  *order.ProductNotFoundError
	)
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, cart.ErrNoOwner),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrMissingPayment),
		errors.Is(err, payment.ErrSignatureMismatch),
		errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, wishlist.ErrAlreadyExists),
		errors.Is(err, coupon.ErrDuplicateCode),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, notify.ErrInStock):
		return http.StatusConflict
	case errors.As(err, &fieldErr),
		errors.As(err, &quantityErr),
		errors.As(err, &missingErr),
		errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, cart.ErrInvalidSize),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrInvalid),
		errors.Is(err, product.ErrInvalid),
		errors.Is(err, review.ErrInvalid),
		errors.Is(err, notify.ErrInvalid),
		errors.Is(err, delivery.ErrInvalidPincode),
		errors.Is(err, admin.ErrInvalidImage),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, pricing.ErrInvalidLine):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageOf returns the client-facing text for err.
func messageOf(err error, status int) string {
	var (
		fieldErr    *order.FieldError
		quantityErr *order.QuantityError
		missingErr  *order.ProductNotFoundError
	)
	switch {
	case status == http.StatusInternalServerError:
		return "internal server error"
	case status == http.StatusBadGateway:
		return "payment gateway unavailable"
	case errors.As(err, &fieldErr):
		return fieldErr.Error()
	case errors.As(err, &quantityErr):
		return quantityErr.Error()
	case errors.As(err, &missingErr):
		return missingErr.Error()
	case errors.Is(err, coupon.ErrNotFound):
		return "invalid coupon code"
	}
	return err.Error()
}

// writeError answers {"code": status, "message": ...} and logs server-side
// failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := logError(r, err)
	writeStatus(w, status, messageOf(err, status))
}

// writeFailure is writeError for the payment callback, which also carries
// {"success": false, "error": ...}.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := logError(r, err)
	msg := messageOf(err, status)
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.FieldStart("success")
		e.Bool(false)
		e.FieldStart("error")
		e.Str(msg)
		e.ObjEnd()
	})
}

func logError(r *http.Request, err error) int {
	status := statusOf(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err), zap.Int("status", status))
	} else {
		lg.Debug("Request rejected", zap.Error(err), zap.Int("status", status))
	}
	return status
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}
