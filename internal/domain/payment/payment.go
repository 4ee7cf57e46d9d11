// Package payment signs and verifies payment gateway callbacks and defines
// the gateway client contract.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrUpstream is returned when the gateway rejects or fails a request.
	ErrUpstream = errors.New("payment gateway error")
	// ErrSignatureMismatch is returned when a callback signature is wrong.
	ErrSignatureMismatch = errors.New("payment verification failed")
)

// UpstreamError carries the gateway's response for a failed call.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.Status, e.Body)
}

// Is matches ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is exactly the hex text of
// Sign(secret, orderID, paymentID). The comparison is constant time and
// case sensitive.
func Verify(secret, orderID, paymentID, signature string) bool {
	want := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(signature), []byte(want))
}

// OrderRequest asks the gateway to open a payment order.
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// ProviderOrder is the gateway's view of a payment order.
type ProviderOrder struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// Gateway creates payment orders with the provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*ProviderOrder, error)
	// KeyID is the public key the client widget is opened with.
	KeyID() string
}
