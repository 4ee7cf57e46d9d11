package payment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	// printf 'order_1|pay_1' | openssl dgst -sha256 -hmac shh
	sig := Sign("shh", "order_1", "pay_1")
	assert.Equal(t, "11875d078d618316e1bd46ff51229da0ad86d74508c45016b5d47305d5720c53", sig)
	assert.Equal(t, sig, Sign("shh", "order_1", "pay_1"))
	assert.NotEqual(t, sig, Sign("shh", "order_1", "pay_2"))
	assert.NotEqual(t, sig, Sign("other", "order_1", "pay_1"))
}

func TestVerify(t *testing.T) {
	sig := Sign("shh", "order_1", "pay_1")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{name: "valid", orderID: "order_1", paymentID: "pay_1", signature: sig, want: true},
		{name: "other payment", orderID: "order_1", paymentID: "pay_2", signature: sig},
		{name: "swapped ids", orderID: "pay_1", paymentID: "order_1", signature: sig},
		{name: "flipped char", orderID: "order_1", paymentID: "pay_1", signature: flip(sig)},
		{name: "case-flipped char", orderID: "order_1", paymentID: "pay_1", signature: upper(sig)},
		{name: "uppercase", orderID: "order_1", paymentID: "pay_1", signature: strings.ToUpper(sig)},
		{name: "not hex", orderID: "order_1", paymentID: "pay_1", signature: "zz"},
		{name: "empty", orderID: "order_1", paymentID: "pay_1", signature: ""},
		{name: "truncated", orderID: "order_1", paymentID: "pay_1", signature: sig[:62]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify("shh", tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func flip(s string) string {
	b := []byte(s)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	return string(b)
}

// upper uppercases the first hex letter of s.
func upper(s string) string {
	i := strings.IndexAny(s, "abcdef")
	return s[:i] + strings.ToUpper(s[i:i+1]) + s[i+1:]
}

func TestUpstreamError(t *testing.T) {
	err := fmt.Errorf("create order: %w", &UpstreamError{Status: 400, Body: `{"error":"bad amount"}`})
	require.ErrorIs(t, err, ErrUpstream)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 400, ue.Status)
	assert.Contains(t, err.Error(), "bad amount")
}
