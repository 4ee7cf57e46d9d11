package razorpay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/payment"
)

func TestClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)

		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		var (
			amount  int64
			receipt string
			notes   = map[string]string{}
		)
		assert.NoError(t, jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "amount":
				amount, err = d.Int64()
			case "receipt":
				receipt, err = d.Str()
			case "notes":
				err = d.Obj(func(d *jx.Decoder, key string) error {
					v, err := d.Str()
					notes[key] = v
					return err
				})
			default:
				err = d.Skip()
			}
			return err
		}))
		assert.Equal(t, int64(106200), amount)
		assert.Equal(t, "ord-1", receipt)
		assert.Equal(t, map[string]string{"user_id": "u1"}, notes)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"order_XYZ","entity":"order","amount":106200,"currency":"INR","status":"created"}`)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/", KeyID: "rzp_key", KeySecret: "rzp_secret"})
	require.NoError(t, err)
	assert.Equal(t, "rzp_key", c.KeyID())

	got, err := c.CreateOrder(context.Background(), payment.OrderRequest{
		AmountMinor: 106200,
		Currency:    "INR",
		Receipt:     "ord-1",
		Notes:       map[string]string{"user_id": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, &payment.ProviderOrder{ID: "order_XYZ", Amount: 106200, Currency: "INR", Status: "created"}, got)
}

func TestClient_CreateOrderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`+"\n")
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, KeyID: "k", KeySecret: "s"})
	require.NoError(t, err)

	_, err = c.CreateOrder(context.Background(), payment.OrderRequest{AmountMinor: 1, Currency: "INR", Receipt: "r"})
	require.ErrorIs(t, err, payment.ErrUpstream)

	var upstream *payment.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusBadRequest, upstream.Status)
	assert.Contains(t, upstream.Body, "amount too small")
}

func TestNew_RequiresKeys(t *testing.T) {
	_, err := New(Options{KeyID: "k"})
	require.Error(t, err)
}

func TestDecodeOrder_MissingID(t *testing.T) {
	_, err := decodeOrder([]byte(`{"amount":100}`))
	require.Error(t, err)
}
