// Package razorpay is a minimal client for the Razorpay orders API.
package razorpay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/payment"
)

const DefaultBaseURL = "https://api.razorpay.com"

// Options configures a Client.
type Options struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client creates payment orders with Razorpay.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// New creates a Client. Both keys are required.
func New(opts Options) (*Client, error) {
	if opts.KeyID == "" || opts.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	var transportOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		},
	}, nil
}

// KeyID returns the public key for the checkout widget.
func (c *Client) KeyID() string {
	return c.keyID
}

func encodeOrder(req payment.OrderRequest) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.AmountMinor) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Receipt) })
		if len(req.Notes) > 0 {
			e.Field("notes", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for k, v := range req.Notes {
						e.Field(k, func(e *jx.Encoder) { e.Str(v) })
					}
				})
			})
		}
	})
	return e.Bytes()
}

func decodeOrder(data []byte) (*payment.ProviderOrder, error) {
	var o payment.ProviderOrder
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "amount":
			o.Amount, err = d.Int64()
		case "currency":
			o.Currency, err = d.Str()
		case "status":
			o.Status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if o.ID == "" {
		return nil, errors.New("order id missing in response")
	}
	return &o, nil
}

// CreateOrder calls POST /v1/orders. Non-2xx responses are returned as
// *payment.UpstreamError.
func (c *Client) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.ProviderOrder, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(encodeOrder(req)))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &payment.UpstreamError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return decodeOrder(body)
}
