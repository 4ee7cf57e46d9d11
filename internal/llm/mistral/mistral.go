// Package mistral streams chat completions from the Mistral API.
package mistral

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/chat"
	"github.com/xenking/storefront/pkg/sse"
)

const (
	DefaultURL   = "https://api.mistral.ai/v1/chat/completions"
	DefaultModel = "mistral-large-latest"
)

// Options configures a Client. Zero fields take the defaults.
type Options struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (o *Options) setDefaults() {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Temperature == 0 {
		o.Temperature = 0.8
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 600
	}
	if o.Timeout == 0 {
		o.Timeout = 2 * time.Minute
	}
}

// Client implements chat.Model over the OpenAI-compatible streaming API.
type Client struct {
	opts Options
	http *http.Client
}

var _ chat.Model = (*Client)(nil)

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("mistral api key is required")
	}
	opts.setDefaults()

	var transportOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	return &Client{
		opts: opts,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		},
	}, nil
}

func (c *Client) encodeRequest(p chat.Prompt) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("model", func(e *jx.Encoder) { e.Str(c.opts.Model) })
		e.Field("messages", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				message(e, "system", p.System)
				message(e, "user", p.Message)
			})
		})
		e.Field("temperature", func(e *jx.Encoder) { e.Float64(c.opts.Temperature) })
		e.Field("max_tokens", func(e *jx.Encoder) { e.Int(c.opts.MaxTokens) })
		e.Field("stream", func(e *jx.Encoder) { e.Bool(true) })
	})
	return e.Bytes()
}

func message(e *jx.Encoder, role, content string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("role", func(e *jx.Encoder) { e.Str(role) })
		e.Field("content", func(e *jx.Encoder) { e.Str(content) })
	})
}

// Stream sends p and yields content deltas as they arrive. A 429 response
// is reported as chat.ErrRateLimited.
func (c *Client) Stream(ctx context.Context, p chat.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(c.encodeRequest(p)))
		if err != nil {
			yield("", errors.Wrap(err, "create request"))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", sse.ContentType)
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			yield("", errors.Wrap(err, "send request"))
			return
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			yield("", chat.ErrRateLimited)
			return
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			yield("", errors.Errorf("mistral returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
			return
		}

		r := sse.NewReader(resp.Body)
		for {
			data, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", errors.Wrap(err, "read stream"))
				return
			}
			if string(data) == "[DONE]" {
				return
			}
			content, err := decodeDelta(data)
			if err != nil {
				// Malformed keep-alive chunks are skipped.
				continue
			}
			if content == "" {
				continue
			}
			if !yield(content, nil) {
				return
			}
		}
	}
}

// decodeDelta extracts choices[0].delta.content from a completion chunk.
func decodeDelta(data []byte) (string, error) {
	var content string
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "choices" {
			return d.Skip()
		}
		first := true
		return d.Arr(func(d *jx.Decoder) error {
			if !first {
				return d.Skip()
			}
			first = false
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "delta" {
					return d.Skip()
				}
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "content" || d.Next() != jx.String {
						return d.Skip()
					}
					s, err := d.Str()
					if err != nil {
						return err
					}
					content = s
					return nil
				})
			})
		})
	})
	if err != nil {
		return "", errors.Wrap(err, "decode chunk")
	}
	return content, nil
}
