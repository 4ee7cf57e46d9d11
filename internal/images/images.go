// Package images uploads product images to a storage bucket over the
// storage REST API.
package images

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const DefaultBucket = "product-images"

// Store uploads objects into one public bucket.
type Store struct {
	baseURL string
	bucket  string
	key     string
	http    *http.Client
}

// New creates a Store for the storage service at baseURL, authenticating
// with the service key.
func New(baseURL, bucket, serviceKey string, tp trace.TracerProvider) (*Store, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, errors.New("storage url and service key are required")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		key:     serviceKey,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
	}, nil
}

// PublicURL returns the public address of an object.
func (s *Store) PublicURL(name string) string {
	return s.baseURL + "/storage/v1/object/public/" + s.bucket + "/" + url.PathEscape(name)
}

// Upload writes r as name and returns the object's public URL.
func (s *Store) Upload(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	endpoint := s.baseURL + "/storage/v1/object/" + s.bucket + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, r)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.ContentLength = size
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", "false")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", errors.Errorf("storage returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return s.PublicURL(name), nil
}
