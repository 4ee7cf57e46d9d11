// Package elastic indexes products in Elasticsearch and resolves free-text
// catalog queries against that index.
package elastic

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

const DefaultIndex = "products"

// Config locates the cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

// Index implements product.Searcher and product.Indexer.
type Index struct {
	es    *elasticsearch.Client
	index string
}

var (
	_ product.Searcher = (*Index)(nil)
	_ product.Indexer  = (*Index)(nil)
)

// New creates the client and checks that the cluster answers.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "info")
	}
	if err := checkResponse(res); err != nil {
		return nil, errors.Wrap(err, "info")
	}
	return &Index{es: es, index: cfg.Index}, nil
}

func checkResponse(res *esapi.Response) error {
	defer func() { _ = res.Body.Close() }()
	if !res.IsError() {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return errors.Errorf("elasticsearch %s: %s", res.Status(), bytes.TrimSpace(body))
}

func encodeDocument(p product.Product) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { e.Raw([]byte(p.Price.String())) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
	})
	return e.Bytes()
}

func encodeQuery(query string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("_source", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("query", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("multi_match", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("query", func(e *jx.Encoder) { e.Str(query) })
						e.Field("fields", func(e *jx.Encoder) {
							e.Arr(func(e *jx.Encoder) {
								e.Str("name^2")
								e.Str("description")
							})
						})
						e.Field("fuzziness", func(e *jx.Encoder) { e.Str("AUTO") })
					})
				})
			})
		})
	})
	return e.Bytes()
}

// Index upserts the product document.
func (i *Index) Index(ctx context.Context, p product.Product) error {
	res, err := i.es.Index(i.index, bytes.NewReader(encodeDocument(p)),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		return errors.Wrap(err, "index product")
	}
	return checkResponse(res)
}

// Remove deletes the product document. A missing document is not an error.
func (i *Index) Remove(ctx context.Context, id string) error {
	res, err := i.es.Delete(i.index, id, i.es.Delete.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if res.StatusCode == http.StatusNotFound {
		_ = res.Body.Close()
		return nil
	}
	return checkResponse(res)
}

// Search returns matching product IDs by descending relevance.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(bytes.NewReader(encodeQuery(query))),
		i.es.Search.WithSize(limit),
	)
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, errors.Errorf("search %s: %s", res.Status(), bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	return decodeHitIDs(body)
}

// decodeHitIDs extracts hits.hits[]._id.
func decodeHitIDs(data []byte) ([]string, error) {
	ids := []string{}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "hits" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "hits" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "_id" {
						return d.Skip()
					}
					id, err := d.Str()
					if err != nil {
						return err
					}
					ids = append(ids, id)
					return nil
				})
			})
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode hits")
	}
	return ids, nil
}
