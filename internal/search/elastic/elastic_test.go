package elastic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

type recorded struct {
	method string
	path   string
	body   string
}

func fakeCluster(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/":
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_, _ = io.WriteString(w, `{"took":1,"hits":{"total":{"value":2},"hits":[{"_index":"products","_id":"p2","_score":2.1},{"_id":"p1","_score":1.3}]}}`)
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/missing"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
		default:
			_, _ = io.WriteString(w, `{"result":"updated"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestIndex(t *testing.T) {
	srv, requests := fakeCluster(t)
	ctx := context.Background()

	idx, err := New(ctx, Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	require.NoError(t, idx.Index(ctx, product.Product{
		ID: "p1", Name: "Oxford Shirt", Category: "Formal Shirts", Price: decimal.RequireFromString("1499.00"), Stock: 3,
	}))
	ids, err := idx.Search(ctx, "oxford", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)

	require.NoError(t, idx.Remove(ctx, "p1"))
	require.NoError(t, idx.Remove(ctx, "missing"))

	reqs := requests()
	require.Len(t, reqs, 5)
	assert.Equal(t, "/products/_doc/p1", reqs[1].path)
	assert.Contains(t, reqs[1].body, `"name":"Oxford Shirt"`)
	assert.Contains(t, reqs[1].body, `"price":1499`)
	assert.Equal(t, "/products/_search", reqs[2].path)
	assert.Contains(t, reqs[2].body, `"fields":["name^2","description"]`)
	assert.Contains(t, reqs[2].body, `"fuzziness":"AUTO"`)
	assert.Equal(t, http.MethodDelete, reqs[3].method)
}

func TestDecodeHitIDs(t *testing.T) {
	ids, err := decodeHitIDs([]byte(`{"hits":{"hits":[]}}`))
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = decodeHitIDs([]byte(`{"hits":`))
	require.Error(t, err)
}
