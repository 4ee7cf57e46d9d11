package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "email only", req: Request{Email: "ravi@example.com"}},
		{name: "phone only", req: Request{Phone: "+91 98765 43210"}},
		{name: "both", req: Request{Email: "a@b.in", Phone: "123"}},
		{name: "neither", req: Request{Email: " ", Phone: ""}, wantErr: true},
		{name: "malformed email", req: Request{Email: "ravi@example"}, wantErr: true},
		{name: "malformed email with phone", req: Request{Email: "not an email", Phone: "123"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

type memRepo struct {
	requests []Request
}

func (m *memRepo) Create(_ context.Context, r *Request) error {
	m.requests = append(m.requests, *r)
	return nil
}

func (m *memRepo) CountPending(_ context.Context, productID string) (int, error) {
	n := 0
	for _, r := range m.requests {
		if r.ProductID == productID {
			n++
		}
	}
	return n, nil
}

type products map[string]int

func (p products) List(context.Context) ([]product.Product, error) { return nil, nil }

func (p products) GetByID(_ context.Context, id string) (*product.Product, error) {
	stock, ok := p[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &product.Product{ID: id, Stock: stock}, nil
}

func (p products) GetByIDs(context.Context, []string) ([]product.Product, error) { return nil, nil }

func TestService_Subscribe(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := NewService(repo, products{"sold-out": 0, "available": 3})

	r, err := s.Subscribe(ctx, Request{ProductID: "sold-out", Email: " ravi@example.com "})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "ravi@example.com", r.Email)

	_, err = s.Subscribe(ctx, Request{ProductID: "available", Email: "ravi@example.com"})
	require.ErrorIs(t, err, ErrInStock)

	_, err = s.Subscribe(ctx, Request{ProductID: "missing", Phone: "123"})
	require.ErrorIs(t, err, product.ErrNotFound)

	n, err := s.Pending(ctx, "sold-out")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
