package wishlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

type memRepo struct {
	ids []string
}

func (m *memRepo) Add(_ context.Context, _, productID string) error {
	for _, id := range m.ids {
		if id == productID {
			return ErrAlreadyExists
		}
	}
	m.ids = append([]string{productID}, m.ids...)
	return nil
}

func (m *memRepo) Remove(_ context.Context, _, productID string) error {
	for i, id := range m.ids {
		if id == productID {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memRepo) ProductIDs(_ context.Context, _ string) ([]string, error) {
	return m.ids, nil
}

type productRepo struct {
	products []product.Product
}

func (r *productRepo) List(_ context.Context) ([]product.Product, error) { return r.products, nil }

func (r *productRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r *productRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range r.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func TestService(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	products := &productRepo{products: []product.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}}
	s := NewService(repo, products)

	require.NoError(t, s.Add(ctx, "u1", "p1"))
	require.NoError(t, s.Add(ctx, "u1", "p3"))
	require.ErrorIs(t, s.Add(ctx, "u1", "p1"), ErrAlreadyExists)
	require.ErrorIs(t, s.Add(ctx, "u1", "nope"), product.ErrNotFound)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p3", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)

	ok, err := s.Contains(ctx, "u1", "p3")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, "u1", "p3"))
	require.NoError(t, s.Remove(ctx, "u1", "p3"))

	ok, err = s.Contains(ctx, "u1", "p3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ListSkipsDeletedProducts(t *testing.T) {
	repo := &memRepo{ids: []string{"gone", "p2"}}
	s := NewService(repo, &productRepo{products: []product.Product{{ID: "p2"}}})

	got, err := s.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)
}
