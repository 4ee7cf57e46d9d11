package recent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

func TestPush(t *testing.T) {
	assert.Equal(t, []string{"a"}, Push(nil, "a", Limit))
	assert.Equal(t, []string{"b", "a"}, Push([]string{"a"}, "b", Limit))
	assert.Equal(t, []string{"a", "b"}, Push([]string{"b", "a"}, "a", Limit), "re-view moves to front without duplicating")

	var ids []string
	for i := range 12 {
		ids = Push(ids, fmt.Sprintf("p%d", i), Limit)
	}
	assert.Len(t, ids, Limit)
	assert.Equal(t, "p11", ids[0])
	assert.Equal(t, "p4", ids[Limit-1])
}

type memRepo struct {
	ids  []string
	at   time.Time
	keep int
}

func (m *memRepo) Record(_ context.Context, _, productID string, at time.Time, keep int) error {
	m.ids = Push(m.ids, productID, keep)
	m.at = at
	m.keep = keep
	return nil
}

func (m *memRepo) ProductIDs(_ context.Context, _ string, limit int) ([]string, error) {
	if len(m.ids) > limit {
		return m.ids[:limit], nil
	}
	return m.ids, nil
}

type productRepo struct{}

func (productRepo) List(context.Context) ([]product.Product, error) { return nil, nil }

func (productRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	return &product.Product{ID: id}, nil
}

func (productRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, len(ids))
	for i, id := range ids {
		out[i] = product.Product{ID: id}
	}
	return out, nil
}

func TestService(t *testing.T) {
	repo := &memRepo{}
	s := NewService(repo, productRepo{})
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p1"} {
		require.NoError(t, s.Record(ctx, "u1", id))
	}
	assert.Equal(t, fixed, repo.at)
	assert.Equal(t, Limit, repo.keep)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
}
