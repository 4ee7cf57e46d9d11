package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalid is returned when a product violates a catalog invariant.
	ErrInvalid = errors.New("invalid product")
)

// LowStockThreshold is the stock level below which a product is reported as
// running low.
const LowStockThreshold = 10

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	Rating      decimal.Decimal
	ImageURL    string
	Images      []string
	Sizes       []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool {
	return p.Stock > 0
}

var maxRating = decimal.NewFromInt(5)

// Validate checks the catalog invariants enforced on admin writes.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.Wrap(ErrInvalid, "name is required")
	case strings.TrimSpace(p.Category) == "":
		return errors.Wrap(ErrInvalid, "category is required")
	case p.Price.IsNegative():
		return errors.Wrap(ErrInvalid, "price must not be negative")
	case p.Stock < 0:
		return errors.Wrap(ErrInvalid, "stock must not be negative")
	case p.Rating.IsNegative() || p.Rating.GreaterThan(maxRating):
		return errors.Wrap(ErrInvalid, "rating must be between 0 and 5")
	}
	return nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Writer defines the admin mutations of the catalog.
type Writer interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// Searcher resolves a free-text query to product IDs ordered by relevance.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Indexer keeps an external search index in sync with catalog writes.
type Indexer interface {
	Index(ctx context.Context, p Product) error
	Remove(ctx context.Context, id string) error
}

// FetchOrdered loads products for ids in one batch and returns them in ids
// order, skipping products that no longer exist.
func FetchOrdered(ctx context.Context, repo Repository, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	fetched, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
