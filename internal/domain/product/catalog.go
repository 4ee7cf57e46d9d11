package product

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sort enumerates the catalog orderings.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortRating    Sort = "rating"
	SortName      Sort = "name"
)

// ParseSort maps a query value to a Sort, defaulting to SortNewest.
func ParseSort(s string) (Sort, error) {
	switch v := Sort(s); v {
	case "":
		return SortNewest, nil
	case SortNewest, SortPriceAsc, SortPriceDesc, SortRating, SortName:
		return v, nil
	default:
		return "", errors.Errorf("unknown sort %q", s)
	}
}

// RelatedLimit is the number of related products returned with a product.
const RelatedLimit = 4

// Filter narrows a catalog listing. Zero fields do not filter.
type Filter struct {
	Category    string
	Query       string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
	Sort        Sort
}

// Apply returns the products that match f, ordered by f.Sort. The input
// slice is not modified.
func (f Filter) Apply(products []Product) []Product {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if q != "" && !matchesQuery(p, q) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.InStockOnly && !p.InStock() {
			continue
		}
		out = append(out, p)
	}
	SortProducts(out, f.Sort)
	return out
}

func matchesQuery(p Product, q string) bool {
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

// SortProducts orders products in place. Ties fall back to ID so listings
// are stable across requests.
func SortProducts(products []Product, s Sort) {
	slices.SortStableFunc(products, func(a, b Product) int {
		var c int
		switch s {
		case SortPriceAsc:
			c = a.Price.Cmp(b.Price)
		case SortPriceDesc:
			c = b.Price.Cmp(a.Price)
		case SortRating:
			c = b.Rating.Cmp(a.Rating)
		case SortName:
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		default:
			c = b.CreatedAt.Compare(a.CreatedAt)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Related returns up to limit products sharing target's category, excluding
// target itself.
func Related(target Product, products []Product, limit int) []Product {
	out := make([]Product, 0, limit)
	for _, p := range products {
		if len(out) == limit {
			break
		}
		if p.ID == target.ID || p.Category != target.Category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories returns the distinct non-empty categories, sorted.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	var out []string
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	slices.Sort(out)
	return out
}

// Detail is a product together with its related products.
type Detail struct {
	Product Product
	Related []Product
}

// Catalog serves storefront reads over a Repository, optionally delegating
// free-text matching to a Searcher.
type Catalog struct {
	repo     Repository
	searcher Searcher
}

// NewCatalog creates a Catalog. searcher may be nil.
func NewCatalog(repo Repository, searcher Searcher) *Catalog {
	return &Catalog{repo: repo, searcher: searcher}
}

// List returns the filtered and sorted catalog.
func (c *Catalog) List(ctx context.Context, f Filter) ([]Product, error) {
	products, err := c.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if f.Query == "" || c.searcher == nil {
		return f.Apply(products), nil
	}

	ids, err := c.searcher.Search(ctx, f.Query, len(products))
	if err != nil {
		// Search outages degrade to the in-memory text match.
		zctx.From(ctx).Warn("Product search failed, using local filter", zap.Error(err))
		return f.Apply(products), nil
	}

	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	hits := make([]Product, 0, len(ids))
	for _, p := range products {
		if _, ok := rank[p.ID]; ok {
			hits = append(hits, p)
		}
	}

	rest := f
	rest.Query = ""
	out := rest.Apply(hits)
	if f.Sort == "" {
		slices.SortStableFunc(out, func(a, b Product) int {
			return cmp.Compare(rank[a.ID], rank[b.ID])
		})
	}
	return out, nil
}

// Get returns one product and its related products.
func (c *Catalog) Get(ctx context.Context, id string) (*Detail, error) {
	p, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	products, err := c.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	SortProducts(products, SortNewest)
	return &Detail{
		Product: *p,
		Related: Related(*p, products, RelatedLimit),
	}, nil
}

// Categories returns every category present in the catalog.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	products, err := c.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return Categories(products), nil
}
