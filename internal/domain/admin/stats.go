package admin

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// Dashboard limits.
const (
	TopProductsLimit = 5
	RevenueDays      = 7
)

// TopProduct is a product ranked by paid units sold.
type TopProduct struct {
	Product product.Product
	Sold    int
}

// DayRevenue is the paid revenue of one calendar day.
type DayRevenue struct {
	Day     time.Time
	Revenue decimal.Decimal
}

// CategoryCount is the number of products in a category.
type CategoryCount struct {
	Category string
	Count    int
}

// Stats is the admin dashboard.
type Stats struct {
	TotalRevenue   decimal.Decimal
	TotalOrders    int
	TotalUsers     int
	TotalProducts  int
	ConversionRate decimal.Decimal
	PendingOrders  int
	LowStock       []product.Product
	TopProducts    []TopProduct
	RevenueByDay   []DayRevenue
	Categories     []CategoryCount
}

var hundred = decimal.NewFromInt(100)

// ComputeStats aggregates the dashboard from fetched rows. Revenue is the
// sum of paid order amounts; days are UTC calendar days, oldest first.
func ComputeStats(orders []order.Order, products []product.Product, users int) Stats {
	s := Stats{
		TotalRevenue:   decimal.Zero,
		TotalOrders:    len(orders),
		TotalUsers:     users,
		TotalProducts:  len(products),
		ConversionRate: decimal.Zero,
		LowStock:       []product.Product{},
		TopProducts:    []TopProduct{},
		RevenueByDay:   []DayRevenue{},
		Categories:     []CategoryCount{},
	}

	paid := 0
	sold := make(map[string]int)
	byDay := make(map[time.Time]decimal.Decimal)
	for _, o := range orders {
		switch o.Status {
		case order.StatusCreated:
			s.PendingOrders++
		case order.StatusPaid:
			paid++
			amount := decimal.New(o.AmountMinor, -2)
			s.TotalRevenue = s.TotalRevenue.Add(amount)
			day := o.CreatedAt.UTC().Truncate(24 * time.Hour)
			byDay[day] = byDay[day].Add(amount)
			for _, it := range o.Items {
				sold[it.ProductID] += max(it.Quantity, 1)
			}
		}
	}
	if len(orders) > 0 {
		s.ConversionRate = decimal.NewFromInt(int64(paid)).
			Div(decimal.NewFromInt(int64(len(orders)))).
			Mul(hundred).
			Round(1)
	}

	counts := make(map[string]int)
	var categories []string
	for _, p := range products {
		if p.Stock < product.LowStockThreshold {
			s.LowStock = append(s.LowStock, p)
		}
		if _, ok := counts[p.Category]; !ok {
			categories = append(categories, p.Category)
		}
		counts[p.Category]++
		s.TopProducts = append(s.TopProducts, TopProduct{Product: p, Sold: sold[p.ID]})
	}
	for _, c := range categories {
		s.Categories = append(s.Categories, CategoryCount{Category: c, Count: counts[c]})
	}

	slices.SortStableFunc(s.TopProducts, func(a, b TopProduct) int {
		return cmp.Compare(b.Sold, a.Sold)
	})
	if len(s.TopProducts) > TopProductsLimit {
		s.TopProducts = s.TopProducts[:TopProductsLimit]
	}

	for day, rev := range byDay {
		s.RevenueByDay = append(s.RevenueByDay, DayRevenue{Day: day, Revenue: rev})
	}
	slices.SortFunc(s.RevenueByDay, func(a, b DayRevenue) int {
		return a.Day.Compare(b.Day)
	})
	if n := len(s.RevenueByDay); n > RevenueDays {
		s.RevenueByDay = s.RevenueByDay[n-RevenueDays:]
	}
	return s
}
