// Package pricing computes order totals. The same Compute call backs the
// checkout preview, order creation and the storefrontctl quote command, so a
// displayed total and a charged total cannot drift apart.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat tax applied to the discounted subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.18")

var (
	hundred = decimal.NewFromInt(100)

	// ErrInvalidPercent is returned for a discount outside [0, 100].
	ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")
	// ErrInvalidTaxRate is returned for a negative tax rate.
	ErrInvalidTaxRate = errors.New("tax rate must not be negative")
	// ErrInvalidLine is returned for a line with a negative price or a
	// non-positive quantity.
	ErrInvalidLine = errors.New("invalid line item")
)

// Line is one priced entry of a cart or order.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Quote is the full price breakdown. Monetary fields are exact; use Rounded
// for display values. AmountMinor is what the payment gateway charges.
type Quote struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	Discount        decimal.Decimal
	Taxable         decimal.Decimal
	TaxRate         decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	AmountMinor     int64
}

// Compute prices lines with an optional discount percentage (zero for no
// coupon) and a tax rate:
//
//	discount = subtotal * percent / 100
//	taxable  = subtotal - discount
//	tax      = taxable * taxRate
//	total    = taxable + tax
//
// AmountMinor is total*100 rounded half away from zero.
func Compute(lines []Line, percent, taxRate decimal.Decimal) (Quote, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return Quote{}, ErrInvalidPercent
	}
	if taxRate.IsNegative() {
		return Quote{}, ErrInvalidTaxRate
	}

	subtotal := decimal.Zero
	for i, l := range lines {
		if l.Price.IsNegative() || l.Quantity <= 0 {
			return Quote{}, errors.Wrapf(ErrInvalidLine, "line %d", i)
		}
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	discount := subtotal.Mul(percent).Div(hundred)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRate)
	total := taxable.Add(tax)

	return Quote{
		Subtotal:        subtotal,
		DiscountPercent: percent,
		Discount:        discount,
		Taxable:         taxable,
		TaxRate:         taxRate,
		Tax:             tax,
		Total:           total,
		AmountMinor:     total.Mul(hundred).Round(0).IntPart(),
	}, nil
}

// Rounded returns q with every monetary field rounded to two decimal places.
func (q Quote) Rounded() Quote {
	q.Subtotal = q.Subtotal.Round(2)
	q.Discount = q.Discount.Round(2)
	q.Taxable = q.Taxable.Round(2)
	q.Tax = q.Tax.Round(2)
	q.Total = q.Total.Round(2)
	return q
}
