package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xenking/storefront/internal/domain/pricing"
)

func newQuoteCmd() *cobra.Command {
	var (
		lines    []string
		discount string
		taxRate  string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a cart the way checkout does",
		Example: `  storefrontctl quote --line 1000x2 --line 499.50 --discount 10
  storefrontctl quote --line 2500 --tax-rate 0.05`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(lines) == 0 {
				return errors.New("at least one --line is required")
			}
			parsed := make([]pricing.Line, 0, len(lines))
			for _, s := range lines {
				l, err := parseQuoteLine(s)
				if err != nil {
					return errors.Wrapf(err, "line %q", s)
				}
				parsed = append(parsed, l)
			}
			percent, err := decimal.NewFromString(discount)
			if err != nil {
				return errors.Wrap(err, "discount")
			}
			rate, err := decimal.NewFromString(taxRate)
			if err != nil {
				return errors.Wrap(err, "tax rate")
			}

			q, err := pricing.Compute(parsed, percent, rate)
			if err != nil {
				return err
			}
			printQuote(cmd, q.Rounded())
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&lines, "line", "l", nil, "line as PRICE or PRICExQTY, repeatable")
	cmd.Flags().StringVarP(&discount, "discount", "d", "0", "coupon discount percent")
	cmd.Flags().StringVar(&taxRate, "tax-rate", pricing.DefaultTaxRate.String(), "tax rate applied after the discount")
	return cmd
}

// parseQuoteLine accepts "PRICE" or "PRICExQTY".
func parseQuoteLine(s string) (pricing.Line, error) {
	priceStr, qtyStr, hasQty := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return pricing.Line{}, errors.Wrap(err, "price")
	}
	qty := 1
	if hasQty {
		if qty, err = strconv.Atoi(qtyStr); err != nil {
			return pricing.Line{}, errors.Wrap(err, "quantity")
		}
	}
	return pricing.Line{Price: price, Quantity: qty}, nil
}

func printQuote(cmd *cobra.Command, q pricing.Quote) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "subtotal  %s\n", q.Subtotal.StringFixed(2))
	_, _ = fmt.Fprintf(out, "discount  %s (%s%%)\n", q.Discount.StringFixed(2), q.DiscountPercent.String())
	_, _ = fmt.Fprintf(out, "tax       %s (rate %s)\n", q.Tax.StringFixed(2), q.TaxRate.String())
	_, _ = fmt.Fprintf(out, "total     %s\n", q.Total.StringFixed(2))
	_, _ = fmt.Fprintf(out, "amount    %d\n", q.AmountMinor)
}
