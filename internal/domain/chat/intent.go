package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xenking/storefront/internal/domain/product"
)

// MaxSuggestions caps the follow-up prompts offered after a reply.
const MaxSuggestions = 4

var pricePattern = regexp.MustCompile(`₹?\s?(\d+)`)

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DetectNavigation maps a shopper message to a page to open, or nil.
// A mentioned product name wins over category and page keywords.
func DetectNavigation(message string, products []product.Product) *Navigation {
	msg := strings.ToLower(message)

	for _, p := range products {
		if p.Name != "" && strings.Contains(msg, strings.ToLower(p.Name)) {
			return &Navigation{
				Path:    "/product/" + p.ID,
				Message: fmt.Sprintf("Taking you to %s...", p.Name),
			}
		}
	}

	switch {
	case containsAny(msg, "formal", "shirt"):
		return &Navigation{Path: "/products?category=Formal Shirts", Message: "Taking you to our formal shirts collection..."}
	case containsAny(msg, "casual"):
		return &Navigation{Path: "/products?category=Casual", Message: "Taking you to our casual wear collection..."}
	case containsAny(msg, "checkout", "cart"):
		return &Navigation{Path: "/checkout", Message: "Taking you to checkout..."}
	case containsAny(msg, "all products", "browse", "shop"):
		return &Navigation{Path: "/products", Message: "Taking you to our products page..."}
	}
	return nil
}

// Suggestions returns up to MaxSuggestions follow-up prompts for a message.
func Suggestions(message string, products []product.Product) []string {
	msg := strings.ToLower(message)

	switch {
	case containsAny(msg, "formal", "shirt"):
		return []string{
			"Show me formal pants to match",
			"What accessories go with this?",
			"Any similar styles in different colors?",
			"Tell me about fabric quality",
		}
	case containsAny(msg, "casual", "t-shirt", "tshirt"):
		return []string{
			"Show me casual pants",
			"What's trending in casual wear?",
			"Show me jackets for layering",
			"Any combo deals available?",
		}
	case containsAny(msg, "sale", "discount", "offer"):
		return []string{
			"What are today's best deals?",
			"Show me clearance items",
			"Any buy-one-get-one offers?",
			"Show me products under ₹500",
		}
	}

	if limit, ok := priceMention(msg); ok {
		return []string{
			fmt.Sprintf("Show me bestsellers under ₹%s", limit),
			"What's the best value for money?",
			"Any combo offers in this range?",
			"Show me premium alternatives",
		}
	}

	var out []string
	cats := categoriesInOrder(products)
	if len(cats) > 0 {
		out = append(out, fmt.Sprintf("Show me %s collection", cats[0]))
	}
	if len(cats) > 1 {
		out = append(out, fmt.Sprintf("What about %s?", cats[1]))
	}
	out = append(out, "What's new this week?", "Show me complete outfits")
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// priceMention returns the first non-zero number in msg as digits without
// leading zeros. Numbers of any length are accepted.
func priceMention(msg string) (string, bool) {
	m := pricePattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	digits := strings.TrimLeft(m[1], "0")
	return digits, digits != ""
}

// categoriesInOrder lists distinct categories by first appearance.
func categoriesInOrder(products []product.Product) []string {
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
	return out
}
