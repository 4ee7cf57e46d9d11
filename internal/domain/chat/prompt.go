package chat

import (
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

// Persona names the assistant and the store it sells for.
type Persona struct {
	Name  string
	Store string
}

// DefaultPersona is the storefront's sales consultant.
var DefaultPersona = Persona{Name: "Ravi", Store: "P SQUARE MEN'S WEAR"}

// SystemPrompt builds the model instructions with the catalog inlined.
func (p Persona) SystemPrompt(products []product.Product) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(p.Name)
	b.WriteString(", an expert sales consultant at ")
	b.WriteString(p.Store)
	b.WriteString(", a premium men's clothing store.\n\nPRODUCT CATALOG:\n")
	b.Write(catalogJSON(products))
	b.WriteString(`

HOW YOU SELL:
- Listen first, then recommend products from the catalog above that fit the shopper.
- Explain why a product suits this shopper rather than listing features.
- Offer to take the shopper to a product or collection when they show interest.
- Ask a natural follow-up question to keep helping.
- Only recommend products that exist in the catalog. If something is out of stock, suggest a similar one.

STYLE:
- Warm and conversational, like a knowledgeable friend. Emojis are fine in moderation.
- Plain text only. Do not use markdown such as *, ** or #.
- Keep replies short.`)
	return b.String()
}

func catalogJSON(products []product.Product) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Num(jx.Num(p.Price.String()))
		e.FieldStart("category")
		e.Str(p.Category)
		e.FieldStart("description")
		e.Str(p.Description)
		e.FieldStart("stock")
		e.Int(p.Stock)
		e.FieldStart("rating")
		e.Num(jx.Num(p.Rating.String()))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
