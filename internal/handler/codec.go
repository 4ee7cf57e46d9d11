package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
)

const maxBodySize = 1 << 20

// errBadRequest marks a malformed request body or parameter.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object from the request body, calling field for
// every key.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(errBadRequest, "read body")
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrapf(errBadRequest, "invalid JSON body: %v", err)
	}
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func strs(e *jx.Encoder, v []string) {
	e.ArrStart()
	for _, s := range v {
		e.Str(s)
	}
	e.ArrEnd()
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("in_stock")
	e.Bool(p.InStock())
	e.FieldStart("rating")
	e.Raw([]byte(p.Rating.StringFixed(1)))
	e.FieldStart("image_url")
	e.Str(p.ImageURL)
	e.FieldStart("images")
	strs(e, p.Images)
	e.FieldStart("sizes")
	strs(e, p.Sizes)
	e.FieldStart("created_at")
	timestamp(e, p.CreatedAt)
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for _, p := range ps {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeQuote(e *jx.Encoder, q pricing.Quote) {
	e.ObjStart()
	e.FieldStart("subtotal")
	money(e, q.Subtotal)
	e.FieldStart("discount_percent")
	e.Raw([]byte(q.DiscountPercent.String()))
	e.FieldStart("discount")
	money(e, q.Discount)
	e.FieldStart("tax_rate")
	e.Raw([]byte(q.TaxRate.String()))
	e.FieldStart("tax")
	money(e, q.Tax)
	e.FieldStart("total")
	money(e, q.Total)
	e.FieldStart("amount_minor")
	e.Int64(q.AmountMinor)
	e.ObjEnd()
}

func encodeLines(e *jx.Encoder, lines []cart.Line) {
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("product")
		encodeProduct(e, l.Product)
		e.FieldStart("size")
		e.Str(l.Size)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("line_total")
		money(e, l.Total())
		e.ObjEnd()
	}
	e.ArrEnd()
}

// encodeCart writes c with lines in place of c.Lines(), so that callers can
// substitute presented product records.
func encodeCart(e *jx.Encoder, c *cart.Cart, lines []cart.Line, clamped bool) {
	e.ObjStart()
	e.FieldStart("items")
	encodeLines(e, lines)
	e.FieldStart("count")
	e.Int(c.Count())
	e.FieldStart("subtotal")
	money(e, c.Subtotal())
	if clamped {
		e.FieldStart("notice")
		e.Str("quantity limited to available stock")
	}
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c coupon.Coupon, full bool) {
	e.ObjStart()
	if full {
		e.FieldStart("id")
		e.Str(c.ID)
	}
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("discount_percent")
	e.Raw([]byte(c.DiscountPercent.String()))
	e.FieldStart("valid_until")
	timestamp(e, c.ValidUntil)
	if full {
		e.FieldStart("max_uses")
		e.Int(c.MaxUses)
		e.FieldStart("current_uses")
		e.Int(c.CurrentUses)
		e.FieldStart("created_at")
		timestamp(e, c.CreatedAt)
	} else {
		e.FieldStart("remaining")
		e.Int(c.Remaining())
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("user_id")
	e.Str(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		money(e, it.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		if it.Size != "" {
			e.FieldStart("size")
			e.Str(it.Size)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("details")
	encodeDetails(e, o.Details)
	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount")
	money(e, o.Discount)
	e.FieldStart("tax")
	money(e, o.Tax)
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("amount_minor")
	e.Int64(o.AmountMinor)
	e.FieldStart("currency")
	e.Str(o.Currency)
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	if o.ProviderOrderID != "" {
		e.FieldStart("razorpay_order_id")
		e.Str(o.ProviderOrderID)
	}
	if o.PaymentID != "" {
		e.FieldStart("razorpay_payment_id")
		e.Str(o.PaymentID)
	}
	e.FieldStart("created_at")
	timestamp(e, o.CreatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(e, o)
	}
	e.ArrEnd()
}

func encodeDetails(e *jx.Encoder, d order.Details) {
	e.ObjStart()
	for _, f := range [...]struct{ k, v string }{
		{"full_name", d.FullName},
		{"email", d.Email},
		{"phone", d.Phone},
		{"address", d.Address},
		{"city", d.City},
		{"pincode", d.Pincode},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()
}

func decodeDetails(d *jx.Decoder) (order.Details, error) {
	var out order.Details
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "full_name", "fullName":
			dst = &out.FullName
		case "email":
			dst = &out.Email
		case "phone":
			dst = &out.Phone
		case "address":
			dst = &out.Address
		case "city":
			dst = &out.City
		case "pincode":
			dst = &out.Pincode
		default:
			return d.Skip()
		}
		s, err := d.Str()
		*dst = s
		return err
	})
	return out, err
}

func encodeReview(e *jx.Encoder, r review.Review) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("product_id")
	e.Str(r.ProductID)
	e.FieldStart("author")
	e.Str(r.Author)
	e.FieldStart("rating")
	e.Int(r.Rating)
	e.FieldStart("title")
	e.Str(r.Title)
	e.FieldStart("comment")
	e.Str(r.Comment)
	e.FieldStart("verified_purchase")
	e.Bool(r.VerifiedPurchase)
	e.FieldStart("helpful_count")
	e.Int(r.HelpfulCount)
	e.FieldStart("created_at")
	timestamp(e, r.CreatedAt)
	e.ObjEnd()
}

func encodeUser(e *jx.Encoder, u auth.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("email")
	e.Str(u.Email)
	e.FieldStart("full_name")
	e.Str(u.FullName)
	e.FieldStart("role")
	e.Str(string(u.Role))
	e.FieldStart("created_at")
	timestamp(e, u.CreatedAt)
	e.ObjEnd()
}

func encodeStats(e *jx.Encoder, s *admin.Stats) {
	e.ObjStart()
	e.FieldStart("total_revenue")
	money(e, s.TotalRevenue)
	e.FieldStart("total_orders")
	e.Int(s.TotalOrders)
	e.FieldStart("total_users")
	e.Int(s.TotalUsers)
	e.FieldStart("total_products")
	e.Int(s.TotalProducts)
	e.FieldStart("conversion_rate")
	e.Raw([]byte(s.ConversionRate.StringFixed(1)))
	e.FieldStart("pending_orders")
	e.Int(s.PendingOrders)
	e.FieldStart("low_stock")
	encodeProducts(e, s.LowStock)
	e.FieldStart("top_products")
	e.ArrStart()
	for _, tp := range s.TopProducts {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(tp.Product.ID)
		e.FieldStart("name")
		e.Str(tp.Product.Name)
		e.FieldStart("sold")
		e.Int(tp.Sold)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("revenue_by_day")
	e.ArrStart()
	for _, d := range s.RevenueByDay {
		e.ObjStart()
		e.FieldStart("date")
		e.Str(d.Day.Format(time.DateOnly))
		e.FieldStart("revenue")
		money(e, d.Revenue)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("categories")
	e.ArrStart()
	for _, c := range s.Categories {
		e.ObjStart()
		e.FieldStart("category")
		e.Str(c.Category)
		e.FieldStart("count")
		e.Int(c.Count)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
