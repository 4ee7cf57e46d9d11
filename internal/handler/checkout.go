package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

// checkoutSummary prices the caller's cart. An empty cart redirects to the
// catalog instead of rendering an empty summary.
func (h *Handler) checkoutSummary(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Orders.Summary(r.Context(), o, r.URL.Query().Get("coupon"))
	if errors.Is(err, order.ErrEmptyCart) {
		http.Redirect(w, r, CatalogPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines := h.presentLines(p.Lines)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		encodeLines(e, lines)
		if p.Coupon != nil {
			e.FieldStart("coupon")
			encodeCoupon(e, *p.Coupon, false)
		}
		e.FieldStart("quote")
		encodeQuote(e, p.Quote)
		e.ObjEnd()
	})
}

func decodeLineRequests(d *jx.Decoder) ([]order.LineRequest, error) {
	var out []order.LineRequest
	err := d.Arr(func(d *jx.Decoder) error {
		var l order.LineRequest
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id", "productId":
				l.ProductID, err = d.Str()
			case "size":
				l.Size, err = d.Str()
			case "quantity":
				l.Quantity, err = d.Int()
			default:
				return d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

// decodeCouponRef accepts a coupon as its code or as an object carrying
// "code". Only the code is used; the discount is always looked up.
func decodeCouponRef(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	case jx.Object:
		var code string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if key != "code" {
				return d.Skip()
			}
			var err error
			code, err = d.Str()
			return err
		})
		return code, err
	default:
		return "", errors.Wrap(errBadRequest, "coupon must be a code or an object")
	}
}

// createOrder opens a checkout. Without an items list the caller's cart is
// ordered.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := order.CreateRequest{UserID: principal(r).UserID}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = decodeLineRequests(d)
		case "details", "shipping", "orderDetails":
			req.Details, err = decodeDetails(d)
		case "coupon_code", "couponCode":
			req.CouponCode, err = d.Str()
		case "coupon":
			req.CouponCode, err = decodeCouponRef(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Items == nil {
		c, err := h.Carts.Get(ctx, req.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, l := range c.Lines() {
			req.Items = append(req.Items, order.LineRequest{
				ProductID: l.Product.ID,
				Size:      l.Size,
				Quantity:  l.Quantity,
			})
		}
	}

	co, err := h.Orders.Create(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("orderId")
		e.Str(co.Order.ID)
		e.FieldStart("razorpayOrderId")
		e.Str(co.ProviderOrderID)
		e.FieldStart("keyId")
		e.Str(co.KeyID)
		e.FieldStart("order")
		encodeOrder(e, *co.Order)
		e.FieldStart("razorpay_order_id")
		e.Str(co.ProviderOrderID)
		e.FieldStart("key_id")
		e.Str(co.KeyID)
		e.FieldStart("amount")
		e.Int64(co.Amount)
		e.FieldStart("currency")
		e.Str(co.Currency)
		e.ObjEnd()
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListForUser(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	req := order.VerifyRequest{UserID: principal(r).UserID}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "razorpay_order_id":
			req.ProviderOrderID, err = d.Str()
		case "razorpay_payment_id":
			req.PaymentID, err = d.Str()
		case "razorpay_signature":
			req.Signature, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	o, err := h.Orders.VerifyPayment(r.Context(), req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("verified")
		e.Bool(true)
		e.FieldStart("order")
		encodeOrder(e, *o)
		e.ObjEnd()
	})
}
