package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/notify"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
)

func parseFilter(r *http.Request) (product.Filter, error) {
	q := r.URL.Query()
	sort, err := product.ParseSort(q.Get("sort"))
	if err != nil {
		return product.Filter{}, errors.Wrap(errBadRequest, err.Error())
	}
	f := product.Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Sort:     sort,
	}
	if f.Query == "" {
		f.Query = q.Get("search")
	}
	for key, dst := range map[string]**decimal.Decimal{
		"min_price": &f.MinPrice,
		"max_price": &f.MaxPrice,
	} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return product.Filter{}, errors.Wrapf(errBadRequest, "invalid %s", key)
		}
		*dst = &d
	}
	if v := q.Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return product.Filter{}, errors.Wrap(errBadRequest, "invalid in_stock")
		}
		f.InStockOnly = b
	}
	return f, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := h.Catalog.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProducts(e, h.presentAll(products))
	})
}

// getProduct returns a product with related items. Authenticated views are
// recorded in the recently viewed list.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	d, err := h.Catalog.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var saved bool
	p, authed := auth.FromContext(ctx)
	if authed {
		if err := h.Recent.Record(ctx, p.UserID, id); err != nil {
			zctx.From(ctx).Warn("Record recently viewed", zap.Error(err))
		}
		if saved, err = h.Wishlist.Contains(ctx, p.UserID, id); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("product")
		encodeProduct(e, h.present(d.Product))
		e.FieldStart("related")
		encodeProducts(e, h.presentAll(d.Related))
		e.FieldStart("low_stock")
		e.Bool(d.Product.InStock() && d.Product.Stock < product.LowStockThreshold)
		if authed {
			e.FieldStart("in_wishlist")
			e.Bool(saved)
		}
		e.ObjEnd()
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { strs(e, cats) })
}

func (h *Handler) deliveryEstimate(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	est, err := delivery.Quote(r.URL.Query().Get("pincode"), p.Stock, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("available")
		e.Bool(est.Available)
		if est.Available {
			e.FieldStart("days")
			e.Int(est.Days)
			e.FieldStart("delivery_by")
			e.Str(est.By.Format(time.DateOnly))
		}
		e.ObjEnd()
	})
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, sum, err := h.Reviews.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("reviews")
		e.ArrStart()
		for _, rv := range reviews {
			encodeReview(e, rv)
		}
		e.ArrEnd()
		e.FieldStart("summary")
		e.ObjStart()
		e.FieldStart("count")
		e.Int(sum.Count)
		e.FieldStart("average")
		e.Raw([]byte(sum.Average.StringFixed(1)))
		e.FieldStart("distribution")
		e.ObjStart()
		for i := len(sum.Distribution) - 1; i >= 0; i-- {
			e.FieldStart(strconv.Itoa(i + 1))
			e.Int(sum.Distribution[i])
		}
		e.ObjEnd()
		e.ObjEnd()
		e.ObjEnd()
	})
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var d review.Draft
	err := decodeBody(r, func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rating":
			d.Rating, err = dec.Int()
		case "title":
			d.Title, err = dec.Str()
		case "comment":
			d.Comment, err = dec.Str()
		case "author", "user_name":
			d.Author, err = dec.Str()
		default:
			return dec.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := principal(r)
	if d.Author == "" {
		d.Author = p.Email
	}
	rv, err := h.Reviews.Create(r.Context(), p.UserID, r.PathValue("id"), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReview(e, *rv) })
}

func (h *Handler) markHelpful(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reviews.MarkHelpful(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("helpful_count")
		e.Int(n)
		e.ObjEnd()
	})
}

func (h *Handler) notifyMe(w http.ResponseWriter, r *http.Request) {
	req := notify.Request{ProductID: r.PathValue("id")}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "phone":
			req.Phone, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		req.UserID = p.UserID
		if req.Email == "" && req.Phone == "" {
			req.Email = p.Email
		}
	}
	created, err := h.Notify.Subscribe(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(created.ID)
		e.FieldStart("product_id")
		e.Str(created.ProductID)
		e.FieldStart("message")
		e.Str("We'll notify you when this product is back in stock")
		e.ObjEnd()
	})
}

func (h *Handler) activeCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.Active(r.Context(), coupon.ActiveLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range coupons {
			encodeCoupon(e, c, false)
		}
		e.ArrEnd()
	})
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Coupons.Validate(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("valid")
		e.Bool(true)
		e.FieldStart("coupon")
		encodeCoupon(e, *c, false)
		e.ObjEnd()
	})
}

func (h *Handler) listWishlist(w http.ResponseWriter, r *http.Request) {
	h.writeWishlist(w, r, http.StatusOK)
}

func (h *Handler) addWishlist(w http.ResponseWriter, r *http.Request) {
	var productID string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "product_id" && key != "productId" {
			return d.Skip()
		}
		var err error
		productID, err = d.Str()
		return err
	})
	if err == nil && productID == "" {
		err = errors.Wrap(errBadRequest, "product_id is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Wishlist.Add(r.Context(), principal(r).UserID, productID); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeWishlist(w, r, http.StatusCreated)
}

func (h *Handler) removeWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.Wishlist.Remove(r.Context(), principal(r).UserID, r.PathValue("productId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeWishlist(w http.ResponseWriter, r *http.Request, status int) {
	products, err := h.Wishlist.List(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeProducts(e, h.presentAll(products))
	})
}

func (h *Handler) recentlyViewed(w http.ResponseWriter, r *http.Request) {
	products, err := h.Recent.List(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProducts(e, h.presentAll(products))
	})
}
