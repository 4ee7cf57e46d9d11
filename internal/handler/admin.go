package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

func decodeProduct(r *http.Request) (product.Product, error) {
	p := product.Product{Images: []string{}, Sizes: []string{}}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "category":
			p.Category, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		case "rating":
			p.Rating, err = decodeDecimal(d)
		case "image_url":
			p.ImageURL, err = d.Str()
		case "images":
			p.Images, err = decodeStrings(d)
		case "sizes":
			p.Sizes, err = decodeStrings(d)
		default:
			return d.Skip()
		}
		return err
	})
	return p, err
}

func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Admin.CreateProduct(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, h.present(*created)) })
}

func (h *Handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p.ID = r.PathValue("id")
	updated, err := h.Admin.UpdateProduct(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, h.present(*updated)) })
}

func (h *Handler) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminUploadImage accepts a multipart "file" field.
func (h *Handler) adminUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, admin.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(admin.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, errors.Wrap(admin.ErrInvalidImage, "file too large"))
			return
		}
		writeError(w, r, errors.Wrap(errBadRequest, "invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errors.Wrap(errBadRequest, "file is required"))
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Admin.UploadImage(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), f, hdr.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("url")
		e.Str(url)
		e.ObjEnd()
	})
}

func (h *Handler) adminListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Admin.Coupons(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range coupons {
			encodeCoupon(e, c, true)
		}
		e.ArrEnd()
	})
}

func (h *Handler) adminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var d coupon.Draft
	err := decodeBody(r, func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			d.Code, err = dec.Str()
		case "discount_percent":
			d.DiscountPercent, err = decodeDecimal(dec)
		case "valid_until":
			var s string
			if s, err = dec.Str(); err == nil {
				d.ValidUntil, err = time.Parse(time.RFC3339, s)
			}
		case "max_uses":
			d.MaxUses, err = dec.Int()
		default:
			return dec.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Admin.CreateCoupon(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, *c, true) })
}

func (h *Handler) adminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeleteCoupon(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Admin.Users(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, u := range users {
			encodeUser(e, u)
		}
		e.ArrEnd()
	})
}

func (h *Handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	var role string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "role" {
			return d.Skip()
		}
		var err error
		role, err = d.Str()
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := h.Admin.SetRole(r.Context(), id, role); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(id)
		e.FieldStart("role")
		e.Str(role)
		e.ObjEnd()
	})
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	status, err := order.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	orders, err := h.Admin.Orders(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Admin.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStats(e, stats) })
}
