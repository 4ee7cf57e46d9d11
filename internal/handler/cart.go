package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
)

type cartLine struct {
	ProductID string
	Size      string
	Quantity  int
	hasQty    bool
}

func decodeCartLine(r *http.Request) (cartLine, error) {
	var l cartLine
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id", "productId":
			l.ProductID, err = d.Str()
		case "size":
			l.Size, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
			l.hasQty = true
		default:
			return d.Skip()
		}
		return err
	})
	return l, err
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Get(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, c, false)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := decodeCartLine(r)
	if err == nil && l.ProductID == "" {
		err = errors.Wrap(errBadRequest, "product_id is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !l.hasQty {
		l.Quantity = 1
	}
	res, err := h.Carts.Add(r.Context(), o, l.ProductID, l.Quantity, l.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, res.Cart, res.Clamped)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := decodeCartLine(r)
	if err == nil && !l.hasQty {
		err = errors.Wrap(errBadRequest, "quantity is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Carts.SetQuantity(r.Context(), o, r.PathValue("productId"), l.Size, l.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, res.Cart, res.Clamped)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Remove(r.Context(), o, r.PathValue("productId"), r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, c, false)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Carts.Clear(r.Context(), o); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, c *cart.Cart, clamped bool) {
	lines := h.presentLines(c.Lines())
	writeJSON(w, status, func(e *jx.Encoder) { encodeCart(e, c, lines, clamped) })
}

func (h *Handler) presentLines(lines []cart.Line) []cart.Line {
	for i := range lines {
		lines[i].Product = h.present(lines[i].Product)
	}
	return lines
}
