package handler

import (
	"net/http"
	"strings"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
)

// GuestHeader identifies an anonymous shopper's cart.
const GuestHeader = "X-Guest-ID"

// optionalAuth attaches the principal when a bearer token is present. An
// invalid token is rejected rather than treated as anonymous.
func (h *Handler) optionalAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next(w, r)
			return
		}
		p, err := h.Auth.Authenticate(r.Context(), header)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func (h *Handler) requireUser(next http.HandlerFunc) http.Handler {
	return h.optionalAuth(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		next(w, r)
	})
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.Handler {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if p, _ := auth.FromContext(r.Context()); !p.IsAdmin() {
			writeError(w, r, auth.ErrForbidden)
			return
		}
		next(w, r)
	})
}

// principal returns the authenticated caller. Only valid behind
// requireUser.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// owner resolves the cart owner: the user id, or "guest:" plus the guest
// header for anonymous shoppers.
func owner(r *http.Request) (string, error) {
	if p, ok := auth.FromContext(r.Context()); ok {
		return p.UserID, nil
	}
	guest := strings.TrimSpace(r.Header.Get(GuestHeader))
	if guest == "" || len(guest) > 64 {
		return "", cart.ErrNoOwner
	}
	for _, c := range guest {
		if !(c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return "", cart.ErrNoOwner
		}
	}
	return "guest:" + guest, nil
}
