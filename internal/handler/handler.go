// Package handler exposes the storefront over HTTP. Routes are registered on
// a net/http ServeMux; bodies are encoded with go-faster/jx.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/chat"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/notify"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/recent"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

// CatalogPath is where an empty checkout redirects.
const CatalogPath = "/products"

// Config holds non-dependency handler settings.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. Absolute URLs are returned unchanged.
	ImageBaseURL string
	// StreamTimeout bounds the write of each chat stream event.
	StreamTimeout time.Duration
	// ReplyTimeout is the write deadline of a non-streamed chat reply.
	ReplyTimeout time.Duration
}

// Params holds the handler dependencies. Every field is required.
type Params struct {
	Auth      *auth.Authenticator
	Catalog   *product.Catalog
	Products  product.Repository
	Carts     *cart.Service
	Wishlist  *wishlist.Service
	Recent    *recent.Service
	Reviews   *review.Service
	Notify    *notify.Service
	Coupons   *coupon.Service
	Orders    *order.Service
	Admin     *admin.Service
	Assistant *chat.Assistant
}

// Handler serves the storefront API.
type Handler struct {
	cfg Config
	Params
}

// New creates a Handler.
func New(cfg Config, p Params) *Handler {
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = 30 * time.Second
	}
	if cfg.ReplyTimeout == 0 {
		cfg.ReplyTimeout = 2 * time.Minute
	}
	return &Handler{cfg: cfg, Params: p}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.optionalAuth(fn))
	}
	user := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.requireUser(fn))
	}
	adminOnly := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.requireAdmin(fn))
	}

	public("GET /api/products", h.listProducts)
	public("GET /api/products/{id}", h.getProduct)
	public("GET /api/categories", h.listCategories)
	public("GET /api/products/{id}/delivery", h.deliveryEstimate)
	public("GET /api/products/{id}/reviews", h.listReviews)
	user("POST /api/products/{id}/reviews", h.createReview)
	public("POST /api/reviews/{id}/helpful", h.markHelpful)
	public("POST /api/products/{id}/notify", h.notifyMe)
	public("GET /api/coupons/active", h.activeCoupons)
	public("POST /api/coupons/validate", h.validateCoupon)
	public("POST /api/chat", h.chat)

	public("GET /api/cart", h.getCart)
	public("POST /api/cart/items", h.addCartItem)
	public("PATCH /api/cart/items/{productId}", h.updateCartItem)
	public("DELETE /api/cart/items/{productId}", h.removeCartItem)
	public("DELETE /api/cart", h.clearCart)
	public("GET /api/checkout", h.checkoutSummary)

	user("GET /api/wishlist", h.listWishlist)
	user("POST /api/wishlist", h.addWishlist)
	user("DELETE /api/wishlist/{productId}", h.removeWishlist)
	user("GET /api/recently-viewed", h.recentlyViewed)
	user("POST /api/orders", h.createOrder)
	user("GET /api/orders", h.listOrders)
	user("POST /api/payments/verify", h.verifyPayment)

	adminOnly("POST /api/admin/products", h.adminCreateProduct)
	adminOnly("PUT /api/admin/products/{id}", h.adminUpdateProduct)
	adminOnly("DELETE /api/admin/products/{id}", h.adminDeleteProduct)
	adminOnly("POST /api/admin/images", h.adminUploadImage)
	adminOnly("GET /api/admin/coupons", h.adminListCoupons)
	adminOnly("POST /api/admin/coupons", h.adminCreateCoupon)
	adminOnly("DELETE /api/admin/coupons/{id}", h.adminDeleteCoupon)
	adminOnly("GET /api/admin/users", h.adminListUsers)
	adminOnly("PATCH /api/admin/users/{id}/role", h.adminSetRole)
	adminOnly("GET /api/admin/orders", h.adminListOrders)
	adminOnly("GET /api/admin/dashboard", h.adminDashboard)
}

// present resolves relative image paths against ImageBaseURL.
func (h *Handler) present(p product.Product) product.Product {
	if h.cfg.ImageBaseURL == "" {
		return p
	}
	p.ImageURL = h.imageURL(p.ImageURL)
	if len(p.Images) > 0 {
		images := make([]string, len(p.Images))
		for i, img := range p.Images {
			images[i] = h.imageURL(img)
		}
		p.Images = images
	}
	return p
}

func (h *Handler) imageURL(path string) string {
	if path == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) presentAll(ps []product.Product) []product.Product {
	out := make([]product.Product, len(ps))
	for i, p := range ps {
		out[i] = h.present(p)
	}
	return out
}
