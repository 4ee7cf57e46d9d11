package handler

import (
	"context"
	"io"
	"iter"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/chat"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/notify"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/recent"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

// --- Mock implementations ---

type mockProducts struct {
	mu    sync.Mutex
	items []product.Product
}

func (m *mockProducts) List(_ context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items), nil
}

func (m *mockProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProducts) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, err := m.GetByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *p)
	return nil
}

func (m *mockProducts) Update(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == p.ID {
			m.items[i] = *p
			return nil
		}
	}
	return product.ErrNotFound
}

func (m *mockProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	m.items = slices.DeleteFunc(m.items, func(p product.Product) bool { return p.ID == id })
	if len(m.items) == n {
		return product.ErrNotFound
	}
	return nil
}

type mockCarts struct {
	mu    sync.Mutex
	items map[string][]cart.Item
}

func (m *mockCarts) Load(_ context.Context, owner string) ([]cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[owner], nil
}

func (m *mockCarts) Save(_ context.Context, owner string, items []cart.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[owner] = items
	return nil
}

func (m *mockCarts) Delete(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, owner)
	return nil
}

type mockWishlist struct {
	ids map[string][]string
}

func (m *mockWishlist) Add(_ context.Context, userID, productID string) error {
	if slices.Contains(m.ids[userID], productID) {
		return wishlist.ErrAlreadyExists
	}
	m.ids[userID] = append([]string{productID}, m.ids[userID]...)
	return nil
}

func (m *mockWishlist) Remove(_ context.Context, userID, productID string) error {
	m.ids[userID] = slices.DeleteFunc(m.ids[userID], func(id string) bool { return id == productID })
	return nil
}

func (m *mockWishlist) ProductIDs(_ context.Context, userID string) ([]string, error) {
	return m.ids[userID], nil
}

type mockRecent struct {
	ids map[string][]string
}

func (m *mockRecent) Record(_ context.Context, userID, productID string, _ time.Time, keep int) error {
	m.ids[userID] = recent.Push(m.ids[userID], productID, keep)
	return nil
}

func (m *mockRecent) ProductIDs(_ context.Context, userID string, limit int) ([]string, error) {
	ids := m.ids[userID]
	return ids[:min(limit, len(ids))], nil
}

type mockReviews struct {
	items []review.Review
}

func (m *mockReviews) ListByProduct(_ context.Context, productID string) ([]review.Review, error) {
	var out []review.Review
	for _, r := range m.items {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReviews) Create(_ context.Context, r *review.Review) error {
	m.items = append(m.items, *r)
	return nil
}

func (m *mockReviews) IncrementHelpful(_ context.Context, id string) (int, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].HelpfulCount++
			return m.items[i].HelpfulCount, nil
		}
	}
	return 0, review.ErrNotFound
}

type mockNotify struct {
	requests []notify.Request
}

func (m *mockNotify) Create(_ context.Context, r *notify.Request) error {
	m.requests = append(m.requests, *r)
	return nil
}

func (m *mockNotify) CountPending(_ context.Context, productID string) (int, error) {
	n := 0
	for _, r := range m.requests {
		if r.ProductID == productID {
			n++
		}
	}
	return n, nil
}

type mockCoupons struct {
	items []coupon.Coupon
}

func (m *mockCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	for _, c := range m.items {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *mockCoupons) List(_ context.Context) ([]coupon.Coupon, error) {
	return m.items, nil
}

func (m *mockCoupons) Active(_ context.Context, now time.Time, limit int) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, c := range m.items {
		if c.Check(now) == nil && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	if _, err := m.FindByCode(context.Background(), c.Code); err == nil {
		return coupon.ErrDuplicateCode
	}
	m.items = append(m.items, *c)
	return nil
}

func (m *mockCoupons) Delete(_ context.Context, id string) error {
	m.items = slices.DeleteFunc(m.items, func(c coupon.Coupon) bool { return c.ID == id })
	return nil
}

type mockOrders struct {
	mu    sync.Mutex
	items []*order.Order
}

func (m *mockOrders) find(id string) (*order.Order, error) {
	for _, o := range m.items {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockOrders) AttachProviderOrder(_ context.Context, id, providerOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.find(id)
	if err != nil {
		return err
	}
	o.ProviderOrderID = providerOrderID
	return nil
}

func (m *mockOrders) GetByProviderOrderID(_ context.Context, userID, providerOrderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.UserID == userID && o.ProviderOrderID == providerOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrders) transition(id string, to order.Status, apply func(o *order.Order)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.find(id)
	if err != nil {
		return err
	}
	if !order.CanTransition(o.Status, to) {
		return order.ErrInvalidTransition
	}
	o.Status = to
	apply(o)
	return nil
}

func (m *mockOrders) MarkPaid(_ context.Context, id, paymentID, signature string) error {
	return m.transition(id, order.StatusPaid, func(o *order.Order) {
		o.PaymentID = paymentID
		o.Signature = signature
	})
}

func (m *mockOrders) MarkFailed(_ context.Context, id string) error {
	return m.transition(id, order.StatusFailed, func(*order.Order) {})
}

func (m *mockOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.items {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrders) List(_ context.Context, status order.Status) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.items {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrders) HasPurchased(_ context.Context, userID, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.UserID != userID || o.Status != order.StatusPaid {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

type mockRoles struct {
	roles map[string]auth.Role
}

func (m *mockRoles) RoleOf(_ context.Context, userID string) (auth.Role, error) {
	if r, ok := m.roles[userID]; ok {
		return r, nil
	}
	return auth.RoleUser, nil
}

func (m *mockRoles) ListUsers(_ context.Context) ([]auth.User, error) {
	var out []auth.User
	for id, r := range m.roles {
		out = append(out, auth.User{ID: id, Email: id + "@example.com", Role: r})
	}
	return out, nil
}

func (m *mockRoles) SetRole(_ context.Context, userID string, role auth.Role) error {
	if _, ok := m.roles[userID]; !ok {
		return auth.ErrUserNotFound
	}
	m.roles[userID] = role
	return nil
}

type mockGateway struct {
	n   int
	err error
}

func (m *mockGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.ProviderOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.n++
	return &payment.ProviderOrder{
		ID:       "order_test" + strconv.Itoa(m.n),
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Status:   "created",
	}, nil
}

func (m *mockGateway) KeyID() string { return "rzp_test_key" }

type mockImages struct {
	uploaded []string
}

func (m *mockImages) Upload(_ context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.uploaded = append(m.uploaded, name)
	return "https://cdn.example.com/" + name, nil
}

type mockModel struct {
	tokens []string
	err    error
}

func (m *mockModel) Stream(_ context.Context, _ chat.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, tok := range m.tokens {
			if !yield(tok, nil) {
				return
			}
		}
		if m.err != nil {
			yield("", m.err)
		}
	}
}

var errModelDown = errors.New("model down")
