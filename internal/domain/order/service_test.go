package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/events"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCarts struct {
	cart    *cart.Cart
	cleared []string
}

func (m *mockCarts) Get(_ context.Context, owner string) (*cart.Cart, error) {
	if m.cart == nil {
		return cart.New(owner), nil
	}
	return m.cart, nil
}

func (m *mockCarts) Clear(_ context.Context, owner string) error {
	m.cleared = append(m.cleared, owner)
	return nil
}

type mockCouponValidator struct {
	coupon *coupon.Coupon
	err    error
}

func (m *mockCouponValidator) Validate(context.Context, string) (*coupon.Coupon, error) {
	return m.coupon, m.err
}

type mockOrderRepo struct {
	orders    map[string]*Order
	createErr error
	attachErr error
	failed    []string
}

func newOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) AttachProviderOrder(_ context.Context, id, providerOrderID string) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	m.orders[id].ProviderOrderID = providerOrderID
	return nil
}

func (m *mockOrderRepo) GetByProviderOrderID(_ context.Context, userID, providerOrderID string) (*Order, error) {
	for _, o := range m.orders {
		if o.UserID == userID && o.ProviderOrderID == providerOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) transition(id string, to Status) error {
	o := m.orders[id]
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	return nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, id, paymentID, signature string) error {
	if err := m.transition(id, StatusPaid); err != nil {
		return err
	}
	m.orders[id].PaymentID = paymentID
	m.orders[id].Signature = signature
	return nil
}

func (m *mockOrderRepo) MarkFailed(_ context.Context, id string) error {
	m.failed = append(m.failed, id)
	return m.transition(id, StatusFailed)
}

func (m *mockOrderRepo) ListByUser(context.Context, string) ([]Order, error) { return nil, nil }

func (m *mockOrderRepo) List(context.Context, Status) ([]Order, error) { return nil, nil }

func (m *mockOrderRepo) HasPurchased(context.Context, string, string) (bool, error) {
	return false, nil
}

type mockGateway struct {
	requests []payment.OrderRequest
	err      error
}

func (m *mockGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.ProviderOrder, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &payment.ProviderOrder{ID: "order_1", Amount: req.AmountMinor, Currency: req.Currency, Status: "created"}, nil
}

func (m *mockGateway) KeyID() string { return "rzp_test_key" }

type recordingPublisher struct {
	types []string
}

func (r *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	for _, ev := range evs {
		r.types = append(r.types, ev.Type)
	}
	return nil
}

// --- Helpers ---

type fixture struct {
	svc      *Service
	carts    *mockCarts
	coupons  *mockCouponValidator
	orders   *mockOrderRepo
	gateway  *mockGateway
	events   *recordingPublisher
	products *mockProductRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts:   &mockCarts{},
		coupons: &mockCouponValidator{},
		orders:  newOrderRepo(),
		gateway: &mockGateway{},
		events:  &recordingPublisher{},
		products: &mockProductRepo{byID: map[string]product.Product{
			"shirt": {ID: "shirt", Name: "Oxford Shirt", Price: decimal.NewFromInt(1000), Stock: 5},
			"tee":   {ID: "tee", Name: "Crew Tee", Price: decimal.NewFromInt(250), Stock: 1},
		}},
	}
	svc, err := NewService(Params{
		Products:  f.products,
		Carts:     f.carts,
		Coupons:   f.coupons,
		Orders:    f.orders,
		Gateway:   f.gateway,
		KeySecret: "shh",
		Events:    f.events,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	f.svc = svc
	return f
}

func validDetails() Details {
	return Details{
		FullName: "Ravi Kumar",
		Email:    "ravi@example.com",
		Phone:    "9876543210",
		Address:  "12 MG Road",
		City:     "Bengaluru",
		Pincode:  "560001",
	}
}

func tenPercent() *coupon.Coupon {
	return &coupon.Coupon{Code: "SAVE10", DiscountPercent: decimal.NewFromInt(10), MaxUses: 5}
}

// --- Tests ---

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	f.coupons.coupon = tenPercent()

	res, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:     "user-1",
		Items:      []LineRequest{{ProductID: "shirt", Quantity: 1, Size: "M"}},
		Details:    validDetails(),
		CouponCode: "save10",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(106200), res.Amount)
	assert.Equal(t, "order_1", res.ProviderOrderID)
	assert.Equal(t, "rzp_test_key", res.KeyID)
	assert.Equal(t, "INR", res.Currency)

	o := res.Order
	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.True(t, decimal.NewFromInt(1000).Equal(o.Subtotal))
	assert.True(t, decimal.NewFromInt(100).Equal(o.Discount))
	assert.True(t, decimal.NewFromInt(162).Equal(o.Tax))
	assert.True(t, decimal.NewFromInt(1062).Equal(o.Total))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Oxford Shirt", o.Items[0].Name)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(106200), f.gateway.requests[0].AmountMinor)
	assert.Equal(t, o.ID, f.gateway.requests[0].Receipt)
	assert.Equal(t, "order_1", f.orders.orders[o.ID].ProviderOrderID)
	assert.Equal(t, []string{events.OrderCreated}, f.events.types)
}

func TestService_CreateRejectsBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		coupon  error
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "no items",
			req:  CreateRequest{UserID: "u", Details: validDetails()},
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrEmptyCart)
			},
		},
		{
			name: "missing city",
			req: CreateRequest{UserID: "u", Items: []LineRequest{{ProductID: "shirt", Quantity: 1}}, Details: func() Details {
				d := validDetails()
				d.City = "   "
				return d
			}()},
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrInvalidDetails)
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "city", fe.Field)
			},
		},
		{
			name: "quantity above stock",
			req:  CreateRequest{UserID: "u", Items: []LineRequest{{ProductID: "tee", Quantity: 2}}, Details: validDetails()},
			wantErr: func(t *testing.T, err error) {
				var qe *QuantityError
				require.True(t, errors.As(err, &qe))
				assert.Equal(t, 1, qe.Stock)
			},
		},
		{
			name: "sizes of one product above stock",
			req: CreateRequest{UserID: "u", Items: []LineRequest{
				{ProductID: "shirt", Quantity: 3, Size: "M"},
				{ProductID: "shirt", Quantity: 3, Size: "L"},
			}, Details: validDetails()},
			wantErr: func(t *testing.T, err error) {
				var qe *QuantityError
				require.True(t, errors.As(err, &qe))
				assert.Equal(t, "shirt", qe.ProductID)
				assert.Equal(t, 6, qe.Quantity)
				assert.Equal(t, 5, qe.Stock)
			},
		},
		{
			name: "zero quantity",
			req:  CreateRequest{UserID: "u", Items: []LineRequest{{ProductID: "tee", Quantity: 0}}, Details: validDetails()},
			wantErr: func(t *testing.T, err error) {
				var qe *QuantityError
				require.True(t, errors.As(err, &qe))
			},
		},
		{
			name: "unknown product",
			req:  CreateRequest{UserID: "u", Items: []LineRequest{{ProductID: "ghost", Quantity: 1}}, Details: validDetails()},
			wantErr: func(t *testing.T, err error) {
				var pe *ProductNotFoundError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, "ghost", pe.ProductID)
			},
		},
		{
			name:   "expired coupon",
			req:    CreateRequest{UserID: "u", Items: []LineRequest{{ProductID: "shirt", Quantity: 1}}, Details: validDetails(), CouponCode: "OLD"},
			coupon: coupon.ErrExpired,
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, coupon.ErrExpired)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.coupons.err = tt.coupon

			_, err := f.svc.Create(context.Background(), tt.req)
			tt.wantErr(t, err)
			assert.Empty(t, f.orders.orders)
			assert.Empty(t, f.gateway.requests)
			assert.Empty(t, f.events.types)
		})
	}
}

func TestService_CreateCouponExhaustedAtRedemption(t *testing.T) {
	f := newFixture(t)
	f.coupons.coupon = tenPercent()
	f.orders.createErr = coupon.ErrExhausted

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: "u", Items: []LineRequest{{ProductID: "shirt", Quantity: 1}}, Details: validDetails(), CouponCode: "SAVE10",
	})
	require.ErrorIs(t, err, coupon.ErrExhausted)
	assert.Empty(t, f.gateway.requests)
}

func TestService_CreateGatewayFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = &payment.UpstreamError{Status: 401, Body: "auth failed"}

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: "u", Items: []LineRequest{{ProductID: "shirt", Quantity: 2}}, Details: validDetails(),
	})
	require.ErrorIs(t, err, payment.ErrUpstream)
	require.Len(t, f.orders.failed, 1)
	assert.Equal(t, StatusFailed, f.orders.orders[f.orders.failed[0]].Status)
	assert.Equal(t, []string{events.OrderFailed}, f.events.types)
}

func TestService_CreateAttachFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.coupons.coupon = tenPercent()
	f.orders.attachErr = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: "u", Items: []LineRequest{{ProductID: "shirt", Quantity: 1}}, Details: validDetails(), CouponCode: "SAVE10",
	})
	require.ErrorContains(t, err, "attach provider order")
	require.Len(t, f.gateway.requests, 1)
	require.Len(t, f.orders.failed, 1)
	assert.Equal(t, StatusFailed, f.orders.orders[f.orders.failed[0]].Status)
	assert.Equal(t, []string{events.OrderFailed}, f.events.types)
}

func TestService_CreateSizesWithinStock(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: "u",
		Items: []LineRequest{
			{ProductID: "shirt", Quantity: 2, Size: "M"},
			{ProductID: "shirt", Quantity: 3, Size: "L"},
		},
		Details: validDetails(),
	})
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 2)
	assert.True(t, decimal.NewFromInt(5000).Equal(res.Order.Subtotal))
}

func createdOrder(t *testing.T, f *fixture) *Order {
	t.Helper()
	res, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: "user-1", Items: []LineRequest{{ProductID: "shirt", Quantity: 1}}, Details: validDetails(),
	})
	require.NoError(t, err)
	f.events.types = nil
	return res.Order
}

func TestService_VerifyPayment(t *testing.T) {
	f := newFixture(t)
	o := createdOrder(t, f)
	sig := payment.Sign("shh", "order_1", "pay_1")

	paid, err := f.svc.VerifyPayment(context.Background(), VerifyRequest{
		UserID: "user-1", ProviderOrderID: "order_1", PaymentID: "pay_1", Signature: sig,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, StatusPaid, f.orders.orders[o.ID].Status)
	assert.Equal(t, "pay_1", f.orders.orders[o.ID].PaymentID)
	assert.Equal(t, []string{"user-1"}, f.carts.cleared)
	assert.Equal(t, []string{events.OrderPaid}, f.events.types)

	again, err := f.svc.VerifyPayment(context.Background(), VerifyRequest{
		UserID: "user-1", ProviderOrderID: "order_1", PaymentID: "pay_1", Signature: sig,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, again.Status)
	assert.Len(t, f.events.types, 1)
}

func TestService_VerifyPaymentMismatchFailsOrder(t *testing.T) {
	f := newFixture(t)
	o := createdOrder(t, f)
	sig := []byte(payment.Sign("shh", "order_1", "pay_1"))
	sig[10] ^= 1

	_, err := f.svc.VerifyPayment(context.Background(), VerifyRequest{
		UserID: "user-1", ProviderOrderID: "order_1", PaymentID: "pay_1", Signature: string(sig),
	})
	require.ErrorIs(t, err, payment.ErrSignatureMismatch)
	assert.Equal(t, StatusFailed, f.orders.orders[o.ID].Status)
	assert.Equal(t, []string{o.ID}, f.orders.failed)
	assert.Empty(t, f.carts.cleared)

	_, err = f.svc.VerifyPayment(context.Background(), VerifyRequest{
		UserID: "user-1", ProviderOrderID: "order_1", PaymentID: "pay_1", Signature: payment.Sign("shh", "order_1", "pay_1"),
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_VerifyPaymentValidation(t *testing.T) {
	f := newFixture(t)
	createdOrder(t, f)

	_, err := f.svc.VerifyPayment(context.Background(), VerifyRequest{UserID: "user-1", ProviderOrderID: "order_1", PaymentID: "pay_1"})
	require.ErrorIs(t, err, ErrMissingPayment)

	_, err = f.svc.VerifyPayment(context.Background(), VerifyRequest{
		UserID: "someone-else", ProviderOrderID: "order_1", PaymentID: "pay_1", Signature: payment.Sign("shh", "order_1", "pay_1"),
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.orders.failed)
}

func TestService_Summary(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Summary(context.Background(), "guest-1", "")
	require.ErrorIs(t, err, ErrEmptyCart)

	c := cart.New("guest-1")
	_, err = c.Add(f.products.byID["shirt"], 1, "")
	require.NoError(t, err)
	f.carts.cart = c
	f.coupons.coupon = tenPercent()

	p, err := f.svc.Summary(context.Background(), "guest-1", "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(106200), p.Quote.AmountMinor)
	assert.Equal(t, "SAVE10", p.Coupon.Code)
	assert.Len(t, p.Lines, 1)
}

func TestDetails_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(d *Details)
		field string
	}{
		{name: "valid", edit: func(*Details) {}},
		{name: "name", edit: func(d *Details) { d.FullName = "" }, field: "full_name"},
		{name: "email missing", edit: func(d *Details) { d.Email = "" }, field: "email"},
		{name: "email malformed", edit: func(d *Details) { d.Email = "ravi.example.com" }, field: "email"},
		{name: "phone", edit: func(d *Details) { d.Phone = " " }, field: "phone"},
		{name: "address", edit: func(d *Details) { d.Address = "" }, field: "address"},
		{name: "pincode short", edit: func(d *Details) { d.Pincode = "5600" }, field: "pincode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDetails()
			tt.edit(&d)
			err := d.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusCreated, StatusPaid))
	assert.True(t, CanTransition(StatusCreated, StatusFailed))
	assert.False(t, CanTransition(StatusPaid, StatusFailed))
	assert.False(t, CanTransition(StatusFailed, StatusPaid))
	assert.False(t, CanTransition(StatusPaid, StatusPaid))
}
