package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/events"
)

// DefaultCurrency is used when none is configured.
const DefaultCurrency = "INR"

// Carts is the slice of the cart service checkout needs.
type Carts interface {
	Get(ctx context.Context, owner string) (*cart.Cart, error)
	Clear(ctx context.Context, owner string) error
}

// Params holds the dependencies of a Service. Events, TracerProvider and
// MeterProvider are optional.
type Params struct {
	Products  product.Repository
	Carts     Carts
	Coupons   coupon.Validator
	Orders    Repository
	Gateway   payment.Gateway
	KeySecret string
	Currency  string
	TaxRate   decimal.Decimal

	Events         events.Publisher
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service runs checkout: previews, order creation and payment verification.
type Service struct {
	products  product.Repository
	carts     Carts
	coupons   coupon.Validator
	orders    Repository
	gateway   payment.Gateway
	events    events.Publisher
	keySecret string
	currency  string
	taxRate   decimal.Decimal
	now       func() time.Time

	tracer   trace.Tracer
	created  metric.Int64Counter
	verified metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(p Params) (*Service, error) {
	if p.KeySecret == "" {
		return nil, errors.New("payment key secret is required")
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if p.TaxRate.IsZero() {
		p.TaxRate = pricing.DefaultTaxRate
	}
	if p.Events == nil {
		p.Events = events.Nop{}
	}
	if p.TracerProvider == nil {
		p.TracerProvider = tracenoop.NewTracerProvider()
	}
	if p.MeterProvider == nil {
		p.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := p.MeterProvider.Meter("storefront/order")
	created, err := meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders created, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	verified, err := meter.Int64Counter("storefront.payments.verified",
		metric.WithDescription("Payment verifications, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "payments verified counter")
	}

	return &Service{
		products:  p.Products,
		carts:     p.Carts,
		coupons:   p.Coupons,
		orders:    p.Orders,
		gateway:   p.Gateway,
		events:    p.Events,
		keySecret: p.KeySecret,
		currency:  p.Currency,
		taxRate:   p.TaxRate,
		now:       time.Now,
		tracer:    p.TracerProvider.Tracer("storefront/order"),
		created:   created,
		verified:  verified,
	}, nil
}

// Preview is a priced view of a cart before an order exists.
type Preview struct {
	Lines  []cart.Line
	Coupon *coupon.Coupon
	Quote  pricing.Quote
}

// Summary prices the owner's cart. An empty cart fails with ErrEmptyCart.
func (s *Service) Summary(ctx context.Context, owner, couponCode string) (*Preview, error) {
	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	cp, err := s.applyCoupon(ctx, couponCode)
	if err != nil {
		return nil, err
	}
	q, err := pricing.Compute(c.PricingLines(), percentOf(cp), s.taxRate)
	if err != nil {
		return nil, errors.Wrap(err, "compute quote")
	}
	return &Preview{Lines: c.Lines(), Coupon: cp, Quote: q.Rounded()}, nil
}

// LineRequest is a requested order line. Client prices are never trusted.
type LineRequest struct {
	ProductID string
	Size      string
	Quantity  int
}

// CreateRequest holds the input of Create.
type CreateRequest struct {
	UserID     string
	Items      []LineRequest
	Details    Details
	CouponCode string
}

// Checkout is what the client needs to open the payment widget.
type Checkout struct {
	Order           *Order
	ProviderOrderID string
	KeyID           string
	Amount          int64
	Currency        string
}

// Create re-prices the requested lines from the catalog, redeems the
// coupon, persists the order and opens a provider payment order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Checkout, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer func() {
		outcome := "ok"
		if rerr != nil {
			outcome = "error"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := req.Details.Validate(); err != nil {
		return nil, err
	}
	items, lines, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	cp, err := s.applyCoupon(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}
	q, err := pricing.Compute(lines, percentOf(cp), s.taxRate)
	if err != nil {
		return nil, errors.Wrap(err, "compute quote")
	}
	q = q.Rounded()

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		Details:         req.Details.Normalize(),
		Subtotal:        q.Subtotal,
		Discount:        q.Discount,
		Tax:             q.Tax,
		Total:           q.Total,
		AmountMinor:     q.AmountMinor,
		Currency:        s.currency,
		Status:          StatusCreated,
		DiscountPercent: q.DiscountPercent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cp != nil {
		o.CouponCode = cp.Code
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.Int64("order.amount_minor", o.AmountMinor))

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	po, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		AmountMinor: o.AmountMinor,
		Currency:    o.Currency,
		Receipt:     o.ID,
		Notes:       map[string]string{"user_id": o.UserID},
	})
	if err != nil {
		s.fail(ctx, o)
		return nil, errors.Wrap(err, "create provider order")
	}
	if err := s.orders.AttachProviderOrder(ctx, o.ID, po.ID); err != nil {
		s.fail(ctx, o)
		return nil, errors.Wrap(err, "attach provider order")
	}
	o.ProviderOrderID = po.ID

	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("provider_order_id", po.ID),
		zap.Int64("amount_minor", o.AmountMinor),
	)
	s.publish(ctx, events.OrderCreated, o)

	return &Checkout{
		Order:           o,
		ProviderOrderID: po.ID,
		KeyID:           s.gateway.KeyID(),
		Amount:          o.AmountMinor,
		Currency:        o.Currency,
	}, nil
}

// VerifyRequest is the payment widget's success callback.
type VerifyRequest struct {
	UserID          string
	ProviderOrderID string
	PaymentID       string
	Signature       string
}

// VerifyPayment checks the callback signature. A match marks the order paid
// and clears the user's cart; a mismatch marks it failed and releases the
// coupon. Verifying an already paid order with its own valid signature
// returns the order unchanged.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.VerifyPayment")
	defer func() {
		outcome := "paid"
		switch {
		case errors.Is(rerr, payment.ErrSignatureMismatch):
			outcome = "mismatch"
		case rerr != nil:
			outcome = "error"
		}
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	if strings.TrimSpace(req.ProviderOrderID) == "" ||
		strings.TrimSpace(req.PaymentID) == "" ||
		strings.TrimSpace(req.Signature) == "" {
		return nil, ErrMissingPayment
	}

	o, err := s.orders.GetByProviderOrderID(ctx, req.UserID, req.ProviderOrderID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if !payment.Verify(s.keySecret, req.ProviderOrderID, req.PaymentID, req.Signature) {
		zctx.From(ctx).Warn("Payment signature mismatch",
			zap.String("order_id", o.ID),
			zap.String("payment_id", req.PaymentID),
		)
		if o.Status == StatusCreated {
			s.fail(ctx, o)
		}
		return nil, payment.ErrSignatureMismatch
	}

	switch o.Status {
	case StatusPaid:
		if o.PaymentID == req.PaymentID {
			return o, nil
		}
		return nil, ErrInvalidTransition
	case StatusCreated:
	default:
		return nil, ErrInvalidTransition
	}

	if err := s.orders.MarkPaid(ctx, o.ID, req.PaymentID, req.Signature); err != nil {
		return nil, errors.Wrap(err, "mark order paid")
	}
	o.Status = StatusPaid
	o.PaymentID = req.PaymentID
	o.Signature = req.Signature
	o.UpdatedAt = s.now()

	zctx.From(ctx).Info("Payment verified", zap.String("order_id", o.ID), zap.String("payment_id", o.PaymentID))
	s.publish(ctx, events.OrderPaid, o)

	if err := s.carts.Clear(ctx, o.UserID); err != nil {
		zctx.From(ctx).Warn("Clear cart after payment", zap.String("user_id", o.UserID), zap.Error(err))
	}
	return o, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *Service) priceItems(ctx context.Context, reqs []LineRequest) ([]Item, []pricing.Line, error) {
	ids := make([]string, len(reqs))
	for i, it := range reqs {
		if it.Quantity <= 0 {
			return nil, nil, &QuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		ids[i] = it.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Stock belongs to the product, not the size.
	units := make(map[string]int, len(reqs))
	items := make([]Item, len(reqs))
	lines := make([]pricing.Line, len(reqs))
	for i, it := range reqs {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		units[p.ID] += it.Quantity
		if units[p.ID] > p.Stock {
			return nil, nil, &QuantityError{ProductID: p.ID, Quantity: units[p.ID], Stock: p.Stock}
		}
		items[i] = Item{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: it.Quantity, Size: it.Size}
		lines[i] = pricing.Line{Price: p.Price, Quantity: it.Quantity}
	}
	return items, lines, nil
}

func (s *Service) applyCoupon(ctx context.Context, code string) (*coupon.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	return s.coupons.Validate(ctx, code)
}

func percentOf(c *coupon.Coupon) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return c.DiscountPercent
}

func (s *Service) fail(ctx context.Context, o *Order) {
	if err := s.orders.MarkFailed(ctx, o.ID); err != nil {
		zctx.From(ctx).Error("Mark order failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	o.Status = StatusFailed
	s.publish(ctx, events.OrderFailed, o)
}

func (s *Service) publish(ctx context.Context, typ string, o *Order) {
	ev := events.Event{Type: typ, Key: o.ID, Time: s.now(), Payload: o}
	if err := s.events.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", typ),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
