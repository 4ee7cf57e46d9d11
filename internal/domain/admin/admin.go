// Package admin implements the back-office operations of the storefront:
// catalog and coupon management, user roles, order listing and the
// dashboard.
package admin

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/events"
)

// MaxImageSize bounds an uploaded product image.
const MaxImageSize = 5 << 20

var (
	// ErrInvalidImage is returned for empty, oversized or non-image uploads.
	ErrInvalidImage = errors.New("invalid image")

	imageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
)

// ImageStore uploads product images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
}

// Catalog is the read and write side of the product store.
type Catalog interface {
	product.Repository
	product.Writer
}

// Params holds the dependencies of a Service. Indexer and Events are
// optional.
type Params struct {
	Products Catalog
	Coupons  *coupon.Service
	Users    auth.Repository
	Orders   order.Repository
	Images   ImageStore
	Indexer  product.Indexer
	Events   events.Publisher
}

// Service runs admin operations.
type Service struct {
	products Catalog
	coupons  *coupon.Service
	users    auth.Repository
	orders   order.Repository
	images   ImageStore
	indexer  product.Indexer
	events   events.Publisher
	now      func() time.Time
}

// NewService creates an admin Service.
func NewService(p Params) *Service {
	if p.Events == nil {
		p.Events = events.Nop{}
	}
	return &Service{
		products: p.Products,
		coupons:  p.Coupons,
		users:    p.Users,
		orders:   p.Orders,
		images:   p.Images,
		indexer:  p.Indexer,
		events:   p.Events,
		now:      time.Now,
	}
}

// CreateProduct validates and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, p product.Product) (*product.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.ImageURL == "" && len(p.Images) > 0 {
		p.ImageURL = p.Images[0]
	}
	if err := s.products.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	s.index(ctx, p)
	return &p, nil
}

// UpdateProduct replaces a product. A stock change from zero to positive
// publishes a restock event.
func (s *Service) UpdateProduct(ctx context.Context, p product.Product) (*product.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	prev, err := s.products.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = s.now()
	if p.ImageURL == "" && len(p.Images) > 0 {
		p.ImageURL = p.Images[0]
	}
	if err := s.products.Update(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	s.index(ctx, p)

	if !prev.InStock() && p.InStock() {
		ev := events.Event{Type: events.ProductRestocked, Key: p.ID, Time: p.UpdatedAt, Payload: restock(p)}
		if err := s.events.Publish(ctx, ev); err != nil {
			zctx.From(ctx).Warn("Publish restock event", zap.String("product_id", p.ID), zap.Error(err))
		}
	}
	return &p, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return err
		}
		return errors.Wrap(err, "delete product")
	}
	if s.indexer != nil {
		if err := s.indexer.Remove(ctx, id); err != nil {
			zctx.From(ctx).Warn("Remove product from search index", zap.String("product_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) index(ctx context.Context, p product.Product) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Index(ctx, p); err != nil {
		zctx.From(ctx).Warn("Index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}

type restock product.Product

func (r restock) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(r.ID)
	e.FieldStart("name")
	e.Str(r.Name)
	e.FieldStart("stock")
	e.Int(r.Stock)
	e.ObjEnd()
}

// UploadImage stores an image under a random name and returns its URL.
func (s *Service) UploadImage(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	if size <= 0 || size > MaxImageSize {
		return "", errors.Wrapf(ErrInvalidImage, "size must be between 1 and %d bytes", MaxImageSize)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", errors.Wrapf(ErrInvalidImage, "unsupported content type %q", contentType)
	}
	if e := strings.ToLower(path.Ext(filename)); e == ".jpeg" || e == ext {
		ext = e
	}
	name := uuid.New().String() + ext

	url, err := s.images.Upload(ctx, name, contentType, r, size)
	if err != nil {
		return "", errors.Wrap(err, "upload image")
	}
	return url, nil
}

// Coupons lists every coupon.
func (s *Service) Coupons(ctx context.Context) ([]coupon.Coupon, error) {
	return s.coupons.List(ctx)
}

// CreateCoupon creates a coupon.
func (s *Service) CreateCoupon(ctx context.Context, d coupon.Draft) (*coupon.Coupon, error) {
	return s.coupons.Create(ctx, d)
}

// DeleteCoupon deletes a coupon.
func (s *Service) DeleteCoupon(ctx context.Context, id string) error {
	return s.coupons.Delete(ctx, id)
}

// Users lists profiles with their role.
func (s *Service) Users(ctx context.Context) ([]auth.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, userID, role string) error {
	r, err := auth.ParseRole(role)
	if err != nil {
		return err
	}
	if err := s.users.SetRole(ctx, userID, r); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return err
		}
		return errors.Wrap(err, "set role")
	}
	zctx.From(ctx).Info("Role changed", zap.String("user_id", userID), zap.String("role", string(r)))
	return nil
}

// Orders lists orders, newest first, optionally filtered by status.
func (s *Service) Orders(ctx context.Context, status order.Status) ([]order.Order, error) {
	orders, err := s.orders.List(ctx, status)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Dashboard loads orders, products and users concurrently and aggregates
// them.
func (s *Service) Dashboard(ctx context.Context) (*Stats, error) {
	var (
		orders   []order.Order
		products []product.Product
		users    []auth.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.orders.List(gctx, ""); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = s.products.List(gctx); err != nil {
			return errors.Wrap(err, "list products")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if users, err = s.users.ListUsers(gctx); err != nil {
			return errors.Wrap(err, "list users")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats := ComputeStats(orders, products, len(users))
	return &stats, nil
}
