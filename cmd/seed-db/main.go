// Command seed-db migrates the database and loads the starter catalog,
// coupons and an optional admin account.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Rating      decimal.Decimal `json:"rating"`
	ImageURL    string          `json:"image_url"`
	Images      []string        `json:"images"`
	Sizes       []string        `json:"sizes"`
}

func (p productJSON) product(now time.Time) product.Product {
	return product.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Stock:       p.Stock,
		Rating:      p.Rating,
		ImageURL:    p.ImageURL,
		Images:      p.Images,
		Sizes:       p.Sizes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type options struct {
	databaseURL  string
	productsFile string
	adminID      string
	adminEmail   string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.adminID, "admin-id", "", "user id to grant the admin role (or STOREFRONT_SEED_ADMIN_ID env)")
	flag.StringVar(&opts.adminEmail, "admin-email", "", "email of the admin profile")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminID == "" {
		opts.adminID = os.Getenv("STOREFRONT_SEED_ADMIN_ID")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if opts.adminID != "" {
		if err := seedAdmin(ctx, pool, opts.adminID, opts.adminEmail); err != nil {
			return errors.Wrap(err, "seed admin")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	now := time.Now()
	for _, pj := range products {
		p := pj.product(now)
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
		if err := repo.Upsert(ctx, &p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding starter coupons")

	now := time.Now()
	drafts := []coupon.Draft{
		{Code: "WELCOME10", DiscountPercent: decimal.NewFromInt(10), ValidUntil: now.AddDate(1, 0, 0), MaxUses: 1000},
		{Code: "FESTIVE20", DiscountPercent: decimal.NewFromInt(20), ValidUntil: now.AddDate(0, 3, 0), MaxUses: 200},
		{Code: "VIP25", DiscountPercent: decimal.NewFromInt(25), ValidUntil: now.AddDate(0, 1, 0), MaxUses: 50},
	}

	for _, d := range drafts {
		if err := d.Validate(now); err != nil {
			return errors.Wrapf(err, "coupon %s", d.Code)
		}
		c := &coupon.Coupon{
			ID:              uuid.NewString(),
			Code:            coupon.NormalizeCode(d.Code),
			DiscountPercent: d.DiscountPercent,
			ValidUntil:      d.ValidUntil,
			MaxUses:         d.MaxUses,
			CreatedAt:       now,
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("discount_percent", c.DiscountPercent.String()))
	}

	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, id, email string) error {
	users := postgres.NewUserRepository(pool)
	if err := users.UpsertProfile(ctx, auth.User{ID: id, Email: email, FullName: "Store Admin"}); err != nil {
		return errors.Wrap(err, "upsert profile")
	}
	if err := users.SetRole(ctx, id, auth.RoleAdmin); err != nil {
		return errors.Wrap(err, "set role")
	}

	slog.Info("granted admin role", slog.String("user_id", id))

	return nil
}
