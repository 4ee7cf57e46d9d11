package app

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

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
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/images"
	"github.com/xenking/storefront/internal/llm/gemini"
	"github.com/xenking/storefront/internal/llm/mistral"
	"github.com/xenking/storefront/internal/razorpay"
	"github.com/xenking/storefront/internal/search/elastic"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second), health.WithThresholds(3, 1))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// Optional integrations.
	publisher := events.Publisher(events.Nop{})
	if len(cfg.Kafka.Brokers) > 0 {
		k := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := k.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		}()
		publisher = k
		lg.Info("Publishing events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var (
		searcher product.Searcher
		indexer  product.Indexer
	)
	if len(cfg.Search.Addresses) > 0 {
		idx, err := elastic.New(ctx, elastic.Config{
			Addresses: cfg.Search.Addresses,
			Username:  cfg.Search.Username,
			Password:  cfg.Search.Password,
			Index:     cfg.Search.Index,
		})
		if err != nil {
			// Catalog listing falls back to in-memory matching.
			lg.Warn("Product search disabled", zap.Error(err))
		} else {
			searcher, indexer = idx, idx
		}
	}

	imageStore, err := newImageStore(cfg.Storage, m)
	if err != nil {
		return err
	}

	gateway, err := razorpay.New(razorpay.Options{
		BaseURL:        cfg.Payment.BaseURL,
		KeyID:          cfg.Payment.KeyID,
		KeySecret:      cfg.Payment.KeySecret,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create payment gateway")
	}

	model, err := newModel(ctx, cfg.Chat, m)
	if err != nil {
		return err
	}
	if model == nil {
		lg.Warn("No language model configured, chat answers with a fallback message")
	}

	// Domain services.
	taxRate, err := cfg.TaxRate()
	if err != nil {
		return err
	}
	coupons := coupon.NewService(couponRepo)
	carts := cart.NewService(postgres.NewCartStore(pool), productRepo)
	orders, err := order.NewService(order.Params{
		Products:       productRepo,
		Carts:          carts,
		Coupons:        coupons,
		Orders:         orderRepo,
		Gateway:        gateway,
		KeySecret:      cfg.Payment.KeySecret,
		Currency:       cfg.Payment.Currency,
		TaxRate:        taxRate,
		Events:         publisher,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL:  cfg.ImageBaseURL,
		StreamTimeout: cfg.StreamTimeout,
	}, handler.Params{
		Auth:     auth.NewAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.Audience, userRepo),
		Catalog:  product.NewCatalog(productRepo, searcher),
		Products: productRepo,
		Carts:    carts,
		Wishlist: wishlist.NewService(postgres.NewWishlistRepository(pool), productRepo),
		Recent:   recent.NewService(postgres.NewRecentRepository(pool), productRepo),
		Reviews:  review.NewService(postgres.NewReviewRepository(pool), productRepo, orderRepo),
		Notify:   notify.NewService(postgres.NewNotifyRepository(pool), productRepo),
		Coupons:  coupons,
		Orders:   orders,
		Admin: admin.NewService(admin.Params{
			Products: productRepo,
			Coupons:  coupons,
			Users:    userRepo,
			Orders:   orderRepo,
			Images:   imageStore,
			Indexer:  indexer,
			Events:   publisher,
		}),
		Assistant: chat.NewAssistant(productRepo, model, chat.Persona{
			Name:  cfg.Chat.PersonaName,
			Store: cfg.Chat.StoreName,
		}),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.GuestHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// newModel picks the chat model. "auto" prefers Mistral, then Gemini, and
// returns nil when neither key is set.
func newModel(ctx context.Context, cfg ChatConfig, m *app.Telemetry) (chat.Model, error) {
	provider := cfg.Provider
	if provider == "auto" {
		switch {
		case cfg.MistralAPIKey != "":
			provider = "mistral"
		case cfg.GeminiAPIKey != "":
			provider = "gemini"
		default:
			provider = "none"
		}
	}

	switch provider {
	case "mistral":
		c, err := mistral.New(mistral.Options{
			APIKey:         cfg.MistralAPIKey,
			Model:          cfg.Model,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "create mistral client")
		}
		return c, nil
	case "gemini":
		c, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, errors.Wrap(err, "create gemini client")
		}
		return c, nil
	default:
		return nil, nil
	}
}

// unconfiguredImages rejects uploads when no bucket is configured.
type unconfiguredImages struct{}

func (unconfiguredImages) Upload(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", errors.New("image storage is not configured")
}

func newImageStore(cfg StorageConfig, m *app.Telemetry) (admin.ImageStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return unconfiguredImages{}, nil
	}
	s, err := images.New(cfg.URL, cfg.Bucket, cfg.ServiceKey, m.TracerProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create image store")
	}
	return s, nil
}
