package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr          string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string        `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL  string        `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	StreamTimeout time.Duration `default:"30s" usage:"Write deadline for each chat stream event" flag:"stream-timeout"`
	Auth          AuthConfig
	Payment       PaymentConfig
	Chat          ChatConfig
	Search        SearchConfig
	Kafka         KafkaConfig
	Storage       StorageConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// AuthConfig verifies the identity provider's HS256 access tokens.
type AuthConfig struct {
	JWTSecret string `usage:"HS256 secret of the identity provider (STOREFRONT_AUTH_JWT_SECRET)" flag:"jwt-secret"`
	Audience  string `default:"authenticated" usage:"Required token audience, empty to skip" flag:"jwt-audience"`
}

// PaymentConfig holds the Razorpay credentials and pricing constants.
type PaymentConfig struct {
	BaseURL   string `default:"https://api.razorpay.com" usage:"Razorpay API base URL" flag:"razorpay-url"`
	KeyID     string `usage:"Razorpay key id" flag:"razorpay-key-id"`
	KeySecret string `usage:"Razorpay key secret" flag:"razorpay-key-secret"`
	Currency  string `default:"INR" usage:"Order currency"`
	TaxRate   string `default:"0.18" usage:"Tax rate applied after discount" flag:"tax-rate"`
}

// ChatConfig selects the language model behind the sales assistant. With
// no API key the assistant answers with a canned message.
type ChatConfig struct {
	Provider      string `default:"auto" usage:"Language model provider: auto, mistral, gemini or none" flag:"chat-provider"`
	Model         string `default:"" usage:"Model name, empty for the provider default" flag:"chat-model"`
	MistralAPIKey string `usage:"Mistral API key" flag:"mistral-api-key"`
	GeminiAPIKey  string `usage:"Gemini API key" flag:"gemini-api-key"`
	PersonaName   string `default:"Ravi" usage:"Assistant name" flag:"persona-name"`
	StoreName     string `default:"P SQUARE MEN'S WEAR" usage:"Store name used in the assistant prompt" flag:"store-name"`
}

// SearchConfig points at the Elasticsearch cluster. Search is disabled
// when no address is set.
type SearchConfig struct {
	Addresses []string `usage:"Elasticsearch addresses" flag:"es-addresses"`
	Username  string   `usage:"Elasticsearch user" flag:"es-username"`
	Password  string   `usage:"Elasticsearch password" flag:"es-password"`
	Index     string   `default:"products" usage:"Product index name" flag:"es-index"`
}

// KafkaConfig enables domain event publishing when brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers" flag:"kafka-brokers"`
	Topic   string   `default:"storefront.events" usage:"Events topic" flag:"kafka-topic"`
}

// StorageConfig locates the object storage bucket for product images.
type StorageConfig struct {
	URL        string `usage:"Storage API base URL" flag:"storage-url"`
	Bucket     string `default:"product-images" usage:"Image bucket" flag:"storage-bucket"`
	ServiceKey string `usage:"Storage service key" flag:"storage-service-key"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, then environment variables and YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	case c.Auth.JWTSecret == "":
		return errors.New("jwt secret is required: set STOREFRONT_AUTH_JWT_SECRET")
	case c.Payment.KeyID == "" || c.Payment.KeySecret == "":
		return errors.New("razorpay key id and secret are required")
	}
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	switch c.Chat.Provider {
	case "auto", "mistral", "gemini", "none":
	default:
		return errors.Errorf("unknown chat provider %q", c.Chat.Provider)
	}
	return nil
}

// TaxRate parses Payment.TaxRate.
func (c *Config) TaxRate() (decimal.Decimal, error) {
	r, err := decimal.NewFromString(c.Payment.TaxRate)
	if err != nil || r.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("invalid tax rate %q", c.Payment.TaxRate)
	}
	return r, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
