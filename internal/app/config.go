package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisAddr   string `default:"" usage:"Redis address for the webhook dedup window; empty selects the in-process store" flag:"redis-addr"`

	Currency          string `default:"usd" usage:"Default currency for payment intents"`
	MaxItemQty        int    `default:"100" usage:"Per-item quantity cap in carts" flag:"max-item-qty"`
	LowStockThreshold int    `default:"5" usage:"Stock level at or below which an inventory.low event fires" flag:"low-stock-threshold"`

	Stripe   StripeConfig
	Refunds  RefundConfig
	Events   EventsConfig
	Graceful GracefulConfig
}

// StripeConfig holds the payment gateway credentials.
type StripeConfig struct {
	SecretKey     string        `usage:"Stripe secret key (CHECKOUT_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret string        `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
	CallTimeout   time.Duration `default:"10s" usage:"Timeout for gateway calls" flag:"stripe-call-timeout"`
}

// RefundConfig exposes the partial-refund settlement product decision.
type RefundConfig struct {
	SettleOnPartial bool `default:"false" usage:"Mark orders refunded on partial refunds" flag:"settle-on-partial-refund"`
}

// EventsConfig controls the optional Kafka fanout of domain events.
type EventsConfig struct {
	Brokers []string `usage:"Kafka brokers for domain events; empty disables fanout"`
	Topic   string   `default:"checkout.events" usage:"Kafka topic for domain events"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the CHECKOUT_-prefixed
// configuration.
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
