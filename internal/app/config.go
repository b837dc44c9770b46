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

	Gateway      GatewayConfig
	Intent       IntentConfig
	APIKeyPepper string `usage:"HMAC pepper for back-office API key hashing" flag:"api-key-pepper"`

	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// GatewayConfig holds the hosted-payment gateway credentials. Username and
// Password authenticate server-side calls; PublicKey is client-facing only;
// HMACKey verifies callback signatures.
type GatewayConfig struct {
	Endpoint     string        `usage:"Gateway API base URL" flag:"gateway-endpoint"`
	Username     string        `usage:"Gateway API username" flag:"gateway-username"`
	Password     string        `usage:"Gateway API password" flag:"gateway-password"`
	PublicKey    string        `usage:"Gateway public (client-side) key" flag:"gateway-public-key"`
	HMACKey      string        `usage:"Shared secret for callback signature verification" flag:"gateway-hmac-key"`
	MerchantCode string        `usage:"Merchant code for widget session configs" flag:"merchant-code"`
	Currency     string        `default:"PEN" usage:"Default three-letter currency code"`
	Timeout      time.Duration `default:"10s" usage:"Gateway HTTP timeout"`
}

// IntentConfig controls the pending-intent store.
type IntentConfig struct {
	TTL           time.Duration `default:"1h" usage:"Pending intent time-to-live"`
	PurgeInterval time.Duration `default:"5m" usage:"Expired intent purge interval"`
}

// RateLimitConfig controls the per-client rate limiter.
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
	if cfg.Gateway.Endpoint == "" || cfg.Gateway.Username == "" || cfg.Gateway.Password == "" {
		return nil, errors.New("gateway endpoint and credentials are required")
	}
	if cfg.Gateway.HMACKey == "" {
		return nil, errors.New("gateway HMAC key is required for callback verification")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's CHECKOUT_-prefixed configuration.
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
