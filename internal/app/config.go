package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	BillingAPIURL     string        `envconfig:"BILLING_API_URL" default:"http://localhost:8080/api/v1"`
	BillingAPIToken   string        `envconfig:"BILLING_API_TOKEN"`
	BillingAPITimeout time.Duration `envconfig:"BILLING_API_TIMEOUT" default:"15s"`

	PriceLookupDebounce time.Duration `envconfig:"PRICE_LOOKUP_DEBOUNCE" default:"300ms"`
	WorkspaceIdleTTL    time.Duration `envconfig:"WORKSPACE_IDLE_TTL" default:"2h"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	MasterDataCacheTTL time.Duration `envconfig:"MASTERDATA_CACHE_TTL" default:"10m"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`
	PrintLocale  string `envconfig:"PRINT_LOCALE" default:"en-US"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.BillingAPIURL == "" {
		return nil, errors.New("billing api url must be provided")
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 600
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// AuditEnabled reports whether a postgres DSN was configured.
func (c *Config) AuditEnabled() bool {
	return c != nil && c.PGDSN != ""
}
