package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/billdesk/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 300*time.Millisecond, cfg.PriceLookupDebounce)
	require.Equal(t, 2*time.Hour, cfg.WorkspaceIdleTTL)
	require.Equal(t, 10*time.Minute, cfg.MasterDataCacheTTL)
	require.Equal(t, 600, cfg.RateLimitPerMinute)
	require.False(t, cfg.IsProduction())
	require.False(t, cfg.AuditEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("APP_ENV", "production")
	t.Setenv("BILLING_API_URL", "https://bills.example.com/api/v1")
	t.Setenv("PRICE_LOOKUP_DEBOUNCE", "500ms")
	t.Setenv("PG_DSN", "postgres://audit@localhost/audit")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.True(t, cfg.AuditEnabled())
	require.Equal(t, "https://bills.example.com/api/v1", cfg.BillingAPIURL)
	require.Equal(t, 500*time.Millisecond, cfg.PriceLookupDebounce)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRequiresBillingAPI(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("BILLING_API_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Contains(t, buf.String(), `"k":"v"`)
}

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}
