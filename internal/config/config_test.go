package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	q, err := cfg.Grid.Quantity()
	require.NoError(t, err)
	assert.Equal(t, "0.001", q.String())
	assert.Equal(t, 60*time.Second, cfg.Grid.SleepInterval.Duration)
	assert.Equal(t, 5*time.Second, cfg.StaleOrders.MaxAge.Duration)
	assert.InDelta(t, 25.0, cfg.Trend.Threshold, 0)
	assert.True(t, cfg.Position.Flatten)
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "live"
	cfg.Grid.PriceStep = 0
	cfg.Grid.OrderQuantity = "-1"
	cfg.Trend.Threshold = 100

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, "exchange: api_key is required")
	assert.Contains(t, msg, "wallet: either private_key or encrypted_key_path")
	assert.Contains(t, msg, "grid: price_step must be > 0")
	assert.Contains(t, msg, "grid: order_quantity must be a positive decimal")
	assert.Contains(t, msg, "trend: adx_threshold")
}

func TestValidateOptionalBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate(), "disabled backends are not checked")

	cfg.Redis.Enabled = true
	cfg.S3.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridbot.toml")
	content := `
mode = "live"

[exchange]
env = "prod"
api_key = "from-file"
trading_account_id = "1234"

[wallet]
private_key = "0xabc"

[grid]
instrument = "ETH_USDT_Perp"
price_step = 10
grid_count = 3
order_quantity = "0.05"
sleep_interval = "30s"

[stale_orders]
max_age = "2m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("GRIDBOT_EXCHANGE_API_KEY", "from-env")
	t.Setenv("GRIDBOT_GRID_PRICE_SPREAD", "20")
	t.Setenv("GRIDBOT_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "from-env", cfg.Exchange.APIKey)
	assert.Equal(t, "ETH_USDT_Perp", cfg.Grid.Instrument)
	assert.Equal(t, int64(10), cfg.Grid.PriceStep)
	assert.Equal(t, int64(20), cfg.Grid.PriceSpread)
	assert.Equal(t, 30*time.Second, cfg.Grid.SleepInterval.Duration)
	assert.Equal(t, 2*time.Minute, cfg.StaleOrders.MaxAge.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// Untouched sections keep their defaults.
	assert.Equal(t, 14, cfg.Trend.Period)

	id, err := cfg.Exchange.SubAccountID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), id)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[grid]\nsleep_interval = \"soon\"\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.APIKey = "k"
	cfg.Wallet.PrivateKey = "pk"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Notify.Events = []string{"flatten"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Exchange.APIKey)
	assert.Equal(t, redacted, out.Wallet.PrivateKey)
	assert.Equal(t, redacted, out.Postgres.DSN)
	assert.Empty(t, out.Wallet.KeyPassword, "empty secrets stay empty")
	assert.Equal(t, "k", cfg.Exchange.APIKey)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "flatten", cfg.Notify.Events[0])
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}
