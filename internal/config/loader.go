package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when empty), merges it
// on top of the built-in defaults, applies GRIDBOT_* environment variable
// overrides, and returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GRIDBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.Env, "GRIDBOT_EXCHANGE_ENV")
	setStr(&cfg.Exchange.APIKey, "GRIDBOT_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.TradingAccountID, "GRIDBOT_EXCHANGE_TRADING_ACCOUNT_ID")
	setStr(&cfg.Exchange.EdgeURL, "GRIDBOT_EXCHANGE_EDGE_URL")
	setStr(&cfg.Exchange.TradesURL, "GRIDBOT_EXCHANGE_TRADES_URL")
	setStr(&cfg.Exchange.MarketDataURL, "GRIDBOT_EXCHANGE_MARKET_DATA_URL")
	setDuration(&cfg.Exchange.Timeout, "GRIDBOT_EXCHANGE_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "GRIDBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "GRIDBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "GRIDBOT_WALLET_KEY_PASSWORD")

	// ── Grid ──
	setStr(&cfg.Grid.Instrument, "GRIDBOT_GRID_INSTRUMENT")
	setInt64(&cfg.Grid.PriceStep, "GRIDBOT_GRID_PRICE_STEP")
	setInt(&cfg.Grid.GridCount, "GRIDBOT_GRID_GRID_COUNT")
	setInt64(&cfg.Grid.PriceSpread, "GRIDBOT_GRID_PRICE_SPREAD")
	setStr(&cfg.Grid.OrderQuantity, "GRIDBOT_GRID_ORDER_QUANTITY")
	setDuration(&cfg.Grid.SleepInterval, "GRIDBOT_GRID_SLEEP_INTERVAL")

	// ── Trend ──
	setBool(&cfg.Trend.Enabled, "GRIDBOT_TREND_ENABLED")
	setFloat64(&cfg.Trend.Threshold, "GRIDBOT_TREND_ADX_THRESHOLD")
	setStr(&cfg.Trend.Interval, "GRIDBOT_TREND_INTERVAL")
	setInt(&cfg.Trend.Period, "GRIDBOT_TREND_PERIOD")

	// ── Stale orders ──
	setBool(&cfg.StaleOrders.Enabled, "GRIDBOT_STALE_ORDERS_ENABLED")
	setDuration(&cfg.StaleOrders.MaxAge, "GRIDBOT_STALE_ORDERS_MAX_AGE")
	setFloat64(&cfg.StaleOrders.Probability, "GRIDBOT_STALE_ORDERS_PROBABILITY")
	setInt64(&cfg.StaleOrders.Seed, "GRIDBOT_STALE_ORDERS_SEED")

	// ── Position ──
	setBool(&cfg.Position.Flatten, "GRIDBOT_POSITION_FLATTEN")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "GRIDBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "GRIDBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GRIDBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GRIDBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GRIDBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GRIDBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GRIDBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "GRIDBOT_REDIS_LOCK_TTL")
	setStr(&cfg.Redis.Channel, "GRIDBOT_REDIS_CHANNEL")
	setStr(&cfg.Redis.Stream, "GRIDBOT_REDIS_STREAM")
	setInt64(&cfg.Redis.StreamMaxLen, "GRIDBOT_REDIS_STREAM_MAX_LEN")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "GRIDBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "GRIDBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "GRIDBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GRIDBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GRIDBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GRIDBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GRIDBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GRIDBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GRIDBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GRIDBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GRIDBOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "GRIDBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "GRIDBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GRIDBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "GRIDBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GRIDBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GRIDBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GRIDBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GRIDBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setStr(&cfg.Archive.Prefix, "GRIDBOT_ARCHIVE_PREFIX")
	setDuration(&cfg.Archive.FlushInterval, "GRIDBOT_ARCHIVE_FLUSH_INTERVAL")
	setInt(&cfg.Archive.MaxBuffered, "GRIDBOT_ARCHIVE_MAX_BUFFERED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "GRIDBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "GRIDBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GRIDBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "GRIDBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "GRIDBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "GRIDBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "GRIDBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "GRIDBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "GRIDBOT_MODE")
	setStr(&cfg.LogLevel, "GRIDBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
