// Package config defines the top-level configuration for the grid bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by GRIDBOT_* environment variables.
type Config struct {
	Exchange    ExchangeConfig    `toml:"exchange"`
	Wallet      WalletConfig      `toml:"wallet"`
	Grid        GridConfig        `toml:"grid"`
	Trend       TrendConfig       `toml:"trend"`
	StaleOrders StaleOrdersConfig `toml:"stale_orders"`
	Position    PositionConfig    `toml:"position"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	S3          S3Config          `toml:"s3"`
	Archive     ArchiveConfig     `toml:"archive"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ExchangeConfig holds venue endpoints and API credentials.
type ExchangeConfig struct {
	Env              string `toml:"env"`
	APIKey           string `toml:"api_key"`
	TradingAccountID string `toml:"trading_account_id"`
	// Host overrides; empty means the env default.
	EdgeURL       string   `toml:"edge_url"`
	TradesURL     string   `toml:"trades_url"`
	MarketDataURL string   `toml:"market_data_url"`
	Timeout       duration `toml:"timeout"`
}

// WalletConfig holds the order-signing key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// GridConfig holds the grid geometry and cycle cadence.
type GridConfig struct {
	Instrument  string `toml:"instrument"`
	PriceStep   int64  `toml:"price_step"`
	GridCount   int    `toml:"grid_count"`
	PriceSpread int64  `toml:"price_spread"`
	// OrderQuantity is a decimal string so it survives TOML float rounding.
	OrderQuantity string   `toml:"order_quantity"`
	SleepInterval duration `toml:"sleep_interval"`
}

// TrendConfig controls the trend-adjusted spread.
type TrendConfig struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float64 `toml:"adx_threshold"`
	Interval  string  `toml:"interval"`
	Period    int     `toml:"period"`
}

// StaleOrdersConfig controls random pruning of long-resting orders.
type StaleOrdersConfig struct {
	Enabled     bool     `toml:"enabled"`
	MaxAge      duration `toml:"max_age"`
	Probability float64  `toml:"probability"`
	// Seed fixes the pruning RNG; 0 seeds from the clock.
	Seed int64 `toml:"seed"`
}

// PositionConfig controls the end-of-cycle position guard.
type PositionConfig struct {
	Flatten bool `toml:"flatten"`
}

// RedisConfig holds Redis connection parameters and key names.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	LockTTL      duration `toml:"lock_ttl"`
	Channel      string   `toml:"channel"`
	Stream       string   `toml:"stream"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls batching of cycle reports into S3 objects.
type ArchiveConfig struct {
	Prefix        string   `toml:"prefix"`
	FlushInterval duration `toml:"flush_interval"`
	MaxBuffered   int      `toml:"max_buffered"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required in the X-API-Key header of /api requests.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			Env:     "testnet",
			Timeout: duration{30 * time.Second},
		},
		Grid: GridConfig{
			Instrument:    "BTC_USDT_Perp",
			PriceStep:     100,
			GridCount:     5,
			PriceSpread:   0,
			OrderQuantity: "0.001",
			SleepInterval: duration{60 * time.Second},
		},
		Trend: TrendConfig{
			Enabled:   true,
			Threshold: 25,
			Interval:  "5m",
			Period:    14,
		},
		StaleOrders: StaleOrdersConfig{
			Enabled:     true,
			MaxAge:      duration{5 * time.Second},
			Probability: 0.5,
		},
		Position: PositionConfig{
			Flatten: true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			LockTTL:      duration{2 * time.Minute},
			Channel:      "grid:cycles",
			Stream:       "grid:cycles:stream",
			StreamMaxLen: 10_000,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "gridbot-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Prefix:        "cycles",
			FlushInterval: duration{15 * time.Minute},
			MaxBuffered:   1000,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"flatten", "cycle_error"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":  true,
	"paper": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validExchangeEnvs = map[string]bool{
	"prod":    true,
	"testnet": true,
}

// Quantity returns the parsed per-order quantity.
func (g GridConfig) Quantity() (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(g.OrderQuantity))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: order_quantity %q: %w", g.OrderQuantity, err)
	}
	return q, nil
}

// SubAccountID returns the parsed trading account id; empty means 0.
func (e ExchangeConfig) SubAccountID() (uint64, error) {
	if e.TradingAccountID == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(e.TradingAccountID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: trading_account_id %q: %w", e.TradingAccountID, err)
	}
	return id, nil
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, paper)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange
	if !validExchangeEnvs[strings.ToLower(c.Exchange.Env)] {
		errs = append(errs, fmt.Sprintf("exchange: unknown env %q (valid: prod, testnet)", c.Exchange.Env))
	}
	if _, err := c.Exchange.SubAccountID(); err != nil {
		errs = append(errs, "exchange: trading_account_id must be an unsigned integer")
	}
	if strings.ToLower(c.Mode) == "live" {
		if c.Exchange.APIKey == "" {
			errs = append(errs, "exchange: api_key is required for mode live")
		}
		if c.Exchange.TradingAccountID == "" {
			errs = append(errs, "exchange: trading_account_id is required for mode live")
		}
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode live")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Grid
	if c.Grid.Instrument == "" {
		errs = append(errs, "grid: instrument must not be empty")
	}
	if c.Grid.PriceStep <= 0 {
		errs = append(errs, "grid: price_step must be > 0")
	}
	if c.Grid.GridCount < 0 {
		errs = append(errs, "grid: grid_count must be >= 0")
	}
	if c.Grid.PriceSpread < 0 {
		errs = append(errs, "grid: price_spread must be >= 0")
	}
	if q, err := c.Grid.Quantity(); err != nil || !q.IsPositive() {
		errs = append(errs, fmt.Sprintf("grid: order_quantity must be a positive decimal, got %q", c.Grid.OrderQuantity))
	}
	if c.Grid.SleepInterval.Duration <= 0 {
		errs = append(errs, "grid: sleep_interval must be > 0")
	}

	// Trend
	if c.Trend.Enabled {
		if c.Trend.Threshold < 0 || c.Trend.Threshold >= 100 {
			errs = append(errs, fmt.Sprintf("trend: adx_threshold must be in [0, 100), got %v", c.Trend.Threshold))
		}
		if c.Trend.Period < 1 {
			errs = append(errs, "trend: period must be >= 1")
		}
		if c.Trend.Interval == "" {
			errs = append(errs, "trend: interval must not be empty")
		}
	}

	// Stale orders
	if c.StaleOrders.Enabled {
		if c.StaleOrders.Probability < 0 || c.StaleOrders.Probability > 1 {
			errs = append(errs, fmt.Sprintf("stale_orders: probability must be in [0, 1], got %v", c.StaleOrders.Probability))
		}
		if c.StaleOrders.MaxAge.Duration < 0 {
			errs = append(errs, "stale_orders: max_age must be >= 0")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.FlushInterval.Duration <= 0 {
			errs = append(errs, "archive: flush_interval must be > 0")
		}
		if c.Archive.MaxBuffered < 1 {
			errs = append(errs, "archive: max_buffered must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
