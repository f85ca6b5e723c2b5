package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/gridbot/internal/blob/s3"
	"github.com/alanyoungcy/gridbot/internal/cache/redis"
	"github.com/alanyoungcy/gridbot/internal/config"
	"github.com/alanyoungcy/gridbot/internal/domain"
	"github.com/alanyoungcy/gridbot/internal/metrics"
	"github.com/alanyoungcy/gridbot/internal/notify"
	"github.com/alanyoungcy/gridbot/internal/platform/grvt"
	"github.com/alanyoungcy/gridbot/internal/store/postgres"
)

// Dependencies bundles the infrastructure the grid loop reports into. Every
// backend except metrics and notifications is optional and left nil when its
// config section is disabled.
type Dependencies struct {
	// Redis
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	Publisher   *redis.Publisher

	// Postgres
	CycleStore *postgres.CycleStore
	AuditStore domain.AuditStore
	Recorder   *postgres.Recorder

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
	Alerts   *notify.Alerts

	Metrics *metrics.Collector
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.CycleStore = postgres.NewCycleStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Recorder = postgres.NewRecorder(deps.CycleStore, deps.AuditStore)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.Publisher = redis.NewPublisher(deps.SignalBus, cfg.Redis.Channel, cfg.Redis.Stream)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "wire: s3 bucket not reachable, archive uploads will be retried",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}

		deps.BlobWriter = s3Client
		// AuditStore may be nil; the archiver then skips audit entries.
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.AuditStore, s3blob.ArchiverConfig{
			Prefix:        cfg.Archive.Prefix,
			FlushInterval: cfg.Archive.FlushInterval.Duration,
			MaxBuffered:   cfg.Archive.MaxBuffered,
		}, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if deps.Notifier.Enabled() {
		deps.Alerts = notify.NewAlerts(deps.Notifier)
	}

	return deps, cleanup, nil
}

// grvtClient builds the venue REST client. Host overrides in the exchange
// section replace the environment defaults one by one.
func grvtClient(cfg config.ExchangeConfig, logger *slog.Logger) (*grvt.Client, int64, error) {
	endpoints, chainID, err := grvt.EnvEndpoints(cfg.Env)
	if err != nil {
		return nil, 0, fmt.Errorf("wire: grvt: %w", err)
	}
	if cfg.EdgeURL != "" {
		endpoints.Edge = cfg.EdgeURL
	}
	if cfg.TradesURL != "" {
		endpoints.Trades = cfg.TradesURL
	}
	if cfg.MarketDataURL != "" {
		endpoints.MarketData = cfg.MarketDataURL
	}
	subAccount, err := cfg.SubAccountID()
	if err != nil {
		return nil, 0, err
	}
	return grvt.NewClient(grvt.Config{
		Endpoints:    endpoints,
		APIKey:       cfg.APIKey,
		SubAccountID: subAccount,
		Timeout:      cfg.Timeout.Duration,
	}, logger), chainID, nil
}
