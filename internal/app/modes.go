package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/gridbot/internal/crypto"
	"github.com/alanyoungcy/gridbot/internal/domain"
	"github.com/alanyoungcy/gridbot/internal/indicator"
	"github.com/alanyoungcy/gridbot/internal/platform/grvt"
	"github.com/alanyoungcy/gridbot/internal/platform/paper"
	"github.com/alanyoungcy/gridbot/internal/server"
	"github.com/alanyoungcy/gridbot/internal/server/handler"
	"github.com/alanyoungcy/gridbot/internal/server/ws"
	"github.com/alanyoungcy/gridbot/internal/strategy"
)

// LiveMode trades on the venue with signed orders.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode", slog.String("env", a.cfg.Exchange.Env))

	client, chainID, err := grvtClient(a.cfg.Exchange, a.logger)
	if err != nil {
		return fmt.Errorf("live mode: %w", err)
	}
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("live mode: %w", err)
	}
	signer, err := crypto.NewSigner(key, chainID)
	if err != nil {
		return fmt.Errorf("live mode: create signer: %w", err)
	}
	a.logger.InfoContext(ctx, "order signer ready", slog.String("address", signer.Address().Hex()))

	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("live mode: login: %w", err)
	}

	venue := grvt.NewExchange(client, signer, a.logger)
	return a.runGrid(ctx, deps, venue, indicator.NewADXGauge(venue, a.logger))
}

// PaperMode runs the same loop against a simulated venue priced from the
// venue's public market data. No credentials are needed.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode", slog.String("env", a.cfg.Exchange.Env))

	client, _, err := grvtClient(a.cfg.Exchange, a.logger)
	if err != nil {
		return fmt.Errorf("paper mode: %w", err)
	}
	market := grvt.NewExchange(client, nil, a.logger)
	venue := paper.New(market, a.logger)
	return a.runGrid(ctx, deps, venue, indicator.NewADXGauge(market, a.logger))
}

// runGrid starts the cycle scheduler plus every enabled report consumer and
// blocks until ctx is cancelled or one of them fails.
func (a *App) runGrid(ctx context.Context, deps *Dependencies, venue domain.Exchange, gauge domain.TrendGauge) error {
	params, err := gridParams(a.cfg)
	if err != nil {
		return err
	}
	if !params.Trend.Enabled {
		gauge = nil
	}

	g, ctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	status := strategy.NewStatus()
	sinks := []strategy.ReportSink{status, deps.Metrics}
	if deps.Recorder != nil {
		sinks = append(sinks, deps.Recorder)
	}
	if deps.Publisher != nil {
		sinks = append(sinks, deps.Publisher)
	}
	if deps.Archiver != nil {
		sinks = append(sinks, deps.Archiver)
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	if deps.Alerts != nil {
		sinks = append(sinks, deps.Alerts)
	}

	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(a.logger, ws.Config{
			Mode:       a.cfg.Mode,
			Instrument: params.Instrument,
			StartedAt:  startedAt,
		})
		// With Redis the hub follows the published channel, so every
		// replica serves the same feed.
		if deps.SignalBus != nil {
			hub.SetFeed(deps.SignalBus, a.cfg.Redis.Channel)
		} else {
			sinks = append(sinks, hub)
		}
	}

	engine := strategy.NewEngine(params, venue, gauge, a.logger)
	scheduler := strategy.NewScheduler(engine, params.Interval, a.logger, sinks...)
	if deps.LockManager != nil {
		scheduler.SetLock(deps.LockManager, "grid:"+params.Instrument, a.cfg.Redis.LockTTL.Duration)
	}

	a.logger.InfoContext(ctx, "grid configured",
		slog.String("venue", venue.Name()),
		slog.String("instrument", params.Instrument),
		slog.Int64("step", params.Step),
		slog.Int("levels", params.Levels),
		slog.Int64("spread", params.Spread),
		slog.String("quantity", params.Quantity.String()),
		slog.Duration("interval", params.Interval),
		slog.Bool("trend", params.Trend.Enabled),
		slog.Bool("stale_pruning", params.Stale.Enabled),
		slog.Bool("flatten", params.FlattenPositions),
		slog.Int("sinks", len(sinks)),
	)

	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if hub != nil {
		var history handler.CycleHistory
		switch {
		case deps.CycleStore != nil:
			history = deps.CycleStore
		case deps.Publisher != nil:
			history = deps.Publisher
		}
		a.startHTTPServer(ctx, g, hub, server.Handlers{
			Health:  handler.NewHealthHandler(startedAt),
			Status:  handler.NewStatusHandler(a.cfg.Mode, venue.Name(), params, status, scheduler),
			Cycles:  handler.NewCyclesHandler(history, params.Instrument, a.logger),
			Audit:   handler.NewAuditHandler(deps.AuditStore, a.logger),
			Metrics: deps.Metrics.Handler(),
		})
	}

	return g.Wait()
}

// startHTTPServer adds the hub and HTTP server goroutines to g. The server
// is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, hub *ws.Hub, handlers server.Handlers) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
