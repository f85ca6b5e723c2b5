// Package app provides the top-level application lifecycle for the grid bot.
// It wires together the venue, the optional storage and messaging backends,
// notifications and the HTTP API, and runs the grid loop in the configured
// mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/gridbot/internal/config"
	"github.com/alanyoungcy/gridbot/internal/strategy"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the selected mode and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "live":
		return a.LiveMode(ctx, deps)
	case "paper":
		return a.PaperMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// gridParams translates the grid, trend, stale-order and position sections
// into engine parameters.
func gridParams(cfg *config.Config) (strategy.Params, error) {
	qty, err := cfg.Grid.Quantity()
	if err != nil {
		return strategy.Params{}, err
	}
	params := strategy.Params{
		Instrument: cfg.Grid.Instrument,
		Step:       cfg.Grid.PriceStep,
		Levels:     cfg.Grid.GridCount,
		Spread:     cfg.Grid.PriceSpread,
		Quantity:   qty,
		Interval:   cfg.Grid.SleepInterval.Duration,
		Trend: strategy.TrendParams{
			Enabled:   cfg.Trend.Enabled,
			Threshold: cfg.Trend.Threshold,
			Interval:  cfg.Trend.Interval,
			Period:    cfg.Trend.Period,
		},
		Stale: strategy.StaleParams{
			Enabled:     cfg.StaleOrders.Enabled,
			Age:         cfg.StaleOrders.MaxAge.Duration,
			Probability: cfg.StaleOrders.Probability,
			Seed:        uint64(cfg.StaleOrders.Seed),
		},
		FlattenPositions: cfg.Position.Flatten,
	}
	if err := params.Validate(); err != nil {
		return strategy.Params{}, err
	}
	return params, nil
}
