package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/gridbot/internal/domain"
	"github.com/alanyoungcy/gridbot/internal/executor"
	"github.com/alanyoungcy/gridbot/internal/grid"
)

// Engine runs one reconciliation cycle at a time: price, spread, target grid,
// observed orders, plan, execution and position check, strictly in that
// order. It holds no state between cycles except the pruner's generator.
type Engine struct {
	params    Params
	venue     domain.Exchange
	gauge     domain.TrendGauge
	collector *grid.Collector
	pruner    *grid.Pruner
	executor  *executor.Executor
	guard     *executor.Guard
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates an Engine. gauge may be nil when the trend adjustment is
// disabled.
func NewEngine(params Params, venue domain.Exchange, gauge domain.TrendGauge, logger *slog.Logger) *Engine {
	e := &Engine{
		params:    params,
		venue:     venue,
		gauge:     gauge,
		collector: grid.NewCollector(venue, params.Instrument, params.Step, logger),
		executor:  executor.NewExecutor(venue, params.Instrument, params.Quantity, logger),
		guard:     executor.NewGuard(venue, params.Instrument, params.FlattenPositions, logger),
		now:       time.Now,
		logger:    logger.With(slog.String("component", "grid_engine"), slog.String("instrument", params.Instrument)),
	}
	if params.Stale.Enabled {
		e.pruner = grid.NewPruner(params.Stale.Age, params.Stale.Probability, grid.NewRand(params.Stale.Seed))
	}
	return e
}

// RunCycle performs one full cycle. The returned report is populated as far
// as the cycle got; a non-nil error means it aborted before reconciling.
func (e *Engine) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	start := e.now()
	report := domain.CycleReport{
		ID:         uuid.NewString(),
		Instrument: e.params.Instrument,
		StartedAt:  start.UTC(),
	}
	err := e.run(ctx, &report)
	if err != nil {
		report.Error = err.Error()
	}
	report.Duration = e.now().Sub(start)
	return report, err
}

func (e *Engine) run(ctx context.Context, report *domain.CycleReport) error {
	ticker, err := e.venue.Ticker(ctx, e.params.Instrument)
	if err != nil {
		return fmt.Errorf("strategy: ticker: %w", err)
	}
	price, err := ticker.ReferencePrice()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	report.ReferencePrice = price

	report.Spread = e.params.Spread
	if e.params.Trend.Enabled && e.gauge != nil {
		report.Trend = e.trendReading(ctx)
		report.Spread = grid.TrendAdjustedSpread(report.Trend, price, e.params.Spread, e.params.Trend.Threshold)
	}

	target, err := grid.Generate(price, e.params.Step, e.params.Levels, report.Spread)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	report.Target = target

	observed := e.collector.Collect(ctx)
	report.Observed = observed.Levels

	report.Plan = grid.Diff(target, observed.Levels)
	if e.pruner != nil {
		report.Stale = e.pruner.Select(observed.Orders, e.now())
	}

	e.logger.InfoContext(ctx, "cycle plan",
		slog.Float64("price", price),
		slog.Int64("spread", report.Spread),
		slog.Int("target", target.Len()),
		slog.Int("observed", observed.Levels.Len()),
		slog.Int("cancel", report.Plan.Cancel.Len()),
		slog.Int("place", report.Plan.Place.Len()),
		slog.Int("stale", len(report.Stale)),
	)
	e.logger.DebugContext(ctx, "cycle levels",
		slog.Any("target_buy", target.Buy),
		slog.Any("target_sell", target.Sell),
		slog.Any("observed_buy", observed.Levels.Buy),
		slog.Any("observed_sell", observed.Levels.Sell),
	)

	report.Execution = e.executor.Execute(ctx, report.Plan, observed.Index, report.Stale)
	report.Guard = e.guard.Check(ctx)
	return nil
}

func (e *Engine) trendReading(ctx context.Context) *float64 {
	reading, err := e.gauge.TrendStrength(ctx, e.params.Instrument, e.params.Trend.Interval, e.params.Trend.Period)
	if err != nil {
		e.logger.WarnContext(ctx, "trend gauge failed, using default spread", slog.String("error", err.Error()))
		return nil
	}
	return reading
}
