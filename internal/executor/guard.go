package executor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// PositionVenue is the capability set the guard needs.
type PositionVenue interface {
	Position(ctx context.Context, instrument string) (domain.Position, error)
	ClosePosition(ctx context.Context, instrument string, typ domain.OrderType) error
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
}

// Guard flattens any open position at market once the grid is in place.
type Guard struct {
	venue      PositionVenue
	instrument string
	enabled    bool
	logger     *slog.Logger
}

// NewGuard creates a Guard. A disabled guard reports GuardSkipped every cycle.
func NewGuard(venue PositionVenue, instrument string, enabled bool, logger *slog.Logger) *Guard {
	return &Guard{
		venue:      venue,
		instrument: instrument,
		enabled:    enabled,
		logger:     logger.With(slog.String("component", "position_guard")),
	}
}

// Check reads the position and, if it is not flat, closes it with a market
// order. Venues without a close-position call get a reduce-only market order
// on the opposite side for the absolute size.
func (g *Guard) Check(ctx context.Context) domain.GuardResult {
	if !g.enabled {
		return domain.GuardResult{Action: domain.GuardSkipped}
	}

	pos, err := g.venue.Position(ctx, g.instrument)
	switch {
	case errors.Is(err, domain.ErrNotImplemented):
		return domain.GuardResult{Action: domain.GuardUnsupported}
	case errors.Is(err, domain.ErrNotFound):
		return domain.GuardResult{Action: domain.GuardFlat}
	case err != nil:
		g.logger.WarnContext(ctx, "position query failed", slog.String("error", err.Error()))
		return domain.GuardResult{Action: domain.GuardFailed, Error: err.Error()}
	}
	if pos.Flat() {
		return domain.GuardResult{Action: domain.GuardFlat}
	}

	res := domain.GuardResult{Action: domain.GuardFlattened, Size: pos.Size.String()}
	g.logger.InfoContext(ctx, "position detected, flattening at market",
		slog.String("size", pos.Size.String()),
		slog.String("side", string(pos.Side())),
	)

	err = g.venue.ClosePosition(ctx, g.instrument, domain.OrderTypeMarket)
	if errors.Is(err, domain.ErrNotImplemented) {
		_, err = g.venue.PlaceOrder(ctx, domain.OrderRequest{
			Instrument:  g.instrument,
			Side:        pos.Side().Opposite(),
			Type:        domain.OrderTypeMarket,
			Quantity:    pos.Size.Abs(),
			TimeInForce: domain.TimeInForceIOC,
			ReduceOnly:  true,
		})
	}
	if err != nil {
		g.logger.WarnContext(ctx, "flatten failed", slog.String("error", err.Error()))
		res.Action = domain.GuardFailed
		res.Error = err.Error()
	}
	return res
}
