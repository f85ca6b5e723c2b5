package indicator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// lookback is how many periods of history the gauge requests so the Wilder
// smoothing has settled.
const lookback = 10

// ADXGauge reports ADX computed from venue candles as the trend reading.
type ADXGauge struct {
	candles domain.CandleSource
	logger  *slog.Logger
}

// NewADXGauge creates a gauge reading candles from source.
func NewADXGauge(source domain.CandleSource, logger *slog.Logger) *ADXGauge {
	return &ADXGauge{
		candles: source,
		logger:  logger.With(slog.String("component", "adx_gauge")),
	}
}

// TrendStrength returns ADX(period) on interval candles. Too little history
// yields a nil reading rather than an error.
func (g *ADXGauge) TrendStrength(ctx context.Context, instrument, interval string, period int) (*float64, error) {
	candles, err := g.candles.Candles(ctx, instrument, interval, period*lookback)
	if err != nil {
		return nil, fmt.Errorf("indicator: candles: %w", err)
	}
	v, err := ADX(candles, period)
	if errors.Is(err, domain.ErrNotFound) {
		g.logger.DebugContext(ctx, "not enough candles for adx", slog.Int("candles", len(candles)))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.logger.DebugContext(ctx, "adx", slog.String("interval", interval), slog.Float64("value", v))
	return &v, nil
}
