package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/gridbot/internal/domain"
	"github.com/alanyoungcy/gridbot/internal/grid"
	"github.com/alanyoungcy/gridbot/internal/platform/paper"
)

const inst = "BTC_USDT_Perp"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testParams() Params {
	return Params{
		Instrument:       inst,
		Step:             1,
		Levels:           3,
		Spread:           1,
		Quantity:         decimal.RequireFromString("0.001"),
		Interval:         time.Millisecond,
		FlattenPositions: true,
	}
}

func newPaper(price float64) *paper.Exchange {
	ex := paper.New(nil, discardLogger())
	ex.SetTicker(domain.Ticker{Instrument: inst, LastPrice: price})
	return ex
}

func restingLevels(t *testing.T, ex *paper.Exchange) domain.LevelSet {
	t.Helper()
	listed := grid.NewCollector(ex, inst, 1, discardLogger()).Collect(context.Background())
	return listed.Levels
}

type gaugeFunc func() (*float64, error)

func (g gaugeFunc) TrendStrength(context.Context, string, string, int) (*float64, error) {
	return g()
}

func TestRunCycleConverges(t *testing.T) {
	ctx := context.Background()
	ex := newPaper(1000)
	eng := NewEngine(testParams(), ex, nil, discardLogger())

	first, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, first.ReferencePrice)
	assert.Equal(t, domain.LevelSet{
		Buy:  []domain.PriceLevel{997, 998, 999},
		Sell: []domain.PriceLevel{1001, 1002, 1003},
	}, first.Target)
	assert.Equal(t, 6, first.Execution.Count(domain.OpPlaced))
	assert.Equal(t, domain.GuardFlat, first.Guard.Action)
	assert.Equal(t, first.Target, restingLevels(t, ex))

	second, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, second.Plan.Empty())
	assert.Empty(t, second.Execution.Results)
}

func TestRunCycleFollowsPrice(t *testing.T) {
	ctx := context.Background()
	ex := newPaper(1000)
	eng := NewEngine(testParams(), ex, nil, discardLogger())
	_, err := eng.RunCycle(ctx)
	require.NoError(t, err)

	ex.SetTicker(domain.Ticker{Instrument: inst, LastPrice: 1002.5})
	rep, err := eng.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.PriceLevel{997, 998}, rep.Plan.Cancel.Buy)
	assert.Equal(t, []domain.PriceLevel{1003}, rep.Plan.Cancel.Sell)
	assert.Equal(t, []domain.PriceLevel{1000, 1001}, rep.Plan.Place.Buy)
	assert.Equal(t, []domain.PriceLevel{1004, 1005, 1006}, rep.Plan.Place.Sell)
	assert.Equal(t, domain.GuardFlattened, rep.Guard.Action, "the two filled sells left a short")
	assert.Equal(t, rep.Target, restingLevels(t, ex))

	pos, err := ex.Position(ctx, inst)
	require.NoError(t, err)
	assert.True(t, pos.Flat())
}

func TestRunCycleFallsBackToMidPrice(t *testing.T) {
	ex := paper.New(nil, discardLogger())
	ex.SetTicker(domain.Ticker{Instrument: inst, MidPrice: 2000, MarkPrice: 3000})

	rep, err := NewEngine(testParams(), ex, nil, discardLogger()).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2000.0, rep.ReferencePrice)
}

func TestRunCycleAbortsWithoutPrice(t *testing.T) {
	tests := []struct {
		name   string
		ticker *domain.Ticker
		want   error
	}{
		{"ticker unavailable", nil, domain.ErrNotFound},
		{"no usable price", &domain.Ticker{Instrument: inst}, domain.ErrNoReferencePrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := paper.New(nil, discardLogger())
			if tt.ticker != nil {
				ex.SetTicker(*tt.ticker)
			}

			rep, err := NewEngine(testParams(), ex, nil, discardLogger()).RunCycle(context.Background())

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, rep.Failed())
			assert.NotEmpty(t, rep.ID)
			open, err := ex.OpenOrders(context.Background(), inst)
			require.NoError(t, err)
			assert.Empty(t, open)
		})
	}
}

func TestRunCycleTrendAdjustsSpread(t *testing.T) {
	params := testParams()
	params.Levels = 2
	params.Spread = 10
	params.Trend = TrendParams{Enabled: true, Threshold: 25, Interval: "5m", Period: 14}

	reading := 62.5
	ex := newPaper(100000)
	rep, err := NewEngine(params, ex, gaugeFunc(func() (*float64, error) { return &reading, nil }), discardLogger()).
		RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(505), rep.Spread)
	assert.Equal(t, []domain.PriceLevel{99494, 99495}, rep.Target.Buy)
	assert.Equal(t, []domain.PriceLevel{100505, 100506}, rep.Target.Sell)

	failing := gaugeFunc(func() (*float64, error) { return nil, errors.New("klines unavailable") })
	rep, err = NewEngine(params, newPaper(100000), failing, discardLogger()).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rep.Trend)
	assert.Equal(t, int64(10), rep.Spread)
}

func TestRunCycleTrendDisabledNeverReadsGauge(t *testing.T) {
	params := testParams()
	params.Spread = 2
	params.Trend = TrendParams{Enabled: false, Threshold: 25, Interval: "5m", Period: 14}

	calls := 0
	reading := 99.0
	gauge := gaugeFunc(func() (*float64, error) {
		calls++
		return &reading, nil
	})

	rep, err := NewEngine(params, newPaper(1000), gauge, discardLogger()).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Nil(t, rep.Trend)
	assert.Equal(t, params.Spread, rep.Spread)
}

func TestRunCyclePrunesStaleOrders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	params := testParams()
	params.Stale = StaleParams{Enabled: true, Age: 5 * time.Second, Probability: 1, Seed: 9}
	ex := newPaper(1000)
	ex.SetClock(clock)
	eng := NewEngine(params, ex, nil, discardLogger())
	eng.now = clock

	first, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, first.Stale)

	now = now.Add(10 * time.Second)
	second, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, second.Stale, 6)
	assert.Equal(t, 6, second.Execution.Count(domain.OpCancelled))
	assert.Zero(t, second.Execution.Count(domain.OpPlaced), "placements are planned from the pre-cancel snapshot")

	third, err := eng.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, third.Execution.Count(domain.OpPlaced))
	assert.Empty(t, third.Stale)
}
