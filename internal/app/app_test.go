package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/gridbot/internal/config"
	"github.com/alanyoungcy/gridbot/internal/domain"
)

func TestGridParamsFromDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.StaleOrders.Seed = 42

	p, err := gridParams(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "BTC_USDT_Perp", p.Instrument)
	assert.Equal(t, int64(100), p.Step)
	assert.Equal(t, 5, p.Levels)
	assert.Equal(t, "0.001", p.Quantity.String())
	assert.Equal(t, time.Minute, p.Interval)
	assert.True(t, p.Trend.Enabled)
	assert.Equal(t, 25.0, p.Trend.Threshold)
	assert.Equal(t, 5*time.Second, p.Stale.Age)
	assert.Equal(t, uint64(42), p.Stale.Seed)
	assert.True(t, p.FlattenPositions)
}

func TestGridParamsRejectsBadQuantity(t *testing.T) {
	cfg := config.Defaults()

	cfg.Grid.OrderQuantity = "lots"
	_, err := gridParams(&cfg)
	assert.Error(t, err)

	cfg.Grid.OrderQuantity = "0"
	_, err = gridParams(&cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestWireWithBackendsDisabled(t *testing.T) {
	cfg := config.Defaults()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Metrics)
	assert.NotNil(t, deps.Notifier)
	assert.Nil(t, deps.Alerts, "no senders configured")
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.Recorder)
	assert.Nil(t, deps.Archiver)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "backtest"
	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()

	err := a.Run(context.Background())
	assert.ErrorContains(t, err, "unsupported mode")
}

func TestGrvtClientRejectsUnknownEnv(t *testing.T) {
	cfg := config.Defaults()
	cfg.Exchange.Env = "staging"

	_, _, err := grvtClient(cfg.Exchange, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
