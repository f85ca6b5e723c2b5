package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

func TestCollectorObserve(t *testing.T) {
	c := New()
	ctx := context.Background()
	trend := 32.0

	report := domain.CycleReport{
		Instrument:     "BTC_USDT_Perp",
		Duration:       120 * time.Millisecond,
		ReferencePrice: 65000,
		Trend:          &trend,
		Spread:         200,
		Target:         domain.LevelSet{Buy: []domain.PriceLevel{64900, 64800}, Sell: []domain.PriceLevel{65100}},
		Execution: domain.ExecutionReport{Results: []domain.OpResult{
			{Kind: domain.OpPlaced, Reason: domain.ReasonMissing},
			{Kind: domain.OpPlaced, Reason: domain.ReasonMissing},
			{Kind: domain.OpCancelled, Reason: domain.ReasonOffGrid},
		}},
		Guard: domain.GuardResult{Action: domain.GuardFlat},
	}
	require.NoError(t, c.Observe(ctx, report))
	require.NoError(t, c.Observe(ctx, domain.CycleReport{Instrument: "BTC_USDT_Perp", Error: "no price"}))

	assert.InDelta(t, 1, testutil.ToFloat64(c.cycles.WithLabelValues("BTC_USDT_Perp", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.cycles.WithLabelValues("BTC_USDT_Perp", "failed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.operations.WithLabelValues("BTC_USDT_Perp", "placed", "missing")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.levels.WithLabelValues("BTC_USDT_Perp", "buy", "target")), 0)
	assert.InDelta(t, 65000, testutil.ToFloat64(c.referencePrice.WithLabelValues("BTC_USDT_Perp")), 0)
	assert.InDelta(t, 32, testutil.ToFloat64(c.trend.WithLabelValues("BTC_USDT_Perp")), 0)
}

func TestCollectorHandler(t *testing.T) {
	c := New()
	require.NoError(t, c.Observe(context.Background(), domain.CycleReport{Instrument: "ETH_USDT_Perp"}))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gridbot_cycles_total{instrument="ETH_USDT_Perp",result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
