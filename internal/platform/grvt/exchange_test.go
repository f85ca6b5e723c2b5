package grvt

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/gridbot/internal/crypto"
	"github.com/alanyoungcy/gridbot/internal/domain"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// fakeVenue serves the subset of the GRVT API the adapter uses.
type fakeVenue struct {
	mu     sync.Mutex
	logins int
	// expire forces the next private call to fail with 401.
	expire   bool
	requests map[string][]map[string]any
	handlers map[string]func(body map[string]any) (int, any)
}

func newFakeVenue(t *testing.T) (*fakeVenue, *httptest.Server) {
	f := &fakeVenue{
		requests: make(map[string][]map[string]any),
		handlers: make(map[string]func(map[string]any) (int, any)),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeVenue) handle(path string, h func(body map[string]any) (int, any)) {
	f.handlers[path] = h
}

func (f *fakeVenue) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], body)
	f.mu.Unlock()

	if r.URL.Path == "/auth/api_key/login" {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		if body["api_key"] != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":1000,"message":"bad key","status":401}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "session-token"})
		w.Header().Set(accountIDHeader, "acc-1")
		_, _ = w.Write([]byte(`{"status":"success"}`))
		return
	}

	h, ok := f.handlers[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if isPrivate(r.URL.Path) {
		f.mu.Lock()
		expired := f.expire
		f.expire = false
		f.mu.Unlock()
		ck, err := r.Cookie(sessionCookie)
		if expired || err != nil || ck.Value != "session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}
	status, resp := h(body)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func isPrivate(path string) bool {
	switch path {
	case "/full/v1/ticker", "/full/v1/kline", "/full/v1/instrument":
		return false
	}
	return true
}

func (f *fakeVenue) calls(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func newTestExchange(t *testing.T, srv *httptest.Server, withSigner bool) *Exchange {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(Config{
		Endpoints:    Endpoints{Edge: srv.URL, Trades: srv.URL, MarketData: srv.URL},
		APIKey:       "key",
		SubAccountID: 42,
	}, logger)
	var signer OrderSigner
	if withSigner {
		s, err := crypto.NewSigner(testKey, crypto.ChainIDTestnet)
		require.NoError(t, err)
		signer = s
	}
	ex := NewExchange(client, signer, logger)
	ex.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return ex
}

func TestEnvEndpoints(t *testing.T) {
	ep, chain, err := EnvEndpoints("testnet")
	require.NoError(t, err)
	assert.Equal(t, crypto.ChainIDTestnet, chain)
	assert.Equal(t, "https://trades.testnet.grvt.io", ep.Trades)

	_, chain, err = EnvEndpoints("prod")
	require.NoError(t, err)
	assert.Equal(t, crypto.ChainIDProd, chain)

	_, _, err = EnvEndpoints("moon")
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestTickerTreatsZeroAsAbsent(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/ticker", func(body map[string]any) (int, any) {
		assert.Equal(t, "BTC_USDT_Perp", body["instrument"])
		return http.StatusOK, map[string]any{"result": map[string]string{
			"instrument": "BTC_USDT_Perp",
			"last_price": "0",
			"mid_price":  "65000.5",
			"mark_price": "",
			"event_time": "1700000000000000000",
		}}
	})
	ex := newTestExchange(t, srv, false)

	tk, err := ex.Ticker(context.Background(), "BTC_USDT_Perp")
	require.NoError(t, err)
	assert.Zero(t, tk.LastPrice)
	assert.Zero(t, tk.MarkPrice)
	assert.InDelta(t, 65000.5, tk.MidPrice, 1e-9)

	ref, err := tk.ReferencePrice()
	require.NoError(t, err)
	assert.InDelta(t, 65000.5, ref, 1e-9)
	assert.Zero(t, f.logins, "market data needs no session")
}

func TestCandlesSortedOldestFirst(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/kline", func(body map[string]any) (int, any) {
		assert.Equal(t, "CI_5_M", body["interval"])
		assert.Equal(t, float64(3), body["limit"])
		return http.StatusOK, map[string]any{"result": []map[string]string{
			{"open_time": "3000", "open": "3", "high": "3", "low": "3", "close": "3"},
			{"open_time": "1000", "open": "1", "high": "1", "low": "1", "close": "1"},
			{"open_time": "2000", "open": "2", "high": "2", "low": "2", "close": "2"},
		}}
	})
	ex := newTestExchange(t, srv, false)

	candles, err := ex.Candles(context.Background(), "BTC_USDT_Perp", "5m", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{candles[0].Close, candles[1].Close, candles[2].Close})

	_, err = ex.Candles(context.Background(), "BTC_USDT_Perp", "7m", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestOpenOrdersLogsInAndConverts(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/open_orders", func(body map[string]any) (int, any) {
		assert.Equal(t, []any{"BTC"}, body["base"])
		assert.Equal(t, []any{"USDT"}, body["quote"])
		return http.StatusOK, map[string]any{"result": []map[string]any{
			{
				"legs":     []map[string]any{{"instrument": "BTC_USDT_Perp", "size": "0.001", "limit_price": "64900", "is_buying_asset": true}},
				"metadata": map[string]string{"client_order_id": "9223372036854775809", "create_time": "1700000000000000000"},
				"state":    map[string]any{"status": "OPEN", "traded_size": []string{"0"}},
			},
			{
				"legs":     []map[string]any{{"instrument": "ETH_USDT_Perp", "size": "1", "limit_price": "3000", "is_buying_asset": false}},
				"metadata": map[string]string{"client_order_id": "7"},
				"state":    map[string]any{"status": "OPEN"},
			},
			{
				"legs":     []map[string]any{{"instrument": "BTC_USDT_Perp", "size": "0.001", "limit_price": "65100", "is_buying_asset": false}},
				"metadata": map[string]string{"client_order_id": "8"},
				"state":    map[string]any{"status": "OPEN", "traded_size": []string{"0.0005"}},
			},
		}}
	})
	ex := newTestExchange(t, srv, false)

	orders, err := ex.OpenOrders(context.Background(), "BTC_USDT_Perp")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, 1, f.logins)

	buy := orders[0]
	assert.Equal(t, "9223372036854775809", buy.ID)
	assert.Equal(t, domain.SideBuy, buy.Side)
	assert.True(t, buy.Price.Valid)
	assert.True(t, buy.Price.Decimal.Equal(decimal.NewFromInt(64900)))
	assert.Equal(t, domain.OrderStatusOpen, buy.Status)
	assert.Equal(t, int64(1_700_000_000), buy.CreatedAt.Unix())

	assert.Equal(t, domain.SideSell, orders[1].Side)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, orders[1].Status)
}

func TestPrivateCallReauthenticatesOnce(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/positions", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]string{}}
	})
	ex := newTestExchange(t, srv, false)
	ctx := context.Background()

	_, err := ex.Position(ctx, "BTC_USDT_Perp")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.mu.Lock()
	f.expire = true
	f.mu.Unlock()
	_, err = ex.Position(ctx, "BTC_USDT_Perp")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, f.logins)
}

func TestPositionSigned(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/positions", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]string{
			{"instrument": "BTC_USDT_Perp", "size": "-0.003", "entry_price": "65000"},
		}}
	})
	ex := newTestExchange(t, srv, false)

	pos, err := ex.Position(context.Background(), "BTC_USDT_Perp")
	require.NoError(t, err)
	assert.True(t, pos.Size.Equal(decimal.RequireFromString("-0.003")))
	assert.Equal(t, domain.SideSell, pos.Side())
}

func TestPlaceOrderSignsAndAssignsClientID(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/instrument", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": map[string]any{
			"instrument": "BTC_USDT_Perp", "instrument_hash": "0x030501", "base_decimals": 9,
		}}
	})
	f.handle("/full/v1/create_order", func(body map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": body["order"]}
	})
	ex := newTestExchange(t, srv, true)

	order, err := ex.PlaceOrder(context.Background(), domain.OrderRequest{
		Instrument:  "BTC_USDT_Perp",
		Side:        domain.SideBuy,
		Type:        domain.OrderTypeLimit,
		Price:       decimal.NewFromInt(64900),
		Quantity:    decimal.RequireFromString("0.001"),
		TimeInForce: domain.TimeInForceGTC,
	})
	require.NoError(t, err)

	id, err := domain.ParseOrderID(order.ID)
	require.NoError(t, err)
	assert.NotZero(t, uint64(id)&(1<<63), "client ids use the upper half of the range")

	sent := f.calls("/full/v1/create_order")
	require.Len(t, sent, 1)
	o := sent[0]["order"].(map[string]any)
	assert.Equal(t, "42", o["sub_account_id"])
	assert.Equal(t, "GOOD_TILL_TIME", o["time_in_force"])
	sig := o["signature"].(map[string]any)
	assert.NotEmpty(t, sig["r"])
	assert.Equal(t, order.ID, o["metadata"].(map[string]any)["client_order_id"])

	// Metadata is cached after the first order.
	_, err = ex.PlaceOrder(context.Background(), domain.OrderRequest{
		Instrument: "BTC_USDT_Perp", Side: domain.SideSell, Type: domain.OrderTypeLimit,
		Price: decimal.NewFromInt(65100), Quantity: decimal.RequireFromString("0.001"),
	})
	require.NoError(t, err)
	assert.Len(t, f.calls("/full/v1/instrument"), 1)
}

func TestPlaceOrderWithoutSigner(t *testing.T) {
	_, srv := newFakeVenue(t)
	ex := newTestExchange(t, srv, false)
	_, err := ex.PlaceOrder(context.Background(), domain.OrderRequest{
		Instrument: "BTC_USDT_Perp", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrSigningFailed)
}

func TestCancelOrderAndUnsupportedOps(t *testing.T) {
	f, srv := newFakeVenue(t)
	f.handle("/full/v1/cancel_order", func(body map[string]any) (int, any) {
		if body["client_order_id"] == "404" {
			return http.StatusNotFound, map[string]any{"code": 3021, "message": "order not found"}
		}
		return http.StatusOK, map[string]any{"result": map[string]bool{"ack": true}}
	})
	ex := newTestExchange(t, srv, false)
	ctx := context.Background()

	require.NoError(t, ex.CancelOrder(ctx, "BTC_USDT_Perp", 17))
	assert.Equal(t, "17", f.calls("/full/v1/cancel_order")[0]["client_order_id"])
	assert.ErrorIs(t, ex.CancelOrder(ctx, "BTC_USDT_Perp", 404), domain.ErrNotFound)

	assert.ErrorIs(t, ex.CancelOrders(ctx, "BTC_USDT_Perp", []domain.OrderID{1}), domain.ErrNotImplemented)
	assert.ErrorIs(t, ex.ClosePosition(ctx, "BTC_USDT_Perp", domain.OrderTypeMarket), domain.ErrNotImplemented)
}

func TestCheckHTTPStatus(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(http.StatusOK, nil))
	assert.ErrorIs(t, checkHTTPStatus(http.StatusTooManyRequests, nil), domain.ErrRateLimited)
	assert.ErrorIs(t, checkHTTPStatus(http.StatusForbidden, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(http.StatusBadRequest, []byte(`{"code":2000,"message":"bad size"}`)), domain.ErrOrderRejected)
	assert.ErrorContains(t, checkHTTPStatus(http.StatusBadGateway, []byte("upstream")), "HTTP 502")
}
