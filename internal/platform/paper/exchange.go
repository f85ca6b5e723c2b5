// Package paper implements an in-memory venue that simulates resting limit
// orders and fills against a price feed. It backs the paper trading mode.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// PriceSource supplies tickers, normally the live venue's public market data.
type PriceSource interface {
	Ticker(ctx context.Context, instrument string) (domain.Ticker, error)
}

// Exchange is a simulated venue. Limit orders rest until a ticker read shows
// the reference price trading through them, at which point they fill in full
// and move the simulated position. It is safe for concurrent use.
type Exchange struct {
	prices PriceSource
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	tickers   map[string]domain.Ticker
	orders    map[domain.OrderID]domain.Order
	positions map[string]decimal.Decimal
	nextID    domain.OrderID
}

// New creates a paper Exchange. prices may be nil, in which case tickers are
// supplied with SetTicker.
func New(prices PriceSource, logger *slog.Logger) *Exchange {
	return &Exchange{
		prices:    prices,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "paper_exchange")),
		tickers:   make(map[string]domain.Ticker),
		orders:    make(map[domain.OrderID]domain.Order),
		positions: make(map[string]decimal.Decimal),
		nextID:    1_000_000,
	}
}

// SetTicker overrides the price snapshot for t.Instrument.
func (e *Exchange) SetTicker(t domain.Ticker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickers[t.Instrument] = t
}

// SetClock replaces the time source used for order timestamps.
func (e *Exchange) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Exchange) Name() string { return "paper" }

// Ticker returns the current snapshot and fills every resting order the
// reference price has traded through.
func (e *Exchange) Ticker(ctx context.Context, instrument string) (domain.Ticker, error) {
	if e.prices != nil {
		t, err := e.prices.Ticker(ctx, instrument)
		if err != nil {
			return domain.Ticker{}, fmt.Errorf("paper: ticker: %w", err)
		}
		e.SetTicker(t)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tickers[instrument]
	if !ok {
		return domain.Ticker{}, fmt.Errorf("paper: ticker %s: %w", instrument, domain.ErrNotFound)
	}
	if ref, err := t.ReferencePrice(); err == nil {
		e.matchLocked(ctx, instrument, decimal.NewFromFloat(ref))
	}
	return t, nil
}

// matchLocked fills resting orders that ref has crossed.
func (e *Exchange) matchLocked(ctx context.Context, instrument string, ref decimal.Decimal) {
	for id, o := range e.orders {
		if o.Instrument != instrument || !o.Price.Valid {
			continue
		}
		crossed := (o.Side == domain.SideBuy && ref.LessThanOrEqual(o.Price.Decimal)) ||
			(o.Side == domain.SideSell && ref.GreaterThanOrEqual(o.Price.Decimal))
		if !crossed {
			continue
		}
		e.applyFillLocked(instrument, o.Side, o.Quantity)
		delete(e.orders, id)
		e.logger.InfoContext(ctx, "paper order filled",
			slog.String("order_id", o.ID),
			slog.String("side", string(o.Side)),
			slog.String("price", o.Price.Decimal.String()),
		)
	}
}

func (e *Exchange) applyFillLocked(instrument string, side domain.Side, qty decimal.Decimal) {
	pos := e.positions[instrument]
	if side == domain.SideBuy {
		e.positions[instrument] = pos.Add(qty)
	} else {
		e.positions[instrument] = pos.Sub(qty)
	}
}

// OpenOrders returns resting orders on instrument ordered by id.
func (e *Exchange) OpenOrders(_ context.Context, instrument string) ([]domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]domain.OrderID, 0, len(e.orders))
	for id, o := range e.orders {
		if o.Instrument == instrument {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.orders[id])
	}
	return out, nil
}

// PlaceOrder rests a limit order or fills a market order immediately.
func (e *Exchange) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.Order, error) {
	if !req.Quantity.IsPositive() {
		return domain.Order{}, fmt.Errorf("paper: place order: quantity %s: %w", req.Quantity, domain.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := req.ClientOrderID
	if id == 0 {
		e.nextID++
		id = e.nextID
	}
	o := domain.Order{
		ID:         id.String(),
		Instrument: req.Instrument,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Status:     domain.OrderStatusOpen,
		CreatedAt:  e.now(),
	}

	switch req.Type {
	case domain.OrderTypeLimit:
		if !req.Price.IsPositive() {
			return domain.Order{}, fmt.Errorf("paper: place order: price %s: %w", req.Price, domain.ErrInvalidParameter)
		}
		o.Price = decimal.NewNullDecimal(req.Price)
		e.orders[id] = o
	case domain.OrderTypeMarket:
		qty := req.Quantity
		if req.ReduceOnly {
			qty = decimal.Min(qty, e.positions[req.Instrument].Abs())
		}
		e.applyFillLocked(req.Instrument, req.Side, qty)
		o.Status = domain.OrderStatusFilled
	default:
		return domain.Order{}, fmt.Errorf("paper: place order: type %q: %w", req.Type, domain.ErrInvalidParameter)
	}
	return o, nil
}

// CancelOrder removes a resting order.
func (e *Exchange) CancelOrder(_ context.Context, _ string, id domain.OrderID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[id]; !ok {
		return fmt.Errorf("paper: cancel %s: %w", id, domain.ErrNotFound)
	}
	delete(e.orders, id)
	return nil
}

// CancelOrders removes every listed order that is still resting. It fails
// only when none of them was found.
func (e *Exchange) CancelOrders(_ context.Context, _ string, ids []domain.OrderID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := e.orders[id]; ok {
			delete(e.orders, id)
			n++
		}
	}
	if n == 0 && len(ids) > 0 {
		return fmt.Errorf("paper: cancel %d orders: %w", len(ids), domain.ErrNotFound)
	}
	return nil
}

// Position returns the simulated net position.
func (e *Exchange) Position(_ context.Context, instrument string) (domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Position{Instrument: instrument, Size: e.positions[instrument]}, nil
}

// ClosePosition zeroes the simulated position.
func (e *Exchange) ClosePosition(_ context.Context, instrument string, _ domain.OrderType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.positions, instrument)
	return nil
}
