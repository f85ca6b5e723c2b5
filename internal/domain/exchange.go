package domain

import "context"

// Exchange is the venue capability set the grid engine drives. Optional
// operations (CancelOrders, Position, ClosePosition) return ErrNotImplemented
// when the venue does not support them; callers treat that as a permanent
// "no data" answer, not a failure.
type Exchange interface {
	Name() string
	Ticker(ctx context.Context, instrument string) (Ticker, error)
	OpenOrders(ctx context.Context, instrument string) ([]Order, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, instrument string, id OrderID) error
	CancelOrders(ctx context.Context, instrument string, ids []OrderID) error
	// Position returns ErrNotFound when no position is held.
	Position(ctx context.Context, instrument string) (Position, error)
	ClosePosition(ctx context.Context, instrument string, typ OrderType) error
}

// CandleSource serves historical bars for indicator computation.
type CandleSource interface {
	Candles(ctx context.Context, instrument, interval string, limit int) ([]Candle, error)
}

// TrendGauge reports a trend-strength reading on a 0..100 scale. A nil
// reading means no value is available this cycle.
type TrendGauge interface {
	TrendStrength(ctx context.Context, instrument, interval string, period int) (*float64, error)
}
