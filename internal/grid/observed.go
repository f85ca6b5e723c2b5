package grid

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// PriceIndex maps a price level to every order id resting there.
type PriceIndex map[domain.PriceLevel][]domain.OrderID

// Index holds one PriceIndex per side.
type Index struct {
	Buy  PriceIndex
	Sell PriceIndex
}

// Side returns the index of one side.
func (ix Index) Side(side domain.Side) PriceIndex {
	if side == domain.SideBuy {
		return ix.Buy
	}
	return ix.Sell
}

// Observed is the venue's live order state for one instrument, as seen at
// the start of a cycle.
type Observed struct {
	Levels domain.LevelSet
	Index  Index
	// Orders is every live order returned by the venue, including ones the
	// index skipped.
	Orders []domain.Order
}

// OrderLister is the read capability the collector needs.
type OrderLister interface {
	OpenOrders(ctx context.Context, instrument string) ([]domain.Order, error)
}

// Collector builds the Observed state from the venue's open orders.
type Collector struct {
	orders     OrderLister
	instrument string
	step       int64
	logger     *slog.Logger
}

// NewCollector creates a Collector for instrument, quantizing prices to step.
func NewCollector(orders OrderLister, instrument string, step int64, logger *slog.Logger) *Collector {
	return &Collector{
		orders:     orders,
		instrument: instrument,
		step:       step,
		logger:     logger.With(slog.String("component", "collector")),
	}
}

// Collect queries open orders and indexes the live ones by side and level.
// A failed or unsupported query yields an empty state; it never errors.
func (c *Collector) Collect(ctx context.Context) Observed {
	obs := Observed{
		Index: Index{Buy: PriceIndex{}, Sell: PriceIndex{}},
	}

	orders, err := c.orders.OpenOrders(ctx, c.instrument)
	if err != nil {
		if errors.Is(err, domain.ErrNotImplemented) {
			c.logger.DebugContext(ctx, "open orders not supported by venue")
		} else {
			c.logger.WarnContext(ctx, "open orders query failed, assuming none",
				slog.String("instrument", c.instrument),
				slog.String("error", err.Error()),
			)
		}
		return obs
	}

	for _, o := range orders {
		if !o.Status.Live() {
			continue
		}
		obs.Orders = append(obs.Orders, o)

		if !o.Price.Valid {
			continue
		}
		id, err := domain.ParseOrderID(o.ID)
		if err != nil {
			c.logger.DebugContext(ctx, "skipping order with unparsable id", slog.String("order_id", o.ID))
			continue
		}
		var idx PriceIndex
		switch o.Side {
		case domain.SideBuy:
			idx = obs.Index.Buy
		case domain.SideSell:
			idx = obs.Index.Sell
		default:
			continue
		}
		lvl := Quantize(o.Price.Decimal, c.step)
		idx[lvl] = append(idx[lvl], id)
	}

	obs.Levels = domain.LevelSet{
		Buy:  sortedKeys(obs.Index.Buy),
		Sell: sortedKeys(obs.Index.Sell),
	}
	return obs
}
