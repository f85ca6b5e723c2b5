package executor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/gridbot/internal/domain"
	"github.com/alanyoungcy/gridbot/internal/grid"
)

// OrderWriter is the write capability set the executor drives.
type OrderWriter interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, instrument string, id domain.OrderID) error
	CancelOrders(ctx context.Context, instrument string, ids []domain.OrderID) error
}

// Executor applies a reconciliation plan to the venue: it cancels off-grid
// orders, cancels stale orders, then places the missing levels. Every
// operation is reported individually and a failure never stops the pass.
type Executor struct {
	venue      OrderWriter
	instrument string
	quantity   decimal.Decimal
	logger     *slog.Logger
}

// NewExecutor creates an Executor placing orders of the given quantity on
// instrument.
func NewExecutor(venue OrderWriter, instrument string, quantity decimal.Decimal, logger *slog.Logger) *Executor {
	return &Executor{
		venue:      venue,
		instrument: instrument,
		quantity:   quantity,
		logger:     logger.With(slog.String("component", "executor")),
	}
}

type cancelTarget struct {
	id    domain.OrderID
	side  domain.Side
	level domain.PriceLevel
}

var sides = [...]domain.Side{domain.SideBuy, domain.SideSell}

// Execute runs the three passes in order: off-grid cancels, stale cancels,
// placements.
func (e *Executor) Execute(ctx context.Context, plan domain.Plan, index grid.Index, stale []domain.OrderID) domain.ExecutionReport {
	var report domain.ExecutionReport

	var offGrid []cancelTarget
	seen := make(map[domain.OrderID]struct{})
	for _, side := range sides {
		idx := index.Side(side)
		for _, lvl := range plan.Cancel.Side(side) {
			for _, id := range idx[lvl] {
				offGrid = append(offGrid, cancelTarget{id: id, side: side, level: lvl})
				seen[id] = struct{}{}
			}
		}
	}
	report.Results = append(report.Results, e.cancel(ctx, offGrid, domain.ReasonOffGrid)...)

	var expired []cancelTarget
	for _, id := range stale {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		expired = append(expired, cancelTarget{id: id})
	}
	report.Results = append(report.Results, e.cancel(ctx, expired, domain.ReasonStale)...)

	for _, side := range sides {
		for _, lvl := range plan.Place.Side(side) {
			report.Results = append(report.Results, e.place(ctx, side, lvl))
		}
	}

	e.logger.InfoContext(ctx, "execution complete",
		slog.Int("placed", report.Count(domain.OpPlaced)),
		slog.Int("cancelled", report.Count(domain.OpCancelled)),
		slog.Int("failed", report.Count(domain.OpFailed)),
	)
	return report
}

// cancel removes targets with one bulk call, falling back to one call per id
// when the venue has no bulk cancel.
func (e *Executor) cancel(ctx context.Context, targets []cancelTarget, reason domain.OpReason) []domain.OpResult {
	if len(targets) == 0 {
		return nil
	}
	ids := make([]domain.OrderID, len(targets))
	for i, t := range targets {
		ids[i] = t.id
	}

	err := e.venue.CancelOrders(ctx, e.instrument, ids)
	if errors.Is(err, domain.ErrNotImplemented) {
		out := make([]domain.OpResult, 0, len(targets))
		for _, t := range targets {
			out = append(out, e.result(ctx, t, reason, e.venue.CancelOrder(ctx, e.instrument, t.id)))
		}
		return out
	}

	out := make([]domain.OpResult, 0, len(targets))
	for _, t := range targets {
		out = append(out, e.result(ctx, t, reason, err))
	}
	return out
}

func (e *Executor) result(ctx context.Context, t cancelTarget, reason domain.OpReason, err error) domain.OpResult {
	res := domain.OpResult{Kind: domain.OpCancelled, Reason: reason, Side: t.side, Level: t.level, OrderID: t.id}
	switch {
	case err == nil:
		e.logger.DebugContext(ctx, "order cancelled",
			slog.String("order_id", t.id.String()),
			slog.String("reason", string(reason)),
		)
	case errors.Is(err, domain.ErrNotImplemented):
		res.Kind = domain.OpUnsupported
		res.Error = err.Error()
	default:
		res.Kind = domain.OpFailed
		res.Error = err.Error()
		e.logger.WarnContext(ctx, "cancel failed",
			slog.String("order_id", t.id.String()),
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()),
		)
	}
	return res
}

func (e *Executor) place(ctx context.Context, side domain.Side, lvl domain.PriceLevel) domain.OpResult {
	req := domain.OrderRequest{
		Instrument:  e.instrument,
		Side:        side,
		Type:        domain.OrderTypeLimit,
		Price:       decimal.NewFromInt(int64(lvl)),
		Quantity:    e.quantity,
		TimeInForce: domain.TimeInForceGTC,
	}
	res := domain.OpResult{Kind: domain.OpPlaced, Reason: domain.ReasonMissing, Side: side, Level: lvl}

	order, err := e.venue.PlaceOrder(ctx, req)
	if err != nil {
		res.Kind = domain.OpFailed
		res.Error = err.Error()
		e.logger.WarnContext(ctx, "place failed",
			slog.String("side", string(side)),
			slog.Int64("price", int64(lvl)),
			slog.String("quantity", e.quantity.String()),
			slog.String("error", err.Error()),
		)
		return res
	}
	if id, err := domain.ParseOrderID(order.ID); err == nil {
		res.OrderID = id
	}
	e.logger.InfoContext(ctx, "order placed",
		slog.String("side", string(side)),
		slog.Int64("price", int64(lvl)),
		slog.String("quantity", e.quantity.String()),
		slog.String("order_id", order.ID),
	)
	return res
}
