package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Params is the immutable configuration of one grid. It is built once at
// startup and passed to every component that needs it.
type Params struct {
	Instrument string
	Step       int64
	Levels     int
	Spread     int64
	Quantity   decimal.Decimal
	Interval   time.Duration

	Trend TrendParams
	Stale StaleParams

	// FlattenPositions enables the position guard.
	FlattenPositions bool
}

// TrendParams configures the trend-adjusted spread.
type TrendParams struct {
	Enabled   bool
	Threshold float64
	Interval  string
	Period    int
}

// StaleParams configures random pruning of long-resting orders.
type StaleParams struct {
	Enabled     bool
	Age         time.Duration
	Probability float64
	Seed        uint64
}

// Validate rejects parameters the grid generator or scheduler cannot run with.
func (p Params) Validate() error {
	switch {
	case p.Instrument == "":
		return fmt.Errorf("strategy: instrument is empty: %w", domain.ErrInvalidParameter)
	case p.Step <= 0:
		return fmt.Errorf("strategy: step %d: %w", p.Step, domain.ErrInvalidParameter)
	case p.Levels < 0:
		return fmt.Errorf("strategy: levels %d: %w", p.Levels, domain.ErrInvalidParameter)
	case p.Spread < 0:
		return fmt.Errorf("strategy: spread %d: %w", p.Spread, domain.ErrInvalidParameter)
	case !p.Quantity.IsPositive():
		return fmt.Errorf("strategy: quantity %s: %w", p.Quantity, domain.ErrInvalidParameter)
	case p.Interval <= 0:
		return fmt.Errorf("strategy: interval %s: %w", p.Interval, domain.ErrInvalidParameter)
	case p.Trend.Enabled && (p.Trend.Threshold < 0 || p.Trend.Threshold >= 100):
		return fmt.Errorf("strategy: trend threshold %v: %w", p.Trend.Threshold, domain.ErrInvalidParameter)
	case p.Stale.Enabled && (p.Stale.Probability < 0 || p.Stale.Probability > 1):
		return fmt.Errorf("strategy: stale probability %v: %w", p.Stale.Probability, domain.ErrInvalidParameter)
	}
	return nil
}
