package grid

import (
	"fmt"
	"math"
	"slices"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Band is the fraction of the reference price a level may sit away from it.
const Band = 0.01

// Generate computes the target grid around price. Buy levels step down from
// the bid anchor floor((price-spread)/step)*step, sell levels step up from
// the ask anchor ceil((price+spread)/step)*step, count candidates per side.
// Candidates outside [price*(1-Band), price*(1+Band)] are dropped. A level may
// appear on both sides when spread is small relative to step.
func Generate(price float64, step int64, count int, spread int64) (domain.LevelSet, error) {
	switch {
	case step <= 0:
		return domain.LevelSet{}, fmt.Errorf("grid: generate: step %d: %w", step, domain.ErrInvalidParameter)
	case count < 0:
		return domain.LevelSet{}, fmt.Errorf("grid: generate: count %d: %w", count, domain.ErrInvalidParameter)
	case spread < 0:
		return domain.LevelSet{}, fmt.Errorf("grid: generate: spread %d: %w", spread, domain.ErrInvalidParameter)
	case math.IsNaN(price) || math.IsInf(price, 0) || price <= 0:
		return domain.LevelSet{}, fmt.Errorf("grid: generate: price %v: %w", price, domain.ErrInvalidParameter)
	}

	s := float64(step)
	lower, upper := price*(1-Band), price*(1+Band)
	bid := int64(math.Floor((price-float64(spread))/s)) * step
	ask := int64(math.Ceil((price+float64(spread))/s)) * step

	// The band holds at most this many levels per side; count beyond it
	// cannot add candidates.
	capacity := count
	if fit := int(2*Band*price/s) + 2; fit < capacity {
		capacity = fit
	}
	out := domain.LevelSet{
		Buy:  make([]domain.PriceLevel, 0, capacity),
		Sell: make([]domain.PriceLevel, 0, capacity),
	}
	// Buy candidates only move down and sell candidates only move up, so the
	// first one outside the band ends its side.
	for i := int64(0); i < int64(count); i++ {
		lvl := bid - i*step
		if float64(lvl) < lower {
			break
		}
		if float64(lvl) <= upper {
			out.Buy = append(out.Buy, domain.PriceLevel(lvl))
		}
	}
	for i := int64(0); i < int64(count); i++ {
		lvl := ask + i*step
		if float64(lvl) > upper {
			break
		}
		if float64(lvl) >= lower {
			out.Sell = append(out.Sell, domain.PriceLevel(lvl))
		}
	}
	slices.Sort(out.Buy)
	slices.Sort(out.Sell)
	return out, nil
}
