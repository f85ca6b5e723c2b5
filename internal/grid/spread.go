package grid

import "math"

// TrendAdjustedSpread widens the default spread as the trend reading rises
// above threshold, linearly up to a ceiling of Band*price. A nil or
// non-finite reading, or one at or below threshold, yields the default
// unchanged.
func TrendAdjustedSpread(reading *float64, price float64, def int64, threshold float64) int64 {
	if reading == nil || !finite(*reading) || *reading <= threshold || threshold >= 100 {
		return def
	}
	ceiling := Band * price
	ratio := math.Min((*reading-threshold)/(100-threshold), 1)
	spread := math.Min(float64(def)+ratio*(ceiling-float64(def)), ceiling)
	if !finite(spread) || spread < 0 {
		return def
	}
	return int64(spread)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
