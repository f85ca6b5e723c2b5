// Package indicator computes trend indicators from venue candles.
package indicator

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// ADX returns the Average Directional Index over period using Wilder
// smoothing. It needs at least 2*period candles, oldest first.
func ADX(candles []domain.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicator: adx: period %d: %w", period, domain.ErrInvalidParameter)
	}
	if len(candles) < 2*period {
		return 0, fmt.Errorf("indicator: adx: need %d candles, have %d: %w", 2*period, len(candles), domain.ErrNotFound)
	}

	p := float64(period)
	var trS, plusS, minusS float64
	var dxs []float64
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		var plusDM, minusDM float64
		if up > down && up > 0 {
			plusDM = up
		}
		if down > up && down > 0 {
			minusDM = down
		}
		tr := math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		if i <= period {
			trS += tr
			plusS += plusDM
			minusS += minusDM
			if i < period {
				continue
			}
		} else {
			trS = trS - trS/p + tr
			plusS = plusS - plusS/p + plusDM
			minusS = minusS - minusS/p + minusDM
		}
		dxs = append(dxs, dx(trS, plusS, minusS))
	}

	adx := 0.0
	for i, v := range dxs {
		switch {
		case i < period:
			adx += v / p
		default:
			adx = (adx*(p-1) + v) / p
		}
	}
	return adx, nil
}

func dx(tr, plus, minus float64) float64 {
	if tr == 0 {
		return 0
	}
	plusDI := 100 * plus / tr
	minusDI := 100 * minus / tr
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}
