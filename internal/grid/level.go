package grid

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Quantize maps a venue price onto the nearest multiple of step.
func Quantize(price decimal.Decimal, step int64) domain.PriceLevel {
	s := decimal.NewFromInt(step)
	return domain.PriceLevel(price.Div(s).Round(0).Mul(s).IntPart())
}

// sortedKeys returns the keys of idx in ascending order.
func sortedKeys(idx PriceIndex) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(idx))
	for lvl := range idx {
		out = append(out, lvl)
	}
	slices.Sort(out)
	return out
}

// subtract returns the members of a that are absent from b, ascending.
func subtract(a, b []domain.PriceLevel) []domain.PriceLevel {
	exclude := make(map[domain.PriceLevel]struct{}, len(b))
	for _, lvl := range b {
		exclude[lvl] = struct{}{}
	}
	out := make([]domain.PriceLevel, 0, len(a))
	for _, lvl := range a {
		if _, ok := exclude[lvl]; !ok {
			out = append(out, lvl)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
