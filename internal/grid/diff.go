package grid

import "github.com/alanyoungcy/gridbot/internal/domain"

// Diff computes, per side, the observed levels absent from the target
// (cancel) and the target levels absent from the observed set (place).
func Diff(target, observed domain.LevelSet) domain.Plan {
	return domain.Plan{
		Cancel: domain.LevelSet{
			Buy:  subtract(observed.Buy, target.Buy),
			Sell: subtract(observed.Sell, target.Sell),
		},
		Place: domain.LevelSet{
			Buy:  subtract(target.Buy, observed.Buy),
			Sell: subtract(target.Sell, observed.Sell),
		},
	}
}
