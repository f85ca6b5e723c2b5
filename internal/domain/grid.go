package domain

// PriceLevel is an integer-quantized price, always a multiple of the grid
// step. It is the identity key for grid membership and order matching.
type PriceLevel int64

// LevelSet holds ascending price levels partitioned by side.
type LevelSet struct {
	Buy  []PriceLevel `json:"buy"`
	Sell []PriceLevel `json:"sell"`
}

// Side returns the levels of one side.
func (s LevelSet) Side(side Side) []PriceLevel {
	if side == SideBuy {
		return s.Buy
	}
	return s.Sell
}

// Len is the number of levels across both sides.
func (s LevelSet) Len() int {
	return len(s.Buy) + len(s.Sell)
}

// Plan is the per-side difference between the target grid and the observed
// orders: levels to cancel and levels to place.
type Plan struct {
	Cancel LevelSet `json:"cancel"`
	Place  LevelSet `json:"place"`
}

// Empty reports whether the plan requires no action.
func (p Plan) Empty() bool {
	return p.Cancel.Len() == 0 && p.Place.Len() == 0
}
