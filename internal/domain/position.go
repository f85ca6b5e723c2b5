package domain

import "github.com/shopspring/decimal"

// Position is the net exposure held on one instrument. Size is signed:
// positive for long, negative for short.
type Position struct {
	Instrument string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// Flat reports whether the position carries no exposure.
func (p Position) Flat() bool {
	return p.Size.IsZero()
}

// Side returns the direction of the exposure. It is meaningless for a flat
// position.
func (p Position) Side() Side {
	if p.Size.IsNegative() {
		return SideSell
	}
	return SideBuy
}
