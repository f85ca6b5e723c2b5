package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

func TestDiff(t *testing.T) {
	target := domain.LevelSet{Buy: levels(98, 99, 100), Sell: levels(101, 102, 103)}
	observed := domain.LevelSet{Buy: levels(97, 98, 99), Sell: levels(101, 102, 103)}

	plan := Diff(target, observed)

	assert.Equal(t, levels(97), plan.Cancel.Buy)
	assert.Empty(t, plan.Cancel.Sell)
	assert.Equal(t, levels(100), plan.Place.Buy)
	assert.Empty(t, plan.Place.Sell)
}

func TestDiffSidesAreIndependent(t *testing.T) {
	target := domain.LevelSet{Buy: levels(100), Sell: levels(100)}
	observed := domain.LevelSet{Sell: levels(100)}

	plan := Diff(target, observed)

	assert.Equal(t, levels(100), plan.Place.Buy)
	assert.Empty(t, plan.Place.Sell)
	assert.Empty(t, plan.Cancel.Sell)
}

func TestDiffProperties(t *testing.T) {
	target := domain.LevelSet{Buy: levels(5, 3, 1), Sell: levels(9, 7)}
	observed := domain.LevelSet{Buy: levels(4, 3), Sell: levels(8, 7, 6)}

	plan := Diff(target, observed)

	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		cancel, place := plan.Cancel.Side(side), plan.Place.Side(side)
		assert.IsIncreasing(t, cancel)
		assert.IsIncreasing(t, place)
		for _, lvl := range cancel {
			assert.NotContains(t, target.Side(side), lvl)
			assert.NotContains(t, place, lvl)
		}
		for _, lvl := range place {
			assert.NotContains(t, observed.Side(side), lvl)
		}
	}
}

func TestDiffIdentical(t *testing.T) {
	set := domain.LevelSet{Buy: levels(1, 2), Sell: levels(3, 4)}
	assert.True(t, Diff(set, set).Empty())
}

func TestDiffPlacementIsIdempotent(t *testing.T) {
	target := domain.LevelSet{Buy: levels(96, 97, 98, 99), Sell: levels(101, 102, 103)}
	observed := domain.LevelSet{Buy: levels(95, 98), Sell: levels(103, 104)}

	plan := Diff(target, observed)
	again := Diff(plan.Place, observed)
	assert.Equal(t, plan.Place, again.Place)
	assert.Equal(t, plan.Place, Diff(again.Place, observed).Place)

	// Once the placements rest, nothing is left to place.
	placed := domain.LevelSet{
		Buy:  append(append([]domain.PriceLevel{}, observed.Buy...), plan.Place.Buy...),
		Sell: append(append([]domain.PriceLevel{}, observed.Sell...), plan.Place.Sell...),
	}
	assert.Empty(t, Diff(target, placed).Place.Buy)
	assert.Empty(t, Diff(target, placed).Place.Sell)
}
