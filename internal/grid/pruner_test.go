package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

func aged(id string, created time.Time) domain.Order {
	o := order(id, domain.SideBuy, "100", domain.OrderStatusOpen)
	o.CreatedAt = created
	return o
}

func TestPrunerNeverSelectsYoungOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewPruner(5*time.Second, 1, NewRand(7))

	got := p.Select([]domain.Order{
		aged("1", now.Add(-time.Second)),
		aged("2", now.Add(-5*time.Second)),
		aged("3", now),
	}, now)

	assert.Empty(t, got)
}

func TestPrunerProbabilityBounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		aged("1", now.Add(-time.Minute)),
		aged("2", now.Add(-time.Hour)),
	}

	assert.Equal(t, []domain.OrderID{1, 2}, NewPruner(5*time.Second, 1, NewRand(1)).Select(orders, now))
	assert.Empty(t, NewPruner(5*time.Second, 0, NewRand(1)).Select(orders, now))
}

func TestPrunerSkipsUnknownAgeAndBadIDs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	filled := aged("4", now.Add(-time.Hour))
	filled.Status = domain.OrderStatusFilled

	got := NewPruner(time.Second, 1, NewRand(3)).Select([]domain.Order{
		aged("1", time.Time{}),
		aged("x1", now.Add(-time.Hour)),
		filled,
		aged("5", now.Add(-time.Hour)),
	}, now)

	assert.Equal(t, []domain.OrderID{5}, got)
}

func TestPrunerSeedIsReproducible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var orders []domain.Order
	for i := 1; i <= 50; i++ {
		orders = append(orders, aged(domain.OrderID(i).String(), now.Add(-time.Minute)))
	}

	a := NewPruner(time.Second, 0.5, NewRand(42)).Select(orders, now)
	b := NewPruner(time.Second, 0.5, NewRand(42)).Select(orders, now)

	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
	assert.Less(t, len(a), len(orders))
}
