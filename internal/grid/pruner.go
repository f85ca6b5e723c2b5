package grid

import (
	"math/rand/v2"
	"time"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Pruner randomly selects live orders that have rested longer than a
// threshold, so the grid periodically refreshes its queue position. A Pruner
// is not safe for concurrent use.
type Pruner struct {
	threshold   time.Duration
	probability float64
	rng         *rand.Rand
}

// NewPruner creates a Pruner. Orders older than threshold are each selected
// with the given probability, drawing from rng.
func NewPruner(threshold time.Duration, probability float64, rng *rand.Rand) *Pruner {
	return &Pruner{threshold: threshold, probability: probability, rng: rng}
}

// NewRand returns a PCG-backed generator. A zero seed seeds from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Select returns the ids of the orders chosen for cancellation. Orders with
// an unknown creation time or an unparsable id are never selected.
func (p *Pruner) Select(orders []domain.Order, now time.Time) []domain.OrderID {
	var out []domain.OrderID
	for _, o := range orders {
		if !o.Status.Live() || o.CreatedAt.IsZero() {
			continue
		}
		if now.Sub(o.CreatedAt) <= p.threshold {
			continue
		}
		if p.rng.Float64() >= p.probability {
			continue
		}
		id, err := domain.ParseOrderID(o.ID)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
