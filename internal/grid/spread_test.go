package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestTrendAdjustedSpread(t *testing.T) {
	tests := []struct {
		name      string
		reading   *float64
		price     float64
		def       int64
		threshold float64
		want      int64
	}{
		{"missing reading keeps default", nil, 100000, 10, 25, 10},
		{"reading below threshold", ptr(20), 100000, 10, 25, 10},
		{"reading at threshold", ptr(25), 100000, 10, 25, 10},
		{"midway", ptr(62.5), 100000, 10, 25, 505},
		{"maximum reading hits the ceiling", ptr(100), 100000, 10, 25, 1000},
		{"default above ceiling is capped", ptr(50), 1000, 50, 25, 10},
		{"result is truncated", ptr(26), 1234, 1, 25, 1},
		{"nan reading keeps default", ptr(math.NaN()), 100000, 10, 25, 10},
		{"infinite reading keeps default", ptr(math.Inf(1)), 1000, 50, 25, 50},
		{"reading above 100 stays at the ceiling", ptr(250), 100000, 10, 25, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendAdjustedSpread(tt.reading, tt.price, tt.def, tt.threshold))
		})
	}
}

func TestTrendAdjustedSpreadMonotonic(t *testing.T) {
	prev := int64(0)
	for r := 0.0; r <= 100; r += 2.5 {
		got := TrendAdjustedSpread(ptr(r), 80000, 20, 25)
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, int64(800))
		prev = got
	}
}
