package domain

import (
	"fmt"
	"time"
)

// Ticker is a price snapshot for one instrument. A zero field means the venue
// did not report that price.
type Ticker struct {
	Instrument string
	LastPrice  float64
	MidPrice   float64
	MarkPrice  float64
	BestBid    float64
	BestAsk    float64
	Timestamp  time.Time
}

// ReferencePrice returns the first available of last, mid and mark price.
func (t Ticker) ReferencePrice() (float64, error) {
	for _, p := range []float64{t.LastPrice, t.MidPrice, t.MarkPrice} {
		if p > 0 {
			return p, nil
		}
	}
	return 0, fmt.Errorf("ticker %s: %w", t.Instrument, ErrNoReferencePrice)
}

// Candle is one OHLC bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}
