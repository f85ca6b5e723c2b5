package grvt

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/gridbot/internal/crypto"
	"github.com/alanyoungcy/gridbot/internal/domain"
)

// envelope is the common {"result": ...} response wrapper.
type envelope[T any] struct {
	Result T `json:"result"`
}

// apiError is the error body returned with non-2xx responses.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type apiTicker struct {
	EventTime    string `json:"event_time"`
	Instrument   string `json:"instrument"`
	MarkPrice    string `json:"mark_price"`
	LastPrice    string `json:"last_price"`
	MidPrice     string `json:"mid_price"`
	BestBidPrice string `json:"best_bid_price"`
	BestAskPrice string `json:"best_ask_price"`
}

func (t apiTicker) toDomain() domain.Ticker {
	return domain.Ticker{
		Instrument: t.Instrument,
		LastPrice:  parsePrice(t.LastPrice),
		MidPrice:   parsePrice(t.MidPrice),
		MarkPrice:  parsePrice(t.MarkPrice),
		BestBid:    parsePrice(t.BestBidPrice),
		BestAsk:    parsePrice(t.BestAskPrice),
		Timestamp:  parseNanos(t.EventTime),
	}
}

type apiInstrument struct {
	Instrument     string `json:"instrument"`
	InstrumentHash string `json:"instrument_hash"`
	Base           string `json:"base"`
	Quote          string `json:"quote"`
	Kind           string `json:"kind"`
	TickSize       string `json:"tick_size"`
	MinSize        string `json:"min_size"`
	BaseDecimals   int32  `json:"base_decimals"`
}

type apiLeg struct {
	Instrument    string `json:"instrument"`
	Size          string `json:"size"`
	LimitPrice    string `json:"limit_price"`
	IsBuyingAsset bool   `json:"is_buying_asset"`
}

type apiOrderMetadata struct {
	ClientOrderID string `json:"client_order_id"`
	CreateTime    string `json:"create_time,omitempty"`
}

type apiOrderState struct {
	Status     string   `json:"status"`
	TradedSize []string `json:"traded_size"`
}

type apiOrder struct {
	OrderID      string           `json:"order_id,omitempty"`
	SubAccountID string           `json:"sub_account_id"`
	IsMarket     bool             `json:"is_market"`
	TimeInForce  string           `json:"time_in_force"`
	PostOnly     bool             `json:"post_only"`
	ReduceOnly   bool             `json:"reduce_only"`
	Legs         []apiLeg         `json:"legs"`
	Signature    crypto.Signature `json:"signature"`
	Metadata     apiOrderMetadata `json:"metadata"`
	State        *apiOrderState   `json:"state,omitempty"`
}

// toDomain converts the first leg of o. Orders without legs are reported
// with ok=false.
func (o apiOrder) toDomain() (domain.Order, bool) {
	if len(o.Legs) == 0 {
		return domain.Order{}, false
	}
	leg := o.Legs[0]
	out := domain.Order{
		ID:         o.Metadata.ClientOrderID,
		Instrument: leg.Instrument,
		Side:       domain.SideSell,
		Type:       domain.OrderTypeLimit,
		Status:     domain.OrderStatusPending,
		CreatedAt:  parseNanos(o.Metadata.CreateTime),
	}
	if leg.IsBuyingAsset {
		out.Side = domain.SideBuy
	}
	if o.IsMarket {
		out.Type = domain.OrderTypeMarket
	}
	if q, err := decimal.NewFromString(leg.Size); err == nil {
		out.Quantity = q
	}
	if p, err := decimal.NewFromString(leg.LimitPrice); err == nil && p.IsPositive() {
		out.Price = decimal.NewNullDecimal(p)
	}
	if o.State != nil {
		out.Status = mapStatus(*o.State)
	}
	return out, true
}

func mapStatus(s apiOrderState) domain.OrderStatus {
	switch s.Status {
	case "PENDING":
		return domain.OrderStatusPending
	case "OPEN":
		for _, ts := range s.TradedSize {
			if d, err := decimal.NewFromString(ts); err == nil && d.IsPositive() {
				return domain.OrderStatusPartiallyFilled
			}
		}
		return domain.OrderStatusOpen
	case "FILLED":
		return domain.OrderStatusFilled
	case "REJECTED":
		return domain.OrderStatusRejected
	case "CANCELLED":
		return domain.OrderStatusCancelled
	}
	return domain.OrderStatusPending
}

type apiPosition struct {
	Instrument string `json:"instrument"`
	Size       string `json:"size"`
	EntryPrice string `json:"entry_price"`
}

type apiCandle struct {
	OpenTime string `json:"open_time"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	VolumeB  string `json:"volume_b"`
}

func (c apiCandle) toDomain() domain.Candle {
	return domain.Candle{
		OpenTime: parseNanos(c.OpenTime),
		Open:     parsePrice(c.Open),
		High:     parsePrice(c.High),
		Low:      parsePrice(c.Low),
		Close:    parsePrice(c.Close),
		Volume:   parsePrice(c.VolumeB),
	}
}

// klineIntervals maps config intervals to the venue's candle interval enum.
var klineIntervals = map[string]string{
	"1m":  "CI_1_M",
	"3m":  "CI_3_M",
	"5m":  "CI_5_M",
	"15m": "CI_15_M",
	"30m": "CI_30_M",
	"1h":  "CI_1_H",
	"2h":  "CI_2_H",
	"4h":  "CI_4_H",
	"6h":  "CI_6_H",
	"8h":  "CI_8_H",
	"12h": "CI_12_H",
	"1d":  "CI_1_D",
	"1w":  "CI_1_W",
}

// parsePrice returns 0 for empty, zero or malformed values.
func parsePrice(s string) float64 {
	if s == "" || s == "0" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseNanos parses a unix-nanosecond timestamp string.
func parseNanos(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
