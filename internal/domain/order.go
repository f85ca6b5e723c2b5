package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether an order buys or sells the instrument.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side that offsets s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ParseSide accepts the spellings venues use for the two sides.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy", "long", "BUY", "LONG":
		return SideBuy, true
	case "sell", "short", "SELL", "SHORT":
		return SideSell, true
	}
	return "", false
}

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce is the resting policy of a limit order.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the order lifecycle as reported by the venue.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Live reports whether an order in this status still rests on the book.
func (s OrderStatus) Live() bool {
	switch s {
	case OrderStatusPending, OrderStatusOpen, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// OrderID is the numeric client order id used to address orders on the venue.
type OrderID uint64

// ParseOrderID parses the decimal string form of an order id.
func ParseOrderID(s string) (OrderID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse order id %q: %w", s, ErrInvalidParameter)
	}
	return OrderID(n), nil
}

func (id OrderID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Order is a resting or historical order as reported by the venue. ID is kept
// in the venue's string form; callers that need to address the order parse it
// with ParseOrderID.
type Order struct {
	ID         string
	Instrument string
	Side       Side
	Type       OrderType
	Price      decimal.NullDecimal // invalid for market orders
	Quantity   decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
}

// OrderRequest describes an order to submit.
type OrderRequest struct {
	Instrument    string
	Side          Side
	Type          OrderType
	Price         decimal.Decimal // ignored for market orders
	Quantity      decimal.Decimal
	TimeInForce   TimeInForce
	ReduceOnly    bool
	ClientOrderID OrderID // zero lets the adapter assign one
}
