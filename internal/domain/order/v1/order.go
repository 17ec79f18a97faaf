package orderv1

import (
	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side string

const (
	// SideBuy represents a bid order.
	SideBuy Side = "buy"
	// SideSell represents an ask order.
	SideSell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType represents the type of order.
type OrderType string

const (
	// OrderTypeLimit represents a limit order.
	OrderTypeLimit OrderType = "limit"
	// OrderTypeMarket represents a market order.
	OrderTypeMarket OrderType = "market"
)

// TimeInForce represents the execution style of an order.
type TimeInForce string

const (
	// TimeInForceGTC rests any unfilled remainder on the book.
	TimeInForceGTC TimeInForce = "gtc"
	// TimeInForceFOK fills the full quantity immediately or trades nothing.
	TimeInForceFOK TimeInForce = "fok"
	// TimeInForceFAK fills what it can immediately and cancels the remainder.
	TimeInForceFAK TimeInForce = "fak"
)

// Order represents a single order accepted by the engine.
type Order struct {
	ID           string          `json:"id"`
	InstrumentID string          `json:"instrumentID"`
	Owner        string          `json:"owner"`
	Side         Side            `json:"side"`
	Type         OrderType       `json:"type"`
	TimeInForce  TimeInForce     `json:"timeInForce"`
	Price        decimal.Decimal `json:"price"` // zero for market orders
	Quantity     decimal.Decimal `json:"quantity"`
	Remaining    decimal.Decimal `json:"remaining"`
	Sequence     uint64          `json:"sequence"`
	AcceptedAt   int64           `json:"acceptedAt"` // unix nanos, assigned at acceptance
}

// NewOrder creates a new order with remaining quantity equal to its full quantity.
func NewOrder(id, instrumentID, owner string, side Side, orderType OrderType, price, quantity decimal.Decimal) *Order {
	return &Order{
		ID:           id,
		InstrumentID: instrumentID,
		Owner:        owner,
		Side:         side,
		Type:         orderType,
		TimeInForce:  TimeInForceGTC,
		Price:        price,
		Quantity:     quantity,
		Remaining:    quantity,
	}
}

// IsBuy checks if the order is a buy (bid) order.
func (o *Order) IsBuy() bool {
	return o.Side == SideBuy
}

// IsSell checks if the order is a sell (ask) order.
func (o *Order) IsSell() bool {
	return o.Side == SideSell
}

// IsFilled checks if the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining.Sign() <= 0
}

// Fill decrements the remaining quantity by the traded quantity.
func (o *Order) Fill(quantity decimal.Decimal) {
	o.Remaining = o.Remaining.Sub(quantity)
}

// Crosses reports whether the order's price crosses the given resting price.
// Market orders cross any price.
func (o *Order) Crosses(restingPrice decimal.Decimal) bool {
	if o.Type == OrderTypeMarket {
		return true
	}
	if o.IsBuy() {
		return o.Price.GreaterThanOrEqual(restingPrice)
	}
	return o.Price.LessThanOrEqual(restingPrice)
}
