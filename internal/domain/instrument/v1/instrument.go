package instrumentv1

import (
	"github.com/shopspring/decimal"
)

// State represents the tradable state of an instrument's session.
type State string

const (
	// StateOpen allows continuous trading.
	StateOpen State = "open"
	// StateSuspended halts trading while keeping resting orders in place.
	StateSuspended State = "suspended"
	// StateClosed ends the trading session.
	StateClosed State = "closed"
	// StateHalted marks an instrument whose intake was stopped after an
	// invariant violation. Only operator intervention clears it.
	StateHalted State = "halted"
)

// Instrument represents a tradable instrument and its price and quantity granularity.
type Instrument struct {
	ID       string          `json:"id"`
	TickSize decimal.Decimal `json:"tickSize"` // minimum price increment
	LotSize  decimal.Decimal `json:"lotSize"`  // minimum quantity increment
}

// ValidPrice checks that the price is a non-negative multiple of the tick size.
func (i Instrument) ValidPrice(price decimal.Decimal) bool {
	if price.Sign() < 0 || i.TickSize.Sign() <= 0 {
		return false
	}
	return price.Mod(i.TickSize).IsZero()
}

// ValidQuantity checks that the quantity is a positive multiple of the lot size.
func (i Instrument) ValidQuantity(quantity decimal.Decimal) bool {
	if quantity.Sign() <= 0 || i.LotSize.Sign() <= 0 {
		return false
	}
	return quantity.Mod(i.LotSize).IsZero()
}
