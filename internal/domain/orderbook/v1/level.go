package orderbookv1

import (
	"errors"
	"fmt"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/shopspring/decimal"
)

var (
	// ErrNilOrder is returned when a nil order is added to a price level.
	ErrNilOrder = errors.New("order cannot be nil")
	// ErrInvalidQuantity is returned when an order with non-positive remaining quantity is added.
	ErrInvalidQuantity = errors.New("remaining quantity must be positive")
	// ErrOrderNotFound is returned when removing an order that is not on the level.
	ErrOrderNotFound = errors.New("order not found in price level")
)

// PriceLevel represents a single price level in the order book holding its
// resting orders in FIFO acceptance order. Ties at identical price are broken
// strictly by ascending sequence number, which is the order of the slice since
// orders arrive already sequenced.
type PriceLevel struct {
	Price       decimal.Decimal  `json:"price"`
	Orders      []*orderv1.Order `json:"orders"`
	TotalVolume decimal.Decimal  `json:"totalVolume"`
}

// NewPriceLevel creates a new empty PriceLevel with the specified price.
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:       price,
		Orders:      make([]*orderv1.Order, 0),
		TotalVolume: decimal.Zero,
	}
}

// Add appends an order to the level and updates the total volume.
func (l *PriceLevel) Add(order *orderv1.Order) error {
	if order == nil {
		return ErrNilOrder
	}
	if order.Remaining.Sign() <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidQuantity, order.Remaining)
	}

	l.Orders = append(l.Orders, order)
	l.TotalVolume = l.TotalVolume.Add(order.Remaining)

	return nil
}

// Remove removes an order from the level and updates the total volume.
func (l *PriceLevel) Remove(orderID string) (*orderv1.Order, error) {
	for i, o := range l.Orders {
		if o.ID == orderID {
			l.Orders = append(l.Orders[:i], l.Orders[i+1:]...)
			l.TotalVolume = l.TotalVolume.Sub(o.Remaining)
			return o, nil
		}
	}

	return nil, ErrOrderNotFound
}

// Head returns the earliest sequenced order on the level.
func (l *PriceLevel) Head() *orderv1.Order {
	if len(l.Orders) == 0 {
		return nil
	}
	return l.Orders[0]
}

// Reduce subtracts a traded quantity from both an order on this level and the
// level's running total. The caller removes the order once it is fully filled.
func (l *PriceLevel) Reduce(order *orderv1.Order, quantity decimal.Decimal) {
	order.Fill(quantity)
	l.TotalVolume = l.TotalVolume.Sub(quantity)
}

// IsEmpty checks if the level has no orders.
func (l *PriceLevel) IsEmpty() bool {
	return len(l.Orders) == 0
}

// OrderCount returns the number of orders at this level.
func (l *PriceLevel) OrderCount() int {
	return len(l.Orders)
}

// Validate checks that the stored total volume equals the sum of the
// constituent orders' remaining quantities.
func (l *PriceLevel) Validate() error {
	calculated := decimal.Zero
	for _, order := range l.Orders {
		if order == nil {
			return fmt.Errorf("nil order found in price level %s", l.Price)
		}
		if order.Remaining.Sign() <= 0 {
			return fmt.Errorf("%w: order %s has remaining %s", ErrInvalidQuantity, order.ID, order.Remaining)
		}
		calculated = calculated.Add(order.Remaining)
	}

	if !calculated.Equal(l.TotalVolume) {
		return fmt.Errorf("volume mismatch at price %s: calculated %s, stored %s", l.Price, calculated, l.TotalVolume)
	}

	return nil
}
