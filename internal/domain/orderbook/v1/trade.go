package orderbookv1

import (
	"fmt"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/shopspring/decimal"
)

// Trade represents an immutable record of a completed match. The trade price
// is always the resting (passive) order's price; the aggressor never sets the
// execution price.
type Trade struct {
	ID           string          `json:"id"`
	InstrumentID string          `json:"instrumentID"`
	BuyOrderID   string          `json:"buyOrderID"`
	SellOrderID  string          `json:"sellOrderID"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Sequence     uint64          `json:"sequence"`
	ExecutedAt   int64           `json:"executedAt"`
}

// NewTrade creates a trade between an aggressor and a resting order. The trade
// id is derived from the sequence number and the match index so that replaying
// the same instruction log reproduces identical trades.
func NewTrade(aggressor, resting *orderv1.Order, quantity decimal.Decimal, sequence uint64, index int, executedAt int64) Trade {
	buyID, sellID := aggressor.ID, resting.ID
	if aggressor.IsSell() {
		buyID, sellID = resting.ID, aggressor.ID
	}

	return Trade{
		ID:           fmt.Sprintf("%d-%d", sequence, index),
		InstrumentID: aggressor.InstrumentID,
		BuyOrderID:   buyID,
		SellOrderID:  sellID,
		Price:        resting.Price,
		Quantity:     quantity,
		Sequence:     sequence,
		ExecutedAt:   executedAt,
	}
}

// BookUpdateKind represents the kind of change to a resting order.
type BookUpdateKind string

const (
	// BookUpdateAdded indicates a new resting order was placed on the book.
	BookUpdateAdded BookUpdateKind = "added"
	// BookUpdateReduced indicates a resting order was partially filled or its quantity reduced.
	BookUpdateReduced BookUpdateKind = "reduced"
	// BookUpdateRemoved indicates a resting order left the book by fill, cancel or replace.
	BookUpdateRemoved BookUpdateKind = "removed"
)

// BookUpdate represents a delta to the resting state of the book.
type BookUpdate struct {
	InstrumentID string          `json:"instrumentID"`
	OrderID      string          `json:"orderID"`
	Side         orderv1.Side    `json:"side"`
	Kind         BookUpdateKind  `json:"kind"`
	Price        decimal.Decimal `json:"price"`
	Remaining    decimal.Decimal `json:"remaining"`
	Sequence     uint64          `json:"sequence"`
}

// CancelStatus represents the outcome of a cancel instruction.
type CancelStatus string

const (
	// CancelStatusCanceled indicates the order was resting and has been removed.
	CancelStatusCanceled CancelStatus = "canceled"
	// CancelStatusAlreadyFilled indicates the order was fully filled by an
	// earlier sequenced instruction. Not an error, the book is unchanged.
	CancelStatusAlreadyFilled CancelStatus = "already_filled"
	// CancelStatusUnknown indicates the order id was never seen by the book.
	CancelStatusUnknown CancelStatus = "unknown"
)
