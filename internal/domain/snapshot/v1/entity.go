package snapshotv1

import (
	instrumentv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instrument/v1"
	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/shopspring/decimal"
)

// BookOrder is the serializable form of a resting order inside a snapshot.
type BookOrder struct {
	OrderID     string              `json:"orderID"`
	Owner       string              `json:"owner"`
	Side        orderv1.Side        `json:"side"`
	TimeInForce orderv1.TimeInForce `json:"timeInForce"`
	Price       decimal.Decimal     `json:"price"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Remaining   decimal.Decimal     `json:"remaining"`
	Sequence    uint64              `json:"sequence"`
	AcceptedAt  int64               `json:"acceptedAt"`
}

// Snapshot captures the full resting state of one instrument's book together
// with the position in the instruction stream it reflects. Filled carries the
// ids of orders fully filled before the snapshot, so a cancel arriving after
// recovery still resolves to "already filled" instead of unknown. State
// carries the session state at snapshot time, since session controls that
// predate the snapshot sequence are not replayed.
type Snapshot struct {
	InstrumentID string             `json:"instrumentID"`
	Sequence     uint64             `json:"sequence"`
	StreamOffset int64              `json:"streamOffset"`
	State        instrumentv1.State `json:"state,omitempty"`
	Orders       []BookOrder        `json:"orders"`
	Filled       []string           `json:"filled,omitempty"`
}
