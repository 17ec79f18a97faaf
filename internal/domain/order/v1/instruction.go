package orderv1

import (
	"github.com/shopspring/decimal"
)

// InstructionKind represents the kind of inbound instruction.
type InstructionKind string

const (
	// InstructionNewOrder places a new order.
	InstructionNewOrder InstructionKind = "new_order"
	// InstructionCancelOrder cancels a resting order.
	InstructionCancelOrder InstructionKind = "cancel_order"
	// InstructionReplaceOrder amends price and/or quantity of a resting order.
	InstructionReplaceOrder InstructionKind = "replace_order"
	// InstructionSessionControl transitions the trading session of an instrument.
	InstructionSessionControl InstructionKind = "session_control"
)

// SessionAction represents a session control transition.
type SessionAction string

const (
	// SessionOpen opens continuous trading for an instrument.
	SessionOpen SessionAction = "open"
	// SessionSuspend halts trading while keeping resting orders.
	SessionSuspend SessionAction = "suspend"
	// SessionClose ends the trading session.
	SessionClose SessionAction = "close"
)

// Instruction represents an inbound instruction consumed from the message bus.
// Arrival order is not trusted; the sequencer imposes the total order.
type Instruction struct {
	Kind         InstructionKind `json:"kind"`
	InstrumentID string          `json:"instrumentID"`
	OrderID      string          `json:"orderID"`
	Owner        string          `json:"owner"`

	// New order fields.
	Side        Side            `json:"side,omitempty"`
	Type        OrderType       `json:"type,omitempty"`
	TimeInForce TimeInForce     `json:"timeInForce,omitempty"`
	Price       decimal.Decimal `json:"price,omitempty"`
	Quantity    decimal.Decimal `json:"quantity,omitempty"`

	// Replace fields. Nil means unchanged.
	NewPrice    *decimal.Decimal `json:"newPrice,omitempty"`
	NewQuantity *decimal.Decimal `json:"newQuantity,omitempty"`

	// Session control fields.
	Session SessionAction `json:"session,omitempty"`

	// Offset is the position of the instruction in the inbound stream.
	Offset int64 `json:"-"`
}

// SequencedInstruction is an instruction stamped with its sequence number.
// The sequence number is the sole tie breaker for replay determinism.
type SequencedInstruction struct {
	Instruction

	Sequence   uint64 `json:"sequence"`
	AcceptedAt int64  `json:"acceptedAt"` // unix nanos, assigned at acceptance

	// StreamOffset carries the inbound stream position into the journal so a
	// restart can resume the reader where the journal ends.
	StreamOffset int64 `json:"streamOffset"`
}
