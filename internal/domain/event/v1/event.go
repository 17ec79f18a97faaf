package eventv1

import (
	orderbookv1 "github.com/christopherrons/herron-trading-engine/internal/domain/orderbook/v1"
)

// Kind represents the kind of outbound event.
type Kind string

const (
	// KindTrade carries a completed trade execution.
	KindTrade Kind = "trade"
	// KindBookUpdate carries a delta to the resting book state.
	KindBookUpdate Kind = "book_update"
	// KindRejection reports an instruction rejected by validation.
	KindRejection Kind = "rejection"
	// KindGap marks events dropped under the publisher's drop-oldest policy so
	// downstream consumers can detect the hole in the stream.
	KindGap Kind = "gap"
)

// Event is a single outbound event tagged with the sequence number of the
// instruction that produced it. Events for the same instrument are delivered
// in sequence order.
type Event struct {
	Kind         Kind                    `json:"kind"`
	InstrumentID string                  `json:"instrumentID"`
	Sequence     uint64                  `json:"sequence"`
	Trade        *orderbookv1.Trade      `json:"trade,omitempty"`
	BookUpdate   *orderbookv1.BookUpdate `json:"bookUpdate,omitempty"`
	Rejection    *Rejection              `json:"rejection,omitempty"`
	Gap          *Gap                    `json:"gap,omitempty"`
}

// Rejection describes a synchronously rejected instruction.
type Rejection struct {
	OrderID string `json:"orderID"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// Gap records how many events were shed between two sequence numbers.
type Gap struct {
	Dropped      uint64 `json:"dropped"`
	FromSequence uint64 `json:"fromSequence"`
	ToSequence   uint64 `json:"toSequence"`
}

// Batch is the ordered set of events produced by processing a single
// sequenced instruction.
type Batch struct {
	InstrumentID string  `json:"instrumentID"`
	Sequence     uint64  `json:"sequence"`
	Events       []Event `json:"events"`
}

// TradeEvent wraps a trade into an Event.
func TradeEvent(trade orderbookv1.Trade) Event {
	t := trade
	return Event{
		Kind:         KindTrade,
		InstrumentID: trade.InstrumentID,
		Sequence:     trade.Sequence,
		Trade:        &t,
	}
}

// BookUpdateEvent wraps a book update into an Event.
func BookUpdateEvent(update orderbookv1.BookUpdate) Event {
	u := update
	return Event{
		Kind:         KindBookUpdate,
		InstrumentID: update.InstrumentID,
		Sequence:     update.Sequence,
		BookUpdate:   &u,
	}
}

// RejectionEvent wraps a rejection into an Event.
func RejectionEvent(instrumentID string, sequence uint64, orderID, code, reason string) Event {
	return Event{
		Kind:         KindRejection,
		InstrumentID: instrumentID,
		Sequence:     sequence,
		Rejection: &Rejection{
			OrderID: orderID,
			Code:    code,
			Reason:  reason,
		},
	}
}
