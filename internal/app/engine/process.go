package engine

import (
	stderrors "errors"

	eventv1 "github.com/christopherrons/herron-trading-engine/internal/domain/event/v1"
	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	orderbookv1 "github.com/christopherrons/herron-trading-engine/internal/domain/orderbook/v1"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/orderbook"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
)

// process applies a sequenced instruction and publishes the resulting events.
func (e *Engine) process(si orderv1.SequencedInstruction) {
	batch := e.apply(si)
	e.recordProgress(si)

	if len(batch.Events) == 0 {
		return
	}

	if err := e.publisher.Publish(batch); err != nil {
		e.logger.ErrorContext(e.ctx, err,
			logger.Field{Key: "action", Value: "publish_batch"},
			logger.Field{Key: "sequence", Value: si.Sequence},
		)
	}
}

// apply runs one instruction against its book and returns the event batch it
// produced. It is also the replay path, which discards the batch.
func (e *Engine) apply(si orderv1.SequencedInstruction) eventv1.Batch {
	batch := eventv1.Batch{
		InstrumentID: si.InstrumentID,
		Sequence:     si.Sequence,
	}

	switch si.Kind {
	case orderv1.InstructionNewOrder:
		batch.Events = e.applyNewOrder(si)
	case orderv1.InstructionCancelOrder:
		batch.Events = e.applyCancel(si)
	case orderv1.InstructionReplaceOrder:
		batch.Events = e.applyReplace(si)
	case orderv1.InstructionSessionControl:
		e.applySessionControl(si)
	default:
		e.logger.Warn("Unknown instruction kind",
			logger.Field{Key: "kind", Value: si.Kind},
			logger.Field{Key: "sequence", Value: si.Sequence},
		)
	}

	return batch
}

func (e *Engine) applyNewOrder(si orderv1.SequencedInstruction) []eventv1.Event {
	book, err := e.registry.Resolve(si.InstrumentID)
	if err != nil {
		return []eventv1.Event{e.rejection(si, err)}
	}

	instrument := book.Instrument()
	if si.Type == orderv1.OrderTypeLimit && !instrument.ValidPrice(si.Price) {
		return []eventv1.Event{eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrInvalidTick),
			"price is not a multiple of the instrument tick size",
		)}
	}
	if !instrument.ValidQuantity(si.Quantity) {
		return []eventv1.Event{eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrInvalidLot),
			"quantity is not a positive multiple of the instrument lot size",
		)}
	}

	order := orderv1.NewOrder(si.OrderID, si.InstrumentID, si.Owner, si.Side, si.Type, si.Price, si.Quantity)
	if si.TimeInForce != "" {
		order.TimeInForce = si.TimeInForce
	}
	order.Sequence = si.Sequence
	order.AcceptedAt = si.AcceptedAt

	result, err := book.Insert(order)
	if err != nil {
		switch {
		case stderrors.Is(err, orderbook.ErrDuplicateOrder):
			return []eventv1.Event{eventv1.RejectionEvent(
				si.InstrumentID, si.Sequence, si.OrderID,
				string(errors.ErrDuplicateOrder), err.Error(),
			)}
		case stderrors.Is(err, orderbook.ErrSelfTrade):
			return []eventv1.Event{eventv1.RejectionEvent(
				si.InstrumentID, si.Sequence, si.OrderID,
				string(errors.ErrSelfTrade), err.Error(),
			)}
		default:
			e.logger.ErrorContext(e.ctx, err,
				logger.Field{Key: "action", Value: "insert_order"},
				logger.Field{Key: "orderID", Value: si.OrderID},
			)
			return nil
		}
	}

	if err := e.checkInvariants(si.InstrumentID, book); err != nil {
		return nil
	}

	events := e.resultEvents(result)

	// A fill-or-kill that traded nothing was killed, which downstream should
	// hear about.
	if order.TimeInForce == orderv1.TimeInForceFOK && len(result.Trades) == 0 {
		events = append(events, eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrFillOrKill),
			"full quantity could not trade immediately",
		))
	}

	if len(result.Trades) > 0 {
		e.logTrades(result.Trades)
	}

	return events
}

func (e *Engine) applyCancel(si orderv1.SequencedInstruction) []eventv1.Event {
	book, err := e.registry.Resolve(si.InstrumentID)
	if err != nil {
		return []eventv1.Event{e.rejection(si, err)}
	}

	status, updates := book.Cancel(si.OrderID, si.Sequence)
	switch status {
	case orderbookv1.CancelStatusUnknown:
		return []eventv1.Event{eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrUnknownOrder),
			"order id never rested on the book",
		)}
	case orderbookv1.CancelStatusAlreadyFilled:
		// Losing the race against a fill is a normal outcome, not an error.
		e.logger.Debug("Cancel after fill",
			logger.Field{Key: "orderID", Value: si.OrderID},
			logger.Field{Key: "sequence", Value: si.Sequence},
		)
		return nil
	}

	events := make([]eventv1.Event, 0, len(updates))
	for _, update := range updates {
		events = append(events, eventv1.BookUpdateEvent(update))
	}
	return events
}

func (e *Engine) applyReplace(si orderv1.SequencedInstruction) []eventv1.Event {
	book, err := e.registry.Resolve(si.InstrumentID)
	if err != nil {
		return []eventv1.Event{e.rejection(si, err)}
	}

	instrument := book.Instrument()
	if si.NewPrice != nil && !instrument.ValidPrice(*si.NewPrice) {
		return []eventv1.Event{eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrInvalidTick),
			"price is not a multiple of the instrument tick size",
		)}
	}
	if si.NewQuantity != nil && !instrument.ValidQuantity(*si.NewQuantity) {
		return []eventv1.Event{eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrInvalidLot),
			"quantity is not a positive multiple of the instrument lot size",
		)}
	}

	result, status, err := book.Replace(si.OrderID, si.NewPrice, si.NewQuantity, si.Sequence, si.AcceptedAt)
	if err != nil {
		if stderrors.Is(err, orderbook.ErrSelfTrade) {
			return []eventv1.Event{eventv1.RejectionEvent(
				si.InstrumentID, si.Sequence, si.OrderID,
				string(errors.ErrSelfTrade), err.Error(),
			)}
		}
		e.logger.ErrorContext(e.ctx, err,
			logger.Field{Key: "action", Value: "replace_order"},
			logger.Field{Key: "orderID", Value: si.OrderID},
		)
		return nil
	}

	switch status {
	case orderbookv1.CancelStatusUnknown:
		return []eventv1.Event{eventv1.RejectionEvent(
			si.InstrumentID, si.Sequence, si.OrderID,
			string(errors.ErrUnknownOrder),
			"order id never rested on the book",
		)}
	case orderbookv1.CancelStatusAlreadyFilled:
		e.logger.Debug("Replace after fill",
			logger.Field{Key: "orderID", Value: si.OrderID},
			logger.Field{Key: "sequence", Value: si.Sequence},
		)
		return nil
	}

	if err := e.checkInvariants(si.InstrumentID, book); err != nil {
		return nil
	}

	if len(result.Trades) > 0 {
		e.logTrades(result.Trades)
	}

	return e.resultEvents(result)
}

func (e *Engine) applySessionControl(si orderv1.SequencedInstruction) {
	var err error
	switch si.Session {
	case orderv1.SessionOpen:
		err = e.registry.OpenSession(si.InstrumentID)
	case orderv1.SessionSuspend:
		err = e.registry.SuspendSession(si.InstrumentID)
	case orderv1.SessionClose:
		err = e.registry.CloseSession(si.InstrumentID)
	default:
		e.logger.Warn("Unknown session action",
			logger.Field{Key: "action", Value: si.Session},
			logger.Field{Key: "instrument", Value: si.InstrumentID},
		)
		return
	}

	if err != nil {
		e.logger.ErrorContext(e.ctx, err,
			logger.Field{Key: "action", Value: "session_control"},
			logger.Field{Key: "instrument", Value: si.InstrumentID},
		)
	}
}

// checkInvariants validates the book after a mutation and halts the
// instrument on violation. A crossed book is a logic defect, continuing to
// trade on it would compound the damage.
func (e *Engine) checkInvariants(instrumentID string, book *orderbook.Book) error {
	if err := book.Validate(); err != nil {
		e.logger.ErrorContext(e.ctx, err,
			logger.Field{Key: "action", Value: "validate_book"},
			logger.Field{Key: "instrument", Value: instrumentID},
		)
		e.registry.Halt(instrumentID)
		return err
	}
	return nil
}

// resultEvents flattens an insert result into ordered events, trades first.
func (e *Engine) resultEvents(result orderbook.InsertResult) []eventv1.Event {
	events := make([]eventv1.Event, 0, len(result.Trades)+len(result.Updates))
	for _, trade := range result.Trades {
		events = append(events, eventv1.TradeEvent(trade))
	}
	for _, update := range result.Updates {
		events = append(events, eventv1.BookUpdateEvent(update))
	}
	return events
}

// rejection converts a registry or validation error into a rejection event.
func (e *Engine) rejection(si orderv1.SequencedInstruction, err error) eventv1.Event {
	code := string(errors.GeneralBadRequestError)
	var details *errors.ErrorDetails
	if stderrors.As(err, &details) {
		code = details.Code
	}

	return eventv1.RejectionEvent(si.InstrumentID, si.Sequence, si.OrderID, code, err.Error())
}

func (e *Engine) logTrades(trades []orderbookv1.Trade) {
	total := e.totalTrades.Add(int64(len(trades)))

	e.logger.Info("Trades executed",
		logger.Field{Key: "tradeCount", Value: len(trades)},
		logger.Field{Key: "totalTrades", Value: total},
	)

	for _, trade := range trades {
		e.logger.Info("Trade",
			logger.Field{Key: "tradeID", Value: trade.ID},
			logger.Field{Key: "instrument", Value: trade.InstrumentID},
			logger.Field{Key: "price", Value: trade.Price},
			logger.Field{Key: "quantity", Value: trade.Quantity},
			logger.Field{Key: "buyOrderID", Value: trade.BuyOrderID},
			logger.Field{Key: "sellOrderID", Value: trade.SellOrderID},
		)
	}
}
