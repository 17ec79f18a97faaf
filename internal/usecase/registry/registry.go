package registry

import (
	"fmt"
	"sync"

	instrumentv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instrument/v1"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/orderbook"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
)

type entry struct {
	book  *orderbook.Book
	state instrumentv1.State
}

// Registry maps instrument ids to their active order books and governs the
// per-instrument session lifecycle. The matching engine never creates or
// removes books directly.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *logger.Logger
	options []orderbook.Option
}

// NewRegistry creates an empty registry. Book options are applied to every
// book the registry creates.
func NewRegistry(log *logger.Logger, bookOptions ...orderbook.Option) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  log,
		options: bookOptions,
	}
}

// Register creates a book for the instrument. Instruments start closed and
// open only via an explicit session control instruction. Registering an
// already known instrument is a no-op.
func (r *Registry) Register(instrument instrumentv1.Instrument) *orderbook.Book {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[instrument.ID]; ok {
		return existing.book
	}

	book := orderbook.NewBook(instrument, r.options...)
	r.entries[instrument.ID] = &entry{
		book:  book,
		state: instrumentv1.StateClosed,
	}

	r.logger.Info("Instrument registered",
		logger.Field{Key: "instrument", Value: instrument.ID},
		logger.Field{Key: "tickSize", Value: instrument.TickSize},
		logger.Field{Key: "lotSize", Value: instrument.LotSize},
	)

	return book
}

// Resolve returns the order book for trading instructions. It fails when the
// instrument is unknown or when its session does not allow trading.
func (r *Registry) Resolve(instrumentID string) (*orderbook.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[instrumentID]
	if !ok {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("instrument %s is not registered", instrumentID),
			string(errors.ErrUnknownInstrument),
			"instrumentID",
		)
	}

	switch e.state {
	case instrumentv1.StateOpen:
		return e.book, nil
	case instrumentv1.StateSuspended:
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("trading on %s is suspended", instrumentID),
			string(errors.ErrInstrumentSuspended),
			"instrumentID",
		)
	case instrumentv1.StateHalted:
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("intake for %s is halted pending operator intervention", instrumentID),
			string(errors.ErrInstrumentHalted),
			"instrumentID",
		)
	default:
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("trading session for %s is closed", instrumentID),
			string(errors.ErrInstrumentClosed),
			"instrumentID",
		)
	}
}

// Book returns the order book regardless of session state, for snapshots and
// recovery. It fails only for unknown instruments.
func (r *Registry) Book(instrumentID string) (*orderbook.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[instrumentID]
	if !ok {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("instrument %s is not registered", instrumentID),
			string(errors.ErrUnknownInstrument),
			"instrumentID",
		)
	}
	return e.book, nil
}

// OpenSession opens continuous trading for the instrument. Idempotent.
func (r *Registry) OpenSession(instrumentID string) error {
	return r.transition(instrumentID, instrumentv1.StateOpen)
}

// SuspendSession halts trading while keeping resting orders. Idempotent.
func (r *Registry) SuspendSession(instrumentID string) error {
	return r.transition(instrumentID, instrumentv1.StateSuspended)
}

// CloseSession ends the trading session. Idempotent.
func (r *Registry) CloseSession(instrumentID string) error {
	return r.transition(instrumentID, instrumentv1.StateClosed)
}

// Halt stops intake for the instrument after an invariant violation. The
// state is terminal for the trading day; session control cannot clear it.
func (r *Registry) Halt(instrumentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[instrumentID]
	if !ok {
		return
	}
	e.state = instrumentv1.StateHalted

	r.logger.Warn("Instrument halted",
		logger.Field{Key: "instrument", Value: instrumentID},
	)
}

// RestoreState puts an instrument directly into the given session state,
// bypassing transition rules. Only recovery uses this, to put a restored
// book back into the state its snapshot recorded.
func (r *Registry) RestoreState(instrumentID string, state instrumentv1.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[instrumentID]
	if !ok {
		return
	}
	e.state = state
}

// State returns the session state of the instrument.
func (r *Registry) State(instrumentID string) (instrumentv1.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[instrumentID]
	if !ok {
		return "", errors.NewErrorDetails(
			fmt.Sprintf("instrument %s is not registered", instrumentID),
			string(errors.ErrUnknownInstrument),
			"instrumentID",
		)
	}
	return e.state, nil
}

// InstrumentIDs returns the ids of all registered instruments.
func (r *Registry) InstrumentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) transition(instrumentID string, target instrumentv1.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[instrumentID]
	if !ok {
		return errors.NewErrorDetails(
			fmt.Sprintf("instrument %s is not registered", instrumentID),
			string(errors.ErrUnknownInstrument),
			"instrumentID",
		)
	}

	if e.state == instrumentv1.StateHalted {
		return errors.NewErrorDetails(
			fmt.Sprintf("instrument %s is halted, session control refused", instrumentID),
			string(errors.ErrInstrumentHalted),
			"instrumentID",
		)
	}

	if e.state == target {
		return nil
	}

	previous := e.state
	e.state = target

	r.logger.Info("Session state changed",
		logger.Field{Key: "instrument", Value: instrumentID},
		logger.Field{Key: "from", Value: previous},
		logger.Field{Key: "to", Value: target},
	)

	return nil
}
