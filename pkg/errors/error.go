package errors

import (
	"bytes"
	"reflect"
	"strings"
)

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal server error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralBadRequestError represents a generic bad request error.
	GeneralBadRequestError ErrorCode = "general_bad_request_error"
	// GeneralNotFoundError represents a generic not found error.
	GeneralNotFoundError ErrorCode = "general_not_found_error"

	// ErrUnknownInstrument represents an error when an instruction references an instrument the registry does not know.
	ErrUnknownInstrument ErrorCode = "unknown_instrument"
	// ErrInstrumentSuspended represents an error when trading on the instrument is suspended for non-control instructions.
	ErrInstrumentSuspended ErrorCode = "instrument_suspended"
	// ErrInstrumentClosed represents an error when the trading session for the instrument is closed.
	ErrInstrumentClosed ErrorCode = "instrument_closed"
	// ErrInstrumentHalted represents an error when intake for the instrument was halted after an invariant violation.
	ErrInstrumentHalted ErrorCode = "instrument_halted"
	// ErrInvalidTick represents an error when an order price is not a multiple of the instrument tick size.
	ErrInvalidTick ErrorCode = "invalid_price_tick"
	// ErrInvalidLot represents an error when an order quantity is not a positive multiple of the instrument lot size.
	ErrInvalidLot ErrorCode = "invalid_quantity_lot"
	// ErrDuplicateOrder represents an error when an order id is already resting on the book.
	ErrDuplicateOrder ErrorCode = "duplicate_order"
	// ErrSelfTrade represents an error when an incoming order would match its owner's resting order and the policy rejects it.
	ErrSelfTrade ErrorCode = "self_trade_rejected"
	// ErrUnknownOrder represents an error when a cancel or replace names an order id that never rested on the book.
	ErrUnknownOrder ErrorCode = "unknown_order"
	// ErrFillOrKill represents a fill-or-kill order canceled because the full quantity could not trade immediately.
	ErrFillOrKill ErrorCode = "fill_or_kill_unfilled"

	// ErrEngineUnavailable represents an error when the sequencer refuses instructions during shutdown or drain.
	ErrEngineUnavailable ErrorCode = "engine_unavailable"
	// ErrPublisherBackpressure represents an error when the publisher queue is full under the blocking policy.
	ErrPublisherBackpressure ErrorCode = "publisher_backpressure"
	// ErrCrossedBook represents a fatal invariant violation when a resting bid meets or exceeds a resting ask after matching.
	ErrCrossedBook ErrorCode = "crossed_book"
	// ErrSequenceGap represents a fatal invariant violation when the journal observes a duplicate or skipped sequence number.
	ErrSequenceGap ErrorCode = "sequence_gap"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisDisconnectionError represents an error when disconnecting from Redis.
	RedisDisconnectionError ErrorCode = "redis_disconnection_error"
	// RedisPingError represents an error when pinging Redis.
	RedisPingError ErrorCode = "redis_pinging_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisDelError represents an error when deleting a value from Redis.
	RedisDelError ErrorCode = "redis_del_error"

	// JournalAppendError represents an error when appending a sequenced instruction to the journal.
	JournalAppendError ErrorCode = "journal_append_error"
	// JournalReplayError represents an error when replaying sequenced instructions from the journal.
	JournalReplayError ErrorCode = "journal_replay_error"
)

// Severity represents the severity level of an error.
type Severity string

const (
	// SeverityCritical indicates a critical error that requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a high severity error that should be addressed promptly.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a medium severity error that should be addressed in due course.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates a low severity error that can be addressed at a later time.
	SeverityLow Severity = "low"
)

// Category represents the category of an error.
type Category string

const (
	// CategoryValidation indicates an error related to validation of an inbound instruction.
	CategoryValidation Category = "validation"
	// CategoryCapacity indicates an error related to queue or delivery capacity.
	CategoryCapacity Category = "capacity"
	// CategoryInvariant indicates a fatal engine invariant violation.
	CategoryInvariant Category = "invariant"
	// CategoryNetwork indicates an error related to network operations.
	CategoryNetwork Category = "network"
	// CategoryStorage indicates an error related to snapshot or journal storage.
	CategoryStorage Category = "storage"
	// CategoryUnknown indicates an unknown error category.
	CategoryUnknown Category = "unknown"
)

// BaseError is an `error` type containing an array of ErrorDetails.
// This error provides basic functions for performing transformations
// on a list of ErrorDetails.
type BaseError struct {
	details []*ErrorDetails
}

// NewBaseError create BaseError with ErrorDetails
func NewBaseError(details ...*ErrorDetails) *BaseError {
	return &BaseError{details: details}
}

// AddErrorDetails add more ErrorDetails to BaseError
func (b *BaseError) AddErrorDetails(errors ...*ErrorDetails) {
	b.details = append(b.details, errors...)
}

// GetDetails get array ErrorDetails on BaseError
func (b *BaseError) GetDetails() []*ErrorDetails {
	return b.details
}

// Error implement error interface
func (b *BaseError) Error() string {
	buff := bytes.NewBufferString("")

	buff.WriteString("Error on\n")
	for _, err := range b.details {
		buff.WriteString("code: ")
		buff.WriteString(err.Code)
		buff.WriteString("; error: ")
		buff.WriteString(err.Error())
		buff.WriteString("; field: ")
		buff.WriteString(err.Field)
		buff.WriteString("; object: ")
		if err.Object != nil {
			buff.WriteString(reflect.TypeOf(err.Object).String())
		}
		buff.WriteString("\n")
	}

	return strings.TrimSpace(buff.String())
}

// ReplaceAllObjects set all object on ErrorDetails with given object
func (b *BaseError) ReplaceAllObjects(object interface{}) {
	for _, d := range b.GetDetails() {
		d.Object = object
	}
}
