package journalv1

import (
	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
)

// Journal is the engine's append point: every accepted instruction is written
// here with its sequence number before it reaches matching, so the full
// instruction log can be replayed deterministically.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=journalv1_mock
type Journal interface {
	// Append durably writes a sequenced instruction
	Append(si orderv1.SequencedInstruction) error
	// Replay streams instructions with sequence >= from in ascending order
	Replay(from uint64, fn func(orderv1.SequencedInstruction) error) error
	// LastSequence returns the highest appended sequence number, if any
	LastSequence() (uint64, bool, error)
	// Close closes the journal
	Close() error
}
