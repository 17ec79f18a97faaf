package sequencer

import (
	"sync/atomic"
	"time"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
)

// Sequencer assigns a strict, monotonically increasing sequence number to
// every inbound instruction before it reaches matching. The counter is the
// only globally shared mutable state touched by every instruction, so the
// increment is a single atomic add with no possibility of lost updates.
type Sequencer struct {
	counter  atomic.Uint64
	draining atomic.Bool
	clock    func() int64
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock injects the acceptance timestamp source, for deterministic tests.
func WithClock(clock func() int64) Option {
	return func(s *Sequencer) {
		s.clock = clock
	}
}

// WithStartSequence resumes the counter after the given sequence number, used
// when recovering from a journal so numbers are never repeated.
func WithStartSequence(last uint64) Option {
	return func(s *Sequencer) {
		s.counter.Store(last)
	}
}

// New creates a sequencer whose first assigned sequence number is 1.
func New(opts ...Option) *Sequencer {
	s := &Sequencer{
		clock: func() int64 { return time.Now().UnixNano() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Accept stamps the instruction with the next sequence number and the
// acceptance timestamp. It fails only while the engine is draining.
func (s *Sequencer) Accept(instruction orderv1.Instruction) (orderv1.SequencedInstruction, error) {
	if s.draining.Load() {
		return orderv1.SequencedInstruction{}, errors.NewErrorDetails(
			"engine is shutting down",
			string(errors.ErrEngineUnavailable),
			"accept",
		)
	}

	return orderv1.SequencedInstruction{
		Instruction:  instruction,
		Sequence:     s.counter.Add(1),
		AcceptedAt:   s.clock(),
		StreamOffset: instruction.Offset,
	}, nil
}

// Resume moves the counter forward to the given sequence number, used after
// journal recovery. The counter never moves backwards.
func (s *Sequencer) Resume(last uint64) {
	for {
		current := s.counter.Load()
		if current >= last {
			return
		}
		if s.counter.CompareAndSwap(current, last) {
			return
		}
	}
}

// Drain makes the sequencer refuse further instructions.
func (s *Sequencer) Drain() {
	s.draining.Store(true)
}

// Current returns the last assigned sequence number.
func (s *Sequencer) Current() uint64 {
	return s.counter.Load()
}
