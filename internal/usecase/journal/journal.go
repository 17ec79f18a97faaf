package journal

import (
	"encoding/binary"
	"encoding/json"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/cockroachdb/pebble"
)

var keyPrefix = []byte("ins/")

// key is "ins/" followed by the big-endian sequence number, so iteration
// order equals sequence order.
func keyFor(sequence uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], sequence)
	return key
}

// Store is the engine's durable append point. Every accepted instruction is
// written here with its sequence number before matching, giving audit and
// replay a single deterministic log.
type Store struct {
	db     *pebble.DB
	logger *logger.Logger
}

// Open opens or creates the journal at the given directory.
func Open(dir string, log *logger.Logger) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.NewTracer("failed to open journal").Wrap(err)
	}

	return &Store{
		db:     db,
		logger: log,
	}, nil
}

// Append durably writes a sequenced instruction. A sequence number that was
// already written is a fatal ordering defect, never silently overwritten.
func (s *Store) Append(si orderv1.SequencedInstruction) error {
	key := keyFor(si.Sequence)

	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return errors.NewErrorDetails(
			"duplicate sequence number in journal",
			string(errors.ErrSequenceGap),
			"sequence",
		)
	}
	if err != pebble.ErrNotFound {
		return errors.NewTracer("journal lookup failed").Wrap(err)
	}

	value, err := json.Marshal(si)
	if err != nil {
		return errors.TracerFromError(err)
	}

	if err := s.db.Set(key, value, pebble.Sync); err != nil {
		s.logger.Error(err,
			logger.Field{Key: "action", Value: "journal_append"},
			logger.Field{Key: "sequence", Value: si.Sequence},
		)
		return errors.NewErrorDetails(
			"failed to append instruction",
			string(errors.JournalAppendError),
			"sequence",
		)
	}

	return nil
}

// Replay streams instructions with sequence >= from in ascending sequence
// order. The callback returning an error stops the replay.
func (s *Store) Replay(from uint64, fn func(orderv1.SequencedInstruction) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(from),
		UpperBound: keyFor(^uint64(0)),
	})
	if err != nil {
		return errors.NewTracer("failed to open journal iterator").Wrap(err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var si orderv1.SequencedInstruction
		if err := json.Unmarshal(iter.Value(), &si); err != nil {
			return errors.NewErrorDetails(
				"corrupt journal entry",
				string(errors.JournalReplayError),
				"sequence",
			)
		}
		if err := fn(si); err != nil {
			return err
		}
	}

	return iter.Error()
}

// LastSequence returns the highest appended sequence number, if any.
func (s *Store) LastSequence() (uint64, bool, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(0),
		UpperBound: keyFor(^uint64(0)),
	})
	if err != nil {
		return 0, false, errors.NewTracer("failed to open journal iterator").Wrap(err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, false, iter.Error()
	}

	key := iter.Key()
	sequence := binary.BigEndian.Uint64(key[len(keyPrefix):])
	return sequence, true, nil
}

// Close closes the journal.
func (s *Store) Close() error {
	return s.db.Close()
}
