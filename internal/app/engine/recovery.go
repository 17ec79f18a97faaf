package engine

import (
	"context"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
)

// recover rebuilds engine state from snapshots and the journal. Snapshots cut
// replay short; the journal replays everything past the oldest snapshot so
// every book ends at the journal tail.
func (e *Engine) recover(ctx context.Context) error {
	replayFrom := uint64(1)
	restoredAll := true

	if e.snapshots != nil {
		for _, instrumentID := range e.registry.InstrumentIDs() {
			snapshot, err := e.snapshots.Load(ctx, instrumentID)
			if err != nil {
				return err
			}
			if snapshot == nil {
				restoredAll = false
				continue
			}

			book, err := e.registry.Book(instrumentID)
			if err != nil {
				return err
			}
			if err := book.Restore(snapshot); err != nil {
				return err
			}
			if snapshot.State != "" {
				e.registry.RestoreState(instrumentID, snapshot.State)
			}

			e.mu.Lock()
			e.instrumentSeq[instrumentID] = snapshot.Sequence
			e.snapshotSeq[instrumentID] = snapshot.Sequence
			if snapshot.StreamOffset > e.streamOffset {
				e.streamOffset = snapshot.StreamOffset
			}
			e.mu.Unlock()

			if replayFrom == 1 || snapshot.Sequence+1 < replayFrom {
				replayFrom = snapshot.Sequence + 1
			}

			e.logger.Info("Book restored from snapshot",
				logger.Field{Key: "instrument", Value: instrumentID},
				logger.Field{Key: "sequence", Value: snapshot.Sequence},
				logger.Field{Key: "streamOffset", Value: snapshot.StreamOffset},
			)
		}
	}

	// Any instrument without a snapshot needs the journal from the beginning.
	if !restoredAll {
		replayFrom = 1
	}

	if e.journal == nil {
		return nil
	}

	var replayed uint64
	err := e.journal.Replay(replayFrom, func(si orderv1.SequencedInstruction) error {
		e.mu.RLock()
		covered := e.snapshotSeq[si.InstrumentID]
		e.mu.RUnlock()

		// Skip instructions the instrument's snapshot already reflects.
		if si.Sequence > covered {
			e.apply(si)
		}

		e.recordProgress(si)
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	last, ok, err := e.journal.LastSequence()
	if err != nil {
		return err
	}
	if ok {
		e.sequencer.Resume(last)
	}

	if replayed > 0 || ok {
		e.logger.Info("Journal replay complete",
			logger.Field{Key: "replayed", Value: replayed},
			logger.Field{Key: "lastSequence", Value: last},
		)
	}

	return nil
}
