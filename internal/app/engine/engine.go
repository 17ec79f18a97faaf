package engine

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	eventpublisherv1 "github.com/christopherrons/herron-trading-engine/internal/domain/event-publisher/v1"
	instructionreaderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instruction-reader/v1"
	journalv1 "github.com/christopherrons/herron-trading-engine/internal/domain/journal/v1"
	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	snapshotv1 "github.com/christopherrons/herron-trading-engine/internal/domain/snapshot/v1"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/registry"
	"github.com/christopherrons/herron-trading-engine/internal/usecase/sequencer"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
)

// Engine drives the instruction pipeline: read, sequence, journal, dispatch
// to a book worker, match, publish. Each instrument is owned by exactly one
// worker, so books never see concurrent writers.
type Engine struct {
	registry  *registry.Registry
	sequencer *sequencer.Sequencer
	reader    instructionreaderv1.InstructionReader
	journal   journalv1.Journal // nil when journaling is disabled
	publisher eventpublisherv1.EventPublisher
	snapshots snapshotv1.Store
	logger    *logger.Logger

	mu            sync.RWMutex
	streamOffset  int64
	instrumentSeq map[string]uint64 // last applied sequence per instrument
	snapshotSeq   map[string]uint64 // sequence covered by the last stored snapshot

	workerQueues []chan orderv1.SequencedInstruction

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	options *Options

	totalTrades atomic.Int64
}

// NewEngine creates a new engine with default options.
func NewEngine(
	reg *registry.Registry,
	seq *sequencer.Sequencer,
	reader instructionreaderv1.InstructionReader,
	journal journalv1.Journal,
	publisher eventpublisherv1.EventPublisher,
	snapshots snapshotv1.Store,
	log *logger.Logger,
) *Engine {
	return NewEngineWithOptions(reg, seq, reader, journal, publisher, snapshots, log, DefaultEngineOptions())
}

// NewEngineWithOptions creates a new engine with custom options.
func NewEngineWithOptions(
	reg *registry.Registry,
	seq *sequencer.Sequencer,
	reader instructionreaderv1.InstructionReader,
	journal journalv1.Journal,
	publisher eventpublisherv1.EventPublisher,
	snapshots snapshotv1.Store,
	log *logger.Logger,
	options *Options,
) *Engine {
	if options.Workers < 1 {
		options.Workers = 1
	}

	e := &Engine{
		registry:      reg,
		sequencer:     seq,
		reader:        reader,
		journal:       journal,
		publisher:     publisher,
		snapshots:     snapshots,
		logger:        log,
		streamOffset:  -1,
		instrumentSeq: make(map[string]uint64),
		snapshotSeq:   make(map[string]uint64),
		options:       options,
	}

	e.workerQueues = make([]chan orderv1.SequencedInstruction, options.Workers)
	for i := range e.workerQueues {
		e.workerQueues[i] = make(chan orderv1.SequencedInstruction, options.WorkerQueueSize)
	}

	return e
}

// Start recovers state from snapshots and the journal, then starts the
// processing routines.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.recover(e.ctx); err != nil {
		return err
	}

	offset := e.getStreamOffset()
	if offset >= 0 {
		offset++
	} else {
		offset = 0
	}
	if err := e.reader.SetOffset(offset); err != nil {
		return err
	}

	for i := range e.workerQueues {
		e.wg.Add(1)
		go e.runWorker(i)
	}

	e.wg.Add(2)
	go e.runInstructionLoop()
	go e.runSnapshotManager()

	e.logger.Info("Engine started",
		logger.Field{Key: "instruments", Value: e.registry.InstrumentIDs()},
		logger.Field{Key: "workers", Value: e.options.Workers},
		logger.Field{Key: "streamOffset", Value: offset},
	)

	return nil
}

// Stop drains the engine: no new instructions are accepted, queued ones are
// processed, then the routines exit.
func (e *Engine) Stop(ctx context.Context) error {
	e.sequencer.Drain()

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("Engine stop timeout exceeded")
		return ctx.Err()
	}
}

// runInstructionLoop reads, sequences, journals and dispatches instructions.
// It is the only sender on the worker queues and closes them on exit.
func (e *Engine) runInstructionLoop() {
	defer e.wg.Done()
	defer func() {
		for _, queue := range e.workerQueues {
			close(queue)
		}
	}()

	e.logger.Info("Starting instruction loop")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Instruction loop shutting down")
			e.reader.Close()
			return
		default:
			_, instruction, err := e.reader.ReadInstruction(e.ctx)
			if err != nil {
				if e.ctx.Err() != nil {
					e.logger.Info("Instruction loop shutting down")
					e.reader.Close()
					return
				}
				e.logger.ErrorContext(e.ctx, err, logger.Field{
					Key:   "action",
					Value: "read_instruction",
				})
				time.Sleep(100 * time.Millisecond)
				continue
			}

			si, err := e.sequencer.Accept(*instruction)
			if err != nil {
				// Draining. Remaining queued work still completes.
				e.reader.Close()
				return
			}

			if e.journal != nil {
				if err := e.journal.Append(si); err != nil {
					// An instruction that cannot be journaled must never reach
					// matching, or replay would diverge from reality.
					e.logger.ErrorContext(e.ctx, err,
						logger.Field{Key: "action", Value: "journal_append"},
						logger.Field{Key: "sequence", Value: si.Sequence},
					)
					e.reader.Close()
					e.cancel()
					return
				}
			}

			e.workerQueues[e.workerFor(si.InstrumentID)] <- si
		}
	}
}

// runWorker applies instructions for its share of the instruments. The queue
// is closed by the instruction loop, so queued instructions drain on shutdown.
func (e *Engine) runWorker(index int) {
	defer e.wg.Done()

	for si := range e.workerQueues[index] {
		e.process(si)
	}

	e.logger.Info("Worker shutting down", logger.Field{
		Key:   "worker",
		Value: index,
	})
}

// runSnapshotManager periodically stores snapshots of books that made progress.
func (e *Engine) runSnapshotManager() {
	defer e.wg.Done()

	if e.snapshots == nil {
		return
	}

	ticker := time.NewTicker(e.options.SnapshotInterval)
	defer ticker.Stop()

	e.logger.Info("Starting snapshot manager")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Snapshot manager shutting down")
			return
		case <-ticker.C:
			e.snapshotPass()
		}
	}
}

// snapshotPass stores a snapshot for every instrument whose applied sequence
// advanced at least SnapshotSequenceDelta past its last snapshot.
func (e *Engine) snapshotPass() {
	for _, instrumentID := range e.registry.InstrumentIDs() {
		e.mu.RLock()
		applied := e.instrumentSeq[instrumentID]
		covered := e.snapshotSeq[instrumentID]
		offset := e.streamOffset
		e.mu.RUnlock()

		if applied <= covered || applied-covered < e.options.SnapshotSequenceDelta {
			continue
		}

		book, err := e.registry.Book(instrumentID)
		if err != nil {
			continue
		}

		// The book stamps the snapshot with its own last applied sequence
		// under its lock, so the sequence always covers the captured state
		// even if a worker advanced the book since the progress read above.
		snapshot := book.CreateSnapshot(offset)

		// Session controls at or below the snapshot sequence are skipped
		// during replay, so the state at snapshot time travels with it. The
		// read happens after CreateSnapshot; instructions apply in sequence
		// order per instrument, so the state covers the stamped sequence.
		if state, err := e.registry.State(instrumentID); err == nil {
			snapshot.State = state
		}

		if err := e.snapshots.Store(e.ctx, snapshot); err != nil {
			e.logger.ErrorContext(e.ctx, err, logger.Field{
				Key:   "action",
				Value: "store_snapshot",
			}, logger.Field{
				Key:   "instrument",
				Value: instrumentID,
			})
			continue
		}

		e.mu.Lock()
		e.snapshotSeq[instrumentID] = snapshot.Sequence
		e.mu.Unlock()
	}
}

// workerFor maps an instrument to its owning worker.
func (e *Engine) workerFor(instrumentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(instrumentID))
	return int(h.Sum32() % uint32(len(e.workerQueues)))
}

func (e *Engine) getStreamOffset() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.streamOffset
}

func (e *Engine) recordProgress(si orderv1.SequencedInstruction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.instrumentSeq[si.InstrumentID] = si.Sequence
	if si.StreamOffset > e.streamOffset {
		e.streamOffset = si.StreamOffset
	}
}

// StreamOffset returns the highest applied inbound stream offset.
func (e *Engine) StreamOffset() int64 {
	return e.getStreamOffset()
}

// TotalTrades returns the number of trades executed since start.
func (e *Engine) TotalTrades() int64 {
	return e.totalTrades.Load()
}
