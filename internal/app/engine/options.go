package engine

import "time"

// Options represents configuration options for the Engine.
type Options struct {
	// Workers is the number of book workers. Instruments are hash partitioned
	// across workers so each book always has exactly one writer.
	Workers int
	// WorkerQueueSize bounds each worker's instruction queue. A full queue
	// blocks intake, which is the engine's backpressure.
	WorkerQueueSize int
	// SnapshotInterval is how often the snapshot manager wakes up.
	SnapshotInterval time.Duration
	// SnapshotSequenceDelta is the minimum per-instrument progress, in applied
	// sequence numbers, before a new snapshot is worth storing.
	SnapshotSequenceDelta uint64
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		Workers:               4,
		WorkerQueueSize:       1024,
		SnapshotInterval:      30 * time.Second,
		SnapshotSequenceDelta: 1000,
	}
}
