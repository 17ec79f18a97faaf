package eventpublisher

import (
	"context"
	"sync"

	eventv1 "github.com/christopherrons/herron-trading-engine/internal/domain/event/v1"
	eventpublisherv1 "github.com/christopherrons/herron-trading-engine/internal/domain/event-publisher/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
)

// Policy decides what happens when the internal queue is full.
type Policy string

const (
	// PolicyBlock blocks the caller until the queue drains. Matching stalls
	// rather than losing events.
	PolicyBlock Policy = "block"
	// PolicyDropOldest sheds the oldest queued event and emits a gap marker so
	// downstream consumers can detect the hole.
	PolicyDropOldest Policy = "drop_oldest"
)

// Publisher externalizes trades and book updates through a bounded queue so a
// slow downstream can never block matching beyond the configured policy.
// Events for the same instrument are delivered in sequence-number order.
type Publisher struct {
	sink   eventpublisherv1.Sink
	logger *logger.Logger

	queue  chan eventv1.Event
	policy Policy

	mu          sync.Mutex
	dropped     uint64
	droppedFrom uint64
	droppedTo   uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPublisher creates a publisher draining into the given sink.
func NewPublisher(sink eventpublisherv1.Sink, queueSize int, policy Policy, log *logger.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Publisher{
		sink:   sink,
		logger: log,
		queue:  make(chan eventv1.Event, queueSize),
		policy: policy,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the delivery goroutine.
func (p *Publisher) Start(ctx context.Context) {
	if p.cancel != nil {
		p.cancel()
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()
}

// Stop drains the queue and shuts the delivery goroutine down.
func (p *Publisher) Stop(ctx context.Context) error {
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		return ctx.Err()
	}

	if p.cancel != nil {
		p.cancel()
	}
	return p.sink.Close()
}

// Publish enqueues every event of the batch in order. Under the drop-oldest
// policy a full queue sheds its head and the batch still goes in; under the
// blocking policy the call waits for space.
func (p *Publisher) Publish(batch eventv1.Batch) error {
	for _, event := range batch.Events {
		if err := p.enqueue(event); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) enqueue(event eventv1.Event) error {
	if gap := p.pendingGap(event.InstrumentID); gap != nil {
		p.forceEnqueue(*gap)
	}

	if p.policy == PolicyBlock {
		select {
		case p.queue <- event:
			return nil
		case <-p.ctx.Done():
			return errors.NewErrorDetails(
				"publisher stopped while blocked on full queue",
				string(errors.ErrPublisherBackpressure),
				"publish",
			)
		}
	}

	p.forceEnqueue(event)
	return nil
}

// forceEnqueue inserts an event, shedding the oldest queued events if needed.
func (p *Publisher) forceEnqueue(event eventv1.Event) {
	for {
		select {
		case p.queue <- event:
			return
		default:
		}

		select {
		case dropped := <-p.queue:
			p.recordDrop(dropped)
		default:
		}
	}
}

func (p *Publisher) recordDrop(event eventv1.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dropped == 0 {
		p.droppedFrom = event.Sequence
	}
	p.dropped++
	p.droppedTo = event.Sequence
}

// pendingGap returns a gap marker covering the events shed since the last
// marker, or nil when nothing was dropped.
func (p *Publisher) pendingGap(instrumentID string) *eventv1.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dropped == 0 {
		return nil
	}

	gap := eventv1.Event{
		Kind:         eventv1.KindGap,
		InstrumentID: instrumentID,
		Sequence:     p.droppedTo,
		Gap: &eventv1.Gap{
			Dropped:      p.dropped,
			FromSequence: p.droppedFrom,
			ToSequence:   p.droppedTo,
		},
	}

	p.logger.Warn("Publisher shed events under backpressure",
		logger.Field{Key: "dropped", Value: p.dropped},
		logger.Field{Key: "fromSequence", Value: p.droppedFrom},
		logger.Field{Key: "toSequence", Value: p.droppedTo},
	)

	p.dropped = 0
	p.droppedFrom = 0
	p.droppedTo = 0

	return &gap
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for event, ok := <-p.queue; ok; event, ok = <-p.queue {
		if err := p.sink.Write(p.ctx, event); err != nil {
			// Delivery failure never reaches matching. Log and move on; the
			// downstream reconciles via sequence numbers.
			p.logger.Error(err,
				logger.Field{Key: "action", Value: "publish_event"},
				logger.Field{Key: "instrument", Value: event.InstrumentID},
				logger.Field{Key: "sequence", Value: event.Sequence},
			)
		}
	}
}
