package eventpublisherv1

import (
	"context"

	eventv1 "github.com/christopherrons/herron-trading-engine/internal/domain/event/v1"
)

// EventPublisher defines the interface the matching engine uses to hand off
// event batches. Implementations must never block matching beyond the
// configured backpressure policy.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=eventpublisherv1_mock
type EventPublisher interface {
	// Publish enqueues a batch for downstream delivery
	Publish(batch eventv1.Batch) error
}

// Sink delivers events to the downstream transport. Delivery failures are the
// publisher's concern and never surface to matching.
type Sink interface {
	// Write delivers events downstream
	Write(ctx context.Context, events ...eventv1.Event) error
	// Close closes the sink
	Close() error
}
