package eventpublisher

import (
	"context"
	"encoding/json"

	eventv1 "github.com/christopherrons/herron-trading-engine/internal/domain/event/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/config"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// KafkaSink delivers events to the outbound Kafka topic. Messages are keyed
// by instrument id so per-instrument ordering survives partitioning.
type KafkaSink struct {
	kafkaWriter *kafka.Writer
	logger      *logger.Logger
}

// NewKafkaSink creates a Kafka sink for publishing engine events.
func NewKafkaSink(cfg config.KafkaConfig, log *logger.Logger) *KafkaSink {
	kafkaWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.EventTopic,
	})

	return &KafkaSink{
		kafkaWriter: kafkaWriter,
		logger:      log,
	}
}

// Write publishes events to the Kafka topic.
func (s *KafkaSink) Write(ctx context.Context, events ...eventv1.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return errors.TracerFromError(err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.InstrumentID),
			Value: value,
		})
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msgs...); err != nil {
		s.logger.Error(err,
			logger.Field{Key: "action", Value: "write_events"},
			logger.Field{Key: "count", Value: len(msgs)},
		)
		return errors.NewTracer("failed to publish event batch").Wrap(err)
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (s *KafkaSink) Close() error {
	return s.kafkaWriter.Close()
}
