package instructionreader

import (
	"context"
	"encoding/json"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/config"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
)

// Reader represents a Kafka Reader consuming instructions from the inbound topic.
type Reader struct {
	kafkaReader *kafka.Reader
	logger      *logger.Logger
	lastOffset  int64
}

// NewReader creates a new Kafka reader for consuming instructions.
func NewReader(cfg config.KafkaConfig, log *logger.Logger) *Reader {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.InstructionTopic,
		Partition:   0,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Reader{
		kafkaReader: kafkaReader,
		logger:      log,
		lastOffset:  -1,
	}
}

// logError is a helper method to log errors consistently
func (r *Reader) logError(err error, operation string) {
	r.logger.Error(err,
		logger.Field{Key: "error", Value: err.Error()},
		logger.Field{Key: "operation", Value: operation},
	)
}

// SetOffset sets the offset for the Kafka reader.
func (r *Reader) SetOffset(offset int64) error {
	if err := r.kafkaReader.SetOffset(offset); err != nil {
		r.logError(err, "SetOffset")
		return err
	}
	r.lastOffset = offset - 1
	return nil
}

// ReadInstruction reads a message from the Kafka topic and parses it as an
// Instruction. New orders arriving without an order id are assigned one here,
// before sequencing, so the assigned id is part of the replayable log.
func (r *Reader) ReadInstruction(ctx context.Context) (kafka.Message, *orderv1.Instruction, error) {
	msg, err := r.kafkaReader.ReadMessage(ctx)
	if err != nil {
		r.logError(err, "ReadInstruction")
		return kafka.Message{Offset: 0}, nil, err
	}

	// Arrival order is not trusted, but a hole in the upstream offsets is
	// worth an operator's attention.
	if r.lastOffset >= 0 && msg.Offset != r.lastOffset+1 {
		r.logger.Warn("Gap detected in instruction stream",
			logger.Field{Key: "expected", Value: r.lastOffset + 1},
			logger.Field{Key: "incoming", Value: msg.Offset},
		)
	}
	r.lastOffset = msg.Offset

	var instruction orderv1.Instruction
	if err := json.Unmarshal(msg.Value, &instruction); err != nil {
		r.logError(err, "UnmarshalInstruction")
		return kafka.Message{Offset: 0}, nil, err
	}

	if instruction.Kind == orderv1.InstructionNewOrder && instruction.OrderID == "" {
		instruction.OrderID = ulid.Make().String()
	}

	instruction.Offset = msg.Offset

	r.logger.Debug("ReadInstruction",
		logger.Field{Key: "kind", Value: instruction.Kind},
		logger.Field{Key: "instrument", Value: instruction.InstrumentID},
		logger.Field{Key: "orderID", Value: instruction.OrderID},
		logger.Field{Key: "offset", Value: msg.Offset},
	)

	return msg, &instruction, nil
}

// Close properly closes the Kafka reader.
func (r *Reader) Close() error {
	if err := r.kafkaReader.Close(); err != nil {
		r.logError(err, "Close")
		return err
	}
	return nil
}
