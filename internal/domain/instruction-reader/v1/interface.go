package instructionreaderv1

import (
	"context"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/segmentio/kafka-go"
)

// InstructionReader defines the interface for reading instructions from the message bus.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=instructionreaderv1_mock
type InstructionReader interface {
	// ReadInstruction reads a message and returns the raw message and parsed instruction
	ReadInstruction(ctx context.Context) (kafka.Message, *orderv1.Instruction, error)
	// SetOffset sets the offset for the reader
	SetOffset(offset int64) error
	// Close closes the reader
	Close() error
}
