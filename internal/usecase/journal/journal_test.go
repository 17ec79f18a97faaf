package journal

import (
	"testing"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Store {
	log, err := logger.NewLogger()
	require.NoError(t, err)

	store, err := Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func sequenced(sequence uint64, orderID string) orderv1.SequencedInstruction {
	return orderv1.SequencedInstruction{
		Instruction: orderv1.Instruction{
			Kind:         orderv1.InstructionNewOrder,
			InstrumentID: "BTC-USD",
			OrderID:      orderID,
			Owner:        "alice",
			Side:         orderv1.SideBuy,
			Type:         orderv1.OrderTypeLimit,
			Price:        decimal.RequireFromString("100.00"),
			Quantity:     decimal.RequireFromString("1"),
		},
		Sequence:     sequence,
		AcceptedAt:   int64(sequence),
		StreamOffset: int64(sequence) - 1,
	}
}

func TestJournal_EmptyHasNoLastSequence(t *testing.T) {
	store := openTestJournal(t)

	_, ok, err := store.LastSequence()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournal_AppendAndReplay(t *testing.T) {
	store := openTestJournal(t)

	require.NoError(t, store.Append(sequenced(1, "o1")))
	require.NoError(t, store.Append(sequenced(2, "o2")))
	require.NoError(t, store.Append(sequenced(3, "o3")))

	var replayed []orderv1.SequencedInstruction
	require.NoError(t, store.Replay(1, func(si orderv1.SequencedInstruction) error {
		replayed = append(replayed, si)
		return nil
	}))

	require.Len(t, replayed, 3)
	for i, si := range replayed {
		assert.Equal(t, uint64(i+1), si.Sequence)
	}
	assert.Equal(t, "o2", replayed[1].OrderID)
	assert.True(t, replayed[0].Price.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, int64(1), replayed[1].StreamOffset)
}

func TestJournal_ReplayFromMidpoint(t *testing.T) {
	store := openTestJournal(t)

	for sequence := uint64(1); sequence <= 5; sequence++ {
		require.NoError(t, store.Append(sequenced(sequence, "o")))
	}

	var sequences []uint64
	require.NoError(t, store.Replay(3, func(si orderv1.SequencedInstruction) error {
		sequences = append(sequences, si.Sequence)
		return nil
	}))

	assert.Equal(t, []uint64{3, 4, 5}, sequences)
}

// Out-of-order appends still replay in sequence order.
func TestJournal_ReplayIsSequenceOrdered(t *testing.T) {
	store := openTestJournal(t)

	require.NoError(t, store.Append(sequenced(2, "o2")))
	require.NoError(t, store.Append(sequenced(1, "o1")))
	require.NoError(t, store.Append(sequenced(3, "o3")))

	var sequences []uint64
	require.NoError(t, store.Replay(1, func(si orderv1.SequencedInstruction) error {
		sequences = append(sequences, si.Sequence)
		return nil
	}))

	assert.Equal(t, []uint64{1, 2, 3}, sequences)
}

func TestJournal_DuplicateSequenceRefused(t *testing.T) {
	store := openTestJournal(t)

	require.NoError(t, store.Append(sequenced(1, "o1")))

	err := store.Append(sequenced(1, "o1-again"))
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrSequenceGap))
}

func TestJournal_LastSequence(t *testing.T) {
	store := openTestJournal(t)

	require.NoError(t, store.Append(sequenced(1, "o1")))
	require.NoError(t, store.Append(sequenced(7, "o7")))

	last, ok, err := store.LastSequence()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), last)
}
