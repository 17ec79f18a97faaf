package orderbookv1

import (
	"testing"

	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(id string, remaining string) *orderv1.Order {
	quantity := decimal.RequireFromString(remaining)
	return orderv1.NewOrder(id, "BTC-USD", "alice", orderv1.SideSell, orderv1.OrderTypeLimit, decimal.RequireFromString("100"), quantity)
}

func TestPriceLevel_AddTracksVolume(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))

	require.NoError(t, level.Add(testOrder("o1", "3")))
	require.NoError(t, level.Add(testOrder("o2", "2")))

	assert.Equal(t, 2, level.OrderCount())
	assert.True(t, level.TotalVolume.Equal(decimal.RequireFromString("5")))
	assert.NoError(t, level.Validate())
}

func TestPriceLevel_AddRejectsBadOrders(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))

	assert.ErrorIs(t, level.Add(nil), ErrNilOrder)

	empty := testOrder("o1", "1")
	empty.Remaining = decimal.Zero
	assert.ErrorIs(t, level.Add(empty), ErrInvalidQuantity)
}

// FIFO: the head is always the earliest added order.
func TestPriceLevel_HeadIsFIFO(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))

	require.NoError(t, level.Add(testOrder("first", "1")))
	require.NoError(t, level.Add(testOrder("second", "1")))

	assert.Equal(t, "first", level.Head().ID)

	_, err := level.Remove("first")
	require.NoError(t, err)
	assert.Equal(t, "second", level.Head().ID)
}

func TestPriceLevel_RemoveUnknown(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))

	_, err := level.Remove("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPriceLevel_ReduceUpdatesOrderAndVolume(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))
	order := testOrder("o1", "5")
	require.NoError(t, level.Add(order))

	level.Reduce(order, decimal.RequireFromString("2"))

	assert.True(t, order.Remaining.Equal(decimal.RequireFromString("3")))
	assert.True(t, level.TotalVolume.Equal(decimal.RequireFromString("3")))
	assert.NoError(t, level.Validate())
}

func TestPriceLevel_ValidateCatchesMismatch(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))
	require.NoError(t, level.Add(testOrder("o1", "5")))

	level.TotalVolume = decimal.RequireFromString("7")

	assert.Error(t, level.Validate())
}

func TestPriceLevel_EmptyAfterRemovals(t *testing.T) {
	level := NewPriceLevel(decimal.RequireFromString("100"))
	require.NoError(t, level.Add(testOrder("o1", "5")))
	require.False(t, level.IsEmpty())

	_, err := level.Remove("o1")
	require.NoError(t, err)

	assert.True(t, level.IsEmpty())
	assert.Nil(t, level.Head())
	assert.True(t, level.TotalVolume.IsZero())
}
