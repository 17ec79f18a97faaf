package orderbook

import (
	"testing"

	instrumentv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instrument/v1"
	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	orderbookv1 "github.com/christopherrons/herron-trading-engine/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func testInstrument() instrumentv1.Instrument {
	return instrumentv1.Instrument{
		ID:       "BTC-USD",
		TickSize: d("0.01"),
		LotSize:  d("0.0001"),
	}
}

// Helper to create a GTC limit order stamped with a sequence number.
func limitOrder(id, owner string, side orderv1.Side, price, quantity string, sequence uint64) *orderv1.Order {
	order := orderv1.NewOrder(id, "BTC-USD", owner, side, orderv1.OrderTypeLimit, d(price), d(quantity))
	order.Sequence = sequence
	return order
}

func marketOrder(id, owner string, side orderv1.Side, quantity string, sequence uint64) *orderv1.Order {
	order := orderv1.NewOrder(id, "BTC-USD", owner, side, orderv1.OrderTypeMarket, decimal.Zero, d(quantity))
	order.TimeInForce = orderv1.TimeInForceFAK
	order.Sequence = sequence
	return order
}

func TestBook_InsertRestsWhenNothingCrosses(t *testing.T) {
	book := NewBook(testInstrument())

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 1))

	require.NoError(t, err)
	assert.True(t, result.Rested)
	assert.Empty(t, result.Trades)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, orderbookv1.BookUpdateAdded, result.Updates[0].Kind)

	best, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, best.Equal(d("100.00")))
	assert.Equal(t, 1, book.OrderCount())
}

// Partial fill: the aggressor trades what it can and rests the remainder.
func TestBook_PartialFillRestsRemainder(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "3", 1))
	require.NoError(t, err)

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 2))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Quantity.Equal(d("3")))
	assert.True(t, result.Rested)
	assert.True(t, result.Remaining.Equal(d("2")))

	// The ask side is now empty, the bid remainder rests.
	_, ok := book.BestAsk()
	assert.False(t, ok)
	best, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, best.Equal(d("100.00")))
}

// The resting order always sets the trade price, never the aggressor.
func TestBook_PassivePriceWins(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "99.00", "5", 1))
	require.NoError(t, err)

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "101.00", "5", 2))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Price.Equal(d("99.00")))
	assert.Equal(t, "b1", result.Trades[0].BuyOrderID)
	assert.Equal(t, "s1", result.Trades[0].SellOrderID)
}

// Orders at the same price fill in arrival order.
func TestBook_TimePriorityWithinLevel(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "2", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s2", "carol", orderv1.SideSell, "100.00", "2", 2))
	require.NoError(t, err)

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "3", 3))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, "s1", result.Trades[0].SellOrderID)
	assert.True(t, result.Trades[0].Quantity.Equal(d("2")))
	assert.Equal(t, "s2", result.Trades[1].SellOrderID)
	assert.True(t, result.Trades[1].Quantity.Equal(d("1")))
}

// Better-priced levels fill before older orders at worse prices.
func TestBook_PricePriorityAcrossLevels(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "101.00", "5", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s2", "carol", orderv1.SideSell, "100.00", "5", 2))
	require.NoError(t, err)

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "101.00", "7", 3))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, "s2", result.Trades[0].SellOrderID)
	assert.True(t, result.Trades[0].Price.Equal(d("100.00")))
	assert.Equal(t, "s1", result.Trades[1].SellOrderID)
	assert.True(t, result.Trades[1].Price.Equal(d("101.00")))
}

func TestBook_MarketOrderNeverRests(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "2", 1))
	require.NoError(t, err)

	result, err := book.Insert(marketOrder("m1", "alice", orderv1.SideBuy, "5", 2))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Quantity.Equal(d("2")))
	assert.False(t, result.Rested)
	assert.True(t, result.Remaining.Equal(d("3")))
	assert.Equal(t, 0, book.OrderCount())
}

func TestBook_MarketOrderEmptyBook(t *testing.T) {
	book := NewBook(testInstrument())

	result, err := book.Insert(marketOrder("m1", "alice", orderv1.SideBuy, "5", 1))

	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.False(t, result.Rested)
	assert.Equal(t, 0, book.OrderCount())
}

func TestBook_FillOrKillAllOrNothing(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "3", 1))
	require.NoError(t, err)

	// Not enough crossing volume: nothing trades, book untouched.
	fok := limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 2)
	fok.TimeInForce = orderv1.TimeInForceFOK
	result, err := book.Insert(fok)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.False(t, result.Rested)
	assert.Equal(t, 1, book.OrderCount())

	// Enough volume after a second ask arrives: full fill.
	_, err = book.Insert(limitOrder("s2", "carol", orderv1.SideSell, "100.00", "2", 3))
	require.NoError(t, err)

	fok2 := limitOrder("b2", "alice", orderv1.SideBuy, "100.00", "5", 4)
	fok2.TimeInForce = orderv1.TimeInForceFOK
	result, err = book.Insert(fok2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)
	assert.True(t, result.Remaining.IsZero())
	assert.Equal(t, 0, book.OrderCount())
}

func TestBook_FillAndKillCancelsRemainder(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "3", 1))
	require.NoError(t, err)

	fak := limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 2)
	fak.TimeInForce = orderv1.TimeInForceFAK
	result, err := book.Insert(fak)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Quantity.Equal(d("3")))
	assert.False(t, result.Rested)
	assert.True(t, result.Remaining.Equal(d("2")))
	assert.Equal(t, 0, book.OrderCount())
}

func TestBook_DuplicateOrderRejected(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 1))
	require.NoError(t, err)

	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "101.00", "5", 2))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestBook_CancelRestingOrder(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 1))
	require.NoError(t, err)

	status, updates := book.Cancel("b1", 2)

	assert.Equal(t, orderbookv1.CancelStatusCanceled, status)
	require.Len(t, updates, 1)
	assert.Equal(t, orderbookv1.BookUpdateRemoved, updates[0].Kind)
	assert.Equal(t, 0, book.OrderCount())
	_, ok := book.BestBid()
	assert.False(t, ok)
}

// A cancel that lost the race against a fill reports already filled, not unknown.
func TestBook_CancelAfterFill(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "3", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "3", 2))
	require.NoError(t, err)

	status, updates := book.Cancel("s1", 3)

	assert.Equal(t, orderbookv1.CancelStatusAlreadyFilled, status)
	assert.Empty(t, updates)
}

func TestBook_CancelUnknownOrder(t *testing.T) {
	book := NewBook(testInstrument())

	status, updates := book.Cancel("missing", 1)

	assert.Equal(t, orderbookv1.CancelStatusUnknown, status)
	assert.Empty(t, updates)
}

// A pure quantity reduction amends in place and keeps time priority.
func TestBook_ReplaceReduceKeepsPriority(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "5", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s2", "carol", orderv1.SideSell, "100.00", "5", 2))
	require.NoError(t, err)

	newQuantity := d("2")
	result, status, err := book.Replace("s1", nil, &newQuantity, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusCanceled, status)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, orderbookv1.BookUpdateReduced, result.Updates[0].Kind)

	// s1 still fills first at its level.
	insert, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "1", 4))
	require.NoError(t, err)
	require.Len(t, insert.Trades, 1)
	assert.Equal(t, "s1", insert.Trades[0].SellOrderID)
}

// A price change reinserts the order at the back of the new level and may trade.
func TestBook_ReplacePriceLosesPriorityAndMatches(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "99.00", "5", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "3", 2))
	require.NoError(t, err)

	newPrice := d("100.00")
	result, status, err := book.Replace("b1", &newPrice, nil, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusCanceled, status)

	// The repriced bid crosses the ask and trades immediately.
	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Price.Equal(d("100.00")))
	assert.True(t, result.Rested)
	assert.True(t, result.Remaining.Equal(d("2")))
}

// Increasing quantity loses priority even at an unchanged price.
func TestBook_ReplaceIncreaseLosesPriority(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "2", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s2", "carol", orderv1.SideSell, "100.00", "2", 2))
	require.NoError(t, err)

	newQuantity := d("4")
	_, status, err := book.Replace("s1", nil, &newQuantity, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusCanceled, status)

	insert, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "2", 4))
	require.NoError(t, err)
	require.Len(t, insert.Trades, 1)
	assert.Equal(t, "s2", insert.Trades[0].SellOrderID)
}

func TestBook_ReplaceUnknownAndFilled(t *testing.T) {
	book := NewBook(testInstrument())

	newQuantity := d("1")
	_, status, err := book.Replace("missing", nil, &newQuantity, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusUnknown, status)

	_, err = book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "1", 2))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "1", 3))
	require.NoError(t, err)

	_, status, err = book.Replace("s1", nil, &newQuantity, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusAlreadyFilled, status)
}

// A replace after a partial fill carries the traded quantity into the
// reinserted order instead of reopening the order at its full new quantity.
func TestBook_ReplaceAfterPartialFillCarriesFill(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "10", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "4", 2))
	require.NoError(t, err)

	newPrice := d("101.00")
	result, status, err := book.Replace("s1", &newPrice, nil, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusCanceled, status)
	assert.True(t, result.Remaining.Equal(d("6")), "remaining = %s, want 6", result.Remaining)

	resting, ok := book.Order("s1")
	require.True(t, ok)
	assert.True(t, resting.Remaining.Equal(d("6")))
	assert.True(t, book.AskVolume().Equal(d("6")))
}

// Amending the quantity to at or below what already traded leaves nothing to
// reinsert; the order counts as fully filled from then on.
func TestBook_ReplaceBelowFilledQuantityCancels(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "10", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "4", 2))
	require.NoError(t, err)

	newPrice := d("101.00")
	newQuantity := d("3")
	result, status, err := book.Replace("s1", &newPrice, &newQuantity, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbookv1.CancelStatusCanceled, status)
	assert.Empty(t, result.Trades)
	assert.Equal(t, 0, book.OrderCount())

	status, _ = book.Cancel("s1", 4)
	assert.Equal(t, orderbookv1.CancelStatusAlreadyFilled, status)
}

func TestBook_SelfTradeReject(t *testing.T) {
	book := NewBook(testInstrument(), WithSelfTradePolicy(SelfTradeReject))

	_, err := book.Insert(limitOrder("s1", "alice", orderv1.SideSell, "100.00", "5", 1))
	require.NoError(t, err)

	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "5", 2))
	assert.ErrorIs(t, err, ErrSelfTrade)

	// The resting order is untouched.
	assert.Equal(t, 1, book.OrderCount())
}

func TestBook_SelfTradeCancelResting(t *testing.T) {
	book := NewBook(testInstrument(), WithSelfTradePolicy(SelfTradeCancelResting))

	_, err := book.Insert(limitOrder("s1", "alice", orderv1.SideSell, "100.00", "2", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s2", "bob", orderv1.SideSell, "100.00", "2", 2))
	require.NoError(t, err)

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "2", 3))
	require.NoError(t, err)

	// alice's resting ask is canceled, the order trades with bob instead.
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "s2", result.Trades[0].SellOrderID)

	removed := false
	for _, update := range result.Updates {
		if update.OrderID == "s1" && update.Kind == orderbookv1.BookUpdateRemoved {
			removed = true
		}
	}
	assert.True(t, removed)
}

func TestBook_SelfTradeAllowedByDefault(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "alice", orderv1.SideSell, "100.00", "2", 1))
	require.NoError(t, err)

	result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "2", 2))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
}

func TestBook_ValidateCleanBook(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "99.00", "5", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "5", 2))
	require.NoError(t, err)

	assert.NoError(t, book.Validate())
}

func TestBook_SnapshotRestoreRoundtrip(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "99.00", "5", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b2", "bob", orderv1.SideBuy, "98.00", "3", 2))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("s1", "carol", orderv1.SideSell, "101.00", "4", 3))
	require.NoError(t, err)

	snapshot := book.CreateSnapshot(42)
	assert.Equal(t, uint64(3), snapshot.Sequence)
	assert.Equal(t, int64(42), snapshot.StreamOffset)
	assert.Len(t, snapshot.Orders, 3)

	restored := NewBook(testInstrument())
	require.NoError(t, restored.Restore(snapshot))

	assert.Equal(t, 3, restored.OrderCount())
	bid, ok := restored.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(d("99.00")))
	ask, ok := restored.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(d("101.00")))
	assert.True(t, restored.BidVolume().Equal(d("8")))
	assert.True(t, restored.AskVolume().Equal(d("4")))

	// Fills against the restored book behave like the original.
	result, err := restored.Insert(limitOrder("b3", "dave", orderv1.SideBuy, "101.00", "4", 4))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "s1", result.Trades[0].SellOrderID)
}

// The snapshot sequence is stamped by the book itself, so it always covers
// instructions the book applied, including trades that emptied it.
func TestBook_SnapshotSequenceCoversAppliedTrades(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "2", 2))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "2", 4))
	require.NoError(t, err)

	// The book is empty after the trade, but the snapshot still records the
	// last applied sequence, not the last resting order's.
	assert.Equal(t, 0, book.OrderCount())
	snapshot := book.CreateSnapshot(0)
	assert.Equal(t, uint64(4), snapshot.Sequence)
	assert.Equal(t, uint64(4), book.LastSequence())

	restored := NewBook(testInstrument())
	require.NoError(t, restored.Restore(snapshot))
	assert.Equal(t, uint64(4), restored.LastSequence())
}

// Orders fully filled before a snapshot stay known after recovery; a late
// cancel resolves to already filled rather than unknown.
func TestBook_SnapshotPreservesFilledOrders(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "2", 1))
	require.NoError(t, err)
	_, err = book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "2", 2))
	require.NoError(t, err)

	snapshot := book.CreateSnapshot(0)
	assert.ElementsMatch(t, []string{"b1", "s1"}, snapshot.Filled)

	restored := NewBook(testInstrument())
	require.NoError(t, restored.Restore(snapshot))

	status, _ := restored.Cancel("s1", 3)
	assert.Equal(t, orderbookv1.CancelStatusAlreadyFilled, status)
	status, _ = restored.Cancel("nope", 4)
	assert.Equal(t, orderbookv1.CancelStatusUnknown, status)
}

func TestBook_InsertNilOrder(t *testing.T) {
	book := NewBook(testInstrument())

	_, err := book.Insert(nil)
	assert.ErrorIs(t, err, ErrNilOrder)
}

// Trade ids derive from the sequence number, so replaying the same flow
// reproduces the same trades.
func TestBook_DeterministicTradeIDs(t *testing.T) {
	run := func() []orderbookv1.Trade {
		book := NewBook(testInstrument())
		_, err := book.Insert(limitOrder("s1", "bob", orderv1.SideSell, "100.00", "2", 1))
		require.NoError(t, err)
		_, err = book.Insert(limitOrder("s2", "carol", orderv1.SideSell, "100.00", "2", 2))
		require.NoError(t, err)
		result, err := book.Insert(limitOrder("b1", "alice", orderv1.SideBuy, "100.00", "4", 3))
		require.NoError(t, err)
		return result.Trades
	}

	first := run()
	second := run()

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.True(t, first[i].Quantity.Equal(second[i].Quantity))
		assert.True(t, first[i].Price.Equal(second[i].Price))
	}
	assert.Equal(t, "3-0", first[0].ID)
	assert.Equal(t, "3-1", first[1].ID)
}
