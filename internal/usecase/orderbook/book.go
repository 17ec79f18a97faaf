package orderbook

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	instrumentv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instrument/v1"
	orderv1 "github.com/christopherrons/herron-trading-engine/internal/domain/order/v1"
	orderbookv1 "github.com/christopherrons/herron-trading-engine/internal/domain/orderbook/v1"
	snapshotv1 "github.com/christopherrons/herron-trading-engine/internal/domain/snapshot/v1"
	"github.com/shopspring/decimal"
)

var (
	// ErrNilOrder is returned when inserting a nil order.
	ErrNilOrder = errors.New("order cannot be nil")
	// ErrDuplicateOrder is returned when an order id is already resting.
	ErrDuplicateOrder = errors.New("order id already resting on book")
	// ErrSelfTrade is returned when the incoming order would match its
	// owner's resting order and the book runs the reject policy.
	ErrSelfTrade = errors.New("order rejected by self-trade policy")
	// ErrCrossedBook is returned by Validate when a resting bid price meets or
	// exceeds a resting ask price. This is a fatal logic defect, not a caller error.
	ErrCrossedBook = errors.New("crossed book")
)

// SelfTradePolicy controls how a match between two orders of the same owner is handled.
type SelfTradePolicy string

const (
	// SelfTradeAllow lets the orders trade against each other.
	SelfTradeAllow SelfTradePolicy = "allow"
	// SelfTradeReject rejects the incoming order when it reaches its owner's resting order.
	SelfTradeReject SelfTradePolicy = "reject"
	// SelfTradeCancelResting cancels the resting order and keeps matching the incoming one.
	SelfTradeCancelResting SelfTradePolicy = "cancel_resting"
)

// InsertResult holds the trades and book deltas produced by one insert.
type InsertResult struct {
	Trades  []orderbookv1.Trade
	Updates []orderbookv1.BookUpdate
	// Rested reports whether an unfilled remainder was left on the book.
	Rested bool
	// Remaining is the unfilled quantity after matching, zero when fully filled.
	Remaining decimal.Decimal
}

// Book is a price-time-priority order book for a single instrument. All
// mutation happens through Insert, Cancel and Replace; the matching engine
// guarantees a single writer per book, the mutex only protects concurrent
// readers such as the snapshot manager.
type Book struct {
	mu         sync.RWMutex
	instrument instrumentv1.Instrument
	bids       []*orderbookv1.PriceLevel // sorted best first: price descending
	asks       []*orderbookv1.PriceLevel // sorted best first: price ascending
	orders     map[string]*orderv1.Order
	filled     map[string]struct{} // fully filled order ids, lives for the trading day

	// lastSequence is the highest instruction sequence applied to this book.
	// It is updated under the same lock as the book state, so a snapshot's
	// sequence number always covers exactly the state it captures.
	lastSequence uint64

	policy SelfTradePolicy
}

// Option configures a Book.
type Option func(*Book)

// WithSelfTradePolicy sets the self-trade prevention policy.
func WithSelfTradePolicy(policy SelfTradePolicy) Option {
	return func(b *Book) {
		b.policy = policy
	}
}

// NewBook creates an empty book for the given instrument.
func NewBook(instrument instrumentv1.Instrument, opts ...Option) *Book {
	b := &Book{
		instrument: instrument,
		bids:       make([]*orderbookv1.PriceLevel, 0),
		asks:       make([]*orderbookv1.PriceLevel, 0),
		orders:     make(map[string]*orderv1.Order),
		filled:     make(map[string]struct{}),
		policy:     SelfTradeAllow,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Instrument returns the instrument this book trades.
func (b *Book) Instrument() instrumentv1.Instrument {
	return b.instrument
}

// Insert matches the incoming order against the opposite side and rests any
// unfilled remainder when the order type and time in force allow it. Trades
// execute at the resting order's price.
func (b *Book) Insert(order *orderv1.Order) (InsertResult, error) {
	if order == nil {
		return InsertResult{}, ErrNilOrder
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.markApplied(order.Sequence)

	if _, exists := b.orders[order.ID]; exists {
		return InsertResult{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	if order.Remaining.Sign() <= 0 {
		return InsertResult{}, orderbookv1.ErrInvalidQuantity
	}

	result := InsertResult{Remaining: order.Remaining}

	// Fill-or-kill trades the full quantity or nothing.
	if order.TimeInForce == orderv1.TimeInForceFOK && !b.canFillFully(order) {
		return result, nil
	}

	if err := b.match(order, &result); err != nil {
		return result, err
	}

	result.Remaining = order.Remaining

	if order.IsFilled() {
		b.filled[order.ID] = struct{}{}
		return result, nil
	}

	// Only GTC limit remainders rest. A market order with unmet quantity is
	// canceled, never rested.
	if order.Type == orderv1.OrderTypeLimit && order.TimeInForce == orderv1.TimeInForceGTC {
		b.rest(order)
		result.Rested = true
		result.Updates = append(result.Updates, orderbookv1.BookUpdate{
			InstrumentID: b.instrument.ID,
			OrderID:      order.ID,
			Side:         order.Side,
			Kind:         orderbookv1.BookUpdateAdded,
			Price:        order.Price,
			Remaining:    order.Remaining,
			Sequence:     order.Sequence,
		})
	}

	return result, nil
}

// match repeatedly takes the best-priced opposite level while it crosses the
// incoming order and the incoming order has remaining quantity.
func (b *Book) match(order *orderv1.Order, result *InsertResult) error {
	for order.Remaining.Sign() > 0 {
		level := b.bestLevel(order.Side.Opposite())
		if level == nil || !order.Crosses(level.Price) {
			break
		}

		resting := level.Head()

		if resting.Owner == order.Owner && b.policy != SelfTradeAllow {
			if b.policy == SelfTradeReject {
				return fmt.Errorf("%w: order %s against resting %s", ErrSelfTrade, order.ID, resting.ID)
			}
			// cancel_resting: drop the resting order and keep matching
			b.removeResting(resting, result, order.Sequence)
			continue
		}

		quantity := decimal.Min(order.Remaining, resting.Remaining)
		trade := orderbookv1.NewTrade(order, resting, quantity, order.Sequence, len(result.Trades), order.AcceptedAt)
		result.Trades = append(result.Trades, trade)

		level.Reduce(resting, quantity)
		order.Fill(quantity)

		if resting.IsFilled() {
			if _, err := level.Remove(resting.ID); err != nil {
				return err
			}
			delete(b.orders, resting.ID)
			b.filled[resting.ID] = struct{}{}
			b.dropLevelIfEmpty(resting.Side, level)
			result.Updates = append(result.Updates, orderbookv1.BookUpdate{
				InstrumentID: b.instrument.ID,
				OrderID:      resting.ID,
				Side:         resting.Side,
				Kind:         orderbookv1.BookUpdateRemoved,
				Price:        resting.Price,
				Remaining:    decimal.Zero,
				Sequence:     order.Sequence,
			})
		} else {
			result.Updates = append(result.Updates, orderbookv1.BookUpdate{
				InstrumentID: b.instrument.ID,
				OrderID:      resting.ID,
				Side:         resting.Side,
				Kind:         orderbookv1.BookUpdateReduced,
				Price:        resting.Price,
				Remaining:    resting.Remaining,
				Sequence:     order.Sequence,
			})
		}
	}

	return nil
}

// Cancel removes a resting order. A cancel with a later sequence number than a
// fill of the same order is a no-op reporting already filled.
func (b *Book) Cancel(orderID string, sequence uint64) (orderbookv1.CancelStatus, []orderbookv1.BookUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.markApplied(sequence)

	order, exists := b.orders[orderID]
	if !exists {
		if _, wasFilled := b.filled[orderID]; wasFilled {
			return orderbookv1.CancelStatusAlreadyFilled, nil
		}
		return orderbookv1.CancelStatusUnknown, nil
	}

	var result InsertResult
	b.removeResting(order, &result, sequence)

	return orderbookv1.CancelStatusCanceled, result.Updates
}

// Replace amends a resting order. A replace that strictly reduces quantity at
// an unchanged price amends in place and keeps time priority; any other
// change cancels and reinserts, losing priority and possibly trading.
func (b *Book) Replace(orderID string, newPrice, newQuantity *decimal.Decimal, sequence uint64, acceptedAt int64) (InsertResult, orderbookv1.CancelStatus, error) {
	b.mu.Lock()
	b.markApplied(sequence)

	order, exists := b.orders[orderID]
	if !exists {
		defer b.mu.Unlock()
		if _, wasFilled := b.filled[orderID]; wasFilled {
			return InsertResult{}, orderbookv1.CancelStatusAlreadyFilled, nil
		}
		return InsertResult{}, orderbookv1.CancelStatusUnknown, nil
	}

	priceUnchanged := newPrice == nil || newPrice.Equal(order.Price)
	quantityReduced := newQuantity != nil && newQuantity.LessThan(order.Quantity)

	if priceUnchanged && quantityReduced {
		result, status := b.reduceInPlace(order, *newQuantity, sequence)
		b.mu.Unlock()
		return result, status, nil
	}

	// cancel-then-reinsert, losing time priority
	var removal InsertResult
	b.removeResting(order, &removal, sequence)

	price := order.Price
	if newPrice != nil {
		price = *newPrice
	}
	quantity := order.Quantity
	if newQuantity != nil {
		quantity = *newQuantity
	}

	// The amendment changes price or size, never the fills that already
	// happened. Quantity amended below the filled amount leaves nothing to
	// reinsert.
	filledSoFar := order.Quantity.Sub(order.Remaining)
	remaining := quantity.Sub(filledSoFar)
	if remaining.Sign() <= 0 {
		if filledSoFar.Sign() > 0 {
			b.filled[order.ID] = struct{}{}
		}
		b.mu.Unlock()
		return removal, orderbookv1.CancelStatusCanceled, nil
	}
	b.mu.Unlock()

	replacement := orderv1.NewOrder(order.ID, order.InstrumentID, order.Owner, order.Side, order.Type, price, quantity)
	replacement.TimeInForce = order.TimeInForce
	replacement.Remaining = remaining
	replacement.Sequence = sequence
	replacement.AcceptedAt = acceptedAt

	result, err := b.Insert(replacement)
	result.Updates = append(removal.Updates, result.Updates...)

	return result, orderbookv1.CancelStatusCanceled, err
}

// reduceInPlace shrinks a resting order's quantity without moving it in the
// queue. Reducing below the already filled quantity removes the order.
func (b *Book) reduceInPlace(order *orderv1.Order, newQuantity decimal.Decimal, sequence uint64) (InsertResult, orderbookv1.CancelStatus) {
	var result InsertResult

	filledSoFar := order.Quantity.Sub(order.Remaining)
	newRemaining := newQuantity.Sub(filledSoFar)

	if newRemaining.Sign() <= 0 {
		b.removeResting(order, &result, sequence)
		// The amended quantity is at or below what already traded, so the
		// order counts as fully filled.
		if filledSoFar.Sign() > 0 {
			b.filled[order.ID] = struct{}{}
		}
		return result, orderbookv1.CancelStatusCanceled
	}

	level := b.level(order.Side, order.Price)
	level.Reduce(order, order.Remaining.Sub(newRemaining))
	order.Quantity = newQuantity

	result.Rested = true
	result.Remaining = order.Remaining
	result.Updates = append(result.Updates, orderbookv1.BookUpdate{
		InstrumentID: b.instrument.ID,
		OrderID:      order.ID,
		Side:         order.Side,
		Kind:         orderbookv1.BookUpdateReduced,
		Price:        order.Price,
		Remaining:    order.Remaining,
		Sequence:     sequence,
	})

	return result, orderbookv1.CancelStatusCanceled
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].Price, true
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].Price, true
}

// BidVolume returns total resting bid volume.
func (b *Book) BidVolume() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := decimal.Zero
	for _, level := range b.bids {
		total = total.Add(level.TotalVolume)
	}
	return total
}

// AskVolume returns total resting ask volume.
func (b *Book) AskVolume() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := decimal.Zero
	for _, level := range b.asks {
		total = total.Add(level.TotalVolume)
	}
	return total
}

// OrderCount returns the number of resting orders.
func (b *Book) OrderCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// Order returns a resting order by id.
func (b *Book) Order(orderID string) (*orderv1.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, exists := b.orders[orderID]
	return order, exists
}

// Validate checks the book invariants: no resting bid price meets or exceeds
// any resting ask price, and every level's volume matches its orders.
func (b *Book) Validate() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.bids) > 0 && len(b.asks) > 0 {
		if b.bids[0].Price.GreaterThanOrEqual(b.asks[0].Price) {
			return fmt.Errorf("%w: bid %s >= ask %s", ErrCrossedBook, b.bids[0].Price, b.asks[0].Price)
		}
	}

	for _, level := range append(append([]*orderbookv1.PriceLevel{}, b.bids...), b.asks...) {
		if err := level.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// CreateSnapshot captures the resting state of the book together with the
// sequence number of the last applied instruction, read under the same lock
// so the two can never disagree.
func (b *Book) CreateSnapshot(streamOffset int64) *snapshotv1.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var bookOrders []snapshotv1.BookOrder
	for _, level := range append(append([]*orderbookv1.PriceLevel{}, b.bids...), b.asks...) {
		for _, order := range level.Orders {
			bookOrders = append(bookOrders, snapshotv1.BookOrder{
				OrderID:     order.ID,
				Owner:       order.Owner,
				Side:        order.Side,
				TimeInForce: order.TimeInForce,
				Price:       order.Price,
				Quantity:    order.Quantity,
				Remaining:   order.Remaining,
				Sequence:    order.Sequence,
				AcceptedAt:  order.AcceptedAt,
			})
		}
	}

	filled := make([]string, 0, len(b.filled))
	for id := range b.filled {
		filled = append(filled, id)
	}
	sort.Strings(filled)

	return &snapshotv1.Snapshot{
		InstrumentID: b.instrument.ID,
		Sequence:     b.lastSequence,
		StreamOffset: streamOffset,
		Orders:       bookOrders,
		Filled:       filled,
	}
}

// Restore replaces the book's resting state with the snapshot contents.
func (b *Book) Restore(snapshot *snapshotv1.Snapshot) error {
	if snapshot == nil {
		return errors.New("snapshot cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make([]*orderbookv1.PriceLevel, 0)
	b.asks = make([]*orderbookv1.PriceLevel, 0)
	b.orders = make(map[string]*orderv1.Order)
	b.filled = make(map[string]struct{})
	b.lastSequence = snapshot.Sequence

	for _, id := range snapshot.Filled {
		b.filled[id] = struct{}{}
	}

	for _, bookOrder := range snapshot.Orders {
		order := &orderv1.Order{
			ID:           bookOrder.OrderID,
			InstrumentID: snapshot.InstrumentID,
			Owner:        bookOrder.Owner,
			Side:         bookOrder.Side,
			Type:         orderv1.OrderTypeLimit,
			TimeInForce:  bookOrder.TimeInForce,
			Price:        bookOrder.Price,
			Quantity:     bookOrder.Quantity,
			Remaining:    bookOrder.Remaining,
			Sequence:     bookOrder.Sequence,
			AcceptedAt:   bookOrder.AcceptedAt,
		}

		b.rest(order)
	}

	return nil
}

// canFillFully reports whether the crossing opposite volume covers the order's
// full remaining quantity.
func (b *Book) canFillFully(order *orderv1.Order) bool {
	available := decimal.Zero
	for _, level := range b.opposite(order.Side) {
		if !order.Crosses(level.Price) {
			break
		}
		available = available.Add(level.TotalVolume)
		if available.GreaterThanOrEqual(order.Remaining) {
			return true
		}
	}
	return false
}

// LastSequence returns the sequence number of the last applied instruction.
func (b *Book) LastSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSequence
}

// markApplied advances the last applied sequence. Caller holds the lock.
func (b *Book) markApplied(sequence uint64) {
	if sequence > b.lastSequence {
		b.lastSequence = sequence
	}
}

// rest places an order on its own side preserving price-time order.
func (b *Book) rest(order *orderv1.Order) {
	level := b.findOrCreateLevel(order.Side, order.Price)
	// Add only fails on nil or non-positive remaining, both checked upstream.
	_ = level.Add(order)
	b.orders[order.ID] = order
}

// removeResting removes an order from its level and records the delta.
func (b *Book) removeResting(order *orderv1.Order, result *InsertResult, sequence uint64) {
	level := b.level(order.Side, order.Price)
	if level != nil {
		_, _ = level.Remove(order.ID)
		b.dropLevelIfEmpty(order.Side, level)
	}
	delete(b.orders, order.ID)

	result.Updates = append(result.Updates, orderbookv1.BookUpdate{
		InstrumentID: b.instrument.ID,
		OrderID:      order.ID,
		Side:         order.Side,
		Kind:         orderbookv1.BookUpdateRemoved,
		Price:        order.Price,
		Remaining:    decimal.Zero,
		Sequence:     sequence,
	})
}

func (b *Book) side(side orderv1.Side) []*orderbookv1.PriceLevel {
	if side == orderv1.SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) opposite(side orderv1.Side) []*orderbookv1.PriceLevel {
	return b.side(side.Opposite())
}

func (b *Book) bestLevel(side orderv1.Side) *orderbookv1.PriceLevel {
	levels := b.side(side)
	if len(levels) == 0 {
		return nil
	}
	return levels[0]
}

// levelIndex finds the position of price in the side's best-first ordering.
func (b *Book) levelIndex(side orderv1.Side, price decimal.Decimal) int {
	levels := b.side(side)
	if side == orderv1.SideBuy {
		// bids sorted descending
		return sort.Search(len(levels), func(i int) bool {
			return levels[i].Price.LessThanOrEqual(price)
		})
	}
	// asks sorted ascending
	return sort.Search(len(levels), func(i int) bool {
		return levels[i].Price.GreaterThanOrEqual(price)
	})
}

func (b *Book) level(side orderv1.Side, price decimal.Decimal) *orderbookv1.PriceLevel {
	levels := b.side(side)
	i := b.levelIndex(side, price)
	if i < len(levels) && levels[i].Price.Equal(price) {
		return levels[i]
	}
	return nil
}

func (b *Book) findOrCreateLevel(side orderv1.Side, price decimal.Decimal) *orderbookv1.PriceLevel {
	levels := b.side(side)
	i := b.levelIndex(side, price)
	if i < len(levels) && levels[i].Price.Equal(price) {
		return levels[i]
	}

	level := orderbookv1.NewPriceLevel(price)
	levels = append(levels, nil)
	copy(levels[i+1:], levels[i:])
	levels[i] = level
	b.setSide(side, levels)

	return level
}

func (b *Book) dropLevelIfEmpty(side orderv1.Side, level *orderbookv1.PriceLevel) {
	if !level.IsEmpty() {
		return
	}

	levels := b.side(side)
	i := b.levelIndex(side, level.Price)
	if i < len(levels) && levels[i] == level {
		b.setSide(side, append(levels[:i], levels[i+1:]...))
	}
}

func (b *Book) setSide(side orderv1.Side, levels []*orderbookv1.PriceLevel) {
	if side == orderv1.SideBuy {
		b.bids = levels
	} else {
		b.asks = levels
	}
}
