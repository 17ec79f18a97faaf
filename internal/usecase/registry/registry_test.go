package registry

import (
	"testing"

	instrumentv1 "github.com/christopherrons/herron-trading-engine/internal/domain/instrument/v1"
	"github.com/christopherrons/herron-trading-engine/pkg/errors"
	"github.com/christopherrons/herron-trading-engine/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return NewRegistry(log)
}

func btcUSD() instrumentv1.Instrument {
	return instrumentv1.Instrument{
		ID:       "BTC-USD",
		TickSize: decimal.RequireFromString("0.01"),
		LotSize:  decimal.RequireFromString("0.0001"),
	}
}

func TestRegistry_RegisterStartsClosed(t *testing.T) {
	r := testRegistry(t)

	book := r.Register(btcUSD())
	require.NotNil(t, book)

	state, err := r.State("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, instrumentv1.StateClosed, state)

	_, err = r.Resolve("BTC-USD")
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrInstrumentClosed))
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := testRegistry(t)

	first := r.Register(btcUSD())
	require.NoError(t, r.OpenSession("BTC-USD"))

	second := r.Register(btcUSD())

	// Same book, session state untouched.
	assert.Same(t, first, second)
	state, err := r.State("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, instrumentv1.StateOpen, state)
}

func TestRegistry_ResolveUnknownInstrument(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Resolve("ETH-USD")
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrUnknownInstrument))
}

func TestRegistry_SessionLifecycle(t *testing.T) {
	r := testRegistry(t)
	r.Register(btcUSD())

	require.NoError(t, r.OpenSession("BTC-USD"))
	book, err := r.Resolve("BTC-USD")
	require.NoError(t, err)
	assert.NotNil(t, book)

	require.NoError(t, r.SuspendSession("BTC-USD"))
	_, err = r.Resolve("BTC-USD")
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrInstrumentSuspended))

	require.NoError(t, r.OpenSession("BTC-USD"))
	_, err = r.Resolve("BTC-USD")
	require.NoError(t, err)

	require.NoError(t, r.CloseSession("BTC-USD"))
	_, err = r.Resolve("BTC-USD")
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrInstrumentClosed))
}

func TestRegistry_TransitionsIdempotent(t *testing.T) {
	r := testRegistry(t)
	r.Register(btcUSD())

	require.NoError(t, r.OpenSession("BTC-USD"))
	require.NoError(t, r.OpenSession("BTC-USD"))

	require.NoError(t, r.SuspendSession("BTC-USD"))
	require.NoError(t, r.SuspendSession("BTC-USD"))
}

// Halt is terminal: session control cannot clear it.
func TestRegistry_HaltIsTerminal(t *testing.T) {
	r := testRegistry(t)
	r.Register(btcUSD())
	require.NoError(t, r.OpenSession("BTC-USD"))

	r.Halt("BTC-USD")

	_, err := r.Resolve("BTC-USD")
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrInstrumentHalted))

	err = r.OpenSession("BTC-USD")
	require.Error(t, err)
	assert.True(t, errors.ErrorCodeEquals(err, errors.ErrInstrumentHalted))

	// The book stays reachable for snapshots and recovery.
	book, err := r.Book("BTC-USD")
	require.NoError(t, err)
	assert.NotNil(t, book)
}

// RestoreState bypasses transition rules, including halt being terminal,
// since recovery must reproduce whatever state the snapshot recorded.
func TestRegistry_RestoreState(t *testing.T) {
	r := testRegistry(t)
	r.Register(btcUSD())

	r.RestoreState("BTC-USD", instrumentv1.StateSuspended)
	state, err := r.State("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, instrumentv1.StateSuspended, state)

	r.Halt("BTC-USD")
	r.RestoreState("BTC-USD", instrumentv1.StateOpen)
	state, err = r.State("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, instrumentv1.StateOpen, state)

	// Unknown instruments are a no-op.
	r.RestoreState("ETH-USD", instrumentv1.StateOpen)
}

func TestRegistry_InstrumentIDs(t *testing.T) {
	r := testRegistry(t)
	r.Register(btcUSD())
	r.Register(instrumentv1.Instrument{
		ID:       "ETH-USD",
		TickSize: decimal.RequireFromString("0.01"),
		LotSize:  decimal.RequireFromString("0.001"),
	})

	ids := r.InstrumentIDs()
	assert.ElementsMatch(t, []string{"BTC-USD", "ETH-USD"}, ids)
}
