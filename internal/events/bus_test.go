package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribeAndEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(PriceUpdated, func(event *Event) {
		received = append(received, event)
	})

	bus.Emit(PriceUpdated, "refresh", map[string]interface{}{"symbol": "AAPL"})
	bus.Emit(NAVComputed, "scheduler", nil) // no subscriber, dropped

	require.Len(t, received, 1)
	assert.Equal(t, PriceUpdated, received[0].Type)
	assert.Equal(t, "refresh", received[0].Module)
	assert.Equal(t, "AAPL", received[0].Data["symbol"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	bus.Subscribe(TickerAdded, func(event *Event) { calls++ })
	bus.Subscribe(TickerAdded, func(event *Event) { calls++ })

	bus.Emit(TickerAdded, "watchlist", nil)

	assert.Equal(t, 2, calls)
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var types []EventType
	bus.SubscribeAll(func(event *Event) {
		types = append(types, event.Type)
	})

	bus.Emit(PriceUpdated, "refresh", nil)
	bus.Emit(WatchlistChanged, "watchlist", nil)
	bus.Emit(BackupCompleted, "reliability", nil)

	assert.Equal(t, []EventType{PriceUpdated, WatchlistChanged, BackupCompleted}, types)
}

func TestBusEmitTypedFlattensPayload(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got *Event
	bus.Subscribe(NAVComputed, func(event *Event) { got = event })

	bus.EmitTyped(NAVComputed, "scheduler", &NAVComputedData{
		WatchlistID:   "wl-1",
		Source:        "aligned",
		ReturnPercent: 4.2,
		ValidTickers:  3,
		TotalTickers:  4,
	})

	require.NotNil(t, got)
	assert.Equal(t, "wl-1", got.Data["watchlist_id"])
	assert.Equal(t, "aligned", got.Data["source"])
	assert.Equal(t, 4.2, got.Data["return_percent"])
	assert.Equal(t, 3, got.Data["valid_tickers"])
}
