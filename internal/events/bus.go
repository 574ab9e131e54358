// Package events provides the in-process event bus used to broadcast
// engine results to subscribers. Delivery is fire-and-forget: no
// acknowledgment, no retry, and events with no listener are dropped.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of event on the bus.
type EventType string

const (
	// NAVComputed is emitted after every NAV series computation.
	NAVComputed EventType = "nav_computed"
	// PriceUpdated is emitted when fresh quotes have been merged into a watchlist.
	PriceUpdated EventType = "price_updated"
	// WatchlistChanged is emitted when a watchlist is created, renamed or deleted.
	WatchlistChanged EventType = "watchlist_changed"
	// TickerAdded is emitted when a symbol is added to a watchlist.
	TickerAdded EventType = "ticker_added"
	// TickerRemoved is emitted when a symbol is removed from a watchlist.
	TickerRemoved EventType = "ticker_removed"
	// BackupCompleted is emitted after a successful data-dir backup upload.
	BackupCompleted EventType = "backup_completed"
	// SystemStatusChanged is emitted when the system status monitor
	// observes a state transition.
	SystemStatusChanged EventType = "system_status_changed"
)

// Event is a single broadcast message.
type Event struct {
	Type      EventType              `json:"type"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler receives events. Handlers run synchronously on the emitter's
// goroutine and must not block.
type Handler func(event *Event)

// Bus is a named-event broadcast hub. Any number of subscribers may
// attach per event type; there is no backpressure or queuing.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]Handler
	allHandlers []Handler
	log         zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type. Used by the
// streaming endpoints that forward all events to connected clients.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Emit broadcasts an event with loosely-typed data.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Module:    module,
		Data:      data,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	typed := b.handlers[eventType]
	all := b.allHandlers
	b.mu.RUnlock()

	if len(typed) == 0 && len(all) == 0 {
		b.log.Debug().
			Str("event_type", string(eventType)).
			Str("module", module).
			Msg("No subscribers, event dropped")
		return
	}

	for _, h := range typed {
		h(event)
	}
	for _, h := range all {
		h(event)
	}
}

// EmitTyped broadcasts an event whose payload implements EventData.
// The payload is flattened into the event's data map via its Fields method.
func (b *Bus) EmitTyped(eventType EventType, module string, data EventData) {
	if data.EventType() != eventType {
		b.log.Warn().
			Str("declared", string(data.EventType())).
			Str("emitted", string(eventType)).
			Msg("Event data type mismatch")
	}
	b.Emit(eventType, module, data.Fields())
}
