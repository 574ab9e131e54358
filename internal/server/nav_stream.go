package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/avramidis/tickernav/internal/events"
)

// NAVStreamHandler pushes NAV computation results to clients over a
// websocket. Every NAVComputed event is forwarded as one JSON message;
// clients filter by watchlist ID on their side.
type NAVStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// navMessage is the wire format of one pushed update.
type navMessage struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewNAVStreamHandler creates a NAV stream handler.
func NewNAVStreamHandler(bus *events.Bus, log zerolog.Logger) *NAVStreamHandler {
	return &NAVStreamHandler{
		bus: bus,
		log: log.With().Str("component", "nav_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/nav/stream websocket upgrades.
func (h *NAVStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-host dashboard, CORS handled upstream
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	h.log.Info().Msg("Client connected to NAV stream")

	ctx := r.Context()
	updates := make(chan *events.Event, 32)

	h.bus.Subscribe(events.NAVComputed, func(event *events.Event) {
		select {
		case updates <- event:
		default:
			h.log.Warn().Msg("NAV stream channel full, dropping update")
		}
	})

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice close frames.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			h.log.Info().Msg("Client disconnected from NAV stream")
			return

		case event := <-updates:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, navMessage{
				Type:      string(event.Type),
				Timestamp: event.Timestamp,
				Data:      event.Data,
			})
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("NAV stream write failed, closing")
				return
			}
		}
	}
}
