// Package scheduler drives periodic, boundary-aligned NAV recomputation.
package scheduler

import (
	"sync"
	"time"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/events"
	"github.com/avramidis/tickernav/internal/modules/nav"
	"github.com/rs/zerolog"
)

// boundaryInterval is the wall-clock alignment grid: computations fire at
// instants where minute ≡ 0 mod 5 and second == 0, independent of when
// the scheduler started.
const boundaryInterval = 5 * time.Minute

// SeriesComputer computes a NAV series for a set of tickers.
type SeriesComputer interface {
	ComputeSeries(tickers []domain.TickerPosition) ([]domain.NAVPoint, int)
}

// EventEmitter is the subset of the event bus the scheduler needs.
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// pendingUpdate is the latest submission for a watchlist since the last
// drain. Later submissions for the same key overwrite earlier ones, so
// each watchlist gets at most one computation per boundary.
type pendingUpdate struct {
	watchlistID string
	items       []domain.TickerPosition
	timeframe   domain.Timeframe
}

// RealtimeNAV periodically recomputes watchlist NAV series and broadcasts
// them on the event bus. One instance exists per process; it is
// constructed once and passed by reference to callers.
//
// Lifecycle: STOPPED -> RUNNING via Start, back via Stop. Start while
// running and Queue while stopped are logged no-ops. The pending map is
// retained, not cleared, across stop/start boundaries: updates queued
// while stopped remain queued.
type RealtimeNAV struct {
	mu      sync.Mutex
	running bool
	timer   domain.Timer
	pending map[string]pendingUpdate

	sampler SeriesComputer
	bus     EventEmitter
	clock   domain.Clock
	timers  domain.TimerFactory
	log     zerolog.Logger
}

// NewRealtimeNAV creates the scheduler. Production callers pass
// domain.SystemClock and domain.SystemTimerFactory; tests substitute
// controllable implementations instead of racing real timers.
func NewRealtimeNAV(sampler SeriesComputer, bus EventEmitter, clock domain.Clock, timers domain.TimerFactory, log zerolog.Logger) *RealtimeNAV {
	return &RealtimeNAV{
		pending: make(map[string]pendingUpdate),
		sampler: sampler,
		bus:     bus,
		clock:   clock,
		timers:  timers,
		log:     log.With().Str("component", "realtime_nav").Logger(),
	}
}

// Start enters the RUNNING state and schedules the next boundary tick.
// Idempotent: starting while running is a no-op with a warning.
func (s *RealtimeNAV) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn().Msg("Realtime NAV scheduler already running, ignoring start")
		return
	}

	s.running = true
	s.scheduleLocked()
	s.log.Info().Msg("Realtime NAV scheduler started")
}

// Stop cancels any outstanding timer and halts scheduling. In-flight
// computations already dispatched in the current drain are not cancelled;
// only future scheduling stops. The pending map is retained.
func (s *RealtimeNAV) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.log.Info().Msg("Realtime NAV scheduler stopped")
}

// Running reports the scheduler state.
func (s *RealtimeNAV) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Queue submits a watchlist for recomputation at the next boundary.
// Overwrite-on-submit: only the latest payload per watchlist survives a
// drain. A no-op with a warning when the scheduler is stopped.
func (s *RealtimeNAV) Queue(watchlistID string, items []domain.TickerPosition, tf domain.Timeframe) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.log.Warn().
			Str("watchlist_id", watchlistID).
			Msg("Queue called while stopped, ignoring")
		return
	}

	s.pending[watchlistID] = pendingUpdate{
		watchlistID: watchlistID,
		items:       items,
		timeframe:   tf,
	}
}

// TriggerImmediate bypasses boundary alignment and computes+emits now.
// Used for single-item, user-initiated refreshes (source manual) and
// price-tick recomputations (source realtime).
func (s *RealtimeNAV) TriggerImmediate(watchlistID string, items []domain.TickerPosition, tf domain.Timeframe, source domain.NAVSource) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		s.log.Warn().
			Str("watchlist_id", watchlistID).
			Msg("TriggerImmediate called while stopped, ignoring")
		return
	}

	s.compute(pendingUpdate{watchlistID: watchlistID, items: items, timeframe: tf}, source)
}

// PendingCount reports how many watchlists await the next boundary.
func (s *RealtimeNAV) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// scheduleLocked arms a single deferred callback for the remaining time
// until the next boundary. Caller holds s.mu.
func (s *RealtimeNAV) scheduleLocked() {
	now := s.clock.Now()
	next := NextBoundary(now)
	s.timer = s.timers.AfterFunc(next.Sub(now), s.onBoundary)

	s.log.Debug().
		Time("next_boundary", next).
		Msg("Scheduled next NAV boundary")
}

// onBoundary drains the pending map, recomputes and emits NAV for each
// drained watchlist, then reschedules for the following boundary.
func (s *RealtimeNAV) onBoundary() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	drained := s.pending
	s.pending = make(map[string]pendingUpdate)
	s.scheduleLocked()
	s.mu.Unlock()

	for _, update := range drained {
		s.compute(update, domain.NAVSourceAligned)
	}
}

// compute runs one NAV computation and broadcasts the result. Delivery is
// fire-and-forget: no acknowledgment, no retry.
func (s *RealtimeNAV) compute(update pendingUpdate, source domain.NAVSource) {
	series, valid := s.sampler.ComputeSeries(update.items)
	snap := nav.Snapshot(series, valid, len(update.items), source, s.clock.Now())

	s.bus.EmitTyped(events.NAVComputed, "scheduler", &events.NAVComputedData{
		WatchlistID:   update.watchlistID,
		Source:        string(source),
		Series:        series,
		ReturnPercent: snap.ReturnPercent,
		ValidTickers:  snap.ValidTickers,
		TotalTickers:  snap.TotalTickers,
	})

	s.log.Debug().
		Str("watchlist_id", update.watchlistID).
		Str("source", string(source)).
		Int("points", len(series)).
		Int("valid_tickers", valid).
		Msg("NAV computed")
}

// NextBoundary returns the next instant aligned to the 5-minute grid
// strictly after now.
func NextBoundary(now time.Time) time.Time {
	next := now.Truncate(time.Minute)
	rem := next.Minute() % 5
	return next.Add(time.Duration(5-rem) * time.Minute)
}
