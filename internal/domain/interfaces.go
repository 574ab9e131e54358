package domain

import "time"

// QuoteProvider defines the market-data operations the engine consumes.
// A nil quote or empty history means "no update available", never an error.
type QuoteProvider interface {
	// FetchQuote returns the latest price for a symbol, or nil when the
	// provider has nothing for it.
	FetchQuote(symbol string) (*PricePoint, error)

	// FetchHistory returns raw daily price points for a symbol, oldest
	// first. An empty slice means no history is available.
	FetchHistory(symbol string) ([]PricePoint, error)
}

// WatchlistStore defines the persistence operations for keyed watchlist
// collections. The engine never calls these directly; the surrounding
// application layer loads watchlists, calls into the engine with in-memory
// data, and writes results back.
type WatchlistStore interface {
	Load() (map[string]*Watchlist, error)
	Save(watchlists map[string]*Watchlist) error
}

// Clock abstracts time.Now so schedulers can be tested with a
// controllable clock instead of racing real timers.
type Clock interface {
	Now() time.Time
}

// Timer is a cancellable deferred callback handle.
type Timer interface {
	// Stop cancels the timer. Reports whether it was still pending.
	Stop() bool
}

// TimerFactory creates deferred callbacks. The production implementation
// wraps time.AfterFunc; tests substitute a manual implementation.
type TimerFactory interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// SystemTimerFactory is the production TimerFactory backed by time.AfterFunc.
type SystemTimerFactory struct{}

// AfterFunc schedules f to run after d on its own goroutine.
func (SystemTimerFactory) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
