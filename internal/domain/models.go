// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayKeyFormat is the calendar-day key used when merging price histories.
// Two points on the same calendar day are the same point; the finest merge
// granularity is one point per day.
const DayKeyFormat = "2006-01-02"

// PricePoint represents the price of an instrument at an instant.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// DayKey returns the calendar-day merge key for this point.
func (p PricePoint) DayKey() string {
	return p.Timestamp.Format(DayKeyFormat)
}

// TickerType distinguishes real positions from synthetic ones
// (placeholder entries created by the normalizer for unrecoverable input).
type TickerType string

const (
	TickerTypeReal      TickerType = "real"
	TickerTypeSynthetic TickerType = "synthetic"
)

// TickerPosition represents one tracked instrument with a cost basis and
// a price history. Instances are constructed by the ticker normalizer;
// no other code path fabricates one from raw input.
type TickerPosition struct {
	Symbol         string       `json:"symbol"`
	BuyPrice       float64      `json:"buy_price"`
	BuyDate        time.Time    `json:"buy_date"`
	HistoricalData []PricePoint `json:"historical_data"`
	CurrentPrice   *float64     `json:"current_price,omitempty"`
	AddedAt        time.Time    `json:"added_at"`
	Type           TickerType   `json:"type"`
	Incomplete     bool         `json:"incomplete"`
}

// HasHistory reports whether the position carries any historical data.
func (t *TickerPosition) HasHistory() bool {
	return len(t.HistoricalData) > 0
}

// Watchlist is a named, ordered collection of ticker positions.
// Owned by the persistence store; the engine borrows a reference for the
// duration of a calculation and never retains it.
type Watchlist struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Items     []TickerPosition `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
}

// FindItem returns the position for the given symbol, or nil.
func (w *Watchlist) FindItem(symbol string) *TickerPosition {
	for i := range w.Items {
		if w.Items[i].Symbol == symbol {
			return &w.Items[i]
		}
	}
	return nil
}

// Timeframe selects which historical window a return is measured over.
type Timeframe string

const (
	TimeframeDay    Timeframe = "day"
	TimeframeWeek   Timeframe = "week"
	TimeframeMonth  Timeframe = "month"
	TimeframeYTD    Timeframe = "ytd"
	TimeframeMax    Timeframe = "max"
	TimeframeCustom Timeframe = "custom"
)

// ParseTimeframe converts a string tag into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case TimeframeDay:
		return TimeframeDay, nil
	case TimeframeWeek:
		return TimeframeWeek, nil
	case TimeframeMonth:
		return TimeframeMonth, nil
	case TimeframeYTD:
		return TimeframeYTD, nil
	case TimeframeMax:
		return TimeframeMax, nil
	case TimeframeCustom:
		return TimeframeCustom, nil
	}
	return "", fmt.Errorf("unknown timeframe: %q", s)
}

// ReturnSlice is the pair of price points a return is computed between.
// Transient: computed per (ticker, timeframe) pair, never persisted.
// Either pointer may be nil when the history cannot produce a usable pair.
type ReturnSlice struct {
	Start *PricePoint `json:"start"`
	End   *PricePoint `json:"end"`
}

// Usable reports whether the slice can produce a return: both points
// present, with a non-zero start price.
func (s ReturnSlice) Usable() bool {
	return s.Start != nil && s.End != nil && s.Start.Price > 0
}

// NAVSource tags how a NAV computation was initiated.
type NAVSource string

const (
	// NAVSourceAligned marks computations fired at a 5-minute wall-clock boundary.
	NAVSourceAligned NAVSource = "aligned"
	// NAVSourceRealtime marks computations triggered by a price update.
	NAVSourceRealtime NAVSource = "realtime"
	// NAVSourceManual marks user-initiated refreshes.
	NAVSourceManual NAVSource = "manual"
)

// NAVPoint is one point of a portfolio-level return series, indexed so the
// first point of a series is always 0%.
type NAVPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	ReturnPercent float64   `json:"return_percent"`
	ETFPrice      float64   `json:"etf_price"`
}

// NAVSnapshot summarizes one portfolio-level NAV computation.
type NAVSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	ReturnPercent float64   `json:"return_percent"`
	ValidTickers  int       `json:"valid_tickers"`
	TotalTickers  int       `json:"total_tickers"`
	Source        NAVSource `json:"source"`
}
