// Package timeframe resolves a timeframe tag and a price history into the
// concrete start/end price pair a return is measured between.
package timeframe

import (
	"time"

	"github.com/avramidis/tickernav/internal/domain"
)

// ClosestIndex performs a nearest-neighbor binary search over an
// ascending price sequence: it returns the index whose timestamp has the
// smallest absolute distance to the target. An exact match
// short-circuits; distance ties keep the first examined midpoint.
// Returns -1 for an empty sequence.
func ClosestIndex(points []domain.PricePoint, target time.Time) int {
	if len(points) == 0 {
		return -1
	}

	lo, hi := 0, len(points)-1
	best := -1
	var bestDist time.Duration

	for lo <= hi {
		mid := (lo + hi) / 2
		d := points[mid].Timestamp.Sub(target)
		if d == 0 {
			return mid
		}

		abs := d
		if abs < 0 {
			abs = -abs
		}
		if best == -1 || abs < bestDist {
			best = mid
			bestDist = abs
		}

		if d < 0 {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	return best
}

// Resolve determines the start/end price pair for a timeframe.
//
// The end point is always the most recent point in history. The start
// point's price is taken from the nearest data point to the computed
// start instant, but its reported timestamp is rewritten to the slice
// boundary itself. Empty history yields a slice with both points nil.
//
// buyPrice may be nil when the position has no usable cost basis; it only
// affects the MAX timeframe.
func Resolve(history []domain.PricePoint, tf domain.Timeframe, buyDate time.Time, buyPrice *float64, now time.Time) domain.ReturnSlice {
	if len(history) == 0 {
		return domain.ReturnSlice{}
	}

	end := history[len(history)-1]

	if tf == domain.TimeframeMax {
		return resolveMax(history, buyDate, buyPrice, end)
	}

	start := startInstant(tf, buyDate, now)

	// A position cannot show a return for days before it was bought,
	// even inside a short window.
	if tf != domain.TimeframeYTD && !buyDate.IsZero() && buyDate.After(start) {
		start = buyDate
	}

	// YTD falls back to the earliest available point when history does
	// not reach back to the computed start.
	if tf == domain.TimeframeYTD && history[0].Timestamp.After(start) {
		start = history[0].Timestamp
	}

	idx := ClosestIndex(history, start)
	return domain.ReturnSlice{
		Start: &domain.PricePoint{Timestamp: start, Price: history[idx].Price},
		End:   &domain.PricePoint{Timestamp: end.Timestamp, Price: end.Price},
	}
}

// ResolveCustom resolves an explicit start/end window supplied by the
// caller, using the same closest-match lookup.
func ResolveCustom(history []domain.PricePoint, start, end time.Time) domain.ReturnSlice {
	if len(history) == 0 {
		return domain.ReturnSlice{}
	}

	startIdx := ClosestIndex(history, start)
	endIdx := ClosestIndex(history, end)

	return domain.ReturnSlice{
		Start: &domain.PricePoint{Timestamp: start, Price: history[startIdx].Price},
		End:   &domain.PricePoint{Timestamp: history[endIdx].Timestamp, Price: history[endIdx].Price},
	}
}

// resolveMax starts at the buy date. The supplied buy price wins when
// valid; otherwise the closest historical price to the buy date stands in.
func resolveMax(history []domain.PricePoint, buyDate time.Time, buyPrice *float64, end domain.PricePoint) domain.ReturnSlice {
	startPrice := 0.0
	if buyPrice != nil && *buyPrice > 0 {
		startPrice = *buyPrice
	} else {
		idx := ClosestIndex(history, buyDate)
		startPrice = history[idx].Price
	}

	return domain.ReturnSlice{
		Start: &domain.PricePoint{Timestamp: buyDate, Price: startPrice},
		End:   &domain.PricePoint{Timestamp: end.Timestamp, Price: end.Price},
	}
}

// startInstant computes the raw timeframe start before buy-date clamping.
func startInstant(tf domain.Timeframe, buyDate time.Time, now time.Time) time.Time {
	switch tf {
	case domain.TimeframeDay:
		// Previous calendar day at local midnight, not "24 hours ago".
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.AddDate(0, 0, -1)
	case domain.TimeframeWeek:
		// Wall-clock subtraction, not calendar-week-aligned.
		return now.Add(-7 * 24 * time.Hour)
	case domain.TimeframeMonth:
		// Fixed 30-day offset, not calendar month.
		return now.Add(-30 * 24 * time.Hour)
	case domain.TimeframeYTD:
		jan1 := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		if buyDate.After(jan1) {
			return buyDate
		}
		return jan1
	}
	// CUSTOM is handled by ResolveCustom; anything else degrades to the
	// full window from the buy date.
	return buyDate
}
