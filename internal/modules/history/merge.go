// Package history provides pure set operations over price histories.
package history

import (
	"sort"
	"time"

	"github.com/avramidis/tickernav/internal/domain"
)

// Merge combines two price-point sequences into one deduplicated,
// chronologically ordered sequence. Points are keyed by calendar day;
// incoming strictly wins on key collision. Merge is a pure set
// operation and therefore idempotent: merge(merge(a,b), b) == merge(a,b).
func Merge(existing, incoming []domain.PricePoint) []domain.PricePoint {
	byDay := make(map[string]domain.PricePoint, len(existing)+len(incoming))

	for _, p := range existing {
		byDay[p.DayKey()] = p
	}
	for _, p := range incoming {
		byDay[p.DayKey()] = p
	}

	merged := make([]domain.PricePoint, 0, len(byDay))
	for _, p := range byDay {
		merged = append(merged, p)
	}

	sort.Slice(merged, func(a, b int) bool {
		return merged[a].Timestamp.Before(merged[b].Timestamp)
	})

	return merged
}

// FilterFromBuyDate discards points from calendar days before the buy
// date. Applied once per refresh cycle by the caller, not inside Merge,
// so that Merge stays a pure set operation. Comparison is day-granular:
// a point on the buy day itself survives regardless of time of day.
func FilterFromBuyDate(points []domain.PricePoint, buyDate time.Time) []domain.PricePoint {
	if buyDate.IsZero() {
		return points
	}

	cutoff := buyDate.Format(domain.DayKeyFormat)
	kept := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p.DayKey() >= cutoff {
			kept = append(kept, p)
		}
	}
	return kept
}
