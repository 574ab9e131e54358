// Package ticker provides the smart constructor for ticker positions.
// Raw records arrive with missing, mistyped or extra fields (imports,
// provider payloads, hand-edited files); normalization repairs them in
// place and never fails.
package ticker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/rs/zerolog"
)

// Warning records one field that had to be defaulted or repaired during
// normalization. The normalized value is always usable; warnings exist so
// callers can surface what was lost instead of relying on a single
// incomplete flag.
type Warning struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Normalizer builds structurally valid ticker positions from raw records.
// It is the only code path allowed to construct a TickerPosition from
// untrusted input.
type Normalizer struct {
	clock domain.Clock
	log   zerolog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(clock domain.Clock, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		clock: clock,
		log:   log.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize sanitizes a raw record into a canonical TickerPosition.
// It never returns an error: unrecoverable input yields a synthetic
// placeholder with symbol UNKNOWN and Incomplete set. The warning list
// names every field that was defaulted.
func (n *Normalizer) Normalize(raw map[string]interface{}) (domain.TickerPosition, []Warning) {
	now := n.clock.Now()

	if raw == nil {
		n.log.Warn().Msg("Raw record is not a well-formed record, returning placeholder")
		return domain.TickerPosition{
			Symbol:         "UNKNOWN",
			BuyPrice:       0,
			BuyDate:        now,
			HistoricalData: []domain.PricePoint{},
			AddedAt:        now,
			Type:           domain.TickerTypeSynthetic,
			Incomplete:     true,
		}, []Warning{{Field: "record", Reason: "not a well-formed record"}}
	}

	var warnings []Warning
	pos := domain.TickerPosition{
		HistoricalData: []domain.PricePoint{},
		Type:           domain.TickerTypeReal,
	}

	// Symbol
	if sym, ok := field(raw, "symbol").(string); ok && strings.TrimSpace(sym) != "" {
		pos.Symbol = strings.ToUpper(strings.TrimSpace(sym))
	} else {
		pos.Symbol = "UNKNOWN"
		pos.Incomplete = true
		warnings = append(warnings, Warning{Field: "symbol", Reason: "missing or not a string"})
	}

	// Type
	if t, ok := field(raw, "type").(string); ok && domain.TickerType(t) == domain.TickerTypeSynthetic {
		pos.Type = domain.TickerTypeSynthetic
	}

	// AddedAt: falls back to now silently, it only anchors other fallbacks.
	if t, ok := coerceTime(field(raw, "addedAt", "added_at")); ok {
		pos.AddedAt = t
	} else {
		pos.AddedAt = now
	}

	// BuyPrice
	if p, ok := coerceNumber(field(raw, "buyPrice", "buy_price")); ok && p >= 0 {
		pos.BuyPrice = p
	} else {
		pos.BuyPrice = 0
		pos.Incomplete = true
		warnings = append(warnings, Warning{Field: "buyPrice", Reason: "not a number, defaulted to 0"})
	}

	// BuyDate: fall back to addedAt, then now. The fallback also flags the
	// record incomplete; a position whose cost-basis date was invented is
	// not a complete record.
	if t, ok := coerceTime(field(raw, "buyDate", "buy_date")); ok {
		pos.BuyDate = t
	} else {
		pos.BuyDate = pos.AddedAt
		pos.Incomplete = true
		warnings = append(warnings, Warning{Field: "buyDate", Reason: "unparseable, fell back to addedAt"})
	}

	// CurrentPrice: preserved only when present and numeric. Absence is
	// meaningful ("not reported" vs zero), so there is no default.
	if v := field(raw, "currentPrice", "current_price"); v != nil {
		if p, ok := coerceNumber(v); ok {
			pos.CurrentPrice = &p
		} else {
			warnings = append(warnings, Warning{Field: "currentPrice", Reason: "not a number, omitted"})
		}
	}

	// Historical data
	pos.HistoricalData, warnings = n.normalizeHistory(field(raw, "historicalData", "historical_data"), &pos, warnings)

	if len(warnings) > 0 {
		n.log.Debug().
			Str("symbol", pos.Symbol).
			Int("warnings", len(warnings)).
			Msg("Normalized ticker with repairs")
	}

	return pos, warnings
}

// normalizeHistory coerces each raw history entry. Entries with an
// unusable price become zero-price points and flag the record incomplete;
// entries whose timestamp cannot be placed on the time axis are dropped.
func (n *Normalizer) normalizeHistory(raw interface{}, pos *domain.TickerPosition, warnings []Warning) ([]domain.PricePoint, []Warning) {
	points := []domain.PricePoint{}

	entries, ok := raw.([]interface{})
	if !ok {
		if raw != nil {
			pos.Incomplete = true
			warnings = append(warnings, Warning{Field: "historicalData", Reason: "not a list, treated as empty"})
		}
		return points, warnings
	}

	for i, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			pos.Incomplete = true
			warnings = append(warnings, Warning{Field: fmt.Sprintf("historicalData[%d]", i), Reason: "not a record, dropped"})
			continue
		}

		ts, ok := coerceTime(field(entry, "timestamp", "date"))
		if !ok {
			pos.Incomplete = true
			warnings = append(warnings, Warning{Field: fmt.Sprintf("historicalData[%d].timestamp", i), Reason: "unparseable, point dropped"})
			continue
		}

		price, ok := coerceNumber(field(entry, "price", "close"))
		if !ok || price < 0 {
			price = 0
			pos.Incomplete = true
			warnings = append(warnings, Warning{Field: fmt.Sprintf("historicalData[%d].price", i), Reason: "not a number, defaulted to 0"})
		}

		points = append(points, domain.PricePoint{Timestamp: ts, Price: price})
	}

	sort.Slice(points, func(a, b int) bool {
		return points[a].Timestamp.Before(points[b].Timestamp)
	})

	return points, warnings
}

// field returns the first present key from the raw record. Both camelCase
// and snake_case spellings occur in the wild.
func field(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v
		}
	}
	return nil
}

// coerceNumber converts the usual JSON/CSV shapes into a float64.
func coerceNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// timeFormats are tried in order when coercing string timestamps.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceTime converts instants arriving as time.Time, RFC3339-ish strings
// or unix epoch numbers (seconds or milliseconds).
func coerceTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case float64:
		return timeFromEpoch(int64(x))
	case int64:
		return timeFromEpoch(x)
	case int:
		return timeFromEpoch(int64(x))
	}
	return time.Time{}, false
}

func timeFromEpoch(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	// Heuristic: values past the year 33658 in seconds are milliseconds.
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
