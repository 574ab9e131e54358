// Package nav builds portfolio-level return series ("NAV") across the
// tickers of a watchlist.
package nav

import (
	"sort"
	"time"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Sampler aggregates per-ticker histories into a NAV series. Pure: two
// calls with identical inputs yield identical output.
type Sampler struct {
	log zerolog.Logger
}

// NewSampler creates a NAV sampler.
func NewSampler(log zerolog.Logger) *Sampler {
	return &Sampler{
		log: log.With().Str("service", "nav_sampler").Logger(),
	}
}

// SamplingInterval picks the downsampling stride from the longest history
// seen on any single ticker. Bounds aggregation cost on long histories
// while preserving shape.
func SamplingInterval(maxPoints int) int {
	switch {
	case maxPoints > 100:
		return 20
	case maxPoints > 20:
		return 5
	default:
		return 1
	}
}

// ComputeSeries builds the full return series for a set of tickers,
// normalized so the first reported value is always 0%: the series
// describes change since acquisition, not absolute level. The second
// return value is the number of tickers that participated.
func (s *Sampler) ComputeSeries(tickers []domain.TickerPosition) ([]domain.NAVPoint, int) {
	valid := make([]*domain.TickerPosition, 0, len(tickers))
	for i := range tickers {
		t := &tickers[i]
		if !t.HasHistory() || t.BuyPrice <= 0 {
			s.log.Debug().
				Str("symbol", t.Symbol).
				Msg("Ticker excluded from NAV series: insufficient data")
			continue
		}
		valid = append(valid, t)
	}

	if len(valid) == 0 {
		return nil, 0
	}

	if len(valid) == 1 {
		return singleTickerSeries(valid[0]), 1
	}

	return s.multiTickerSeries(valid), len(valid)
}

// singleTickerSeries is the fast path: one point, computed oldest vs
// newest, then normalized to 0%.
func singleTickerSeries(t *domain.TickerPosition) []domain.NAVPoint {
	oldest := t.HistoricalData[0]
	newest := t.HistoricalData[len(t.HistoricalData)-1]

	ret := 0.0
	if oldest.Price > 0 {
		ret = (newest.Price - oldest.Price) / oldest.Price * 100
	}
	// Normalize against the first (and only) reported value.
	ret -= ret

	return []domain.NAVPoint{{
		Timestamp:     newest.Timestamp,
		ReturnPercent: ret,
		ETFPrice:      newest.Price,
	}}
}

func (s *Sampler) multiTickerSeries(valid []*domain.TickerPosition) []domain.NAVPoint {
	maxPoints := 0
	for _, t := range valid {
		if len(t.HistoricalData) > maxPoints {
			maxPoints = len(t.HistoricalData)
		}
	}
	interval := SamplingInterval(maxPoints)

	// Per-ticker exact-timestamp price lookups, plus the union of sampled
	// timestamps. Index 0 is always sampled so every series starts at the
	// ticker's earliest (buy-date) point.
	type lookup struct {
		prices   map[int64]float64
		buyPrice float64
	}
	lookups := make([]lookup, len(valid))
	sampled := make(map[int64]time.Time)

	for i, t := range valid {
		prices := make(map[int64]float64, len(t.HistoricalData))
		for j, p := range t.HistoricalData {
			key := p.Timestamp.UnixNano()
			prices[key] = p.Price
			if j%interval == 0 {
				sampled[key] = p.Timestamp
			}
		}
		lookups[i] = lookup{prices: prices, buyPrice: t.BuyPrice}
	}

	keys := make([]int64, 0, len(sampled))
	for k := range sampled {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	series := make([]domain.NAVPoint, 0, len(keys))
	for _, key := range keys {
		var rets, prices []float64
		for _, l := range lookups {
			price, ok := l.prices[key]
			if !ok {
				continue
			}
			rets = append(rets, (price-l.buyPrice)/l.buyPrice*100)
			prices = append(prices, price)
		}
		if len(rets) == 0 {
			continue
		}
		series = append(series, domain.NAVPoint{
			Timestamp:     sampled[key],
			ReturnPercent: stat.Mean(rets, nil),
			ETFPrice:      stat.Mean(prices, nil),
		})
	}

	// Normalize the whole series so its first point is 0%.
	if len(series) > 0 {
		base := series[0].ReturnPercent
		for i := range series {
			series[i].ReturnPercent -= base
		}
	}

	return series
}

// Snapshot summarizes a computed series.
func Snapshot(series []domain.NAVPoint, validTickers, totalTickers int, source domain.NAVSource, at time.Time) domain.NAVSnapshot {
	snap := domain.NAVSnapshot{
		Timestamp:    at,
		ValidTickers: validTickers,
		TotalTickers: totalTickers,
		Source:       source,
	}
	if len(series) > 0 {
		snap.ReturnPercent = series[len(series)-1].ReturnPercent
	}
	return snap
}
