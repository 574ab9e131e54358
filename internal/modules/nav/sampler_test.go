package nav

import (
	"testing"
	"time"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func tickerWithPrices(symbol string, buyPrice float64, prices ...float64) domain.TickerPosition {
	history := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		history[i] = domain.PricePoint{Timestamp: day(i), Price: p}
	}
	return domain.TickerPosition{
		Symbol:         symbol,
		BuyPrice:       buyPrice,
		BuyDate:        day(0),
		HistoricalData: history,
	}
}

// TestSamplingInterval tests the documented stride thresholds.
func TestSamplingInterval(t *testing.T) {
	assert.Equal(t, 20, SamplingInterval(150))
	assert.Equal(t, 20, SamplingInterval(101))
	assert.Equal(t, 5, SamplingInterval(100))
	assert.Equal(t, 5, SamplingInterval(50))
	assert.Equal(t, 5, SamplingInterval(21))
	assert.Equal(t, 1, SamplingInterval(20))
	assert.Equal(t, 1, SamplingInterval(10))
}

// TestSingleTickerSeriesStartsAtZero tests the fast path: one point,
// normalized to 0%.
func TestSingleTickerSeriesStartsAtZero(t *testing.T) {
	s := NewSampler(zerolog.Nop())

	series, valid := s.ComputeSeries([]domain.TickerPosition{
		tickerWithPrices("AAPL", 100, 100, 105, 120),
	})

	assert.Equal(t, 1, valid)
	require.Len(t, series, 1)
	assert.Equal(t, 0.0, series[0].ReturnPercent)
	assert.Equal(t, 120.0, series[0].ETFPrice)
	assert.Equal(t, day(2), series[0].Timestamp)
}

// TestComputeSeriesEmpty tests that no valid tickers yields no series.
func TestComputeSeriesEmpty(t *testing.T) {
	s := NewSampler(zerolog.Nop())

	series, valid := s.ComputeSeries(nil)
	assert.Nil(t, series)
	assert.Zero(t, valid)

	// A ticker without a positive buy price is discarded.
	series, valid = s.ComputeSeries([]domain.TickerPosition{
		tickerWithPrices("AAPL", 0, 100, 105),
	})
	assert.Nil(t, series)
	assert.Zero(t, valid)
}

// TestMultiTickerSeriesNormalized tests aggregation across tickers and
// first-point normalization.
func TestMultiTickerSeriesNormalized(t *testing.T) {
	s := NewSampler(zerolog.Nop())

	a := tickerWithPrices("AAA", 100, 100, 110, 120) // 0%, +10%, +20%
	b := tickerWithPrices("BBB", 200, 200, 240, 300) // 0%, +20%, +50%

	series, valid := s.ComputeSeries([]domain.TickerPosition{a, b})

	assert.Equal(t, 2, valid)
	require.Len(t, series, 3)

	// First point normalized to 0.
	assert.InDelta(t, 0.0, series[0].ReturnPercent, 1e-9)
	// Second point: mean(+10, +20) = +15.
	assert.InDelta(t, 15.0, series[1].ReturnPercent, 1e-9)
	// Third point: mean(+20, +50) = +35.
	assert.InDelta(t, 35.0, series[2].ReturnPercent, 1e-9)

	// ETF price is the unweighted mean price.
	assert.InDelta(t, 150.0, series[0].ETFPrice, 1e-9)
	assert.InDelta(t, 210.0, series[2].ETFPrice, 1e-9)

	// Ascending timestamps.
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Timestamp.Before(series[i].Timestamp))
	}
}

// TestMultiTickerSeriesSkipsNonMatching tests that a ticker only
// contributes at timestamps where it has an exact price.
func TestMultiTickerSeriesSkipsNonMatching(t *testing.T) {
	s := NewSampler(zerolog.Nop())

	a := tickerWithPrices("AAA", 100, 100, 110, 120)
	// b has no point on day 1.
	b := domain.TickerPosition{
		Symbol:   "BBB",
		BuyPrice: 200,
		BuyDate:  day(0),
		HistoricalData: []domain.PricePoint{
			{Timestamp: day(0), Price: 200},
			{Timestamp: day(2), Price: 300},
		},
	}

	series, _ := s.ComputeSeries([]domain.TickerPosition{a, b})

	require.Len(t, series, 3)
	// Day 1: only AAA matches, so the raw value is +10% (then -0 base).
	assert.InDelta(t, 10.0, series[1].ReturnPercent, 1e-9)
	assert.InDelta(t, 110.0, series[1].ETFPrice, 1e-9)
}

// TestComputeSeriesIsPure tests restartability: identical inputs yield
// identical output.
func TestComputeSeriesIsPure(t *testing.T) {
	s := NewSampler(zerolog.Nop())
	tickers := []domain.TickerPosition{
		tickerWithPrices("AAA", 100, 100, 110, 120),
		tickerWithPrices("BBB", 200, 200, 240, 300),
	}

	first, _ := s.ComputeSeries(tickers)
	second, _ := s.ComputeSeries(tickers)

	assert.Equal(t, first, second)
}

// TestDownsamplingAlwaysKeepsEarliestPoint tests that long histories are
// strided but index 0 always participates.
func TestDownsamplingAlwaysKeepsEarliestPoint(t *testing.T) {
	s := NewSampler(zerolog.Nop())

	prices := make([]float64, 150)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	a := tickerWithPrices("AAA", 100, prices...)
	b := tickerWithPrices("BBB", 100, prices...)

	series, _ := s.ComputeSeries([]domain.TickerPosition{a, b})

	// Stride 20 over 150 points: indices 0, 20, ..., 140.
	require.Len(t, series, 8)
	assert.Equal(t, day(0), series[0].Timestamp)
	assert.InDelta(t, 0.0, series[0].ReturnPercent, 1e-9)
}

// TestSnapshot tests snapshot summarization of a series.
func TestSnapshot(t *testing.T) {
	series := []domain.NAVPoint{
		{Timestamp: day(0), ReturnPercent: 0},
		{Timestamp: day(1), ReturnPercent: 12.5},
	}
	at := day(2)

	snap := Snapshot(series, 2, 3, domain.NAVSourceAligned, at)

	assert.Equal(t, 12.5, snap.ReturnPercent)
	assert.Equal(t, 2, snap.ValidTickers)
	assert.Equal(t, 3, snap.TotalTickers)
	assert.Equal(t, domain.NAVSourceAligned, snap.Source)
	assert.Equal(t, at, snap.Timestamp)

	empty := Snapshot(nil, 0, 3, domain.NAVSourceManual, at)
	assert.Zero(t, empty.ReturnPercent)
}

// TestSMAOverlay tests the smoothing overlay length contract.
func TestSMAOverlay(t *testing.T) {
	series := []domain.NAVPoint{
		{ReturnPercent: 0}, {ReturnPercent: 10}, {ReturnPercent: 20}, {ReturnPercent: 30},
	}

	sma := SMAOverlay(series, 2)
	require.Len(t, sma, 4)
	assert.InDelta(t, 5.0, sma[1], 1e-9)
	assert.InDelta(t, 15.0, sma[2], 1e-9)

	assert.Nil(t, SMAOverlay(series, 10))
	assert.Nil(t, SMAOverlay(series, 1))
}
