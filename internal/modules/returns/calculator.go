// Package returns turns resolved price slices into percentage returns and
// aggregates them across a portfolio.
package returns

import (
	"time"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/modules/timeframe"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Calculator computes ticker and portfolio returns. Stateless; safe to
// call from any context.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a return calculator.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("service", "returns").Logger(),
	}
}

// TickerReturn computes the percentage return for one resolved slice.
//
// The reference price is the position's buy price for MAX and the slice
// start price for every other timeframe: MAX reflects the user's actual
// cost basis, other timeframes reflect a pure performance window
// independent of when the user bought.
//
// A present CurrentPrice on the ticker overrides the slice end price as
// the current value; the buy price is never used as a stand-in current
// price. Returns ok=false when the slice cannot produce a return.
func (c *Calculator) TickerReturn(t *domain.TickerPosition, slice domain.ReturnSlice, tf domain.Timeframe) (float64, bool) {
	if slice.Start == nil || slice.End == nil {
		return 0, false
	}

	reference := slice.Start.Price
	if tf == domain.TimeframeMax {
		reference = t.BuyPrice
	}
	if reference <= 0 {
		return 0, false
	}

	current := slice.End.Price
	if t.CurrentPrice != nil {
		current = *t.CurrentPrice
	}
	if current <= 0 {
		return 0, false
	}

	return (current - reference) / reference * 100, true
}

// PortfolioReturn computes the arithmetic mean return across a portfolio
// for a timeframe. Tickers lacking history, a positive buy price or a
// valid buy date are excluded, as are tickers whose own computation
// fails. Returns nil when zero tickers are valid: "no data" is distinct
// from "0% return".
func (c *Calculator) PortfolioReturn(items []domain.TickerPosition, tf domain.Timeframe, now time.Time) *float64 {
	var values []float64

	for i := range items {
		t := &items[i]
		if !t.HasHistory() || t.BuyPrice <= 0 || t.BuyDate.IsZero() {
			c.log.Debug().
				Str("symbol", t.Symbol).
				Msg("Ticker excluded from portfolio return: insufficient data")
			continue
		}

		buyPrice := t.BuyPrice
		slice := timeframe.Resolve(t.HistoricalData, tf, t.BuyDate, &buyPrice, now)
		value, ok := c.TickerReturn(t, slice, tf)
		if !ok {
			c.log.Debug().
				Str("symbol", t.Symbol).
				Str("timeframe", string(tf)).
				Msg("Ticker excluded from portfolio return: unusable slice")
			continue
		}

		values = append(values, value)
	}

	if len(values) == 0 {
		return nil
	}

	mean := stat.Mean(values, nil)
	return &mean
}
