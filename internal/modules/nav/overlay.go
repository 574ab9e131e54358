package nav

import (
	"github.com/avramidis/tickernav/internal/domain"
	talib "github.com/markcheno/go-talib"
)

// SMAOverlay computes a simple moving average over the series' return
// values, for display smoothing on long series. Returns nil when the
// series is shorter than the period; otherwise the result has the same
// length as the series, with the first period-1 values zero.
func SMAOverlay(series []domain.NAVPoint, period int) []float64 {
	if period <= 1 || len(series) < period {
		return nil
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.ReturnPercent
	}

	return talib.Sma(values, period)
}
