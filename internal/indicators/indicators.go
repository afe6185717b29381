// Package indicators computes price-series statistics: historical
// volatility for seeding the implied-volatility search, and the rolling
// mean / standard deviation behind Bollinger bands.
package indicators

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualises daily return volatility.
const TradingDaysPerYear = 252

// ErrNotEnoughData is returned when a series is shorter than required.
var ErrNotEnoughData = errors.New("not enough data")

// HistoricalVolatility is the annualised sample standard deviation of simple
// daily returns of closes (oldest first). At least minCloses values are
// required, and never fewer than three.
func HistoricalVolatility(closes []float64, minCloses int) (float64, error) {
	if minCloses < 3 {
		minCloses = 3
	}
	if len(closes) < minCloses {
		return 0, errors.Wrapf(ErrNotEnoughData, "need %d closes, got %d", minCloses, len(closes))
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev <= 0 || math.IsNaN(prev) || math.IsNaN(closes[i]) {
			return 0, errors.Errorf("invalid close %v at index %d", prev, i-1)
		}
		returns = append(returns, closes[i]/prev-1)
	}

	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear), nil
}

// SMA is the simple moving average over window. Entries before the first
// full window are NaN so the output lines up with values.
func SMA(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		return stat.Mean(w, nil)
	})
}

// RollingStdDev is the sample standard deviation over window, NaN-padded like SMA.
func RollingStdDev(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		return stat.StdDev(w, nil)
	})
}

// Bands holds a Bollinger band series aligned with its input.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// BollingerBands returns SMA(window) ± k·σ(window).
func BollingerBands(values []float64, window int, k float64) Bands {
	mid := SMA(values, window)
	sd := RollingStdDev(values, window)

	b := Bands{
		Middle: mid,
		Upper:  make([]float64, len(values)),
		Lower:  make([]float64, len(values)),
	}
	for i := range values {
		b.Upper[i] = mid[i] + k*sd[i]
		b.Lower[i] = mid[i] - k*sd[i]
	}
	return b
}

func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if window <= 0 || i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(values[i+1-window : i+1])
	}
	return out
}
