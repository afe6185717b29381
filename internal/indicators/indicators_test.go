package indicators

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoricalVolatility(t *testing.T) {
	// alternating +1% / -1% returns
	closes := []float64{100}
	for i := 0; i < 30; i++ {
		last := closes[len(closes)-1]
		if i%2 == 0 {
			closes = append(closes, last*1.01)
		} else {
			closes = append(closes, last*0.99)
		}
	}

	hv, err := HistoricalVolatility(closes, 30)
	require.NoError(t, err)

	// 30 returns of ±0.01 with mean 0: sample sd = 0.01·sqrt(30/29)
	expected := 0.01 * math.Sqrt(30.0/29.0) * math.Sqrt(252)
	assert.InDelta(t, expected, hv, 1e-12)
}

func TestHistoricalVolatilityConstantSeries(t *testing.T) {
	hv, err := HistoricalVolatility([]float64{50, 50, 50, 50}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, hv)
}

func TestHistoricalVolatilityErrors(t *testing.T) {
	_, err := HistoricalVolatility([]float64{1, 2, 3}, 30)
	require.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = HistoricalVolatility([]float64{100, 0, 3, 4}, 3)
	require.Error(t, err)
}

func TestSMAAndBollinger(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	sma := SMA(values, 3)
	require.Len(t, sma, 5)
	assert.True(t, math.IsNaN(sma[0]))
	assert.True(t, math.IsNaN(sma[1]))
	assert.InDelta(t, 2.0, sma[2], 1e-12)
	assert.InDelta(t, 3.0, sma[3], 1e-12)
	assert.InDelta(t, 4.0, sma[4], 1e-12)

	b := BollingerBands(values, 3, 2)
	// sample sd of any three consecutive integers is 1
	assert.InDelta(t, 6.0, b.Upper[4], 1e-12)
	assert.InDelta(t, 2.0, b.Lower[4], 1e-12)
	assert.True(t, math.IsNaN(b.Upper[1]))
}
