package chain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

func strikeRows() []Row {
	deltas := map[float64]float64{90: 0.85, 95: 0.7, 100: 0.52, 105: 0.31, 110: 0.18}
	var rows []Row
	for _, k := range []float64{110, 90, 100, 105, 95} {
		rows = append(rows, Row{
			OptionQuote: data.OptionQuote{Kind: pricing.Call, Strike: k},
			Status:      pricing.StatusConverged,
			Delta:       deltas[k],
		})
	}
	return rows
}

func TestSelectStrike(t *testing.T) {
	rows := strikeRows()

	tests := []struct {
		expr string
		spot float64
		want float64
	}{
		{"ATM", 101.2, 100},
		{" atm ", 103.1, 105},
		{"ATM:+5", 101, 105},
		{"ATM:-10%", 100, 90},
		{"ATM:+50%", 100, 110},
		{"DELTA:0.3", 100, 105},
		{"delta:-0.2", 100, 110},
		{"DELTA:0.75", 100, 95},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := SelectStrike(tt.expr, rows, tt.spot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectStrikeErrors(t *testing.T) {
	rows := strikeRows()

	for _, expr := range []string{"OTM", "ATM:abc", "ATM:x%", "DELTA:two", "DELTA:1.5", "ATM:-100%"} {
		_, err := SelectStrike(expr, rows, 100)
		assert.ErrorIs(t, err, ErrInvalidStrikeExpression, expr)
	}

	_, err := SelectStrike("ATM", nil, 100)
	assert.ErrorIs(t, err, data.ErrNoData)

	_, err = SelectStrike("ATM:+5", rows, 0)
	assert.ErrorIs(t, err, ErrInvalidStrikeExpression)

	unvalued := []Row{
		{OptionQuote: data.OptionQuote{Strike: 100}, Error: "no mid price"},
		{OptionQuote: data.OptionQuote{Strike: 105}, Status: pricing.StatusConverged, Delta: math.NaN()},
	}
	_, err = SelectStrike("DELTA:0.5", unvalued, 100)
	assert.ErrorIs(t, err, data.ErrNoData)
}
