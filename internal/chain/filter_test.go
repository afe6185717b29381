package chain

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

func TestNewStrikeFilter(t *testing.T) {
	f, err := NewStrikeFilter("   ")
	require.NoError(t, err)
	assert.Nil(t, f)
	keep, err := f.Keep(data.OptionQuote{Strike: 1}, 100, 1)
	require.NoError(t, err)
	assert.True(t, keep, "nil filter keeps everything")

	for _, expr := range []string{"strike >", "strike * 2", "gamma > 1", "abs(1, 2) > 0"} {
		_, err := NewStrikeFilter(expr)
		assert.ErrorIs(t, err, ErrInvalidFilter, expr)
	}
}

func TestStrikeFilterKeep(t *testing.T) {
	call := data.OptionQuote{Kind: pricing.Call, Strike: 110}
	put := data.OptionQuote{Kind: pricing.Put, Strike: 90}

	tests := []struct {
		expr      string
		call, put bool
	}{
		{"abs(moneyness) <= 0.15", true, true},
		{"abs(moneyness) < 0.05", false, false},
		{"call", true, false},
		{"put && strike < spot", false, true},
		{"days >= 30 && strike >= 100", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := NewStrikeFilter(tt.expr)
			require.NoError(t, err)

			got, err := f.Keep(call, 100, 30)
			require.NoError(t, err)
			assert.Equal(t, tt.call, got, "call")

			got, err = f.Keep(put, 100, 30)
			require.NoError(t, err)
			assert.Equal(t, tt.put, got, "put")
		})
	}
}

func TestRunAppliesStrikeFilter(t *testing.T) {
	cfg := testConfig(data.PriceMid)
	cfg.Fridays = 2
	cfg.StrikeFilter = "abs(moneyness) <= 0.05"

	var results []ExpiryResult
	e := &Enricher{
		Provider: data.NewSyntheticDataProvider(3),
		Rates:    data.StaticRate(data.SyntheticRate),
		Config:   cfg,
		Now:      func() time.Time { return time.Now().UTC() },
		OnExpiry: func(r ExpiryResult) error {
			results = append(results, r)
			return nil
		},
	}
	sum, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, res := range results {
		for _, r := range append(res.Calls, res.Puts...) {
			assert.LessOrEqual(t, math.Abs(r.Strike/sum.Spot-1), 0.05, r.Ticker)
		}
	}

	e.Config.StrikeFilter = "strike +"
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
