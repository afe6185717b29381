package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

var (
	underlying = "DJT"
	expiryDate = time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
)

func TestOptionSymbolFromParts(t *testing.T) {
	tests := []struct {
		kind     pricing.OptionKind
		strike   float64
		expected string
	}{
		{pricing.Call, 35, "O:DJT250117C00035000"},
		{pricing.Put, 32.5, "O:DJT250117P00032500"},
		{pricing.Call, 1234.125, "O:DJT250117C01234125"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, OptionSymbolFromParts("djt", expiryDate, tt.kind, tt.strike))
	}
}

func TestMatchBarDate(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC) }
	dates := []time.Time{d(10), d(6), d(8)}

	tests := []struct {
		name     string
		target   time.Time
		mode     DateMatchType
		expected time.Time
	}{
		{"exact hit", d(8), MatchExact, d(8)},
		{"exact miss", d(7), MatchExact, time.Time{}},
		{"lower", d(9), MatchLower, d(8)},
		{"higher", d(9), MatchHigher, d(10)},
		{"nearest tie prefers lower", d(7), MatchNearest, d(6)},
		{"nearest after range", d(20), MatchNearest, d(10)},
		{"unknown mode is nearest", d(8), DateMatchType("bogus"), d(8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchBarDate(tt.target, dates, tt.mode))
		})
	}

	// input order is left alone
	assert.Equal(t, d(10), dates[0])
}

func TestClosest(t *testing.T) {
	strikes := []float64{30, 32.5, 35, 37.5, 40}

	got, ok := Closest(strikes, 34.2)
	require.True(t, ok)
	assert.Equal(t, 35.0, got)

	got, _ = Closest(strikes, 10)
	assert.Equal(t, 30.0, got)

	got, _ = Closest(strikes, 99)
	assert.Equal(t, 40.0, got)

	_, ok = Closest(nil, 1)
	assert.False(t, ok)
}

func TestOptionQuoteMarketPrice(t *testing.T) {
	tests := []struct {
		name     string
		quote    OptionQuote
		src      PriceSource
		expected float64
		ok       bool
	}{
		{"mid", OptionQuote{Bid: 1.0, Ask: 1.2, Last: 1.5}, PriceMid, 1.1, true},
		{"mid falls back to last", OptionQuote{Bid: 0, Ask: 1.2, Last: 1.5}, PriceMid, 1.5, true},
		{"crossed quote", OptionQuote{Bid: 1.3, Ask: 1.2}, PriceMid, 0, false},
		{"last", OptionQuote{Bid: 1.0, Ask: 1.2, Last: 1.5}, PriceLast, 1.5, true},
		{"last falls back to close", OptionQuote{LastClose: 0.9}, PriceLast, 0.9, true},
		{"model never has a market price", OptionQuote{Bid: 1, Ask: 1.2, Last: 1}, PriceModel, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.quote.MarketPrice(tt.src)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}
}

func TestParsePriceSource(t *testing.T) {
	src, err := ParsePriceSource(" MID ")
	require.NoError(t, err)
	assert.Equal(t, PriceMid, src)

	_, err = ParsePriceSource("vwap")
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, err := New("massive", Options{})
	assert.Error(t, err, "massive without key")

	_, err = New("finviz", Options{})
	assert.Error(t, err, "finviz without key")

	_, err = New("yahoo", Options{})
	assert.Error(t, err)

	p, err := New("local", Options{DataDir: "testdata", Secondary: NewSyntheticDataProvider(1)})
	require.NoError(t, err)
	require.NotNil(t, p.Secondary())

	p, err = New("synthetic", Options{Seed: 7})
	require.NoError(t, err)
	assert.Nil(t, p.Secondary())
}
