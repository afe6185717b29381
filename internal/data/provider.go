package data

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

type DateMatchType string

// Provider supplies market data for one underlying at a time.
type Provider interface {
	Secondary() Provider
	GetBars(ctx context.Context, underlying string, from, to time.Time) ([]Bar, error)
	GetSpotPrice(ctx context.Context, underlying string) (float64, error)
	GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]OptionQuote, error)
}

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next available date after target
	MatchLower   DateMatchType = "lower"   // last available date before target
	MatchNearest DateMatchType = "nearest" // closest available date (default)
)

// ErrNoData is returned when a provider has nothing for the request and no
// secondary to fall back to.
var ErrNoData = errors.New("no data")

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// PriceSource selects which observed price a contract is calibrated against.
type PriceSource string

const (
	PriceMid   PriceSource = "mid"   // bid/ask midpoint, falling back to last
	PriceLast  PriceSource = "last"  // last trade, falling back to last close
	PriceModel PriceSource = "model" // no market price, calibrate to the model price
)

// ParsePriceSource accepts mid, last or model (case-insensitive).
func ParsePriceSource(s string) (PriceSource, error) {
	switch PriceSource(strings.ToLower(strings.TrimSpace(s))) {
	case PriceMid:
		return PriceMid, nil
	case PriceLast:
		return PriceLast, nil
	case PriceModel:
		return PriceModel, nil
	}
	return "", errors.Errorf("unknown price source %q", s)
}

// OptionQuote is one listed contract of an option chain.
type OptionQuote struct {
	Ticker       string
	Underlying   string
	Kind         pricing.OptionKind
	Strike       float64
	Expiry       time.Time
	Bid          float64
	Ask          float64
	Last         float64
	LastClose    float64
	Volume       float64
	OpenInterest float64
	LastTrade    time.Time
}

// Mid is the bid/ask midpoint, or 0 without a two-sided quote.
func (q OptionQuote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 || q.Ask < q.Bid {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// MarketPrice returns the observed price for src. ok is false when the quote
// carries no usable price, and always for PriceModel.
func (q OptionQuote) MarketPrice(src PriceSource) (price float64, ok bool) {
	switch src {
	case PriceMid:
		if m := q.Mid(); m > 0 {
			return m, true
		}
		if q.Last > 0 {
			return q.Last, true
		}
	case PriceLast:
		if q.Last > 0 {
			return q.Last, true
		}
		if q.LastClose > 0 {
			return q.LastClose, true
		}
	}
	return 0, false
}

// Options configures New.
type Options struct {
	MassiveAPIKey string
	FinvizAPIKey  string
	FinvizBaseURL string // override for tests
	DataDir       string
	Seed          int64
	Secondary     Provider
}

// New builds the named provider: massive, finviz, local or synthetic.
func New(name string, opts Options) (Provider, error) {
	switch strings.ToLower(name) {
	case "massive":
		if opts.MassiveAPIKey == "" {
			return nil, errors.New("massive provider needs an api key")
		}
		return NewMassiveDataProvider(opts.MassiveAPIKey, opts.Secondary), nil
	case "finviz":
		if opts.FinvizAPIKey == "" {
			return nil, errors.New("finviz provider needs an api key")
		}
		return NewFinvizDataProvider(opts.FinvizAPIKey, opts.FinvizBaseURL, opts.DataDir, opts.Secondary), nil
	case "local":
		return NewLocalDataProvider(opts.DataDir, opts.Secondary), nil
	case "synthetic":
		return NewSyntheticDataProvider(opts.Seed), nil
	}
	return nil, errors.Errorf("unknown provider %q", name)
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// OptionSymbolFromParts formats an OCC-style symbol:
// O:<root><YYMMDD><C|P><strike*1000 padded to 8 digits>
func OptionSymbolFromParts(underlying string, expiry time.Time, kind pricing.OptionKind, strike float64) string {
	expDt := expiry.UTC().Format("060102")
	optType := "C"
	if kind == pricing.Put {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}

// MatchBarDate picks a date from dates relative to d according to mode.
// The zero time means nothing matched.
func MatchBarDate(d time.Time, dates []time.Time, mode DateMatchType) time.Time {
	var exact, lower, higher time.Time

	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
	default:
		mode = MatchNearest
	}

	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for _, dt := range sorted {
		switch {
		case dt.Equal(d):
			exact = dt
		case dt.Before(d):
			lower = dt // keeps the last one before d
		case higher.IsZero():
			higher = dt
		}
	}

	switch mode {
	case MatchExact:
		return exact
	case MatchLower:
		return lower
	case MatchHigher:
		return higher
	}

	if !exact.IsZero() {
		return exact
	}
	switch {
	case !lower.IsZero() && !higher.IsZero():
		if d.Sub(lower) <= higher.Sub(d) {
			return lower
		}
		return higher
	case !lower.IsZero():
		return lower
	default:
		return higher
	}
}

// Closest finds the value in a sorted slice nearest to target.
func Closest(sorted []float64, target float64) (float64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}

	i := sort.SearchFloat64s(sorted, target)
	if i == 0 {
		return sorted[0], true
	}
	if i == n {
		return sorted[n-1], true
	}

	before, after := sorted[i-1], sorted[i]
	if math.Abs(before-target) < math.Abs(after-target) {
		return before, true
	}
	return after, true
}

// lastClose is the close of the latest bar not after asOf.
func lastClose(bars []Bar, asOf time.Time) (float64, error) {
	dates := make([]time.Time, 0, len(bars))
	byDate := make(map[time.Time]float64, len(bars))
	for _, b := range bars {
		dates = append(dates, b.Date)
		byDate[b.Date] = b.Close
	}

	d := MatchBarDate(asOf, dates, MatchExact)
	if d.IsZero() {
		d = MatchBarDate(asOf, dates, MatchLower)
	}
	if d.IsZero() {
		return 0, ErrNoData
	}
	return byDate[d], nil
}
