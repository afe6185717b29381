// Package chart turns enriched chain files into candle and Bollinger band
// series for plotting.
package chart

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/indicators"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/report"
)

// Options controls candle bucketing and the bands.
type Options struct {
	Window int           // SMA / standard deviation window, default 20
	K      float64       // band width in standard deviations, default 2
	Bucket time.Duration // candle width; 0 groups identical trade stamps
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = 20
	}
	if o.K <= 0 {
		o.K = 2
	}
	return o
}

// Candle is one bucket of contract quotes with its band values.
type Candle struct {
	Time  time.Time
	Open  float64 // mean bid/ask midpoint
	High  float64 // highest bid or ask
	Low   float64 // lowest bid or ask
	Close float64 // mean last close
	Count int

	SMA    float64
	StdDev float64
	Upper  float64
	Lower  float64
}

// Load reads the enriched files of kind for each expiry. Missing files are
// skipped; finding none at all is an error.
func Load(dir, ticker string, kind pricing.OptionKind, expiries []time.Time) ([]chain.Row, error) {
	var rows []chain.Row
	found := 0
	for _, exp := range expiries {
		path := filepath.Join(dir, report.ChainFileName(ticker, kind, exp))
		if _, err := os.Stat(path); err != nil {
			logger.Debugf("chart: no file %s", path)
			continue
		}
		r, err := report.ReadChainCSV(path)
		if err != nil {
			return nil, err
		}
		found++
		rows = append(rows, r...)
	}
	if found == 0 {
		return nil, errors.Errorf("no enriched %s files for %s in %s", kind, strings.ToUpper(ticker), dir)
	}
	return rows, nil
}

// AtStrike keeps, for each expiry, only the rows at the strike expr selects
// (see chain.SelectStrike). Calls and puts are resolved separately.
func AtStrike(rows []chain.Row, expr string, spot float64) ([]chain.Row, error) {
	type group struct {
		expiry time.Time
		kind   pricing.OptionKind
	}
	var order []group
	byGroup := make(map[group][]chain.Row)
	for _, r := range rows {
		g := group{r.Expiry, r.Kind}
		if _, ok := byGroup[g]; !ok {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], r)
	}

	var out []chain.Row
	for _, g := range order {
		strike, err := chain.SelectStrike(expr, byGroup[g], spot)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", g.kind, g.expiry.Format("2006-01-02"))
		}
		for _, r := range byGroup[g] {
			if r.Strike == strike {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// Build groups rows into candles and adds the bands. Rows without a trade
// stamp, last close or ask are dropped, and so are candles before the first
// full window.
func Build(rows []chain.Row, opts Options) []Candle {
	opts = opts.withDefaults()

	candles := bucket(rows, opts.Bucket)
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	sma := indicators.SMA(closes, opts.Window)
	sd := indicators.RollingStdDev(closes, opts.Window)

	out := make([]Candle, 0, len(candles))
	for i, c := range candles {
		if math.IsNaN(sma[i]) || math.IsNaN(sd[i]) {
			continue
		}
		c.SMA = sma[i]
		c.StdDev = sd[i]
		c.Upper = sma[i] + opts.K*sd[i]
		c.Lower = sma[i] - opts.K*sd[i]
		out = append(out, c)
	}
	return out
}

func bucket(rows []chain.Row, width time.Duration) []Candle {
	type acc struct {
		c               Candle
		sumOpen, sumCls float64
	}
	byTime := make(map[time.Time]*acc)

	for _, r := range rows {
		if r.LastTrade.IsZero() || r.LastClose <= 0 || r.Ask <= 0 {
			continue
		}
		key := r.LastTrade
		if width > 0 {
			key = key.Truncate(width)
		}

		hi := math.Max(r.Bid, r.Ask)
		lo := math.Min(r.Bid, r.Ask)
		a, ok := byTime[key]
		if !ok {
			a = &acc{c: Candle{Time: key, High: hi, Low: lo}}
			byTime[key] = a
		}
		a.c.Count++
		a.sumOpen += (r.Bid + r.Ask) / 2
		a.sumCls += r.LastClose
		a.c.High = math.Max(a.c.High, hi)
		a.c.Low = math.Min(a.c.Low, lo)
	}

	out := make([]Candle, 0, len(byTime))
	for _, a := range byTime {
		a.c.Open = a.sumOpen / float64(a.c.Count)
		a.c.Close = a.sumCls / float64(a.c.Count)
		out = append(out, a.c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// FileName is chart_{TICK}.csv.
func FileName(ticker string) string {
	return "chart_" + strings.ToUpper(ticker) + ".csv"
}

// WriteCSV stores candles in dir and returns the path.
func WriteCSV(dir, ticker string, candles []Candle) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(dir, FileName(ticker))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"Date", "Open", "High", "Low", "Close", "Count", "SMA", "Rolling Std", "Upper Band", "Lower Band"})
	for _, c := range candles {
		_ = w.Write([]string{
			c.Time.Format(time.RFC3339),
			fixed(c.Open), fixed(c.High), fixed(c.Low), fixed(c.Close),
			decimal.NewFromInt(int64(c.Count)).String(),
			fixed(c.SMA), fixed(c.StdDev), fixed(c.Upper), fixed(c.Lower),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}
