// Package report persists enriched chains and run summaries.
package report

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-greeks/internal/calendar"
	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Column headers. The quote columns keep the Finviz export names so an
// enriched file is still a readable export.
var headers = []string{
	"Contract Name", "Last Trade", "Strike", "Last Close", "Bid", "Ask", "Volume", "Open Int.", "Type",
	"Theoretical Price", "Market Price", "Out Of Bounds",
	"Implied Volatility", "Iterations", "Converged", "Status", "Delta", "Vega", "Error",
}

// ChainFileName is {TICK}_{call|put}_with_greeks_{YYYY-MM-DD}.csv.
func ChainFileName(ticker string, kind pricing.OptionKind, expiry time.Time) string {
	return strings.ToUpper(ticker) + "_" + kind.String() + "_with_greeks_" + calendar.FormatDate(expiry) + ".csv"
}

// WriteChainCSV writes rows of one kind and expiry to dir and returns the path.
func WriteChainCSV(dir, ticker string, kind pricing.OptionKind, expiry time.Time, rows []chain.Row) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(dir, ChainFileName(ticker, kind, expiry))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return "", err
	}
	for _, r := range rows {
		lastTrade := ""
		if !r.LastTrade.IsZero() {
			lastTrade = r.LastTrade.Format(data.LastTradeLayout)
		}
		rec := []string{
			r.Ticker,
			lastTrade,
			num(r.Strike, 3),
			num(r.LastClose, 4),
			num(r.Bid, 4),
			num(r.Ask, 4),
			num(r.Volume, 0),
			num(r.OpenInterest, 0),
			r.Kind.String(),
			num(r.TheoreticalPrice, 6),
			num(r.MarketPrice, 4),
			strconv.FormatBool(r.OutOfBounds),
			num(r.ImpliedVolatility, 8),
			strconv.Itoa(r.Iterations),
			strconv.FormatBool(r.Converged),
			string(r.Status),
			num(r.Delta, 8),
			num(r.Vega, 8),
			r.Error,
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// WriteExpiry writes the call and put files of one expiration.
func WriteExpiry(dir, ticker string, res chain.ExpiryResult) ([]string, error) {
	var paths []string
	for _, part := range []struct {
		kind pricing.OptionKind
		rows []chain.Row
	}{{pricing.Call, res.Calls}, {pricing.Put, res.Puts}} {
		if len(part.rows) == 0 {
			continue
		}
		p, err := WriteChainCSV(dir, ticker, part.kind, res.Expiry, part.rows)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ReadChainCSV loads a file written by WriteChainCSV. Unparseable numbers
// read as zero; the expiry comes from the file name when present.
func ReadChainCSV(path string) ([]chain.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s is empty", path)
	}

	idx := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		idx[strings.TrimSpace(h)] = i
	}
	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	f64 := func(rec []string, col string) float64 {
		v, _ := strconv.ParseFloat(get(rec, col), 64)
		return v
	}

	expiry := expiryFromName(filepath.Base(path))
	rows := make([]chain.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		kind, _ := pricing.ParseOptionKind(get(rec, "Type"))
		r := chain.Row{
			OptionQuote: data.OptionQuote{
				Ticker:       get(rec, "Contract Name"),
				Kind:         kind,
				Strike:       f64(rec, "Strike"),
				Expiry:       expiry,
				Bid:          f64(rec, "Bid"),
				Ask:          f64(rec, "Ask"),
				LastClose:    f64(rec, "Last Close"),
				Volume:       f64(rec, "Volume"),
				OpenInterest: f64(rec, "Open Int."),
			},
			TheoreticalPrice:  f64(rec, "Theoretical Price"),
			MarketPrice:       f64(rec, "Market Price"),
			ImpliedVolatility: f64(rec, "Implied Volatility"),
			Status:            pricing.CalibrationStatus(get(rec, "Status")),
			Delta:             f64(rec, "Delta"),
			Vega:              f64(rec, "Vega"),
			Error:             get(rec, "Error"),
		}
		r.Iterations, _ = strconv.Atoi(get(rec, "Iterations"))
		r.Converged, _ = strconv.ParseBool(get(rec, "Converged"))
		r.OutOfBounds, _ = strconv.ParseBool(get(rec, "Out Of Bounds"))
		if ts := get(rec, "Last Trade"); ts != "" {
			if t, err := time.Parse(data.LastTradeLayout, ts); err == nil {
				r.LastTrade = t
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// SummaryFileName is {TICK}_summary.json.
func SummaryFileName(ticker string) string {
	return strings.ToUpper(ticker) + "_summary.json"
}

// WriteJSON stores the run summary as {TICK}_summary.json.
func WriteJSON(sum chain.Summary, outdir string) (string, error) {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(outdir, SummaryFileName(sum.Ticker))
	return path, os.WriteFile(path, b, 0o644)
}

// ReadJSON loads the summary WriteJSON stored for ticker.
func ReadJSON(dir, ticker string) (chain.Summary, error) {
	var sum chain.Summary
	path := filepath.Join(dir, SummaryFileName(ticker))
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, &sum); err != nil {
		return sum, errors.Wrapf(err, "decode %s", path)
	}
	return sum, nil
}

// num renders v rounded to places. Non-finite values are left blank.
func num(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).Round(places).String()
}

func expiryFromName(name string) time.Time {
	name = strings.TrimSuffix(name, ".csv")
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return time.Time{}
	}
	t, err := calendar.ParseDate(name[i+1:])
	if err != nil {
		return time.Time{}
	}
	return t
}
