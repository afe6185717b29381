package data

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// LastTradeLayout is how Finviz exports stamp the last trade.
const LastTradeLayout = "01/02/2006 03:04:05 PM"

// export column names, matched case-insensitively
const (
	colContract     = "contract name"
	colType         = "type"
	colStrike       = "strike"
	colLastTrade    = "last trade"
	colLastClose    = "last close"
	colLast         = "last"
	colBid          = "bid"
	colAsk          = "ask"
	colVolume       = "volume"
	colOpenInterest = "open int."
)

// ParseExportCSV reads a Finviz option-chain export. Rows whose type or
// strike cannot be parsed are skipped; missing optional columns read as zero.
func ParseExportCSV(r io.Reader, underlying string, expiry time.Time) ([]OptionQuote, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read export header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, req := range []string{colType, colStrike} {
		if _, ok := idx[req]; !ok {
			return nil, errors.Errorf("export is missing column %q", req)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(rec []string, col string) float64 {
		s := strings.ReplaceAll(field(rec, col), ",", "")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}

	var out []OptionQuote
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read export line %d", line)
		}

		kind, err := pricing.ParseOptionKind(field(rec, colType))
		if err != nil {
			logger.Tracef("export line %d: %v", line, err)
			continue
		}
		strike := num(rec, colStrike)
		if strike <= 0 {
			logger.Tracef("export line %d: bad strike %q", line, field(rec, colStrike))
			continue
		}

		q := OptionQuote{
			Ticker:       field(rec, colContract),
			Underlying:   strings.ToUpper(underlying),
			Kind:         kind,
			Strike:       strike,
			Expiry:       expiry,
			Bid:          num(rec, colBid),
			Ask:          num(rec, colAsk),
			Last:         num(rec, colLast),
			LastClose:    num(rec, colLastClose),
			Volume:       num(rec, colVolume),
			OpenInterest: num(rec, colOpenInterest),
		}
		if q.Last == 0 {
			q.Last = q.LastClose
		}
		if q.Ticker == "" {
			q.Ticker = OptionSymbolFromParts(underlying, expiry, kind, strike)
		}
		if ts := field(rec, colLastTrade); ts != "" {
			if t, err := time.Parse(LastTradeLayout, ts); err == nil {
				q.LastTrade = t
			}
		}
		out = append(out, q)
	}

	return out, nil
}
