package data

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/logger"
)

// localDataProvider implements Provider from files in dir:
//
//	{TICK}_{YYYY-MM-DD}_export.csv  Finviz-format chain export
//	{TICK}_bars.csv                 date,open,high,low,close,volume
type localDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalDataProvider convenience constructor.
func NewLocalDataProvider(dir string, secondary Provider) *localDataProvider {
	return &localDataProvider{dir: dir, secondary: secondary}
}

func (localDataProv *localDataProvider) Secondary() Provider {
	return localDataProv.secondary
}

// BarsFileName is the local daily-bar file for underlying.
func BarsFileName(underlying string) string {
	return strings.ToUpper(underlying) + "_bars.csv"
}

func (localDataProv *localDataProvider) GetBars(ctx context.Context, underlying string, from, to time.Time) ([]Bar, error) {
	path := filepath.Join(localDataProv.dir, BarsFileName(underlying))
	f, err := os.Open(path)
	if err != nil {
		if localDataProv.secondary != nil {
			logger.Debugf("no local bars for %s, trying secondary", underlying)
			return localDataProv.secondary.GetBars(ctx, underlying, from, to)
		}
		return nil, errors.Wrapf(ErrNoData, "open bars %s: %v", path, err)
	}
	defer f.Close()

	all, err := readBarsCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read bars %s", path)
	}

	lo, hi := truncateUTC(from), truncateUTC(to)
	out := make([]Bar, 0, len(all))
	for _, b := range all {
		if b.Date.Before(lo) || b.Date.After(hi) {
			continue
		}
		out = append(out, b)
	}
	logger.Tracef("local bars %s: %d of %d in range", underlying, len(out), len(all))
	return out, nil
}

// GetSpotPrice is the latest close in the bar file.
func (localDataProv *localDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	bars, err := localDataProv.GetBars(ctx, underlying, time.Time{}, time.Now())
	if err != nil {
		return 0, err
	}
	spot, err := lastClose(bars, truncateUTC(time.Now()))
	if err != nil {
		if localDataProv.secondary != nil {
			return localDataProv.secondary.GetSpotPrice(ctx, underlying)
		}
		return 0, errors.Wrapf(err, "local spot %s", underlying)
	}
	return spot, nil
}

func (localDataProv *localDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]OptionQuote, error) {
	path := filepath.Join(localDataProv.dir, ExportFileName(underlying, expiry))
	f, err := os.Open(path)
	if err != nil {
		if localDataProv.secondary != nil {
			logger.Debugf("no local export %s, trying secondary", path)
			return localDataProv.secondary.GetOptionChain(ctx, underlying, expiry)
		}
		return nil, errors.Wrapf(ErrNoData, "open export %s: %v", path, err)
	}
	defer f.Close()

	return ParseExportCSV(f, underlying, expiry)
}

func readBarsCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []Bar
	for i, row := range records {
		if len(row) < 5 {
			continue
		}
		d, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, errors.Wrapf(err, "line %d", i+1)
		}

		vals := make([]float64, 5)
		for j := 1; j < len(row) && j <= 5; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d column %d", i+1, j+1)
			}
			vals[j-1] = v
		}
		out = append(out, Bar{Date: d, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Vol: vals[4]})
	}
	return out, nil
}

// WriteBarsCSV stores bars in the layout GetBars reads back.
func WriteBarsCSV(dir, underlying string, bars []Bar) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create data dir")
	}
	path := filepath.Join(dir, BarsFileName(underlying))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"date", "open", "high", "low", "close", "volume"})
	for _, b := range bars {
		_ = w.Write([]string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Vol, 'f', -1, 64),
		})
	}
	w.Flush()
	return path, w.Error()
}
