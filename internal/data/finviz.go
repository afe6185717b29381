package data

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/contactkeval/option-greeks/internal/logger"
)

const finvizBaseURL = "https://elite.finviz.com"

// finvizDataProvider reads option chains from the Finviz Elite export and
// prices from its quote API. Raw exports are kept in dataDir so a later
// run can replay them through the local provider.
type finvizDataProvider struct {
	apiKey    string
	dataDir   string
	client    *resty.Client
	limiter   *rate.Limiter
	secondary Provider
}

// finvizQuote is the subset of quote.ashx we read. Daily requests fill the
// series; intraday requests carry the last print in DataID as "id|last".
type finvizQuote struct {
	Ticker string    `json:"ticker"`
	DataID string    `json:"dataId"`
	Date   []int64   `json:"date"`
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume"`
}

// NewFinvizDataProvider builds a provider against baseURL (the Finviz Elite
// host when empty).
func NewFinvizDataProvider(apiKey, baseURL, dataDir string, secondary Provider) *finvizDataProvider {
	logger.Infof("initializing Finviz data provider")

	if baseURL == "" {
		baseURL = finvizBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("User-Agent", "option-greeks/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests
		})

	return &finvizDataProvider{
		apiKey:    apiKey,
		dataDir:   dataDir,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 2),
		secondary: secondary,
	}
}

func (fp *finvizDataProvider) Secondary() Provider {
	return fp.secondary
}

// GetBars reads the daily series from the quote API.
func (fp *finvizDataProvider) GetBars(ctx context.Context, underlying string, from, to time.Time) ([]Bar, error) {
	q, err := fp.quote(ctx, underlying, "d")
	if err != nil {
		if fp.secondary != nil {
			logger.Warnf("finviz bars %s: %v, trying secondary", underlying, err)
			return fp.secondary.GetBars(ctx, underlying, from, to)
		}
		return nil, err
	}

	n := len(q.Date)
	if len(q.Open) < n || len(q.High) < n || len(q.Low) < n || len(q.Close) < n {
		return nil, errors.Errorf("finviz bars %s: ragged series", underlying)
	}

	lo := truncateUTC(from)
	hi := truncateUTC(to)
	var out []Bar
	for i := 0; i < n; i++ {
		d := truncateUTC(time.Unix(q.Date[i], 0))
		if d.Before(lo) || d.After(hi) {
			continue
		}
		b := Bar{Date: d, Open: q.Open[i], High: q.High[i], Low: q.Low[i], Close: q.Close[i]}
		if i < len(q.Volume) {
			b.Vol = q.Volume[i]
		}
		out = append(out, b)
	}
	logger.Tracef("finviz bars received: %d records", len(out))
	return out, nil
}

// GetSpotPrice returns the last intraday print.
func (fp *finvizDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	q, err := fp.quote(ctx, underlying, "i1")
	if err != nil {
		if fp.secondary != nil {
			return fp.secondary.GetSpotPrice(ctx, underlying)
		}
		return 0, err
	}

	_, last, found := strings.Cut(q.DataID, "|")
	if !found {
		return 0, errors.Errorf("finviz quote %s: malformed dataId %q", underlying, q.DataID)
	}
	spot, err := strconv.ParseFloat(strings.TrimSpace(last), 64)
	if err != nil || spot <= 0 {
		return 0, errors.Errorf("finviz quote %s: bad last price %q", underlying, last)
	}
	logger.Debugf("spot %s=%.4f", underlying, spot)
	return spot, nil
}

// GetOptionChain downloads the chain export for one expiry, saves it and
// parses it.
func (fp *finvizDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]OptionQuote, error) {
	date := expiry.Format("2006-01-02")
	logger.Debugf("fetching finviz export: %s expiry=%s", underlying, date)

	if err := fp.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := fp.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"t":    strings.ToUpper(underlying),
			"ty":   "oc",
			"e":    date,
			"auth": fp.apiKey,
		}).
		Get("/export/options")
	if err != nil {
		return nil, errors.Wrap(err, "finviz export request")
	}
	if resp.IsError() {
		if fp.secondary != nil {
			logger.Warnf("finviz export %s %s: status %d, trying secondary", underlying, date, resp.StatusCode())
			return fp.secondary.GetOptionChain(ctx, underlying, expiry)
		}
		return nil, errors.Errorf("finviz export %s %s: status %d", underlying, date, resp.StatusCode())
	}

	body := resp.Body()
	if fp.dataDir != "" {
		if err := os.MkdirAll(fp.dataDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create data dir")
		}
		path := filepath.Join(fp.dataDir, ExportFileName(underlying, expiry))
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return nil, errors.Wrapf(err, "save export %s", path)
		}
		logger.Tracef("saved export %s (%d bytes)", path, len(body))
	}

	return ParseExportCSV(bytes.NewReader(body), underlying, expiry)
}

func (fp *finvizDataProvider) quote(ctx context.Context, underlying, timeframe string) (finvizQuote, error) {
	var q finvizQuote
	if err := fp.limiter.Wait(ctx); err != nil {
		return q, err
	}

	resp, err := fp.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"instrument": "stock",
			"ticker":     strings.ToUpper(underlying),
			"timeframe":  timeframe,
			"type":       "new",
			"auth":       fp.apiKey,
		}).
		Get("/api/quote.ashx")
	if err != nil {
		return q, errors.Wrap(err, "finviz quote request")
	}
	if resp.IsError() {
		return q, errors.Errorf("finviz quote %s: status %d", underlying, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &q); err != nil {
		return q, errors.Wrapf(err, "decode finviz quote %s", underlying)
	}
	return q, nil
}

// ExportFileName is where a chain export for expiry is stored.
func ExportFileName(underlying string, expiry time.Time) string {
	return strings.ToUpper(underlying) + "_" + expiry.Format("2006-01-02") + "_export.csv"
}

func truncateUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
