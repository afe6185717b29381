package data

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/logger"
)

const (
	fredBaseURL = "https://api.stlouisfed.org"

	// FedFundsSeries is the effective federal funds rate, monthly, in percent.
	FedFundsSeries = "FEDFUNDS"
)

// RateSource supplies the annualised, continuously compounded risk-free rate
// as a decimal (0.05 for 5%).
type RateSource interface {
	RiskFreeRate(ctx context.Context) (float64, error)
}

// StaticRate is a fixed rate.
type StaticRate float64

func (r StaticRate) RiskFreeRate(context.Context) (float64, error) {
	return float64(r), nil
}

// fredRateSource reads the latest observation of a FRED series.
type fredRateSource struct {
	apiKey string
	series string
	client *resty.Client
}

type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// NewFREDRateSource reads series (FEDFUNDS when empty) from baseURL
// (the public FRED API when empty).
func NewFREDRateSource(apiKey, baseURL, series string) *fredRateSource {
	if baseURL == "" {
		baseURL = fredBaseURL
	}
	if series == "" {
		series = FedFundsSeries
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &fredRateSource{apiKey: apiKey, series: series, client: client}
}

// RiskFreeRate returns the most recent published value, converted from
// percent. FRED marks missing observations with ".", which are skipped.
func (f *fredRateSource) RiskFreeRate(ctx context.Context) (float64, error) {
	var body fredObservations
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"series_id":  f.series,
			"api_key":    f.apiKey,
			"file_type":  "json",
			"sort_order": "desc",
			"limit":      "10",
		}).
		SetResult(&body).
		Get("/fred/series/observations")
	if err != nil {
		return 0, errors.Wrap(err, "fred request")
	}
	if resp.IsError() {
		return 0, errors.Errorf("fred %s: status %d", f.series, resp.StatusCode())
	}

	for _, o := range body.Observations {
		v := strings.TrimSpace(o.Value)
		if v == "" || v == "." {
			continue
		}
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "fred %s value %q", f.series, v)
		}
		logger.Debugf("risk-free rate %s=%.4f%% as of %s", f.series, pct, o.Date)
		return pct / 100, nil
	}
	return 0, errors.Wrapf(ErrNoData, "fred %s", f.series)
}
