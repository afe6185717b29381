// Package data provides market data provider implementations.
//
// This file contains a Massive-backed Provider implementation that retrieves
// daily bars and option chain snapshots through the Massive REST SDK.
//
// Design notes:
//   - Uses the official client-go SDK, which handles pagination and auth
//   - Calls are paced by a token bucket to stay inside plan limits
//   - Empty or failed responses fall through to the secondary provider
package data

import (
	"context"
	"strings"
	"time"

	massive "github.com/massive-com/client-go/v2/rest"
	"github.com/massive-com/client-go/v2/rest/models"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	client *massive.Client

	// limiter paces SDK calls; each iterator page counts as one call.
	limiter *rate.Limiter

	// secondary is an optional fallback provider.
	secondary Provider
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// Parameters:
//   - apiKey: Massive API key for authentication
//   - secondary: provider consulted when Massive has no data (may be nil)
func NewMassiveDataProvider(apiKey string, secondary Provider) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	return &massiveDataProvider{
		client:    massive.New(apiKey),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		secondary: secondary,
	}
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetBars retrieves adjusted daily OHLCV bars, oldest first.
//
// Parameters:
//   - underlying: ticker symbol
//   - from: first session (inclusive)
//   - to: last session (inclusive)
func (massiveDataProv *massiveDataProvider) GetBars(ctx context.Context, underlying string, from, to time.Time) ([]Bar, error) {
	logger.Debugf("fetching bars: %s from=%s to=%s", underlying, from.Format("2006-01-02"), to.Format("2006-01-02"))

	params := models.ListAggsParams{
		Ticker:     strings.ToUpper(underlying),
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(50000)

	if err := massiveDataProv.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out []Bar
	it := massiveDataProv.client.ListAggs(ctx, params)
	for it.Next() {
		out = append(out, barFromAgg(it.Item()))
	}
	if err := it.Err(); err != nil {
		logger.Errorf("massive bars request failed: %v", err)
		if massiveDataProv.secondary != nil {
			logger.Tracef("delegating bars to secondary provider")
			return massiveDataProv.secondary.GetBars(ctx, underlying, from, to)
		}
		return nil, errors.Wrapf(err, "massive bars %s", underlying)
	}

	logger.Tracef("bars received: %d records", len(out))

	if len(out) == 0 && massiveDataProv.secondary != nil {
		return massiveDataProv.secondary.GetBars(ctx, underlying, from, to)
	}
	return out, nil
}

// GetSpotPrice returns the latest daily close from the past week of bars.
func (massiveDataProv *massiveDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	now := time.Now().UTC()
	bars, err := massiveDataProv.GetBars(ctx, underlying, now.AddDate(0, 0, -7), now)
	if err != nil {
		return 0, err
	}
	spot, err := lastClose(bars, now)
	if err != nil {
		return 0, errors.Wrapf(err, "massive spot %s", underlying)
	}
	logger.Debugf("spot %s=%.4f", underlying, spot)
	return spot, nil
}

// GetOptionChain retrieves the snapshot of every contract of underlying
// expiring on expiry.
func (massiveDataProv *massiveDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]OptionQuote, error) {
	logger.Debugf("fetching chain: %s expiry=%s", underlying, expiry.Format("2006-01-02"))

	params := models.ListOptionsChainParams{
		UnderlyingAsset: strings.ToUpper(underlying),
	}.WithExpirationDate(models.EQ, models.Date(expiry)).WithLimit(250)

	if err := massiveDataProv.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fetched := time.Now().UTC()
	var out []OptionQuote
	it := massiveDataProv.client.ListOptionsChainSnapshot(ctx, params)
	for it.Next() {
		q, ok := quoteFromSnapshot(underlying, it.Item(), fetched)
		if !ok {
			continue
		}
		out = append(out, q)
	}
	if err := it.Err(); err != nil {
		logger.Errorf("massive chain request failed: %v", err)
		if massiveDataProv.secondary != nil {
			return massiveDataProv.secondary.GetOptionChain(ctx, underlying, expiry)
		}
		return nil, errors.Wrapf(err, "massive chain %s %s", underlying, expiry.Format("2006-01-02"))
	}

	logger.Tracef("chain received: %d contracts", len(out))

	if len(out) == 0 && massiveDataProv.secondary != nil {
		logger.Tracef("delegating chain to secondary provider")
		return massiveDataProv.secondary.GetOptionChain(ctx, underlying, expiry)
	}
	return out, nil
}

// ---- Helper functions ----

func barFromAgg(a models.Agg) Bar {
	return Bar{
		Date:  time.Time(a.Timestamp).UTC(),
		Open:  a.Open,
		High:  a.High,
		Low:   a.Low,
		Close: a.Close,
		Vol:   a.Volume,
	}
}

// quoteFromSnapshot maps a chain snapshot entry. The snapshot has no usable
// last-trade stamp for every plan, so the fetch time stands in.
func quoteFromSnapshot(underlying string, s models.OptionContractSnapshot, fetched time.Time) (OptionQuote, bool) {
	kind, err := pricing.ParseOptionKind(s.Details.ContractType)
	if err != nil || s.Details.StrikePrice <= 0 {
		return OptionQuote{}, false
	}

	q := OptionQuote{
		Ticker:       s.Details.Ticker,
		Underlying:   strings.ToUpper(underlying),
		Kind:         kind,
		Strike:       s.Details.StrikePrice,
		Expiry:       time.Time(s.Details.ExpirationDate),
		Bid:          s.LastQuote.Bid,
		Ask:          s.LastQuote.Ask,
		Last:         s.LastTrade.Price,
		LastClose:    s.Day.Close,
		Volume:       s.Day.Volume,
		OpenInterest: s.OpenInterest,
		LastTrade:    fetched,
	}
	if q.Ticker == "" {
		q.Ticker = OptionSymbolFromParts(underlying, q.Expiry, kind, q.Strike)
	}
	return q, true
}
