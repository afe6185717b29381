// Package chain enriches option chains with model prices, implied
// volatilities and Greeks, one expiration at a time.
package chain

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-greeks/internal/calendar"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/indicators"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Config controls one enrichment run.
type Config struct {
	Ticker       string
	Fridays      int              // weekly expirations to process
	HistVolDays  int              // trading days behind the historical volatility
	PriceSource  data.PriceSource // what implied volatility is calibrated against
	Workers      int              // contracts priced concurrently per expiry
	Calibration  pricing.CalibrationConfig
	SaveBarsDir  string // when set, the bars used for volatility are written here
	StrikeFilter string // optional condition, see StrikeFilter
}

// Row is one contract with its valuation.
type Row struct {
	data.OptionQuote

	TheoreticalPrice  float64 // Black-Scholes at historical volatility
	MarketPrice       float64 // price the implied volatility reproduces
	OutOfBounds       bool    // MarketPrice outside no-arbitrage bounds
	ImpliedVolatility float64
	Iterations        int
	Converged         bool
	Status            pricing.CalibrationStatus
	Delta             float64 // at ImpliedVolatility
	Vega              float64 // at ImpliedVolatility
	Error             string
}

// Failed reports whether the row could not be valued at all.
func (r Row) Failed() bool { return r.Error != "" }

// ExpiryResult is the enriched chain for one expiration.
type ExpiryResult struct {
	Expiry time.Time
	Days   int
	Calls  []Row
	Puts   []Row
	ATM    ATMVol
}

// ATMVol is the volatility implied by the at-the-money call/put pair.
type ATMVol struct {
	Strike     float64 `json:"strike"`
	Volatility float64 `json:"volatility"`
	Converged  bool    `json:"converged"`
}

// ExpirySummary is the per-expiration part of Summary.
type ExpirySummary struct {
	Expiry    string  `json:"expiry"`
	Days      int     `json:"days"`
	Contracts int     `json:"contracts"`
	ATM       *ATMVol `json:"atm,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Summary describes a finished run.
type Summary struct {
	Ticker               string          `json:"ticker"`
	RunAt                time.Time       `json:"run_at"`
	Spot                 float64         `json:"spot"`
	Rate                 float64         `json:"rate"`
	HistoricalVolatility float64         `json:"historical_volatility"`
	PriceSource          string          `json:"price_source"`
	Expiries             []ExpirySummary `json:"expiries"`
	Contracts            int             `json:"contracts"`
	Converged            int             `json:"converged"`
	MaxIterations        int             `json:"max_iterations"`
	Degenerate           int             `json:"degenerate"`
	OutOfBounds          int             `json:"out_of_bounds"`
	Failed               int             `json:"failed"`
}

// Enricher runs the batch. OnExpiry receives every processed expiration;
// an error from it stops the run.
type Enricher struct {
	Provider data.Provider
	Rates    data.RateSource
	Config   Config
	OnExpiry func(ExpiryResult) error
	Now      func() time.Time
}

// Market holds the inputs shared by every contract of a run.
type Market struct {
	Spot    float64
	Rate    float64
	HistVol float64
}

// Run fetches the market inputs once, then enriches the chain of each of the
// next Config.Fridays expirations. A contract that cannot be valued is
// recorded on its row and does not stop the run; neither does an expiry whose
// chain cannot be fetched.
func (e *Enricher) Run(ctx context.Context) (Summary, error) {
	cfg := e.Config
	if err := cfg.Calibration.Validate(); err != nil {
		return Summary{}, err
	}
	filter, err := NewStrikeFilter(cfg.StrikeFilter)
	if err != nil {
		return Summary{}, err
	}
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	mkt, err := e.market(ctx, now)
	if err != nil {
		return Summary{}, err
	}
	logger.Infof("%s spot=%.4f rate=%.4f hist_vol=%.4f", cfg.Ticker, mkt.Spot, mkt.Rate, mkt.HistVol)

	sum := Summary{
		Ticker:               cfg.Ticker,
		RunAt:                now.UTC(),
		Spot:                 mkt.Spot,
		Rate:                 mkt.Rate,
		HistoricalVolatility: mkt.HistVol,
		PriceSource:          string(cfg.PriceSource),
	}

	for _, expiry := range calendar.NextFridays(now, cfg.Fridays) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		es := ExpirySummary{Expiry: calendar.FormatDate(expiry), Days: calendar.DaysUntil(now, expiry)}
		if es.Days < 1 {
			// expiring today: no time value left to invert
			es.Error = "expires today"
			logger.Warnf("skipping %s %s: expires today", cfg.Ticker, es.Expiry)
			sum.Expiries = append(sum.Expiries, es)
			continue
		}

		res, err := e.enrichExpiry(ctx, mkt, filter, expiry, es.Days)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			es.Error = err.Error()
			logger.Errorf("%s %s: %v", cfg.Ticker, es.Expiry, err)
			sum.Expiries = append(sum.Expiries, es)
			continue
		}

		es.Contracts = len(res.Calls) + len(res.Puts)
		if res.ATM.Strike > 0 {
			atm := res.ATM
			es.ATM = &atm
		}
		sum.Expiries = append(sum.Expiries, es)
		for _, rows := range [][]Row{res.Calls, res.Puts} {
			sum.count(rows)
		}

		if e.OnExpiry != nil {
			if err := e.OnExpiry(res); err != nil {
				return sum, errors.Wrapf(err, "handle expiry %s", es.Expiry)
			}
		}
	}

	logger.Infof("%s done: %d contracts, %d converged, %d max_iterations, %d degenerate, %d failed",
		cfg.Ticker, sum.Contracts, sum.Converged, sum.MaxIterations, sum.Degenerate, sum.Failed)
	return sum, nil
}

func (s *Summary) count(rows []Row) {
	for _, r := range rows {
		s.Contracts++
		if r.OutOfBounds {
			s.OutOfBounds++
		}
		if r.Failed() {
			s.Failed++
			continue
		}
		switch r.Status {
		case pricing.StatusConverged:
			s.Converged++
		case pricing.StatusMaxIterations:
			s.MaxIterations++
		case pricing.StatusDegenerate:
			s.Degenerate++
		}
	}
}

// market resolves spot, rate and historical volatility.
func (e *Enricher) market(ctx context.Context, now time.Time) (Market, error) {
	var mkt Market
	ticker := e.Config.Ticker

	spot, err := e.Provider.GetSpotPrice(ctx, ticker)
	if err != nil {
		return mkt, errors.Wrapf(err, "spot price %s", ticker)
	}
	mkt.Spot = spot

	// calendar days with room for weekends and holidays
	lookback := int(math.Ceil(float64(e.Config.HistVolDays) * 1.5))
	bars, err := e.Provider.GetBars(ctx, ticker, now.AddDate(0, 0, -lookback), now)
	if err != nil {
		return mkt, errors.Wrapf(err, "bars %s", ticker)
	}
	if e.Config.SaveBarsDir != "" {
		if path, err := data.WriteBarsCSV(e.Config.SaveBarsDir, ticker, bars); err != nil {
			logger.Warnf("saving bars: %v", err)
		} else {
			logger.Debugf("saved %d bars to %s", len(bars), path)
		}
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	mkt.HistVol, err = indicators.HistoricalVolatility(closes, e.Config.HistVolDays)
	if err != nil {
		return mkt, errors.Wrapf(err, "historical volatility %s", ticker)
	}
	if mkt.HistVol <= 0 {
		return mkt, errors.Errorf("historical volatility %s is zero", ticker)
	}

	mkt.Rate, err = e.Rates.RiskFreeRate(ctx)
	if err != nil {
		return mkt, errors.Wrap(err, "risk-free rate")
	}
	return mkt, nil
}

func (e *Enricher) enrichExpiry(ctx context.Context, mkt Market, filter *StrikeFilter, expiry time.Time, days int) (ExpiryResult, error) {
	res := ExpiryResult{Expiry: expiry, Days: days}

	quotes, err := e.Provider.GetOptionChain(ctx, e.Config.Ticker, expiry)
	if err != nil {
		return res, err
	}
	if len(quotes) == 0 {
		return res, errors.Wrapf(data.ErrNoData, "empty chain")
	}
	if filter != nil {
		n := len(quotes)
		if quotes, err = filter.Apply(quotes, mkt.Spot, days); err != nil {
			return res, err
		}
		logger.Debugf("%s %s: filter %q kept %d of %d contracts", e.Config.Ticker, calendar.FormatDate(expiry), filter, len(quotes), n)
	}
	logger.Debugf("%s %s: %d contracts, T=%d days", e.Config.Ticker, calendar.FormatDate(expiry), len(quotes), days)

	rows := EnrichAll(ctx, quotes, mkt, calendar.YearFraction(days), e.Config)
	for _, r := range rows {
		switch r.Kind {
		case pricing.Call:
			res.Calls = append(res.Calls, r)
		case pricing.Put:
			res.Puts = append(res.Puts, r)
		}
	}
	sortByStrike(res.Calls)
	sortByStrike(res.Puts)

	res.ATM = atmVol(res.Calls, res.Puts, mkt, calendar.YearFraction(days), e.Config.Calibration)
	return res, nil
}

// EnrichAll values quotes concurrently with at most cfg.Workers in flight.
// Rows come back in input order.
func EnrichAll(ctx context.Context, quotes []data.OptionQuote, mkt Market, T float64, cfg Config) []Row {
	rows := make([]Row, len(quotes))

	g, _ := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i := range quotes {
		i := i
		g.Go(func() error {
			rows[i] = Enrich(quotes[i], mkt, T, cfg.PriceSource, cfg.Calibration)
			return nil
		})
	}
	_ = g.Wait()

	return rows
}

// Enrich values one contract: the model price at historical volatility, the
// implied volatility of its market price seeded with historical volatility,
// then Delta and Vega at the implied volatility. With PriceModel the model
// price itself is calibrated, which recovers the historical volatility.
func Enrich(q data.OptionQuote, mkt Market, T float64, src data.PriceSource, cal pricing.CalibrationConfig) Row {
	row := Row{OptionQuote: q}
	spec := pricing.ContractSpec{Spot: mkt.Spot, Strike: q.Strike, Time: T, Rate: mkt.Rate, Kind: q.Kind}

	model, err := pricing.Price(spec, mkt.HistVol)
	if err != nil {
		row.Error = err.Error()
		logger.Debugf("%s: %v", q.Ticker, err)
		return row
	}
	row.TheoreticalPrice = model.Price

	market := model.Price
	if src != data.PriceModel {
		p, ok := q.MarketPrice(src)
		if !ok {
			row.Error = "no " + string(src) + " price"
			logger.Tracef("%s: %s", q.Ticker, row.Error)
			return row
		}
		market = p
	}
	row.MarketPrice = market

	lower, upper := pricing.PriceBounds(spec)
	row.OutOfBounds = market < lower || market > upper

	cr, err := pricing.ImpliedVolatility(spec, market, mkt.HistVol, cal)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.ImpliedVolatility = cr.Sigma
	row.Iterations = cr.Iterations
	row.Converged = cr.Converged
	row.Status = cr.Status

	if cr.Status == pricing.StatusDegenerate {
		logger.Debugf("%s: calibration degenerate at sigma=%g", q.Ticker, cr.Sigma)
		return row
	}

	sens, err := pricing.Sensitivities(spec, cr.Sigma)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.Delta = sens.Delta
	row.Vega = sens.Vega

	if !cr.Converged {
		logger.Tracef("%s: %s after %d iterations, sigma=%g", q.Ticker, cr.Status, cr.Iterations, cr.Sigma)
	}
	return row
}

// atmVol inverts the call/put pair at the listed strike nearest spot.
func atmVol(calls, puts []Row, mkt Market, T float64, cal pricing.CalibrationConfig) ATMVol {
	putAt := make(map[float64]Row, len(puts))
	for _, p := range puts {
		if !p.Failed() {
			putAt[p.Strike] = p
		}
	}

	var strikes []float64
	callAt := make(map[float64]Row, len(calls))
	for _, c := range calls {
		if _, ok := putAt[c.Strike]; ok && !c.Failed() {
			strikes = append(strikes, c.Strike)
			callAt[c.Strike] = c
		}
	}
	sort.Float64s(strikes)

	k, ok := data.Closest(strikes, mkt.Spot)
	if !ok {
		return ATMVol{}
	}

	res, err := pricing.ImpliedVolATM(mkt.Spot, k, T, mkt.Rate, callAt[k].MarketPrice, putAt[k].MarketPrice, cal)
	if err != nil {
		logger.Debugf("atm vol at %.2f: %v", k, err)
		return ATMVol{}
	}
	return ATMVol{Strike: k, Volatility: res.Sigma, Converged: res.Converged}
}

func sortByStrike(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })
}
