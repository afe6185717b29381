package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Synthetic market parameters. Chains are priced off these, so the rate
// and at-the-money volatility are what an enrichment run should recover.
const (
	SyntheticRate   = 0.05
	SyntheticATMVol = 0.30

	syntheticStrikesEachSide = 10
	syntheticHistoryDays     = 120
)

// synthDataProvider implements Provider with deterministic generated data:
// a seeded random walk for bars and a Black-Scholes priced chain with a
// quadratic volatility smile.
type synthDataProvider struct {
	seed int64
	now  func() time.Time
}

func NewSyntheticDataProvider(seed int64) *synthDataProvider {
	return &synthDataProvider{seed: seed, now: time.Now}
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return nil
}

// GetBars walks weekdays from a history start a fixed distance before now,
// so requests inside that window agree on every day they share.
func (synthDataProv *synthDataProvider) GetBars(ctx context.Context, underlying string, from, to time.Time) ([]Bar, error) {
	lo, hi := truncateUTC(from), truncateUTC(to)
	if hi.Before(lo) {
		return nil, errors.Errorf("synthetic bars: to %s before from %s", hi.Format("2006-01-02"), lo.Format("2006-01-02"))
	}

	rnd := synthDataProv.rand(underlying)
	price := 20.0 + float64(rnd.Intn(280))

	start := truncateUTC(synthDataProv.now()).AddDate(0, 0, -syntheticHistoryDays)
	if lo.Before(start) {
		start = lo
	}

	dailyVol := SyntheticATMVol / math.Sqrt(252)
	var out []Bar
	for cur := start; !cur.After(hi); cur = cur.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		open := price
		close := price * (1 + rnd.NormFloat64()*dailyVol)
		high := math.Max(open, close) * (1 + math.Abs(rnd.NormFloat64())*0.002)
		low := math.Min(open, close) * (1 - math.Abs(rnd.NormFloat64())*0.002)
		vol := float64(100000 + rnd.Intn(900000))
		price = close

		if cur.Before(lo) {
			continue
		}
		out = append(out, Bar{Date: cur, Open: open, High: high, Low: low, Close: close, Vol: vol})
	}
	return out, nil
}

func (synthDataProv *synthDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	today := truncateUTC(synthDataProv.now())
	bars, err := synthDataProv.GetBars(ctx, underlying, today.AddDate(0, 0, -7), today)
	if err != nil {
		return 0, err
	}
	return lastClose(bars, today)
}

// GetOptionChain lists calls and puts around spot, each quoted a small
// spread around its model price.
func (synthDataProv *synthDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]OptionQuote, error) {
	spot, err := synthDataProv.GetSpotPrice(ctx, underlying)
	if err != nil {
		return nil, err
	}

	now := synthDataProv.now()
	days := math.Round(truncateUTC(expiry).Sub(truncateUTC(now)).Hours() / 24)
	if days < 1 {
		return nil, errors.Wrapf(ErrNoData, "synthetic chain: expiry %s is not in the future", expiry.Format("2006-01-02"))
	}
	T := days / 365

	interval := synthDataProv.getIntervals(spot)
	atm := math.Round(spot/interval) * interval
	rnd := synthDataProv.rand(underlying + expiry.Format("20060102"))

	var out []OptionQuote
	for i := -syntheticStrikesEachSide; i <= syntheticStrikesEachSide; i++ {
		strike := atm + float64(i)*interval
		if strike <= 0 {
			continue
		}
		sigma := SmileVol(spot, strike)

		for _, kind := range []pricing.OptionKind{pricing.Call, pricing.Put} {
			spec := pricing.ContractSpec{Spot: spot, Strike: strike, Time: T, Rate: SyntheticRate, Kind: kind}
			res, err := pricing.Price(spec, sigma)
			if err != nil {
				return nil, errors.Wrapf(err, "synthetic price %s %.2f", kind, strike)
			}

			half := math.Max(0.005, res.Price*0.01)
			q := OptionQuote{
				Ticker:       OptionSymbolFromParts(underlying, expiry, kind, strike),
				Underlying:   strings.ToUpper(underlying),
				Kind:         kind,
				Strike:       strike,
				Expiry:       expiry,
				Bid:          math.Max(0, res.Price-half),
				Ask:          res.Price + half,
				Last:         res.Price,
				LastClose:    res.Price * (1 + rnd.NormFloat64()*0.02),
				Volume:       float64(rnd.Intn(5000)),
				OpenInterest: float64(rnd.Intn(20000)),
				LastTrade:    now,
			}
			out = append(out, q)
		}
	}
	return out, nil
}

// SmileVol is the volatility the synthetic chain prices strike at.
func SmileVol(spot, strike float64) float64 {
	m := math.Log(strike / spot)
	return math.Max(0.05, SyntheticATMVol-0.1*m+0.5*m*m)
}

// getIntervals is the strike spacing for a given spot.
func (synthDataProv *synthDataProvider) getIntervals(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 100:
		return 1
	case spot < 250:
		return 2.5
	default:
		return 5
	}
}

func (synthDataProv *synthDataProvider) rand(key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(key)))
	return rand.New(rand.NewSource(synthDataProv.seed ^ int64(h.Sum64())))
}
