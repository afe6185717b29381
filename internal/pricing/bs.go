package pricing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PricingResult is the Black-Scholes value of a contract together with the
// risk-neutral quantities the sensitivities are derived from.
type PricingResult struct {
	Price float64
	D1    float64
	D2    float64
}

// Price calculates the value of a European option using the Black-Scholes model.
//
// Parameters:
//   - spec: the contract (spot, strike, time to maturity in years, rate, kind)
//   - sigma: annualised volatility as a decimal
//
// Returns:
//
//	The theoretical price with d1 and d2. Non-positive or non-finite inputs fail
//	with ErrInvalidInput before any distribution function is evaluated; a
//	non-finite intermediate fails with ErrNumericalDegeneracy.
func Price(spec ContractSpec, sigma float64) (PricingResult, error) {
	if err := spec.Validate(); err != nil {
		return PricingResult{}, err
	}
	if err := validateSigma(sigma); err != nil {
		return PricingResult{}, err
	}
	return price(spec, sigma)
}

// price assumes spec and sigma were validated.
func price(spec ContractSpec, sigma float64) (PricingResult, error) {
	d1, d2 := d1d2(spec, sigma)
	if !isFinite(d1) || !isFinite(d2) {
		return PricingResult{}, fmt.Errorf("%w: d1=%v d2=%v", ErrNumericalDegeneracy, d1, d2)
	}

	discountedStrike := spec.Strike * math.Exp(-spec.Rate*spec.Time)

	var value float64
	switch spec.Kind {
	case Call:
		value = spec.Spot*normCDF(d1) - discountedStrike*normCDF(d2)
	case Put:
		value = discountedStrike*normCDF(-d2) - spec.Spot*normCDF(-d1)
	default:
		return PricingResult{}, fmt.Errorf("%w: unknown option kind %v", ErrInvalidInput, spec.Kind)
	}

	if !isFinite(value) {
		return PricingResult{}, fmt.Errorf("%w: price=%v", ErrNumericalDegeneracy, value)
	}

	// rounding can leave deep out-of-the-money values a hair below zero
	return PricingResult{Price: math.Max(value, 0), D1: d1, D2: d2}, nil
}

// d1d2 is the single source of d1 and d2 for pricing, sensitivities and calibration.
func d1d2(spec ContractSpec, sigma float64) (d1, d2 float64) {
	volSqrtT := sigma * math.Sqrt(spec.Time)
	d1 = (math.Log(spec.Spot/spec.Strike) + (spec.Rate+0.5*sigma*sigma)*spec.Time) / volSqrtT
	d2 = d1 - volSqrtT
	return d1, d2
}

// IntrinsicValue is the payoff if the contract were exercised at the current spot.
func IntrinsicValue(spec ContractSpec) float64 {
	if spec.Kind == Put {
		return math.Max(spec.Strike-spec.Spot, 0)
	}
	return math.Max(spec.Spot-spec.Strike, 0)
}

// PriceBounds returns the no-arbitrage range for a European option price.
// A call lies in [max(S-K·e^(-rT), 0), S], a put in [max(K·e^(-rT)-S, 0), K·e^(-rT)].
func PriceBounds(spec ContractSpec) (lower, upper float64) {
	discountedStrike := spec.Strike * math.Exp(-spec.Rate*spec.Time)
	if spec.Kind == Put {
		return math.Max(discountedStrike-spec.Spot, 0), discountedStrike
	}
	return math.Max(spec.Spot-discountedStrike, 0), spec.Spot
}

// normCDF is the standard normal cumulative distribution function Φ.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF is the standard normal probability density φ.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
