package pricing

import (
	"fmt"
	"math"
)

// CalibrationStatus says why the implied-volatility search stopped.
type CalibrationStatus string

const (
	StatusConverged     CalibrationStatus = "converged"      // |model - market| < tolerance
	StatusMaxIterations CalibrationStatus = "max_iterations" // iteration cap reached
	StatusDegenerate    CalibrationStatus = "degenerate"     // model price or vega went non-finite
)

// CalibrationConfig controls the implied-volatility search.
type CalibrationConfig struct {
	Tolerance     float64 `mapstructure:"tolerance" json:"tolerance"`           // absolute price tolerance
	MaxIterations int     `mapstructure:"max_iterations" json:"max_iterations"` // evaluation cap
	VegaEpsilon   float64 `mapstructure:"vega_epsilon" json:"vega_epsilon"`     // below this a Newton step is not taken
	MinSigma      float64 `mapstructure:"min_sigma" json:"min_sigma"`           // lower end of the search range
	MaxSigma      float64 `mapstructure:"max_sigma" json:"max_sigma"`           // upper end of the search range
}

// DefaultCalibrationConfig returns tolerance 1e-8, 1000 iterations, vega epsilon
// 1e-8 and a volatility range of [1e-6, 10].
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		Tolerance:     1e-8,
		MaxIterations: 1000,
		VegaEpsilon:   1e-8,
		MinSigma:      1e-6,
		MaxSigma:      10,
	}
}

// Validate rejects configurations the search cannot run with.
func (cfg CalibrationConfig) Validate() error {
	switch {
	case !isPositive(cfg.Tolerance):
		return fmt.Errorf("%w: tolerance must be positive, got %v", ErrInvalidInput, cfg.Tolerance)
	case cfg.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidInput, cfg.MaxIterations)
	case cfg.VegaEpsilon < 0 || !isFinite(cfg.VegaEpsilon):
		return fmt.Errorf("%w: vega epsilon must be non-negative, got %v", ErrInvalidInput, cfg.VegaEpsilon)
	case !isPositive(cfg.MinSigma) || !isPositive(cfg.MaxSigma) || cfg.MinSigma >= cfg.MaxSigma:
		return fmt.Errorf("%w: sigma range [%v, %v] is invalid", ErrInvalidInput, cfg.MinSigma, cfg.MaxSigma)
	}
	return nil
}

// CalibrationResult is the outcome of an implied-volatility search. When
// Converged is false, Sigma is the last iterate and only a best-effort estimate.
type CalibrationResult struct {
	Sigma      float64           `json:"sigma"`
	Iterations int               `json:"iterations"`
	Converged  bool              `json:"converged"`
	Status     CalibrationStatus `json:"status"`
}

// ImpliedVolatility finds the volatility at which the Black-Scholes price of
// spec equals marketPrice, starting from seed (typically historical volatility).
//
// The search is Newton-Raphson on sigma, safeguarded by a bracket: model price
// is increasing in sigma, so every evaluation tightens [lo, hi] within
// [cfg.MinSigma, cfg.MaxSigma]. When vega is below cfg.VegaEpsilon, or the
// Newton step would leave the bracket, the bracket is bisected instead. Sigma
// stays strictly positive throughout.
//
// Only malformed input returns an error (ErrInvalidInput). Failing to converge
// and non-finite intermediates are reported through the result.
func ImpliedVolatility(spec ContractSpec, marketPrice, seed float64, cfg CalibrationConfig) (CalibrationResult, error) {
	if err := spec.Validate(); err != nil {
		return CalibrationResult{}, err
	}
	if !isFinite(marketPrice) {
		return CalibrationResult{}, fmt.Errorf("%w: market price must be finite, got %v", ErrInvalidInput, marketPrice)
	}
	if err := validateSigma(seed); err != nil {
		return CalibrationResult{}, err
	}
	if err := cfg.Validate(); err != nil {
		return CalibrationResult{}, err
	}

	lo, hi := cfg.MinSigma, cfg.MaxSigma
	sigma := math.Min(math.Max(seed, lo), hi)

	for i := 0; i < cfg.MaxIterations; i++ {
		res, err := price(spec, sigma)
		if err != nil {
			return CalibrationResult{Sigma: sigma, Iterations: i, Status: StatusDegenerate}, nil
		}
		v := vega(spec, res.D1)
		if !isFinite(v) {
			return CalibrationResult{Sigma: sigma, Iterations: i, Status: StatusDegenerate}, nil
		}

		diff := res.Price - marketPrice
		if math.Abs(diff) < cfg.Tolerance {
			return CalibrationResult{Sigma: sigma, Iterations: i, Converged: true, Status: StatusConverged}, nil
		}

		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		next := 0.5 * (lo + hi)
		if v >= cfg.VegaEpsilon {
			if step := sigma - diff/v; step > lo && step < hi {
				next = step
			}
		}
		sigma = next
	}

	return CalibrationResult{Sigma: sigma, Iterations: cfg.MaxIterations, Status: StatusMaxIterations}, nil
}

// ImpliedVolATM calibrates the call branch at strike K to the average of an
// at-the-money call and put quote, seeded at 20%.
func ImpliedVolATM(S, K, T, r, callPrice, putPrice float64, cfg CalibrationConfig) (CalibrationResult, error) {
	spec := ContractSpec{Spot: S, Strike: K, Time: T, Rate: r, Kind: Call}
	return ImpliedVolatility(spec, (callPrice+putPrice)/2, 0.20, cfg)
}
