package pricing

import (
	"fmt"
	"math"
)

// SensitivityResult holds the first-order Greeks of one contract.
type SensitivityResult struct {
	Delta float64
	Vega  float64
}

// Delta is the change in option value per unit change in spot:
// Φ(d1) for a call and Φ(d1)-1 for a put.
func Delta(spec ContractSpec, sigma float64) (float64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := validateSigma(sigma); err != nil {
		return 0, err
	}
	d1, _ := d1d2(spec, sigma)
	if !isFinite(d1) {
		return 0, fmt.Errorf("%w: d1=%v", ErrNumericalDegeneracy, d1)
	}
	return delta(spec.Kind, d1)
}

// Vega is the change in option value per unit change in volatility,
// S·√T·φ(d1). It is the same for calls and puts.
func Vega(spec ContractSpec, sigma float64) (float64, error) {
	if err := spec.validateNumbers(); err != nil {
		return 0, err
	}
	if err := validateSigma(sigma); err != nil {
		return 0, err
	}
	d1, _ := d1d2(spec, sigma)
	if !isFinite(d1) {
		return 0, fmt.Errorf("%w: d1=%v", ErrNumericalDegeneracy, d1)
	}
	return vega(spec, d1), nil
}

// Sensitivities evaluates Delta and Vega from one shared d1.
func Sensitivities(spec ContractSpec, sigma float64) (SensitivityResult, error) {
	if err := spec.Validate(); err != nil {
		return SensitivityResult{}, err
	}
	if err := validateSigma(sigma); err != nil {
		return SensitivityResult{}, err
	}
	d1, _ := d1d2(spec, sigma)
	if !isFinite(d1) {
		return SensitivityResult{}, fmt.Errorf("%w: d1=%v", ErrNumericalDegeneracy, d1)
	}
	d, err := delta(spec.Kind, d1)
	if err != nil {
		return SensitivityResult{}, err
	}
	return SensitivityResult{Delta: d, Vega: vega(spec, d1)}, nil
}

func delta(kind OptionKind, d1 float64) (float64, error) {
	switch kind {
	case Call:
		return normCDF(d1), nil
	case Put:
		return normCDF(d1) - 1, nil
	default:
		return 0, fmt.Errorf("%w: unknown option kind %v", ErrInvalidInput, kind)
	}
}

func vega(spec ContractSpec, d1 float64) float64 {
	return spec.Spot * math.Sqrt(spec.Time) * normPDF(d1)
}
