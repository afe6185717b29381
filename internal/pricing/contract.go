package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidInput marks a contract or volatility that the model cannot evaluate.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNumericalDegeneracy marks an evaluation that produced NaN or ±Inf.
	ErrNumericalDegeneracy = errors.New("numerical degeneracy")
)

// OptionKind tags a contract as a call or a put. The zero value is not a valid kind.
type OptionKind uint8

const (
	Call OptionKind = iota + 1
	Put
)

func (k OptionKind) String() string {
	switch k {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return fmt.Sprintf("OptionKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the two recognised kinds.
func (k OptionKind) Valid() bool {
	return k == Call || k == Put
}

// ParseOptionKind accepts "call"/"c" and "put"/"p" in any case.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	default:
		return 0, fmt.Errorf("%w: unknown option kind %q", ErrInvalidInput, s)
	}
}

// ContractSpec describes one European option contract.
//
// Fields:
//   - Spot: spot price of the underlying
//   - Strike: strike price
//   - Time: time to maturity in years
//   - Rate: continuously compounded risk-free rate (may be negative)
//   - Kind: Call or Put
type ContractSpec struct {
	Spot   float64
	Strike float64
	Time   float64
	Rate   float64
	Kind   OptionKind
}

// Validate checks the numeric fields and the option kind.
func (spec ContractSpec) Validate() error {
	if err := spec.validateNumbers(); err != nil {
		return err
	}
	if !spec.Kind.Valid() {
		return fmt.Errorf("%w: unknown option kind %v", ErrInvalidInput, spec.Kind)
	}
	return nil
}

func (spec ContractSpec) validateNumbers() error {
	switch {
	case !isPositive(spec.Spot):
		return fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidInput, spec.Spot)
	case !isPositive(spec.Strike):
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidInput, spec.Strike)
	case !isPositive(spec.Time):
		return fmt.Errorf("%w: time to maturity must be positive, got %v", ErrInvalidInput, spec.Time)
	case !isFinite(spec.Rate):
		return fmt.Errorf("%w: rate must be finite, got %v", ErrInvalidInput, spec.Rate)
	}
	return nil
}

func validateSigma(sigma float64) error {
	if !isPositive(sigma) {
		return fmt.Errorf("%w: volatility must be positive, got %v", ErrInvalidInput, sigma)
	}
	return nil
}

// isPositive is false for NaN and +Inf as well as for x <= 0.
func isPositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
