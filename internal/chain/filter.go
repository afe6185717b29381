package chain

import (
	"math"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// ErrInvalidFilter is returned for expressions that do not compile or do not
// evaluate to a boolean.
var ErrInvalidFilter = errors.New("invalid strike filter")

var filterFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, errors.New("abs takes one argument")
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, errors.New("abs takes a number")
		}
		return math.Abs(v), nil
	},
}

// StrikeFilter selects the contracts of a chain to value. The expression sees
// strike, spot, days, moneyness (strike/spot - 1), call and put, e.g.
//
//	abs(moneyness) <= 0.15 && (call || strike < spot)
type StrikeFilter struct {
	expr *govaluate.EvaluableExpression
	src  string
}

// NewStrikeFilter compiles expr. An empty expression keeps everything and
// returns a nil filter.
func NewStrikeFilter(expr string) (*StrikeFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, filterFunctions)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFilter, "%q: %v", expr, err)
	}
	f := &StrikeFilter{expr: e, src: expr}

	// catch unknown variables and non-boolean results before any data is fetched
	if _, err := f.Keep(data.OptionQuote{Strike: 100}, 100, 30); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *StrikeFilter) String() string {
	if f == nil {
		return ""
	}
	return f.src
}

// Keep evaluates the filter for q. A nil filter keeps every quote.
func (f *StrikeFilter) Keep(q data.OptionQuote, spot float64, days int) (bool, error) {
	if f == nil {
		return true, nil
	}
	moneyness := 0.0
	if spot > 0 {
		moneyness = q.Strike/spot - 1
	}
	out, err := f.expr.Evaluate(map[string]interface{}{
		"strike":    q.Strike,
		"spot":      spot,
		"days":      float64(days),
		"moneyness": moneyness,
		"call":      q.Kind == pricing.Call,
		"put":       q.Kind == pricing.Put,
	})
	if err != nil {
		return false, errors.Wrapf(ErrInvalidFilter, "%q: %v", f.src, err)
	}
	keep, ok := out.(bool)
	if !ok {
		return false, errors.Wrapf(ErrInvalidFilter, "%q is not a condition", f.src)
	}
	return keep, nil
}

// Apply returns the quotes f keeps.
func (f *StrikeFilter) Apply(quotes []data.OptionQuote, spot float64, days int) ([]data.OptionQuote, error) {
	if f == nil {
		return quotes, nil
	}
	out := quotes[:0:0]
	for _, q := range quotes {
		keep, err := f.Keep(q, spot, days)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, q)
		}
	}
	return out, nil
}
