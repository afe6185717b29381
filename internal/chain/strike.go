package chain

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/logger"
)

var ErrInvalidStrikeExpression = errors.New("invalid strike expression")

// SelectStrike resolves a strike expression against the listed strikes of
// rows. Supported forms:
//
//	ATM          listed strike nearest spot
//	ATM:+5       nearest spot+5
//	ATM:-10%     nearest spot*0.9
//	DELTA:0.25   strike whose |Delta| is nearest 0.25
//
// DELTA only considers valued rows.
func SelectStrike(expr string, rows []Row, spot float64) (float64, error) {
	expr = strings.ToUpper(strings.TrimSpace(expr))
	logger.Tracef("select strike %s spot=%.4f rows=%d", expr, spot, len(rows))

	switch {
	case expr == "ATM":
		return nearestListed(rows, spot)

	case strings.HasPrefix(expr, "ATM:"):
		target, err := applyOffset(strings.TrimPrefix(expr, "ATM:"), spot)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidStrikeExpression, "%s: %v", expr, err)
		}
		return nearestListed(rows, target)

	case strings.HasPrefix(expr, "DELTA:"):
		target, err := strconv.ParseFloat(strings.TrimPrefix(expr, "DELTA:"), 64)
		if err != nil || math.Abs(target) > 1 {
			return 0, errors.Wrapf(ErrInvalidStrikeExpression, "%s: delta must be within [-1, 1]", expr)
		}
		return nearestDelta(rows, math.Abs(target))
	}
	return 0, errors.Wrap(ErrInvalidStrikeExpression, expr)
}

// applyOffset moves spot by an absolute (+10) or percentage (-5%) offset.
func applyOffset(offset string, spot float64) (float64, error) {
	if spot <= 0 {
		return 0, errors.New("no spot price")
	}
	if strings.HasSuffix(offset, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(offset, "%"), 64)
		if err != nil {
			return 0, err
		}
		return spot * (1 + pct/100), nil
	}
	abs, err := strconv.ParseFloat(offset, 64)
	if err != nil {
		return 0, err
	}
	return spot + abs, nil
}

func nearestListed(rows []Row, target float64) (float64, error) {
	if target <= 0 {
		return 0, errors.Wrap(ErrInvalidStrikeExpression, "target strike is not positive")
	}
	strikes := make([]float64, 0, len(rows))
	for _, r := range rows {
		strikes = append(strikes, r.Strike)
	}
	sort.Float64s(strikes)
	k, ok := data.Closest(strikes, target)
	if !ok {
		return 0, errors.Wrap(data.ErrNoData, "no listed strikes")
	}
	return k, nil
}

func nearestDelta(rows []Row, target float64) (float64, error) {
	best, bestDiff := 0.0, math.Inf(1)
	for _, r := range rows {
		if r.Failed() || r.Status == "" || math.IsNaN(r.Delta) {
			continue
		}
		diff := math.Abs(math.Abs(r.Delta) - target)
		if diff < bestDiff || (diff == bestDiff && r.Strike < best) {
			best, bestDiff = r.Strike, diff
		}
	}
	if math.IsInf(bestDiff, 1) {
		return 0, errors.Wrap(data.ErrNoData, "no valued contracts")
	}
	return best, nil
}
