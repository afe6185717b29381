// Package calendar generates option expiration dates and maturities.
package calendar

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the YYYY-MM-DD layout used in file names and exports.
const DateLayout = "2006-01-02"

// DaysPerYear converts whole days to a year fraction.
const DaysPerYear = 365.0

// NextFridays returns the next n Fridays counting from the calendar day of
// from, including that day when it is a Friday. Weekly equity options expire
// on Fridays.
func NextFridays(from time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}

	day := truncateDay(from)
	offset := (int(time.Friday) - int(day.Weekday()) + 7) % 7
	first := day.AddDate(0, 0, offset)

	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, first.AddDate(0, 0, 7*i))
	}
	return out
}

// DaysUntil is the number of whole calendar days from from to target,
// measured between midnights so the time of day does not matter.
func DaysUntil(from, target time.Time) int {
	start := truncateDay(from)
	end := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, from.Location())
	return int(math.Round(end.Sub(start).Hours() / 24))
}

// YearFraction converts days to years on an Actual/365 basis.
func YearFraction(days int) float64 {
	return float64(days) / DaysPerYear
}

// ParseDate converts YYYY-MM-DD to a UTC time.Time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse date %q", s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
