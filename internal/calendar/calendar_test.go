package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFridays(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		n        int
		expected []string
	}{
		{
			name:     "from a monday",
			from:     time.Date(2025, time.January, 13, 15, 30, 0, 0, time.UTC),
			n:        3,
			expected: []string{"2025-01-17", "2025-01-24", "2025-01-31"},
		},
		{
			name:     "friday counts itself",
			from:     time.Date(2025, time.January, 17, 9, 0, 0, 0, time.UTC),
			n:        2,
			expected: []string{"2025-01-17", "2025-01-24"},
		},
		{
			name:     "saturday rolls to next week",
			from:     time.Date(2025, time.February, 22, 0, 0, 0, 0, time.UTC),
			n:        2,
			expected: []string{"2025-02-28", "2025-03-07"},
		},
		{
			name: "zero",
			from: time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
			n:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fridays := NextFridays(tt.from, tt.n)
			require.Len(t, fridays, len(tt.expected))
			for i, f := range fridays {
				assert.Equal(t, time.Friday, f.Weekday())
				assert.Equal(t, tt.expected[i], FormatDate(f))
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	from := time.Date(2025, time.January, 13, 23, 59, 0, 0, time.UTC)
	expiry := time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 4, DaysUntil(from, expiry))
	assert.Equal(t, 0, DaysUntil(expiry, expiry))
	assert.Equal(t, -4, DaysUntil(expiry, from))
	assert.InDelta(t, 4.0/365, YearFraction(4), 1e-15)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-17")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("01/17/2025")
	require.Error(t, err)
}
