package timegrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	t.Run("valid dates", func(t *testing.T) {
		m, err := ParseMonth("Jan 2026")
		require.NoError(t, err)
		assert.Equal(t, Month{Year: 2026, Mon: time.January}, m)

		m, err = ParseMonth("Dec 2031")
		require.NoError(t, err)
		assert.Equal(t, Month{Year: 2031, Mon: time.December}, m)
	})

	t.Run("invalid dates", func(t *testing.T) {
		_, err := ParseMonth("January 2026")
		assert.Error(t, err)
		_, err = ParseMonth("2026-01")
		assert.Error(t, err)
		_, err = ParseMonth("")
		assert.Error(t, err)
	})
}

func TestMonthString(t *testing.T) {
	m := Month{Year: 2027, Mon: time.February}
	assert.Equal(t, "Feb 2027", m.String())
}

func TestMonthArithmetic(t *testing.T) {
	jan := Month{Year: 2026, Mon: time.January}

	assert.Equal(t, Month{Year: 2026, Mon: time.December}, jan.Add(11))
	assert.Equal(t, Month{Year: 2027, Mon: time.January}, jan.Add(12))
	assert.Equal(t, Month{Year: 2025, Mon: time.November}, jan.Add(-2))

	assert.Equal(t, 14, Month{Year: 2027, Mon: time.March}.Sub(jan))
	assert.True(t, jan.Before(jan.Add(1)))
	assert.False(t, jan.Before(jan))
}

func TestGrid(t *testing.T) {
	start := Month{Year: 2026, Mon: time.November}
	g, err := New(start, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, start, g.MonthAt(0))
	assert.Equal(t, Month{Year: 2027, Mon: time.February}, g.MonthAt(3))

	idx, ok := g.IndexOf(Month{Year: 2027, Mon: time.January})
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = g.IndexOf(Month{Year: 2027, Mon: time.March})
	assert.False(t, ok)
	_, ok = g.IndexOf(Month{Year: 2026, Mon: time.October})
	assert.False(t, ok)
}

func TestGridRejectsEmptyTimeline(t *testing.T) {
	_, err := New(Month{Year: 2026, Mon: time.January}, 0)
	assert.Error(t, err)
}

func TestYearStarts(t *testing.T) {
	// Nov 2026 .. Feb 2027: the first period counts as a start, then Jan.
	g, err := New(Month{Year: 2026, Mon: time.November}, 4)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, g.YearStarts())
}

func TestCalendar(t *testing.T) {
	t.Run("days in month", func(t *testing.T) {
		assert.Equal(t, 29, DaysInMonth(Month{Year: 2024, Mon: time.February}))
		assert.Equal(t, 28, DaysInMonth(Month{Year: 2026, Mon: time.February}))
		assert.Equal(t, 28, DaysInMonth(Month{Year: 2100, Mon: time.February})) // century, not leap
		assert.Equal(t, 29, DaysInMonth(Month{Year: 2000, Mon: time.February}))
		assert.Equal(t, 31, DaysInMonth(Month{Year: 2026, Mon: time.January}))
		assert.Equal(t, 30, DaysInMonth(Month{Year: 2026, Mon: time.April}))
	})

	t.Run("days in year", func(t *testing.T) {
		assert.Equal(t, 366, DaysInYear(2024))
		assert.Equal(t, 365, DaysInYear(2026))
		assert.Equal(t, 365, DaysInYear(2100))
	})

	t.Run("quarters", func(t *testing.T) {
		assert.Equal(t, 1, Quarter(Month{Year: 2026, Mon: time.March}))
		assert.Equal(t, 4, Quarter(Month{Year: 2026, Mon: time.October}))
		// Q1 2024 is leap: 31+29+31.
		assert.Equal(t, 91, DaysInQuarter(Month{Year: 2024, Mon: time.February}))
		assert.Equal(t, 90, DaysInQuarter(Month{Year: 2026, Mon: time.January}))
		// Q3 is 31+31+30 everywhere.
		assert.Equal(t, 92, DaysInQuarter(Month{Year: 2026, Mon: time.August}))
	})
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in     string
		months int
		ok     bool
	}{
		{"18 months", 18, true},
		{"1 month", 1, true},
		{"8 years", 96, true},
		{"1 year", 12, true},
		{"2 Years", 24, true},
		{"0 months", 0, false},
		{"months", 0, false},
		{"eighteen months", 0, false},
		{"18 weeks", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			n, err := ParseDuration(tc.in)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.months, n)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
