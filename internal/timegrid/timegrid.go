package timegrid

import (
	"fmt"
	"time"
)

// monthLayout is the authoring date format: English three-letter month
// followed by a four-digit year.
const monthLayout = "Jan 2006"

// Month identifies one calendar month.
type Month struct {
	Year int
	Mon  time.Month
}

// ParseMonth parses an authoring date such as "Jan 2026".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q (want e.g. \"Jan 2026\"): %w", s, err)
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// String renders the month in the authoring format.
func (m Month) String() string {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC).Format(monthLayout)
}

// Add returns the month n months after m. Negative n steps backwards.
func (m Month) Add(n int) Month {
	t := time.Date(m.Year, m.Mon+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Mon: t.Month()}
}

// ordinal converts a month to a linear count usable for subtraction.
func (m Month) ordinal() int {
	return m.Year*12 + int(m.Mon) - 1
}

// Sub returns the number of months from other to m.
func (m Month) Sub(other Month) int {
	return m.ordinal() - other.ordinal()
}

// Before reports whether m falls strictly before other.
func (m Month) Before(other Month) bool {
	return m.ordinal() < other.ordinal()
}

// Grid is the fixed monthly timeline of a model. Period indexes run from 0
// to Len()-1, each covering one calendar month starting at Start.
type Grid struct {
	start  Month
	months int
}

// New builds a grid of months consecutive periods beginning at start.
func New(start Month, months int) (*Grid, error) {
	if months < 1 {
		return nil, fmt.Errorf("timeline must span at least one month, got %d", months)
	}
	return &Grid{start: start, months: months}, nil
}

// Start returns the first period's month.
func (g *Grid) Start() Month { return g.start }

// Len returns the number of periods.
func (g *Grid) Len() int { return g.months }

// MonthAt returns the calendar month of period t. t must be in range.
func (g *Grid) MonthAt(t int) Month {
	if t < 0 || t >= g.months {
		panic(fmt.Sprintf("timegrid: period %d out of range [0,%d)", t, g.months))
	}
	return g.start.Add(t)
}

// IndexOf returns the period index of m, and whether m lies on the grid.
func (g *Grid) IndexOf(m Month) (int, bool) {
	d := m.Sub(g.start)
	if d < 0 || d >= g.months {
		return 0, false
	}
	return d, true
}

// YearStarts reports, per period, whether the period is a January or the
// first period of the grid. Annual-reset accumulations restart wherever
// this is true.
func (g *Grid) YearStarts() []bool {
	out := make([]bool, g.months)
	for t := 0; t < g.months; t++ {
		out[t] = t == 0 || g.start.Add(t).Mon == time.January
	}
	return out
}
