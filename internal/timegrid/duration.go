package timegrid

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDuration parses an authoring duration into a month count. Accepted
// forms are "N months" and "N years" (singular also accepted), N >= 1.
func ParseDuration(s string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid duration %q (want e.g. \"18 months\" or \"8 years\")", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("duration %q must be at least one month", s)
	}
	switch strings.ToLower(fields[1]) {
	case "month", "months":
		return n, nil
	case "year", "years":
		return n * 12, nil
	default:
		return 0, fmt.Errorf("invalid duration unit %q (want months or years)", fields[1])
	}
}
