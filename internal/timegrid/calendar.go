package timegrid

import "time"

// DaysInMonth returns the number of days in m, accounting for leap years.
func DaysInMonth(m Month) int {
	// Day 0 of the following month normalizes to the last day of m.
	return time.Date(m.Year, m.Mon+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInYear returns 366 for leap years, 365 otherwise.
func DaysInYear(year int) int {
	if isLeap(year) {
		return 366
	}
	return 365
}

// Quarter returns the calendar quarter (1..4) containing m.
func Quarter(m Month) int {
	return (int(m.Mon)-1)/3 + 1
}

// DaysInQuarter returns the number of days in the calendar quarter
// containing m.
func DaysInQuarter(m Month) int {
	first := time.Month((Quarter(m)-1)*3 + 1)
	days := 0
	for i := 0; i < 3; i++ {
		days += DaysInMonth(Month{Year: m.Year, Mon: first + time.Month(i)})
	}
	return days
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
