package xtime

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// ParseMonth parses a YYYY-MM value into the first instant of that month in loc.
// An empty value yields the current month.
func ParseMonth(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		start, _ := MonthRange(time.Now().In(loc))
		return start, nil
	}

	parsed, err := time.ParseInLocation(monthLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", value, err)
	}
	return parsed, nil
}

// MonthRange returns the start of t's month and the start of the following
// month. The end is exclusive.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// LastMonths returns the starts of the n months ending with now's month,
// oldest first.
func LastMonths(now time.Time, n int) []time.Time {
	current, _ := MonthRange(now)
	months := make([]time.Time, n)
	for i := range n {
		months[i] = current.AddDate(0, i-n+1, 0)
	}
	return months
}

func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}
