package tool

import (
	"errors"
	"fmt"
	"time"
)

const MonthLayout = "2006-01"

var ErrInvalidMonth = errors.New("invalid month")

// MonthKey formats t as YYYY-MM in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// ParseMonth parses YYYY-MM and returns the half-open UTC range [start, end).
func ParseMonth(s string) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w %q, want YYYY-MM: %w", ErrInvalidMonth, s, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// PreviousMonthKey returns the month before t as YYYY-MM.
func PreviousMonthKey(t time.Time) string {
	first := time.Date(t.UTC().Year(), t.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthKey(first.AddDate(0, -1, 0))
}
