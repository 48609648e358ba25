// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// monthLayout is the display format used by reports and alerts (e.g. 01-2026).
const monthLayout = "01-2006"

// monthKeyLayout is the storage format; it sorts lexicographically.
const monthKeyLayout = "2006-01"

// Month identifies a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth normalizes year and month into a Month.
func NewMonth(year int, month time.Month) Month {
	return MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a month in MM-YYYY form.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// ParseMonthKey parses a month in the YYYY-MM storage form.
func ParseMonthKey(s string) (Month, error) {
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month key %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// Time returns the first instant of the month in UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Time().AddDate(0, n, 0))
}

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool {
	return m.Key() < other.Key()
}

// After reports whether m is strictly later than other.
func (m Month) After(other Month) bool {
	return m.Key() > other.Key()
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Key renders the month for storage (YYYY-MM).
func (m Month) Key() string {
	return m.Time().Format(monthKeyLayout)
}

func (m Month) String() string {
	return m.Time().Format(monthLayout)
}

// MonthRange returns the n months following from, in ascending order.
func MonthRange(from Month, n int) []Month {
	months := make([]Month, 0, n)
	for i := 1; i <= n; i++ {
		months = append(months, from.AddMonths(i))
	}
	return months
}
