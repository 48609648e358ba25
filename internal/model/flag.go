package model

import "sort"

// Flag is a detected breach of a manager's target for one KPI in one month.
type Flag struct {
	Month         Month
	EmployeeID    string
	KPIAlias      string
	Category      string
	ForecastValue float64
	TargetValue   float64
}

// FlagSet groups flags by month and KPI alias. A month with nothing to report
// is present with an empty map.
type FlagSet map[Month]map[string]Flag

// Empty reports whether no month carries a flag.
func (fs FlagSet) Empty() bool {
	for _, flags := range fs {
		if len(flags) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of flags.
func (fs FlagSet) Count() int {
	n := 0
	for _, flags := range fs {
		n += len(flags)
	}
	return n
}

// Months returns the months of the set in ascending order.
func (fs FlagSet) Months() []Month {
	months := make([]Month, 0, len(fs))
	for m := range fs {
		months = append(months, m)
	}
	SortMonths(months)
	return months
}

// Sorted returns every flag ordered by month then alias.
func (fs FlagSet) Sorted() []Flag {
	out := make([]Flag, 0, fs.Count())
	for _, m := range fs.Months() {
		aliases := make([]string, 0, len(fs[m]))
		for alias := range fs[m] {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			out = append(out, fs[m][alias])
		}
	}
	return out
}

// SortMonths sorts months ascending in place.
func SortMonths(months []Month) {
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
}
