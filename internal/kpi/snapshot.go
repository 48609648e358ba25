package kpi

import (
	"sort"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// Snapshots holds line items by business unit, then month, then category code.
type Snapshots map[string]map[model.Month]map[string]*float64

func (s Snapshots) add(bu string, month model.Month, code string, value *float64) {
	months, ok := s[bu]
	if !ok {
		months = make(map[model.Month]map[string]*float64)
		s[bu] = months
	}
	codes, ok := months[month]
	if !ok {
		codes = make(map[string]*float64)
		months[month] = codes
	}
	codes[code] = value
}

// SnapshotsFromForecasts groups forecast rows into per-unit monthly snapshots.
func SnapshotsFromForecasts(records []model.ForecastRecord) Snapshots {
	s := make(Snapshots)
	for _, r := range records {
		s.add(r.BusinessUnit, r.Month, r.CategoryCode, r.Value)
	}
	return s
}

// SnapshotsFromEntries groups actual entries into per-unit monthly snapshots.
func SnapshotsFromEntries(entries []model.Entry) Snapshots {
	s := make(Snapshots)
	for _, e := range entries {
		s.add(e.BusinessUnit, e.Month, e.CategoryCode, e.Value)
	}
	return s
}

// Records derives the KPIs of every snapshot, ordered by business unit,
// month and alias.
func (s Snapshots) Records() []model.KPIRecord {
	units := make([]string, 0, len(s))
	for bu := range s {
		units = append(units, bu)
	}
	sort.Strings(units)

	var out []model.KPIRecord
	for _, bu := range units {
		months := make([]model.Month, 0, len(s[bu]))
		for m := range s[bu] {
			months = append(months, m)
		}
		model.SortMonths(months)

		for _, m := range months {
			derived := Derive(s[bu][m])
			for _, alias := range Aliases {
				out = append(out, model.KPIRecord{
					KPIAlias:     alias,
					BusinessUnit: bu,
					Month:        m,
					Value:        derived[alias],
				})
			}
		}
	}
	return out
}

// ByMonth regroups KPI rows into month to alias to value, the shape the
// flagging rules consume.
func ByMonth(records []model.KPIRecord) map[model.Month]map[string]*float64 {
	out := make(map[model.Month]map[string]*float64)
	for _, r := range records {
		if out[r.Month] == nil {
			out[r.Month] = make(map[string]*float64)
		}
		out[r.Month][r.KPIAlias] = r.Value
	}
	return out
}

// CategoryMap turns stored KPI categories into alias to category.
func CategoryMap(categories []model.KPICategory) map[string]string {
	out := make(map[string]string, len(categories))
	for _, c := range categories {
		out[c.Alias] = c.Category
	}
	return out
}
