// Package breach compares forecast KPIs with managers' targets.
package breach

import (
	"github.com/Veraticus/forecast-flow/internal/model"
)

// Detect flags every (month, alias) where the forecast breaches the target
// in the direction that matters for the alias's category: PROFIT and SALES
// flag under-performance, COST flags over-spend. Pairs missing a value, a
// target or a known category are skipped.
//
// Every month of kpis is present in the result, with an empty map when
// nothing breaches.
func Detect(employeeID string, kpis, targets map[model.Month]map[string]*float64, categoryOf map[string]string) model.FlagSet {
	flags := make(model.FlagSet, len(kpis))

	for month, values := range kpis {
		flags[month] = make(map[string]model.Flag)

		for alias, value := range values {
			target := targets[month][alias]
			if value == nil || target == nil {
				continue
			}

			category := categoryOf[alias]
			if !breached(category, *value, *target) {
				continue
			}

			flags[month][alias] = model.Flag{
				Month:         month,
				EmployeeID:    employeeID,
				KPIAlias:      alias,
				Category:      category,
				ForecastValue: *value,
				TargetValue:   *target,
			}
		}
	}

	return flags
}

func breached(category string, value, target float64) bool {
	switch category {
	case model.KPICategoryProfit, model.KPICategorySales:
		return value < target
	case model.KPICategoryCost:
		return value > target
	default:
		return false
	}
}

// Targets regroups target parameters into month to alias to value.
func Targets(params []model.TargetParameter) map[model.Month]map[string]*float64 {
	out := make(map[model.Month]map[string]*float64)
	for _, p := range params {
		if out[p.Month] == nil {
			out[p.Month] = make(map[string]*float64)
		}
		out[p.Month][p.KPIAlias] = p.Value
	}
	return out
}
