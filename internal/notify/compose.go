// Package notify composes KPI alerts, stores them and fans them out to
// delivery channels.
package notify

import (
	"fmt"
	"strings"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/shopspring/decimal"
)

// Compose renders the subject and body of an alert covering months. Months
// without a breach are listed as on track so the reader sees the whole
// forecast window.
func Compose(employee model.Employee, flags model.FlagSet, months []model.Month) (subject, body string) {
	if len(months) == 0 {
		months = flags.Months()
	} else {
		months = append([]model.Month(nil), months...)
		model.SortMonths(months)
	}

	count := flags.Count()
	noun := "target"
	if count != 1 {
		noun = "targets"
	}
	subject = fmt.Sprintf("KPI alert: %d %s at risk", count, noun)
	if len(months) > 0 {
		subject += fmt.Sprintf(" for %s to %s", months[0], months[len(months)-1])
	}

	var b strings.Builder
	name := employee.Name
	if name == "" {
		name = employee.ID
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	if employee.BusinessUnit != "" {
		fmt.Fprintf(&b, "The latest forecast for %s is off target:\n", employee.BusinessUnit)
	} else {
		b.WriteString("The latest forecast is off target:\n")
	}

	for _, month := range months {
		fmt.Fprintf(&b, "\n%s\n", month)

		monthFlags := model.FlagSet{month: flags[month]}.Sorted()
		if len(monthFlags) == 0 {
			b.WriteString("  on track\n")
			continue
		}
		for _, f := range monthFlags {
			fmt.Fprintf(&b, "  %s: forecast %s, target %s (%s)\n",
				f.KPIAlias, formatValue(f.ForecastValue), formatValue(f.TargetValue), direction(f.Category))
		}
	}

	return subject, b.String()
}

func direction(category string) string {
	if category == model.KPICategoryCost {
		return "above target"
	}
	return "below target"
}

func formatValue(v float64) string {
	return decimal.NewFromFloat(v).Round(model.RatioPlaces).String()
}
