package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	jan := model.NewMonth(2026, time.January)
	feb := jan.AddMonths(1)
	mar := jan.AddMonths(2)
	employee := model.Employee{ID: "E1", Name: "Dewi", BusinessUnit: "BB1"}

	flags := model.FlagSet{
		jan: {
			"SALES": {Month: jan, KPIAlias: "SALES", Category: model.KPICategorySales, ForecastValue: 90, TargetValue: 100},
			"COST":  {Month: jan, KPIAlias: "COST", Category: model.KPICategoryCost, ForecastValue: 110.5, TargetValue: 100},
		},
		feb: {},
		mar: {
			"GPM": {Month: mar, KPIAlias: "GPM", Category: model.KPICategoryProfit, ForecastValue: 12.3456, TargetValue: 15},
		},
	}

	subject, body := Compose(employee, flags, []model.Month{mar, jan, feb})

	assert.Equal(t, "KPI alert: 3 targets at risk for 01-2026 to 03-2026", subject)
	assert.True(t, strings.HasPrefix(body, "Hi Dewi,\n\nThe latest forecast for BB1 is off target:\n"))
	assert.Contains(t, body, "01-2026\n  COST: forecast 110.5, target 100 (above target)\n  SALES: forecast 90, target 100 (below target)\n")
	assert.Contains(t, body, "02-2026\n  on track\n")
	assert.Contains(t, body, "03-2026\n  GPM: forecast 12.3456, target 15 (below target)\n")
	assert.Less(t, strings.Index(body, "01-2026"), strings.Index(body, "03-2026"))
}

func TestCompose_SingleFlagDefaultsToFlagMonths(t *testing.T) {
	jan := model.NewMonth(2026, time.January)
	flags := model.FlagSet{jan: {"SALES": {Month: jan, KPIAlias: "SALES", Category: model.KPICategorySales}}}

	subject, body := Compose(model.Employee{ID: "E9"}, flags, nil)

	assert.Equal(t, "KPI alert: 1 target at risk for 01-2026 to 01-2026", subject)
	assert.True(t, strings.HasPrefix(body, "Hi E9,\n\nThe latest forecast is off target:\n"))
}
