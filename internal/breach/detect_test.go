package breach

import (
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categories = map[string]string{
	"PROF":  model.KPICategoryProfit,
	"SALES": model.KPICategorySales,
	"COST":  model.KPICategoryCost,
}

func TestDetect_DirectionalRule(t *testing.T) {
	jan := model.NewMonth(2026, time.January)

	tests := []struct {
		name    string
		alias   string
		value   float64
		target  float64
		flagged bool
	}{
		{"sales under target", "SALES", 90, 100, true},
		{"sales over target", "SALES", 110, 100, false},
		{"sales on target", "SALES", 100, 100, false},
		{"profit under target", "PROF", -5, 0, true},
		{"cost over target", "COST", 110, 100, true},
		{"cost under target", "COST", 90, 100, false},
		{"cost on target", "COST", 100, 100, false},
		{"unknown category", "QR", 0, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := Detect("E1",
				map[model.Month]map[string]*float64{jan: {tt.alias: model.Float(tt.value)}},
				map[model.Month]map[string]*float64{jan: {tt.alias: model.Float(tt.target)}},
				categories)

			flag, ok := flags[jan][tt.alias]
			assert.Equal(t, tt.flagged, ok)
			if tt.flagged {
				assert.Equal(t, model.Flag{
					Month:         jan,
					EmployeeID:    "E1",
					KPIAlias:      tt.alias,
					Category:      categories[tt.alias],
					ForecastValue: tt.value,
					TargetValue:   tt.target,
				}, flag)
			}
		})
	}
}

func TestDetect_SkipsMissingValues(t *testing.T) {
	jan := model.NewMonth(2026, time.January)
	feb := jan.AddMonths(1)

	flags := Detect("E1",
		map[model.Month]map[string]*float64{
			jan: {"SALES": nil, "COST": model.Float(500)},
			feb: {"SALES": model.Float(1)},
		},
		map[model.Month]map[string]*float64{
			jan: {"SALES": model.Float(100)},
		},
		categories)

	require.Len(t, flags, 2, "every month is present")
	assert.Empty(t, flags[jan])
	assert.Empty(t, flags[feb])
	assert.True(t, flags.Empty())
}

func TestDetect_GroupsByMonth(t *testing.T) {
	jan := model.NewMonth(2026, time.January)
	feb := jan.AddMonths(1)

	flags := Detect("E1",
		map[model.Month]map[string]*float64{
			jan: {"SALES": model.Float(50), "COST": model.Float(50)},
			feb: {"SALES": model.Float(150), "COST": model.Float(150)},
		},
		map[model.Month]map[string]*float64{
			jan: {"SALES": model.Float(100), "COST": model.Float(100)},
			feb: {"SALES": model.Float(100), "COST": model.Float(100)},
		},
		categories)

	assert.False(t, flags.Empty())
	assert.Equal(t, 2, flags.Count())
	assert.Contains(t, flags[jan], "SALES")
	assert.Contains(t, flags[feb], "COST")

	sorted := flags.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, jan, sorted[0].Month)
	assert.Equal(t, feb, sorted[1].Month)
}

func TestTargets(t *testing.T) {
	jan := model.NewMonth(2026, time.January)
	targets := Targets([]model.TargetParameter{
		{EmployeeID: "E1", KPIAlias: "SALES", Month: jan, Value: model.Float(100)},
		{EmployeeID: "E1", KPIAlias: "COST", Month: jan},
	})

	require.Contains(t, targets, jan)
	assert.Equal(t, 100.0, *targets[jan]["SALES"])
	assert.Nil(t, targets[jan]["COST"])
}
