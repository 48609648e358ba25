package testutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/service"
)

// Fixture is a fluent builder for reference data, actuals and targets.
// Rows are written in dependency order by Apply.
type Fixture struct {
	units      []model.BusinessUnit
	categories []model.Category
	employees  []model.Employee
	entries    []model.Entry
	targets    []model.TargetParameter
}

// NewFixture returns an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{}
}

// WithBusinessUnit adds a business unit.
func (f *Fixture) WithBusinessUnit(alias string) *Fixture {
	f.units = append(f.units, model.BusinessUnit{Alias: alias, Name: alias})
	return f
}

// WithCategory adds a P&L category with the given trend class.
func (f *Fixture) WithCategory(code string, trend model.TrendClass) *Fixture {
	f.categories = append(f.categories, model.Category{Code: code, Name: code, Trend: trend})
	return f
}

// WithManager adds a BU manager reachable by email and phone.
func (f *Fixture) WithManager(id, businessUnit string) *Fixture {
	f.employees = append(f.employees, model.Employee{
		ID:           id,
		Name:         "Manager " + id,
		Email:        strings.ToLower(id) + "@example.com",
		PhoneNumber:  "6500000" + id,
		Role:         model.RoleBUManager,
		BusinessUnit: businessUnit,
	})
	return f
}

// WithEmployee adds an arbitrary employee.
func (f *Fixture) WithEmployee(e model.Employee) *Fixture {
	f.employees = append(f.employees, e)
	return f
}

// WithSeries adds consecutive monthly actuals for one series starting at start.
func (f *Fixture) WithSeries(code, businessUnit string, start model.Month, values ...float64) *Fixture {
	for i, v := range values {
		f.entries = append(f.entries, model.Entry{
			CategoryCode: code,
			BusinessUnit: businessUnit,
			Month:        start.AddMonths(i),
			Value:        model.Float(v),
		})
	}
	return f
}

// WithTarget adds a KPI target for an employee.
func (f *Fixture) WithTarget(employeeID, alias string, month model.Month, value float64) *Fixture {
	f.targets = append(f.targets, model.TargetParameter{
		EmployeeID: employeeID,
		KPIAlias:   alias,
		Month:      month,
		Value:      model.Float(value),
	})
	return f
}

// Apply writes the fixture to storage.
func (f *Fixture) Apply(ctx context.Context, storage service.Storage) error {
	for _, bu := range f.units {
		if err := storage.SaveBusinessUnit(ctx, bu); err != nil {
			return fmt.Errorf("business unit %s: %w", bu.Alias, err)
		}
	}
	for _, c := range f.categories {
		if err := storage.SaveCategory(ctx, c); err != nil {
			return fmt.Errorf("category %s: %w", c.Code, err)
		}
	}
	for _, e := range f.employees {
		if err := storage.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("employee %s: %w", e.ID, err)
		}
	}
	if len(f.entries) > 0 {
		if _, err := storage.SaveEntries(ctx, f.entries); err != nil {
			return fmt.Errorf("entries: %w", err)
		}
	}
	if len(f.targets) > 0 {
		if _, err := storage.SaveParameters(ctx, f.targets); err != nil {
			return fmt.Errorf("targets: %w", err)
		}
	}
	return nil
}

// Linear returns n values starting at start and increasing by step.
func Linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
