// Package storage provides the data persistence layer for forecast-flow.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrEmptySlice          = errors.New("slice cannot be empty")
	ErrInvalidMonthRange   = errors.New("start month must be before end month")
	ErrInvalidEntry        = errors.New("invalid P&L entry")
	ErrInvalidForecast     = errors.New("invalid forecast")
	ErrInvalidKPI          = errors.New("invalid KPI record")
	ErrInvalidParameter    = errors.New("invalid target parameter")
	ErrInvalidNotification = errors.New("invalid notification")
	ErrInvalidEmployee     = errors.New("invalid employee")
	ErrInvalidCategory     = errors.New("invalid category")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateMonthRange(after, through model.Month) error {
	if after.IsZero() || through.IsZero() || !after.Before(through) {
		return fmt.Errorf("%w: %v..%v", ErrInvalidMonthRange, after, through)
	}
	return nil
}

func validateRollForward(from model.Month, months int) error {
	if from.IsZero() {
		return fmt.Errorf("%w: roll-forward month", ErrNilParameter)
	}
	if months <= 0 {
		return fmt.Errorf("%w: roll-forward months must be positive, got %d", ErrInvalidParameter, months)
	}
	return nil
}

func validateCategory(category model.Category) error {
	if strings.TrimSpace(category.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidCategory)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	return nil
}

func validateEmployee(employee model.Employee) error {
	if strings.TrimSpace(employee.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidEmployee)
	}
	if strings.TrimSpace(employee.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEmployee)
	}
	if strings.TrimSpace(employee.BusinessUnit) == "" {
		return fmt.Errorf("%w: missing business unit", ErrInvalidEmployee)
	}
	return nil
}

// validateEntries validates a slice of actual entries.
func validateEntries(entries []model.Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: entries", ErrEmptySlice)
	}
	for i, e := range entries {
		if e.CategoryCode == "" || e.BusinessUnit == "" {
			return fmt.Errorf("entry at index %d: %w: missing key", i, ErrInvalidEntry)
		}
		if e.Month.IsZero() {
			return fmt.Errorf("entry at index %d: %w: missing month", i, ErrInvalidEntry)
		}
	}
	return nil
}

func validateForecasts(forecasts []model.ForecastRecord) error {
	if len(forecasts) == 0 {
		return fmt.Errorf("%w: forecasts", ErrEmptySlice)
	}
	for i, f := range forecasts {
		if f.CategoryCode == "" || f.BusinessUnit == "" {
			return fmt.Errorf("forecast at index %d: %w: missing key", i, ErrInvalidForecast)
		}
		if f.Month.IsZero() {
			return fmt.Errorf("forecast at index %d: %w: missing month", i, ErrInvalidForecast)
		}
	}
	return nil
}

func validateKPIs(kpis []model.KPIRecord) error {
	if len(kpis) == 0 {
		return fmt.Errorf("%w: kpis", ErrEmptySlice)
	}
	for i, k := range kpis {
		if k.KPIAlias == "" || k.BusinessUnit == "" {
			return fmt.Errorf("kpi at index %d: %w: missing key", i, ErrInvalidKPI)
		}
		if k.Month.IsZero() {
			return fmt.Errorf("kpi at index %d: %w: missing month", i, ErrInvalidKPI)
		}
	}
	return nil
}

func validateParameters(params []model.TargetParameter) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: parameters", ErrEmptySlice)
	}
	for i, p := range params {
		if p.EmployeeID == "" || p.KPIAlias == "" {
			return fmt.Errorf("parameter at index %d: %w: missing key", i, ErrInvalidParameter)
		}
		if p.Month.IsZero() {
			return fmt.Errorf("parameter at index %d: %w: missing month", i, ErrInvalidParameter)
		}
	}
	return nil
}

func validateNotification(n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification", ErrNilParameter)
	}
	if strings.TrimSpace(n.EmployeeID) == "" {
		return fmt.Errorf("%w: missing employee", ErrInvalidNotification)
	}
	if strings.TrimSpace(n.Subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidNotification)
	}
	return nil
}
