// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Reference data
	SaveBusinessUnit(ctx context.Context, bu model.BusinessUnit) error
	SaveCategory(ctx context.Context, category model.Category) error
	GetCategoryTrends(ctx context.Context) (map[string]model.TrendClass, error)
	SaveEmployee(ctx context.Context, employee model.Employee) error
	GetManagers(ctx context.Context) ([]model.Employee, error)
	GetKPICategories(ctx context.Context) ([]model.KPICategory, error)

	// Actual P&L entries
	SaveEntries(ctx context.Context, entries []model.Entry) ([]model.EntryRecord, error)
	GetLatestEntryMonth(ctx context.Context) (model.Month, error)
	GetEntriesInRange(ctx context.Context, after, through model.Month) ([]model.Entry, error)

	// Forecasts
	UpsertForecasts(ctx context.Context, forecasts []model.ForecastRecord) ([]model.ForecastRecord, error)
	GetForecastsForMonths(ctx context.Context, months []model.Month) ([]model.ForecastRecord, error)

	// KPIs
	UpsertKPIForecasts(ctx context.Context, kpis []model.KPIRecord) ([]model.KPIRecord, error)
	UpsertKPIEntries(ctx context.Context, kpis []model.KPIRecord) ([]model.KPIRecord, error)
	GetKPIForecasts(ctx context.Context, businessUnit string, months []model.Month) ([]model.KPIRecord, error)

	// Target parameters
	SaveParameters(ctx context.Context, params []model.TargetParameter) ([]model.TargetParameter, error)
	GetTargets(ctx context.Context, employeeID string, months []model.Month) ([]model.TargetParameter, error)
	RollForwardParameters(ctx context.Context, from model.Month, months int) ([]model.TargetParameter, error)
	MarkParametersNotified(ctx context.Context, flags []model.Flag) error

	// Notifications
	SaveNotification(ctx context.Context, notification *model.Notification) error
	GetNotifications(ctx context.Context, employeeID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Multiplier     float64
}
