package model

import "time"

// ChangeStatus describes how an upsert affected a row.
type ChangeStatus string

// Change status constants.
const (
	StatusCreated   ChangeStatus = "created"
	StatusUpdated   ChangeStatus = "updated"
	StatusUnchanged ChangeStatus = "unchanged"
)

// BusinessUnit is a reporting unit that owns P&L line items.
type BusinessUnit struct {
	Alias string
	Name  string
}

// Category is a P&L line-item category. Only the flat code to trend mapping
// matters to forecasting; the hierarchy is maintained by the ingester.
type Category struct {
	Code        string
	Name        string
	ParentCode  string
	Description string
	Trend       TrendClass
}

// Entry is an actual P&L value for one category, business unit and month.
type Entry struct {
	Value        *float64
	Month        Month
	CategoryCode string
	BusinessUnit string
	Trend        TrendClass
}

// Key returns the series the entry belongs to.
func (e Entry) Key() SeriesKey {
	return SeriesKey{CategoryCode: e.CategoryCode, BusinessUnit: e.BusinessUnit}
}

// EntryRecord is an Entry annotated with the result of its upsert.
type EntryRecord struct {
	Entry
	ChangeStatus ChangeStatus
}

// ForecastRecord is a forecast P&L value keyed by (category, business unit, month).
type ForecastRecord struct {
	Value        *float64
	Month        Month
	CategoryCode string
	BusinessUnit string
	ChangeStatus ChangeStatus
}

// Key returns the series the forecast belongs to.
func (f ForecastRecord) Key() SeriesKey {
	return SeriesKey{CategoryCode: f.CategoryCode, BusinessUnit: f.BusinessUnit}
}

// KPIRecord is a derived KPI value keyed by (alias, business unit, month).
type KPIRecord struct {
	Value        *float64
	Month        Month
	KPIAlias     string
	BusinessUnit string
	ChangeStatus ChangeStatus
}

// KPI category labels used by the flagging rules.
const (
	KPICategoryProfit = "PROFIT"
	KPICategorySales  = "SALES"
	KPICategoryCost   = "COST"
)

// KPICategory describes one KPI alias.
type KPICategory struct {
	Alias       string
	Name        string
	Category    string
	Description string
}

// TargetParameter is a manager's target for one KPI in one month.
type TargetParameter struct {
	Value        *float64
	Month        Month
	EmployeeID   string
	KPIAlias     string
	ChangeStatus ChangeStatus
	IsNotified   bool
}

// Manager roles receive targets and alerts.
const (
	RoleBUManager     = "BU Manager"
	RoleSeniorManager = "Senior Manager"
)

// Employee is a person who may own targets.
type Employee struct {
	CreatedAt    time.Time
	ID           string
	Name         string
	Email        string
	PhoneNumber  string
	Role         string
	BusinessUnit string
}

// NotificationTypeKPIAlert marks notifications raised by target breaches.
const NotificationTypeKPIAlert = "KPI_ALERT"

// Notification is an alert stored for an employee.
type Notification struct {
	CreatedAt  time.Time
	EmployeeID string
	Type       string
	Subject    string
	Body       string
	ID         int64
	IsRead     bool
}
