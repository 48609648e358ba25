package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// SaveParameters upserts manager targets with 4dp change tracking.
func (s *SQLiteStorage) SaveParameters(ctx context.Context, params []model.TargetParameter) ([]model.TargetParameter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateParameters(params); err != nil {
		return nil, err
	}

	var records []model.TargetParameter
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		records, err = s.saveParameters(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStorage) saveParameters(ctx context.Context, q queryable, params []model.TargetParameter) ([]model.TargetParameter, error) {
	rows := make([]valueRow, len(params))
	for i, p := range params {
		rows[i] = valueRow{
			key:   valueKey{first: p.EmployeeID, second: p.KPIAlias, month: p.Month},
			value: p.Value,
		}
	}

	statuses, err := s.upsertValues(ctx, q, parameterTable, rows)
	if err != nil {
		return nil, err
	}

	records := make([]model.TargetParameter, len(params))
	for i, p := range params {
		p.Value = model.RoundPtr(p.Value, parameterTable.places)
		p.ChangeStatus = statuses[i]
		records[i] = p
	}
	return records, nil
}

// GetTargets returns an employee's targets for the given months.
func (s *SQLiteStorage) GetTargets(ctx context.Context, employeeID string, months []model.Month) ([]model.TargetParameter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(employeeID, "employeeID"); err != nil {
		return nil, err
	}
	return s.getTargets(ctx, s.db, employeeID, months)
}

func (s *SQLiteStorage) getTargets(ctx context.Context, q queryable, employeeID string, months []model.Month) ([]model.TargetParameter, error) {
	if len(months) == 0 {
		return nil, nil
	}

	args := []any{employeeID}
	for _, m := range months {
		args = append(args, m.Key())
	}

	query := fmt.Sprintf(`
		SELECT kpi_alias, month, value, COALESCE(is_notified, 0)
		FROM parameter
		WHERE employee_id = ? AND month IN (%s)
		ORDER BY month, kpi_alias`, placeholders(len(months)))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []model.TargetParameter
	for rows.Next() {
		var (
			p        model.TargetParameter
			monthKey string
			value    sql.NullFloat64
		)
		if err := rows.Scan(&p.KPIAlias, &monthKey, &value, &p.IsNotified); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		if p.Month, err = model.ParseMonthKey(monthKey); err != nil {
			return nil, err
		}
		p.EmployeeID = employeeID
		p.Value = nullFloatPtr(value)
		targets = append(targets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}
	return targets, nil
}

// RollForwardParameters fills the months after from with a default target for
// every manager and KPI alias lacking one. The default carries the latest known
// value for that manager and alias, or 0 when there is none. Only the created
// parameters are returned.
func (s *SQLiteStorage) RollForwardParameters(ctx context.Context, from model.Month, months int) ([]model.TargetParameter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRollForward(from, months); err != nil {
		return nil, err
	}

	var created []model.TargetParameter
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = s.rollForwardParameters(ctx, tx, from, months)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type parameterHistory struct {
	values map[model.Month]*float64
	months []model.Month
}

// latestBefore returns the most recent value strictly before m.
func (h *parameterHistory) latestBefore(m model.Month) (*float64, bool) {
	for i := len(h.months) - 1; i >= 0; i-- {
		if h.months[i].Before(m) {
			return h.values[h.months[i]], true
		}
	}
	return nil, false
}

func (h *parameterHistory) add(m model.Month, v *float64) {
	if _, ok := h.values[m]; !ok {
		h.months = append(h.months, m)
		model.SortMonths(h.months)
	}
	h.values[m] = v
}

func (s *SQLiteStorage) rollForwardParameters(ctx context.Context, q queryable, from model.Month, months int) ([]model.TargetParameter, error) {
	managers, err := s.getManagers(ctx, q)
	if err != nil {
		return nil, err
	}
	categories, err := s.getKPICategories(ctx, q)
	if err != nil {
		return nil, err
	}

	history, err := s.parameterHistory(ctx, q)
	if err != nil {
		return nil, err
	}

	var missing []model.TargetParameter
	for _, manager := range managers {
		for _, category := range categories {
			key := [2]string{manager.ID, category.Alias}
			h, ok := history[key]
			if !ok {
				h = &parameterHistory{values: make(map[model.Month]*float64)}
				history[key] = h
			}
			for _, m := range model.MonthRange(from, months) {
				if _, exists := h.values[m]; exists {
					continue
				}
				value, found := h.latestBefore(m)
				if !found || value == nil {
					value = model.Float(0)
				}
				h.add(m, value)
				missing = append(missing, model.TargetParameter{
					EmployeeID: manager.ID,
					KPIAlias:   category.Alias,
					Month:      m,
					Value:      value,
				})
			}
		}
	}

	if len(missing) == 0 {
		return nil, nil
	}

	created, err := s.saveParameters(ctx, q, missing)
	if err != nil {
		return nil, err
	}

	slog.Info("Rolled forward target parameters",
		"from", from.String(),
		"months", months,
		"created", len(created))
	return created, nil
}

func (s *SQLiteStorage) parameterHistory(ctx context.Context, q queryable) (map[[2]string]*parameterHistory, error) {
	rows, err := q.QueryContext(ctx, `SELECT employee_id, kpi_alias, month, value FROM parameter`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	history := make(map[[2]string]*parameterHistory)
	for rows.Next() {
		var (
			employeeID, alias, monthKey string
			value                       sql.NullFloat64
		)
		if err := rows.Scan(&employeeID, &alias, &monthKey, &value); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		m, err := model.ParseMonthKey(monthKey)
		if err != nil {
			return nil, err
		}
		key := [2]string{employeeID, alias}
		h, ok := history[key]
		if !ok {
			h = &parameterHistory{values: make(map[model.Month]*float64)}
			history[key] = h
		}
		h.values[m] = nullFloatPtr(value)
		h.months = append(h.months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameters: %w", err)
	}

	for _, h := range history {
		sort.Slice(h.months, func(i, j int) bool { return h.months[i].Before(h.months[j]) })
	}
	return history, nil
}

// MarkParametersNotified records that the targets behind flags were alerted on.
func (s *SQLiteStorage) MarkParametersNotified(ctx context.Context, flags []model.Flag) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.markParametersNotified(ctx, tx, flags)
	})
}

func (s *SQLiteStorage) markParametersNotified(ctx context.Context, q queryable, flags []model.Flag) error {
	for _, f := range flags {
		if _, err := q.ExecContext(ctx, `
			UPDATE parameter SET is_notified = 1
			WHERE employee_id = ? AND kpi_alias = ? AND month = ?
		`, f.EmployeeID, f.KPIAlias, f.Month.Key()); err != nil {
			return fmt.Errorf("failed to mark parameter notified: %w", err)
		}
	}
	return nil
}
