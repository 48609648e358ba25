package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// valueTable describes a month-keyed value table with a two-column business key.
type valueTable struct {
	name   string
	first  string
	second string
	places int32
}

var (
	entryTable       = valueTable{name: "pnl_entry", first: "pnl_code", second: "business_unit", places: model.MoneyPlaces}
	forecastTable    = valueTable{name: "pnl_forecast", first: "pnl_code", second: "business_unit", places: model.MoneyPlaces}
	kpiEntryTable    = valueTable{name: "kpi_entry", first: "kpi_alias", second: "business_unit", places: model.RatioPlaces}
	kpiForecastTable = valueTable{name: "kpi_forecast", first: "kpi_alias", second: "business_unit", places: model.RatioPlaces}
	parameterTable   = valueTable{name: "parameter", first: "employee_id", second: "kpi_alias", places: model.RatioPlaces}
)

type valueKey struct {
	first  string
	second string
	month  model.Month
}

type valueRow struct {
	value *float64
	key   valueKey
}

// snapshot reads the stored values for every key in the batch. Keys without a
// row are absent from the result; a row holding NULL maps to a nil value.
func (s *SQLiteStorage) snapshot(ctx context.Context, q queryable, table valueTable, rows []valueRow) (map[valueKey]*float64, error) {
	existing := make(map[valueKey]*float64, len(rows))
	if len(rows) == 0 {
		return existing, nil
	}

	wanted := make(map[valueKey]struct{}, len(rows))
	seenMonth := make(map[string]struct{})
	var monthArgs []any
	for _, row := range rows {
		wanted[row.key] = struct{}{}
		key := row.key.month.Key()
		if _, ok := seenMonth[key]; !ok {
			seenMonth[key] = struct{}{}
			monthArgs = append(monthArgs, key)
		}
	}

	query := fmt.Sprintf(`SELECT %s, %s, month, value FROM %s WHERE month IN (%s)`,
		table.first, table.second, table.name, placeholders(len(monthArgs)))

	result, err := q.QueryContext(ctx, query, monthArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s snapshot: %w", table.name, err)
	}
	defer func() { _ = result.Close() }()

	for result.Next() {
		var (
			key      valueKey
			monthKey string
			value    sql.NullFloat64
		)
		if err := result.Scan(&key.first, &key.second, &monthKey, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table.name, err)
		}
		if key.month, err = model.ParseMonthKey(monthKey); err != nil {
			return nil, err
		}
		if _, ok := wanted[key]; !ok {
			continue
		}
		existing[key] = nullFloatPtr(value)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table.name, err)
	}
	return existing, nil
}

// upsertValues writes a batch against the snapshot read at batch start and
// returns one change status per input row, in order. Values are stored rounded
// to the table's precision; equal values are not written.
func (s *SQLiteStorage) upsertValues(ctx context.Context, q queryable, table valueTable, rows []valueRow) ([]model.ChangeStatus, error) {
	existing, err := s.snapshot(ctx, q, table, rows)
	if err != nil {
		return nil, err
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s, %s, month, value) VALUES (?, ?, ?, ?)`,
		table.name, table.first, table.second)
	update := fmt.Sprintf(`UPDATE %s SET value = ? WHERE %s = ? AND %s = ? AND month = ?`,
		table.name, table.first, table.second)

	statuses := make([]model.ChangeStatus, len(rows))
	for i, row := range rows {
		value := model.RoundPtr(row.value, table.places)
		previous, found := existing[row.key]

		switch {
		case !found:
			if _, err := q.ExecContext(ctx, insert, row.key.first, row.key.second, row.key.month.Key(), nullable(value)); err != nil {
				return nil, fmt.Errorf("failed to insert into %s: %w", table.name, err)
			}
			statuses[i] = model.StatusCreated
		case model.ValuesEqual(previous, value, table.places):
			statuses[i] = model.StatusUnchanged
		default:
			if _, err := q.ExecContext(ctx, update, nullable(value), row.key.first, row.key.second, row.key.month.Key()); err != nil {
				return nil, fmt.Errorf("failed to update %s: %w", table.name, err)
			}
			statuses[i] = model.StatusUpdated
		}
		existing[row.key] = value
	}

	return statuses, nil
}

// getValues reads every row of table for the given months, optionally
// restricted to one value of the second key column.
func (s *SQLiteStorage) getValues(ctx context.Context, q queryable, table valueTable, second string, months []model.Month) ([]valueRow, error) {
	if len(months) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(months)+1)
	for _, m := range months {
		args = append(args, m.Key())
	}

	query := fmt.Sprintf(`SELECT %s, %s, month, value FROM %s WHERE month IN (%s)`,
		table.first, table.second, table.name, placeholders(len(months)))
	if second != "" {
		query += fmt.Sprintf(` AND %s = ?`, table.second)
		args = append(args, second)
	}
	query += fmt.Sprintf(` ORDER BY month, %s, %s`, table.first, table.second)

	result, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table.name, err)
	}
	defer func() { _ = result.Close() }()

	var rows []valueRow
	for result.Next() {
		var (
			row      valueRow
			monthKey string
			value    sql.NullFloat64
		)
		if err := result.Scan(&row.key.first, &row.key.second, &monthKey, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table.name, err)
		}
		if row.key.month, err = model.ParseMonthKey(monthKey); err != nil {
			return nil, err
		}
		row.value = nullFloatPtr(value)
		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table.name, err)
	}
	return rows, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
