package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/model"
)

// SaveEntries upserts actual P&L entries and reports the change status of each.
func (s *SQLiteStorage) SaveEntries(ctx context.Context, entries []model.Entry) ([]model.EntryRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	var records []model.EntryRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		records, err = s.saveEntries(ctx, tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStorage) saveEntries(ctx context.Context, q queryable, entries []model.Entry) ([]model.EntryRecord, error) {
	rows := make([]valueRow, len(entries))
	for i, e := range entries {
		rows[i] = valueRow{
			key:   valueKey{first: e.CategoryCode, second: e.BusinessUnit, month: e.Month},
			value: e.Value,
		}
	}

	statuses, err := s.upsertValues(ctx, q, entryTable, rows)
	if err != nil {
		return nil, err
	}

	records := make([]model.EntryRecord, len(entries))
	for i, e := range entries {
		e.Value = model.RoundPtr(e.Value, entryTable.places)
		records[i] = model.EntryRecord{Entry: e, ChangeStatus: statuses[i]}
	}

	slog.Debug("Saved entries", "count", len(records))
	return records, nil
}

// GetLatestEntryMonth returns the most recent month holding actual data.
// It returns common.ErrNoActuals when no entries exist.
func (s *SQLiteStorage) GetLatestEntryMonth(ctx context.Context) (model.Month, error) {
	if err := validateContext(ctx); err != nil {
		return model.Month{}, err
	}
	return s.getLatestEntryMonth(ctx, s.db)
}

func (s *SQLiteStorage) getLatestEntryMonth(ctx context.Context, q queryable) (model.Month, error) {
	var latest sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT MAX(month) FROM pnl_entry`).Scan(&latest); err != nil {
		return model.Month{}, fmt.Errorf("failed to query latest entry month: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return model.Month{}, common.ErrNoActuals
	}
	return model.ParseMonthKey(latest.String)
}

// GetEntriesInRange returns entries with after < month <= through, joined with
// their category's trend class and ordered by month.
func (s *SQLiteStorage) GetEntriesInRange(ctx context.Context, after, through model.Month) ([]model.Entry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMonthRange(after, through); err != nil {
		return nil, err
	}
	return s.getEntriesInRange(ctx, s.db, after, through)
}

func (s *SQLiteStorage) getEntriesInRange(ctx context.Context, q queryable, after, through model.Month) ([]model.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.pnl_code, e.business_unit, e.month, e.value, c.trend
		FROM pnl_entry e
		JOIN pnl_category c ON c.code = e.pnl_code
		WHERE e.month > ? AND e.month <= ?
		ORDER BY e.month, e.pnl_code, e.business_unit
	`, after.Key(), through.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.Entry
	for rows.Next() {
		var (
			e        model.Entry
			monthKey string
			value    sql.NullFloat64
			trend    string
		)
		if err := rows.Scan(&e.CategoryCode, &e.BusinessUnit, &monthKey, &value, &trend); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Month, err = model.ParseMonthKey(monthKey); err != nil {
			return nil, err
		}
		e.Value = nullFloatPtr(value)
		e.Trend = model.NormalizeTrend(trend)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}
