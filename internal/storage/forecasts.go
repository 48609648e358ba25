package storage

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// UpsertForecasts writes a forecast batch in its own transaction. Callers that
// need the batch to commit together with KPI forecasts use BeginTx instead.
func (s *SQLiteStorage) UpsertForecasts(ctx context.Context, forecasts []model.ForecastRecord) ([]model.ForecastRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateForecasts(forecasts); err != nil {
		return nil, err
	}

	var records []model.ForecastRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		records, err = s.upsertForecasts(ctx, tx, forecasts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStorage) upsertForecasts(ctx context.Context, q queryable, forecasts []model.ForecastRecord) ([]model.ForecastRecord, error) {
	rows := make([]valueRow, len(forecasts))
	for i, f := range forecasts {
		rows[i] = valueRow{
			key:   valueKey{first: f.CategoryCode, second: f.BusinessUnit, month: f.Month},
			value: f.Value,
		}
	}

	statuses, err := s.upsertValues(ctx, q, forecastTable, rows)
	if err != nil {
		return nil, err
	}

	records := make([]model.ForecastRecord, len(forecasts))
	for i, f := range forecasts {
		f.Value = model.RoundPtr(f.Value, forecastTable.places)
		f.ChangeStatus = statuses[i]
		records[i] = f
	}

	slog.Debug("Upserted forecasts", "count", len(records))
	return records, nil
}

// GetForecastsForMonths returns every stored forecast for the given months.
func (s *SQLiteStorage) GetForecastsForMonths(ctx context.Context, months []model.Month) ([]model.ForecastRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getForecastsForMonths(ctx, s.db, months)
}

func (s *SQLiteStorage) getForecastsForMonths(ctx context.Context, q queryable, months []model.Month) ([]model.ForecastRecord, error) {
	rows, err := s.getValues(ctx, q, forecastTable, "", months)
	if err != nil {
		return nil, err
	}

	forecasts := make([]model.ForecastRecord, 0, len(rows))
	for _, row := range rows {
		forecasts = append(forecasts, model.ForecastRecord{
			CategoryCode: row.key.first,
			BusinessUnit: row.key.second,
			Month:        row.key.month,
			Value:        row.value,
		})
	}
	return forecasts, nil
}
