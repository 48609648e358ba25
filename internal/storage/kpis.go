package storage

import (
	"context"
	"database/sql"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// UpsertKPIForecasts writes derived KPI forecasts with 4dp change tracking.
func (s *SQLiteStorage) UpsertKPIForecasts(ctx context.Context, kpis []model.KPIRecord) ([]model.KPIRecord, error) {
	return s.upsertKPIsInTx(ctx, kpiForecastTable, kpis)
}

// UpsertKPIEntries writes KPIs derived from actual entries.
func (s *SQLiteStorage) UpsertKPIEntries(ctx context.Context, kpis []model.KPIRecord) ([]model.KPIRecord, error) {
	return s.upsertKPIsInTx(ctx, kpiEntryTable, kpis)
}

func (s *SQLiteStorage) upsertKPIsInTx(ctx context.Context, table valueTable, kpis []model.KPIRecord) ([]model.KPIRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateKPIs(kpis); err != nil {
		return nil, err
	}

	var records []model.KPIRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		records, err = s.upsertKPIs(ctx, tx, table, kpis)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStorage) upsertKPIs(ctx context.Context, q queryable, table valueTable, kpis []model.KPIRecord) ([]model.KPIRecord, error) {
	rows := make([]valueRow, len(kpis))
	for i, k := range kpis {
		rows[i] = valueRow{
			key:   valueKey{first: k.KPIAlias, second: k.BusinessUnit, month: k.Month},
			value: k.Value,
		}
	}

	statuses, err := s.upsertValues(ctx, q, table, rows)
	if err != nil {
		return nil, err
	}

	records := make([]model.KPIRecord, len(kpis))
	for i, k := range kpis {
		k.Value = model.RoundPtr(k.Value, table.places)
		k.ChangeStatus = statuses[i]
		records[i] = k
	}
	return records, nil
}

// GetKPIForecasts returns the KPI forecasts of one business unit for the given months.
func (s *SQLiteStorage) GetKPIForecasts(ctx context.Context, businessUnit string, months []model.Month) ([]model.KPIRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(businessUnit, "businessUnit"); err != nil {
		return nil, err
	}
	return s.getKPIForecasts(ctx, s.db, businessUnit, months)
}

func (s *SQLiteStorage) getKPIForecasts(ctx context.Context, q queryable, businessUnit string, months []model.Month) ([]model.KPIRecord, error) {
	rows, err := s.getValues(ctx, q, kpiForecastTable, businessUnit, months)
	if err != nil {
		return nil, err
	}

	kpis := make([]model.KPIRecord, 0, len(rows))
	for _, row := range rows {
		kpis = append(kpis, model.KPIRecord{
			KPIAlias:     row.key.first,
			BusinessUnit: row.key.second,
			Month:        row.key.month,
			Value:        row.value,
		})
	}
	return kpis, nil
}
