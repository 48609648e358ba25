package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// seedReference creates one business unit, two categories and one manager.
func seedReference(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()

	if err := store.SaveBusinessUnit(ctx, model.BusinessUnit{Alias: "BB1", Name: "Bandung"}); err != nil {
		t.Fatalf("SaveBusinessUnit() error = %v", err)
	}
	for _, c := range []model.Category{
		{Code: "5000-A001", Name: "Sales", Trend: "sales_seasonal_cycle"},
		{Code: "6000-A001", Name: "COGS"},
	} {
		if err := store.SaveCategory(ctx, c); err != nil {
			t.Fatalf("SaveCategory() error = %v", err)
		}
	}
	if err := store.SaveEmployee(ctx, model.Employee{
		ID: "E1", Name: "Dewi", Role: model.RoleBUManager, BusinessUnit: "BB1",
	}); err != nil {
		t.Fatalf("SaveEmployee() error = %v", err)
	}
}

func jan2026() model.Month {
	return model.NewMonth(2026, time.January)
}

func TestMigrate_SeedsKPICategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, ExpectedSchemaVersion)
	}

	categories, err := store.GetKPICategories(ctx)
	if err != nil {
		t.Fatalf("GetKPICategories() error = %v", err)
	}
	if len(categories) != 13 {
		t.Fatalf("GetKPICategories() returned %d categories, want 13", len(categories))
	}

	// Migrating again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestGetCategoryTrends_DefaultsToStatic(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedReference(t, store)

	trends, err := store.GetCategoryTrends(context.Background())
	if err != nil {
		t.Fatalf("GetCategoryTrends() error = %v", err)
	}
	if trends["5000-A001"] != "sales_seasonal_cycle" {
		t.Errorf("trend for 5000-A001 = %q", trends["5000-A001"])
	}
	if trends["6000-A001"] != model.TrendStatic {
		t.Errorf("trend for 6000-A001 = %q, want static", trends["6000-A001"])
	}
}

func TestGetLatestEntryMonth(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedReference(t, store)
	ctx := context.Background()

	if _, err := store.GetLatestEntryMonth(ctx); !errors.Is(err, common.ErrNoActuals) {
		t.Fatalf("GetLatestEntryMonth() on empty db error = %v, want ErrNoActuals", err)
	}

	_, err := store.SaveEntries(ctx, []model.Entry{
		{CategoryCode: "5000-A001", BusinessUnit: "BB1", Month: model.NewMonth(2025, time.November), Value: model.Float(10)},
		{CategoryCode: "5000-A001", BusinessUnit: "BB1", Month: model.NewMonth(2025, time.December), Value: model.Float(12)},
	})
	if err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}

	latest, err := store.GetLatestEntryMonth(ctx)
	if err != nil {
		t.Fatalf("GetLatestEntryMonth() error = %v", err)
	}
	if latest != model.NewMonth(2025, time.December) {
		t.Errorf("GetLatestEntryMonth() = %v, want 12-2025", latest)
	}
}

func TestGetEntriesInRange_WindowBounds(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedReference(t, store)
	ctx := context.Background()

	var entries []model.Entry
	for i := 0; i < 6; i++ {
		entries = append(entries, model.Entry{
			CategoryCode: "5000-A001",
			BusinessUnit: "BB1",
			Month:        model.NewMonth(2025, time.July).AddMonths(i),
			Value:        model.Float(float64(100 + i)),
		})
	}
	if _, err := store.SaveEntries(ctx, entries); err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}

	reference := model.NewMonth(2025, time.December)
	got, err := store.GetEntriesInRange(ctx, reference.AddMonths(-3), reference)
	if err != nil {
		t.Fatalf("GetEntriesInRange() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetEntriesInRange() returned %d entries, want 3", len(got))
	}
	if got[0].Month != model.NewMonth(2025, time.October) {
		t.Errorf("first month = %v, want 10-2025", got[0].Month)
	}
	if got[0].Trend != "sales_seasonal_cycle" {
		t.Errorf("trend = %q, want sales_seasonal_cycle", got[0].Trend)
	}

	if _, err := store.GetEntriesInRange(ctx, reference, reference); !errors.Is(err, ErrInvalidMonthRange) {
		t.Errorf("GetEntriesInRange() with empty range error = %v, want ErrInvalidMonthRange", err)
	}
}

func TestNotifications_SaveListMarkRead(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedReference(t, store)
	ctx := context.Background()

	n := &model.Notification{EmployeeID: "E1", Subject: "KPI alert", Body: "GPM below target"}
	if err := store.SaveNotification(ctx, n); err != nil {
		t.Fatalf("SaveNotification() error = %v", err)
	}
	if n.ID == 0 {
		t.Fatal("SaveNotification() did not assign an ID")
	}
	if n.Type != model.NotificationTypeKPIAlert {
		t.Errorf("Type = %q, want %q", n.Type, model.NotificationTypeKPIAlert)
	}

	if err := store.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}

	list, err := store.GetNotifications(ctx, "E1")
	if err != nil {
		t.Fatalf("GetNotifications() error = %v", err)
	}
	if len(list) != 1 || !list[0].IsRead {
		t.Errorf("GetNotifications() = %+v, want one read notification", list)
	}

	if err := store.MarkNotificationRead(ctx, 999); !IsNotFound(err) {
		t.Errorf("MarkNotificationRead(999) error = %v, want not found", err)
	}
}

func TestTransaction_RollbackDiscardsWrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedReference(t, store)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	_, err = tx.UpsertForecasts(ctx, []model.ForecastRecord{
		{CategoryCode: "5000-A001", BusinessUnit: "BB1", Month: jan2026(), Value: model.Float(100)},
	})
	if err != nil {
		t.Fatalf("UpsertForecasts() in tx error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	got, err := store.GetForecastsForMonths(ctx, []model.Month{jan2026()})
	if err != nil {
		t.Fatalf("GetForecastsForMonths() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("forecasts visible after rollback: %+v", got)
	}

	if err := tx.Migrate(ctx); err == nil {
		t.Error("Migrate() inside a transaction should fail")
	}
}

func TestValidateContext(t *testing.T) {
	//nolint:staticcheck
	if err := validateContext(nil); !errors.Is(err, ErrNilContext) {
		t.Errorf("validateContext(nil) = %v, want ErrNilContext", err)
	}
	if err := validateContext(context.Background()); err != nil {
		t.Errorf("validateContext() = %v", err)
	}
}

func TestValidateEntries(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		entries []model.Entry
	}{
		{name: "empty", entries: nil, wantErr: ErrEmptySlice},
		{
			name:    "missing business unit",
			entries: []model.Entry{{CategoryCode: "5000-A001", Month: jan2026()}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "missing month",
			entries: []model.Entry{{CategoryCode: "5000-A001", BusinessUnit: "BB1"}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "nil value is allowed",
			entries: []model.Entry{{CategoryCode: "5000-A001", BusinessUnit: "BB1", Month: jan2026()}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEntries(tt.entries)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateEntries() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateEntries() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
