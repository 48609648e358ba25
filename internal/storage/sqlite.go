package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// referenceCacheTTL bounds how long reference data is served from memory.
const referenceCacheTTL = 5 * time.Minute

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry   time.Time
	db            *sql.DB
	trendCache    map[string]model.TrendClass
	kpiCategories []model.KPICategory
	dbPath        string
	cacheMutex    sync.RWMutex
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single
	// connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// inTx runs fn inside its own transaction, rolling back on error.
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) invalidateReferenceCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.trendCache = nil
	s.kpiCategories = nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) SaveBusinessUnit(ctx context.Context, bu model.BusinessUnit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(bu.Alias, "alias"); err != nil {
		return err
	}
	return t.storage.saveBusinessUnit(ctx, t.tx, bu)
}

func (t *sqliteTransaction) SaveCategory(ctx context.Context, category model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return t.storage.saveCategory(ctx, t.tx, category)
}

func (t *sqliteTransaction) GetCategoryTrends(ctx context.Context) (map[string]model.TrendClass, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoryTrends(ctx, t.tx)
}

func (t *sqliteTransaction) SaveEmployee(ctx context.Context, employee model.Employee) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEmployee(employee); err != nil {
		return err
	}
	return t.storage.saveEmployee(ctx, t.tx, employee)
}

func (t *sqliteTransaction) GetManagers(ctx context.Context) ([]model.Employee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getManagers(ctx, t.tx)
}

func (t *sqliteTransaction) GetKPICategories(ctx context.Context) ([]model.KPICategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getKPICategories(ctx, t.tx)
}

func (t *sqliteTransaction) SaveEntries(ctx context.Context, entries []model.Entry) ([]model.EntryRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	return t.storage.saveEntries(ctx, t.tx, entries)
}

func (t *sqliteTransaction) GetLatestEntryMonth(ctx context.Context) (model.Month, error) {
	if err := validateContext(ctx); err != nil {
		return model.Month{}, err
	}
	return t.storage.getLatestEntryMonth(ctx, t.tx)
}

func (t *sqliteTransaction) GetEntriesInRange(ctx context.Context, after, through model.Month) ([]model.Entry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMonthRange(after, through); err != nil {
		return nil, err
	}
	return t.storage.getEntriesInRange(ctx, t.tx, after, through)
}

func (t *sqliteTransaction) UpsertForecasts(ctx context.Context, forecasts []model.ForecastRecord) ([]model.ForecastRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateForecasts(forecasts); err != nil {
		return nil, err
	}
	return t.storage.upsertForecasts(ctx, t.tx, forecasts)
}

func (t *sqliteTransaction) GetForecastsForMonths(ctx context.Context, months []model.Month) ([]model.ForecastRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getForecastsForMonths(ctx, t.tx, months)
}

func (t *sqliteTransaction) UpsertKPIForecasts(ctx context.Context, kpis []model.KPIRecord) ([]model.KPIRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateKPIs(kpis); err != nil {
		return nil, err
	}
	return t.storage.upsertKPIs(ctx, t.tx, kpiForecastTable, kpis)
}

func (t *sqliteTransaction) UpsertKPIEntries(ctx context.Context, kpis []model.KPIRecord) ([]model.KPIRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateKPIs(kpis); err != nil {
		return nil, err
	}
	return t.storage.upsertKPIs(ctx, t.tx, kpiEntryTable, kpis)
}

func (t *sqliteTransaction) GetKPIForecasts(ctx context.Context, businessUnit string, months []model.Month) ([]model.KPIRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(businessUnit, "businessUnit"); err != nil {
		return nil, err
	}
	return t.storage.getKPIForecasts(ctx, t.tx, businessUnit, months)
}

func (t *sqliteTransaction) SaveParameters(ctx context.Context, params []model.TargetParameter) ([]model.TargetParameter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateParameters(params); err != nil {
		return nil, err
	}
	return t.storage.saveParameters(ctx, t.tx, params)
}

func (t *sqliteTransaction) GetTargets(ctx context.Context, employeeID string, months []model.Month) ([]model.TargetParameter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(employeeID, "employeeID"); err != nil {
		return nil, err
	}
	return t.storage.getTargets(ctx, t.tx, employeeID, months)
}

func (t *sqliteTransaction) RollForwardParameters(ctx context.Context, from model.Month, months int) ([]model.TargetParameter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRollForward(from, months); err != nil {
		return nil, err
	}
	return t.storage.rollForwardParameters(ctx, t.tx, from, months)
}

func (t *sqliteTransaction) MarkParametersNotified(ctx context.Context, flags []model.Flag) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markParametersNotified(ctx, t.tx, flags)
}

func (t *sqliteTransaction) SaveNotification(ctx context.Context, notification *model.Notification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateNotification(notification); err != nil {
		return err
	}
	return t.storage.saveNotification(ctx, t.tx, notification)
}

func (t *sqliteTransaction) GetNotifications(ctx context.Context, employeeID string) ([]model.Notification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getNotifications(ctx, t.tx, employeeID)
}

func (t *sqliteTransaction) MarkNotificationRead(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markNotificationRead(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
