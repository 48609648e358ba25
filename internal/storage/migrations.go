package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS business_unit (
					alias TEXT PRIMARY KEY,
					name TEXT
				)`,

				`CREATE TABLE IF NOT EXISTS employee (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					email TEXT NOT NULL DEFAULT '',
					phone_number TEXT NOT NULL DEFAULT '',
					role TEXT NOT NULL,
					business_unit TEXT NOT NULL REFERENCES business_unit(alias),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_employee_role ON employee(role)`,

				`CREATE TABLE IF NOT EXISTS pnl_category (
					code TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					parent_code TEXT REFERENCES pnl_category(code),
					description TEXT,
					trend TEXT NOT NULL DEFAULT 'static'
				)`,

				`CREATE TABLE IF NOT EXISTS pnl_entry (
					pnl_code TEXT NOT NULL REFERENCES pnl_category(code),
					business_unit TEXT NOT NULL REFERENCES business_unit(alias),
					month TEXT NOT NULL,
					value REAL,
					PRIMARY KEY (pnl_code, business_unit, month)
				)`,
				`CREATE INDEX idx_pnl_entry_month ON pnl_entry(month)`,

				`CREATE TABLE IF NOT EXISTS pnl_forecast (
					pnl_code TEXT NOT NULL REFERENCES pnl_category(code),
					business_unit TEXT NOT NULL REFERENCES business_unit(alias),
					month TEXT NOT NULL,
					value REAL,
					PRIMARY KEY (pnl_code, business_unit, month)
				)`,
				`CREATE INDEX idx_pnl_forecast_month ON pnl_forecast(month)`,

				`CREATE TABLE IF NOT EXISTS kpi_category (
					alias TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					category TEXT NOT NULL,
					description TEXT
				)`,

				`CREATE TABLE IF NOT EXISTS kpi_entry (
					kpi_alias TEXT NOT NULL REFERENCES kpi_category(alias),
					business_unit TEXT NOT NULL REFERENCES business_unit(alias),
					month TEXT NOT NULL,
					value REAL,
					PRIMARY KEY (kpi_alias, business_unit, month)
				)`,

				`CREATE TABLE IF NOT EXISTS kpi_forecast (
					kpi_alias TEXT NOT NULL REFERENCES kpi_category(alias),
					business_unit TEXT NOT NULL REFERENCES business_unit(alias),
					month TEXT NOT NULL,
					value REAL,
					PRIMARY KEY (kpi_alias, business_unit, month)
				)`,
				`CREATE INDEX idx_kpi_forecast_month ON kpi_forecast(month)`,

				`CREATE TABLE IF NOT EXISTS parameter (
					employee_id TEXT NOT NULL REFERENCES employee(id),
					kpi_alias TEXT NOT NULL REFERENCES kpi_category(alias),
					month TEXT NOT NULL,
					value REAL,
					PRIMARY KEY (employee_id, kpi_alias, month)
				)`,

				`CREATE TABLE IF NOT EXISTS notification (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					employee_id TEXT NOT NULL REFERENCES employee(id),
					type TEXT NOT NULL,
					subject TEXT NOT NULL,
					body TEXT NOT NULL,
					is_read BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Seed KPI categories",
		Up: func(tx *sql.Tx) error {
			seeds := []struct {
				alias, name, category, description string
			}{
				{"PROF", "Profit", "PROFIT", "Total incomes less COGS and expenses"},
				{"GPM", "Gross Profit Margin", "PROFIT", "Sales revenue less COGS over sales revenue"},
				{"OPM", "Operating Profit Margin", "PROFIT", "Operating profit over net sales"},
				{"NPM", "Net Profit Margin", "PROFIT", "Net profit over total incomes"},
				{"QR", "Quick Ratio", "PROFIT", "Not derivable from the P&L"},
				{"SALES", "Net Sales", "SALES", "Sales revenue less sales adjustments"},
				{"ROS", "Return on Sales", "SALES", "Operating profit over net sales"},
				{"DSO", "Days Sales Outstanding", "SALES", "Not derivable from the P&L"},
				{"RT", "Receivables Turnover", "SALES", "Not derivable from the P&L"},
				{"COST", "Total Cost", "COST", "COGS plus all expenses"},
				{"COGSR", "COGS Ratio", "COST", "COGS over net sales"},
				{"DPO", "Days Payable Outstanding", "COST", "Not derivable from the P&L"},
				{"OHR", "Overhead Ratio", "COST", "Overhead costs over net sales"},
			}
			for _, seed := range seeds {
				if _, err := tx.Exec(`
					INSERT OR IGNORE INTO kpi_category (alias, name, category, description)
					VALUES (?, ?, ?, ?)
				`, seed.alias, seed.name, seed.category, seed.description); err != nil {
					return fmt.Errorf("failed to seed KPI category %s: %w", seed.alias, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Track notified targets and unread notifications",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE parameter ADD COLUMN is_notified BOOLEAN DEFAULT 0`,
				`CREATE INDEX IF NOT EXISTS idx_notification_employee ON notification(employee_id, is_read)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	s.invalidateReferenceCache()
	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
