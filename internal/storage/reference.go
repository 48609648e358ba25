package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// SaveBusinessUnit creates or renames a business unit.
func (s *SQLiteStorage) SaveBusinessUnit(ctx context.Context, bu model.BusinessUnit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(bu.Alias, "alias"); err != nil {
		return err
	}
	return s.saveBusinessUnit(ctx, s.db, bu)
}

func (s *SQLiteStorage) saveBusinessUnit(ctx context.Context, q queryable, bu model.BusinessUnit) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO business_unit (alias, name) VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET name = excluded.name
	`, bu.Alias, bu.Name)
	if err != nil {
		return fmt.Errorf("failed to save business unit %s: %w", bu.Alias, err)
	}
	return nil
}

// SaveCategory creates or updates a P&L category and its trend class.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return s.saveCategory(ctx, s.db, category)
}

func (s *SQLiteStorage) saveCategory(ctx context.Context, q queryable, category model.Category) error {
	trend := model.NormalizeTrend(string(category.Trend))
	if trend == "" {
		trend = model.TrendStatic
	}

	var parent any
	if category.ParentCode != "" {
		parent = category.ParentCode
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO pnl_category (code, name, parent_code, description, trend)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			parent_code = excluded.parent_code,
			description = excluded.description,
			trend = excluded.trend
	`, category.Code, category.Name, parent, category.Description, string(trend))
	if err != nil {
		return fmt.Errorf("failed to save category %s: %w", category.Code, err)
	}

	s.invalidateReferenceCache()
	return nil
}

// GetCategoryTrends returns the flat category code to trend class mapping.
// Results are cached for a short period.
func (s *SQLiteStorage) GetCategoryTrends(ctx context.Context) (map[string]model.TrendClass, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.cacheMutex.RLock()
	if s.trendCache != nil && time.Now().Before(s.cacheExpiry) {
		trends := copyTrends(s.trendCache)
		s.cacheMutex.RUnlock()
		return trends, nil
	}
	s.cacheMutex.RUnlock()

	trends, err := s.getCategoryTrends(ctx, s.db)
	if err != nil {
		return nil, err
	}

	s.cacheMutex.Lock()
	s.trendCache = copyTrends(trends)
	s.cacheExpiry = time.Now().Add(referenceCacheTTL)
	s.cacheMutex.Unlock()

	return trends, nil
}

func (s *SQLiteStorage) getCategoryTrends(ctx context.Context, q queryable) (map[string]model.TrendClass, error) {
	rows, err := q.QueryContext(ctx, `SELECT code, trend FROM pnl_category ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category trends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	trends := make(map[string]model.TrendClass)
	for rows.Next() {
		var code, trend string
		if err := rows.Scan(&code, &trend); err != nil {
			return nil, fmt.Errorf("failed to scan category trend: %w", err)
		}
		trends[code] = model.NormalizeTrend(trend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category trends: %w", err)
	}

	slog.Debug("Retrieved category trends", "count", len(trends))
	return trends, nil
}

func copyTrends(src map[string]model.TrendClass) map[string]model.TrendClass {
	dst := make(map[string]model.TrendClass, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// SaveEmployee creates or updates an employee.
func (s *SQLiteStorage) SaveEmployee(ctx context.Context, employee model.Employee) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEmployee(employee); err != nil {
		return err
	}
	return s.saveEmployee(ctx, s.db, employee)
}

func (s *SQLiteStorage) saveEmployee(ctx context.Context, q queryable, employee model.Employee) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO employee (id, name, email, phone_number, role, business_unit)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone_number = excluded.phone_number,
			role = excluded.role,
			business_unit = excluded.business_unit
	`, employee.ID, employee.Name, employee.Email, employee.PhoneNumber, employee.Role, employee.BusinessUnit)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", employee.ID, err)
	}
	return nil
}

// GetManagers returns every employee holding a manager role.
func (s *SQLiteStorage) GetManagers(ctx context.Context) ([]model.Employee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getManagers(ctx, s.db)
}

func (s *SQLiteStorage) getManagers(ctx context.Context, q queryable) ([]model.Employee, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, email, phone_number, role, business_unit, created_at
		FROM employee
		WHERE role IN (?, ?)
		ORDER BY id
	`, model.RoleBUManager, model.RoleSeniorManager)
	if err != nil {
		return nil, fmt.Errorf("failed to query managers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var managers []model.Employee
	for rows.Next() {
		var (
			e         model.Employee
			createdAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.PhoneNumber, &e.Role, &e.BusinessUnit, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan manager: %w", err)
		}
		e.CreatedAt = createdAt.Time
		managers = append(managers, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating managers: %w", err)
	}
	return managers, nil
}

// GetKPICategories returns the KPI catalogue. Results are cached for a short period.
func (s *SQLiteStorage) GetKPICategories(ctx context.Context) ([]model.KPICategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.cacheMutex.RLock()
	if s.kpiCategories != nil && time.Now().Before(s.cacheExpiry) {
		categories := append([]model.KPICategory(nil), s.kpiCategories...)
		s.cacheMutex.RUnlock()
		return categories, nil
	}
	s.cacheMutex.RUnlock()

	categories, err := s.getKPICategories(ctx, s.db)
	if err != nil {
		return nil, err
	}

	s.cacheMutex.Lock()
	s.kpiCategories = append([]model.KPICategory(nil), categories...)
	s.cacheExpiry = time.Now().Add(referenceCacheTTL)
	s.cacheMutex.Unlock()

	return categories, nil
}

func (s *SQLiteStorage) getKPICategories(ctx context.Context, q queryable) ([]model.KPICategory, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT alias, name, category, COALESCE(description, '')
		FROM kpi_category
		ORDER BY alias
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query KPI categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.KPICategory
	for rows.Next() {
		var c model.KPICategory
		if err := rows.Scan(&c.Alias, &c.Name, &c.Category, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan KPI category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating KPI categories: %w", err)
	}
	return categories, nil
}
