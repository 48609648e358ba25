package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/model"
)

// SaveNotification inserts a notification and fills in its ID and creation time.
func (s *SQLiteStorage) SaveNotification(ctx context.Context, notification *model.Notification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateNotification(notification); err != nil {
		return err
	}
	return s.saveNotification(ctx, s.db, notification)
}

func (s *SQLiteStorage) saveNotification(ctx context.Context, q queryable, n *model.Notification) error {
	if n.Type == "" {
		n.Type = model.NotificationTypeKPIAlert
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO notification (employee_id, type, subject, body, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.EmployeeID, n.Type, n.Subject, n.Body, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification ID: %w", err)
	}
	n.ID = id
	return nil
}

// GetNotifications returns notifications newest first. An empty employeeID
// returns notifications for everyone.
func (s *SQLiteStorage) GetNotifications(ctx context.Context, employeeID string) ([]model.Notification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getNotifications(ctx, s.db, employeeID)
}

func (s *SQLiteStorage) getNotifications(ctx context.Context, q queryable, employeeID string) ([]model.Notification, error) {
	query := `
		SELECT id, employee_id, type, subject, body, is_read, created_at
		FROM notification`
	var args []any
	if employeeID != "" {
		query += ` WHERE employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.EmployeeID, &n.Type, &n.Subject, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification as read.
func (s *SQLiteStorage) MarkNotificationRead(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.markNotificationRead(ctx, s.db, id)
}

func (s *SQLiteStorage) markNotificationRead(ctx context.Context, q queryable, id int64) error {
	result, err := q.ExecContext(ctx, `UPDATE notification SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// IsNotFound reports whether err is a not-found error from storage.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
