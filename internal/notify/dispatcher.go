package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/service"
)

// Channel delivers an alert to one recipient over a secondary transport.
type Channel interface {
	// Name identifies the channel in logs and results.
	Name() string
	// Recipient returns the employee's address on this channel, or "" when
	// the employee cannot be reached through it.
	Recipient(employee model.Employee) string
	Send(ctx context.Context, to, subject, body string) error
}

// DeliveryFailure records a channel that could not deliver an alert.
type DeliveryFailure struct {
	Err        error
	EmployeeID string
	Channel    string
}

func (f DeliveryFailure) Error() string {
	return fmt.Sprintf("%s delivery to %s: %v", f.Channel, f.EmployeeID, f.Err)
}

func (f DeliveryFailure) Unwrap() error { return f.Err }

// Result describes one dispatched alert.
type Result struct {
	Notification *model.Notification
	Delivered    []string
	Failures     []DeliveryFailure
}

// Dispatcher persists alerts and delivers them over every channel.
type Dispatcher struct {
	storage  service.Storage
	channels []Channel
	retry    service.RetryOptions
}

// NewDispatcher creates a dispatcher. Channels are attempted in order.
func NewDispatcher(storage service.Storage, channels []Channel, retry service.RetryOptions) *Dispatcher {
	return &Dispatcher{
		storage:  storage,
		channels: channels,
		retry:    retry,
	}
}

// Channels returns the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch alerts employee about flags. An empty flag set is a no-op and
// returns a nil result. The notification row and the notified markers on
// the flagged targets are written in one transaction whose failure is
// returned; channel failures afterwards are only reported in the result.
func (d *Dispatcher) Dispatch(ctx context.Context, employee model.Employee, flags model.FlagSet, months []model.Month) (*Result, error) {
	if flags.Empty() {
		slog.Debug("No breaches, nothing to send", "employee", employee.ID)
		return nil, nil
	}

	subject, body := Compose(employee, flags, months)
	notification := &model.Notification{
		EmployeeID: employee.ID,
		Type:       model.NotificationTypeKPIAlert,
		Subject:    subject,
		Body:       body,
	}

	if err := d.persist(ctx, notification, flags.Sorted()); err != nil {
		return nil, err
	}

	slog.Info("Stored KPI alert",
		"employee", employee.ID,
		"notification_id", notification.ID,
		"flags", flags.Count())

	result := &Result{Notification: notification}
	for _, ch := range d.channels {
		to := ch.Recipient(employee)
		if to == "" {
			slog.Debug("Employee not reachable on channel", "employee", employee.ID, "channel", ch.Name())
			continue
		}

		err := common.WithRetry(ctx, func(attemptCtx context.Context) error {
			return ch.Send(attemptCtx, to, subject, body)
		}, d.retry)
		if err != nil {
			failure := DeliveryFailure{
				EmployeeID: employee.ID,
				Channel:    ch.Name(),
				Err:        fmt.Errorf("%w: %w", common.ErrDelivery, err),
			}
			common.LogWarn(err, "Notification delivery failed", common.Fields{
				"employee": employee.ID,
				"channel":  ch.Name(),
			})
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Delivered = append(result.Delivered, ch.Name())
	}

	return result, nil
}

func (d *Dispatcher) persist(ctx context.Context, notification *model.Notification, flags []model.Flag) error {
	tx, err := d.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveNotification(ctx, notification); err != nil {
		return fmt.Errorf("%w: failed to save notification for %s: %w", common.ErrPersistence, notification.EmployeeID, err)
	}
	if err := tx.MarkParametersNotified(ctx, flags); err != nil {
		return fmt.Errorf("%w: failed to mark targets notified for %s: %w", common.ErrPersistence, notification.EmployeeID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit notification: %w", common.ErrPersistence, err)
	}
	return nil
}
