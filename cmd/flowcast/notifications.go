package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Veraticus/forecast-flow/internal/cli"
	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/notify"
	"github.com/spf13/cobra"
)

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Inspect stored alerts and manage channels",
	}

	list := &cobra.Command{
		Use:   "list <employee-id>",
		Short: "List an employee's notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runListNotifications,
	}

	read := &cobra.Command{
		Use:   "read <employee-id> <notification-id>",
		Short: "Show a notification and mark it read",
		Args:  cobra.ExactArgs(2),
		RunE:  runReadNotification,
	}

	onboard := &cobra.Command{
		Use:   "onboard <phone-number>",
		Short: "Send the WhatsApp opt-in template to a phone number",
		Long: `WhatsApp only delivers free-form messages to numbers that have interacted
with the business account. Sending the approved template opens that window.`,
		Args: cobra.ExactArgs(1),
		RunE: runOnboard,
	}

	cmd.AddCommand(list, read, onboard)
	return cmd
}

func runListNotifications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := initStorage(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	notifications, err := store.GetNotifications(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderNotifications(notifications))
	return nil
}

func runReadNotification(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return common.NewUserError("notification id must be a number", err)
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	notifications, err := store.GetNotifications(ctx, args[0])
	if err != nil {
		return err
	}

	for _, n := range notifications {
		if n.ID != id {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderNotification(n))
		if n.IsRead {
			return nil
		}
		return store.MarkNotificationRead(ctx, id)
	}

	return common.NewUserError(fmt.Sprintf("no notification %d for %s", id, args[0]), common.ErrNotFound)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	if !appConfig.Notify.WhatsApp.Enabled {
		return common.NewUserError("WhatsApp is not enabled (notify.whatsapp.enabled)", common.ErrChannelDisabled)
	}

	wa, err := notify.NewWhatsAppChannel(appConfig.Notify.WhatsApp)
	if err != nil {
		return err
	}

	if err := common.WithRetry(cmd.Context(), func(ctx context.Context) error {
		return wa.Onboard(ctx, args[0])
	}, retryOptions(appConfig)); err != nil {
		return fmt.Errorf("failed to send opt-in template: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Opt-in template sent to " + args[0]))
	return nil
}
