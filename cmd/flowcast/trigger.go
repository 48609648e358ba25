package main

import (
	"fmt"

	"github.com/Veraticus/forecast-flow/internal/cli"
	"github.com/Veraticus/forecast-flow/internal/trigger"
	"github.com/spf13/cobra"
)

func triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Announce that new actuals are available",
		Long: `Publish the "data refreshed" message on the configured Redis topic so that
every listener starts a run.`,
		RunE: runTrigger,
	}
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	client := trigger.NewRedisClient(appConfig.Trigger.Redis)
	defer func() { _ = client.Close() }()

	topic := appConfig.Trigger.Redis.Topic
	receivers, err := trigger.Publish(cmd.Context(), client, topic)
	if err != nil {
		return err
	}

	if receivers == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("Published to %s but no listener is subscribed", topic)))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Published to %s (%d listeners)", topic, receivers)))
	return nil
}
