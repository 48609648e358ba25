package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/forecast-flow/internal/trigger"
	"github.com/spf13/cobra"
)

func listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the pipeline whenever new actuals are announced",
		Long: `Subscribe to the configured Redis topic and run the pipeline for every
"data refreshed" message. When trigger.schedule is set, runs are also
started on that cron schedule. Runs never overlap; signals arriving while a
run is pending are merged into it.`,
		RunE: runListen,
	}

	cmd.Flags().Bool("now", false, "Start a run immediately")
	cmd.Flags().Bool("no-redis", false, "Only use the cron schedule")

	return cmd
}

func runListen(cmd *cobra.Command, _ []string) error {
	runNow, _ := cmd.Flags().GetBool("now")
	noRedis, _ := cmd.Flags().GetBool("no-redis")
	ctx := cmd.Context()

	store, err := initStorage(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, err := buildPipeline(ctx, appConfig, store)
	if err != nil {
		return err
	}

	var sources []trigger.Source
	if !noRedis {
		client := trigger.NewRedisClient(appConfig.Trigger.Redis)
		defer func() { _ = client.Close() }()
		sources = append(sources, trigger.NewRedisSource(client, appConfig.Trigger.Redis.Topic))
	}
	if appConfig.Trigger.Schedule != "" {
		schedule, err := trigger.NewCronSource(appConfig.Trigger.Schedule)
		if err != nil {
			return err
		}
		sources = append(sources, schedule)
	}
	if len(sources) == 0 {
		slog.Warn("No trigger sources configured, only --now runs will happen")
	}

	listener := trigger.NewListener(func(ctx context.Context, sig trigger.Signal) error {
		summary, err := p.Run(ctx)
		if summary != nil {
			slog.Info("Run finished",
				"run_id", summary.ID.String(),
				"source", sig.Source,
				"forecasts", summary.Forecasts.Total(),
				"notifications", summary.Notifications,
				"duration", summary.Duration)
		}
		return err
	}, sources...)

	if runNow {
		listener.Offer(trigger.Signal{Source: "startup", At: time.Now()})
	}

	slog.Info("Listening for triggers", "topic", appConfig.Trigger.Redis.Topic, "schedule", appConfig.Trigger.Schedule)
	return listener.Run(ctx)
}
