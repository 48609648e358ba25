package main

import (
	"fmt"

	"github.com/Veraticus/forecast-flow/internal/cli"
	"github.com/Veraticus/forecast-flow/internal/pipeline"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the forecast pipeline once",
		Long: `Train a strategy per trend class on the latest actuals, forecast every
series, store forecasts and KPI forecasts, and alert managers whose targets
are at risk.`,
		RunE: runPipeline,
	}

	cmd.Flags().Bool("progress", false, "Show a progress bar while the run executes")

	return cmd
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	showProgress, _ := cmd.Flags().GetBool("progress")
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

	var progress *cli.StageProgress
	if showProgress {
		progress = cli.NewStageProgress(cmd.ErrOrStderr(), pipeline.Stages())
		p.OnStage(progress.Observe)
	}

	summary, err := p.Run(ctx)
	if progress != nil {
		progress.Finish()
	}
	if summary != nil {
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRunSummary(summary))
	}
	return err
}
