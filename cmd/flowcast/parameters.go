package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/forecast-flow/internal/cli"
	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/spf13/cobra"
)

func parametersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parameters",
		Short: "Manage KPI target parameters",
	}

	rollForward := &cobra.Command{
		Use:   "roll-forward",
		Short: "Fill missing targets for the coming months",
		Long: `For every manager and KPI, create a target for each of the next months that
has none, carrying forward the latest known target (or 0).`,
		RunE: runRollForward,
	}
	rollForward.Flags().String("from", "", "Month to roll forward from, MM-YYYY (default: latest actuals month)")
	rollForward.Flags().Int("months", 0, "Number of months to fill (default: parameters.roll_forward_months)")

	cmd.AddCommand(rollForward)
	return cmd
}

func runRollForward(cmd *cobra.Command, _ []string) error {
	fromFlag, _ := cmd.Flags().GetString("from")
	months, _ := cmd.Flags().GetInt("months")
	if months <= 0 {
		months = appConfig.Parameters.RollForwardMonths
	}
	ctx := cmd.Context()

	store, err := initStorage(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var from model.Month
	if fromFlag != "" {
		from, err = model.ParseMonth(fromFlag)
		if err != nil {
			return common.NewUserError("--from must look like 01-2026", err)
		}
	} else {
		from, err = store.GetLatestEntryMonth(ctx)
		if errors.Is(err, common.ErrNoActuals) {
			return common.NewUserError("No actuals loaded; pass --from explicitly", err)
		}
		if err != nil {
			return err
		}
	}

	created, err := store.RollForwardParameters(ctx, from, months)
	if err != nil {
		return fmt.Errorf("failed to roll parameters forward: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %d target parameters for %d months after %s", len(created), months, from)))
	return nil
}
