package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/cli"
	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/kpi"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/spf13/cobra"
)

func kpisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Manage KPIs derived from actuals",
	}

	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Derive KPIs from actual P&L entries",
		Long: `Apply the KPI formulas to the stored actuals of every business unit and
month in range and upsert the results. Unchanged KPIs are not rewritten.`,
		RunE: runRecomputeKPIs,
	}
	recompute.Flags().String("from", "", "First month, MM-YYYY (default: 12 months before --through)")
	recompute.Flags().String("through", "", "Last month, MM-YYYY (default: latest actuals month)")

	cmd.AddCommand(recompute)
	return cmd
}

func runRecomputeKPIs(cmd *cobra.Command, _ []string) error {
	fromFlag, _ := cmd.Flags().GetString("from")
	throughFlag, _ := cmd.Flags().GetString("through")
	ctx := cmd.Context()

	store, err := initStorage(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var through model.Month
	if throughFlag != "" {
		if through, err = model.ParseMonth(throughFlag); err != nil {
			return common.NewUserError("--through must look like 01-2026", err)
		}
	} else {
		through, err = store.GetLatestEntryMonth(ctx)
		if errors.Is(err, common.ErrNoActuals) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No actuals loaded, nothing to recompute."))
			return nil
		}
		if err != nil {
			return err
		}
	}

	from := through.AddMonths(-11)
	if fromFlag != "" {
		if from, err = model.ParseMonth(fromFlag); err != nil {
			return common.NewUserError("--from must look like 01-2026", err)
		}
	}
	if from.After(through) {
		return common.NewUserError(fmt.Sprintf("--from %s is after --through %s", from, through), nil)
	}

	entries, err := store.GetEntriesInRange(ctx, from.AddMonths(-1), through)
	if err != nil {
		return err
	}
	records := kpi.SnapshotsFromEntries(entries).Records()
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No actuals in range, nothing to recompute."))
		return nil
	}

	saved, err := store.UpsertKPIEntries(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to save KPIs: %w", err)
	}

	counts := make(map[model.ChangeStatus]int)
	for _, r := range saved {
		counts[r.ChangeStatus]++
	}
	slog.Debug("Recomputed KPIs", "from", from.String(), "through", through.String(), "entries", len(entries))

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("KPIs %s to %s: %d created, %d updated, %d unchanged",
		from, through, counts[model.StatusCreated], counts[model.StatusUpdated], counts[model.StatusUnchanged])))
	return nil
}
