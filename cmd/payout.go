package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/care-payments/internal/payout"
)

var payoutCmd = &cobra.Command{
	Use:   "payout",
	Short: "Payout commands",
}

var payoutRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run payouts once",
	Long:  `Pay every worker with pending earnings in the week ending on --week-ending (defaults to last week) and print the report`,
	RunE:  runPayoutOnce,
}

var (
	payoutWeekEnding string
	payoutWorkerIDs  []int64
)

func runPayoutOnce(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	req := payout.RunRequest{WeekEnding: payoutWeekEnding, WorkerIDs: payoutWorkerIDs}
	periodEnd, err := req.Validate(deps.Location)
	if err != nil {
		return err
	}

	report, err := deps.PayoutEngine().DispatchPayouts(ctx, periodEnd, req.WorkerIDs)
	if err != nil {
		return fmt.Errorf("payout run failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func init() {
	payoutRunCmd.Flags().StringVar(&payoutWeekEnding, "week-ending", "", "Last day of the payout week (YYYY-MM-DD)")
	payoutRunCmd.Flags().Int64SliceVar(&payoutWorkerIDs, "worker", nil, "Restrict the run to these worker ids (repeatable)")

	payoutCmd.AddCommand(payoutRunCmd)
	rootCmd.AddCommand(payoutCmd)
}
