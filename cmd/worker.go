package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/care-payments/internal/payout"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long-running background workers such as the weekly payout scheduler`,
}

var schedulerWorkerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the weekly payout scheduler",
	Long:  `Run payouts for the previous week on the configured weekday and time in the business timezone`,
	Run: func(cmd *cobra.Command, args []string) {
		startScheduler()
	},
}

var runOnStart bool

func startScheduler() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	hour, minute, err := deps.Config.Payout.ScheduleClock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payout schedule: %v\n", err)
		os.Exit(1)
	}

	scheduler, err := payout.NewScheduler(deps.PayoutEngine(), payout.ScheduleConfig{
		Location: deps.Location,
		Weekday:  deps.Config.Payout.ScheduleWeekday(),
		Hour:     hour,
		Minute:   minute,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create scheduler: %v\n", err)
		os.Exit(1)
	}

	scheduler.Start()
	if next, err := scheduler.NextRun(); err == nil {
		log.Info("payout scheduler started", "next_run", next.Format(time.RFC3339), "timezone", deps.Location.String())
	}

	if runOnStart {
		if err := scheduler.RunNow(); err != nil {
			log.Error("immediate payout run failed to start", "error", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received signal, shutting down payout scheduler", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Error("scheduler shutdown error", "error", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Info("payout scheduler shutdown complete")
	case <-ctx.Done():
		log.Warn("shutdown timeout reached, forcing exit")
	}
	deps.Close(ctx)
}

func init() {
	schedulerWorkerCmd.Flags().BoolVar(&runOnStart, "run-now", false, "Trigger one payout run immediately after start")

	workerCmd.AddCommand(schedulerWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
