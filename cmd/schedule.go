package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run batch matching for every open job on a cron schedule",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, config := setup()

		p, err := newPipeline(ctx, config, logger, true)
		if err != nil {
			logger.Fatal("preparing the matching pipeline", zap.Error(err))
		}
		defer p.Close()

		s := scheduler.New(p.store, p.worker(), config.Schedule.Spec, logger)

		if once, _ := cmd.Flags().GetBool("once"); once {
			report, err := s.RunCycle(ctx)
			for _, summary := range report.Summaries {
				printSummary(cmd.OutOrStdout(), summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d jobs matched, %d failed\n", report.Jobs, report.Failed)
			if err != nil {
				logger.Fatal("matching cycle failed", zap.Error(err))
			}
			return
		}

		if err := s.Start(ctx); err != nil {
			logger.Fatal("starting the scheduler", zap.Error(err))
		}

		<-ctx.Done()
		logger.Info("shutting down", zap.String("reason", "signal received"))
		s.Stop()
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().Bool("once", false, "run a single matching cycle and exit")
}
