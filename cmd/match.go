package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/recommend"
)

var matchCmd = &cobra.Command{
	Use:   "match <job-id>...",
	Short: "Score every eligible candidate against the given jobs and queue recommendations",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, config := setup()

		p, err := newPipeline(ctx, config, logger, true)
		if err != nil {
			logger.Fatal("preparing the matching pipeline", zap.Error(err))
		}
		defer p.Close()

		worker := p.worker()
		for _, jobID := range args {
			summary, err := worker.Run(ctx, jobID)
			printSummary(cmd.OutOrStdout(), summary)
			if err != nil {
				logger.Error("matching run failed", zap.String("job_id", jobID), zap.Error(err))
				if ctx.Err() != nil {
					return
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func printSummary(w io.Writer, s recommend.Summary) {
	if !s.JobFound {
		fmt.Fprintf(w, "job %s: not found\n", s.JobID)
		return
	}

	fmt.Fprintf(w, "job %s: %d candidates, %d scored, %d recorded (%d new), %d notified, %d failed",
		s.JobID, s.Candidates, s.Scored, s.Recorded, s.Created, s.Notified, s.Failed)
	if s.NotifyFailed > 0 {
		fmt.Fprintf(w, ", %d notifications failed", s.NotifyFailed)
	}
	if s.Cancelled {
		fmt.Fprint(w, ", cancelled")
	}
	fmt.Fprintln(w)

	for _, o := range s.Failures {
		fmt.Fprintf(w, "  %s failed at %s: %v\n", o.CandidateID, o.Stage, o.Err)
	}
}
