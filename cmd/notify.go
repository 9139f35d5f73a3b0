package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Deliver queued recommendation notifications through the email gateway",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, config := setup()

		if config.RedisURL == "" {
			logger.Fatal("redis-url is required to read the notification queue")
		}

		sender, err := newSender(config.Notify)
		if err != nil {
			logger.Fatal("preparing the email gateway", zap.Error(err))
		}

		client, err := notify.Connect(ctx, config.RedisURL)
		if err != nil {
			logger.Fatal("connecting to redis", zap.Error(err))
		}
		defer client.Close()

		dispatcher := notify.NewDispatcher(notify.NewRedisOutbox(client, config.Notify.Queue), sender, logger)

		var stats notify.Stats
		if drain, _ := cmd.Flags().GetBool("drain"); drain {
			stats, err = dispatcher.Drain(ctx)
		} else {
			logger.Info("waiting for notifications", zap.String("queue", config.Notify.Queue))
			stats, err = dispatcher.Run(ctx)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d notifications delivered, %d failed\n", stats.Delivered, stats.Failed)
		if err != nil {
			logger.Fatal("reading the notification queue", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().Bool("drain", false, "deliver what is queued and exit instead of waiting for new messages")
}
