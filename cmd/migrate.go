package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		logger, config := setup()

		if config.DatabaseURL == "" {
			logger.Fatal("database-url is required")
		}

		if err := postgres.Migrate(context.Background(), config.DatabaseURL, logger); err != nil {
			logger.Fatal("applying schema", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
