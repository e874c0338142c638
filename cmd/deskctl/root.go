package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/config"
	"github.com/spec-kit/triage-desk/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "Operator tooling for triage-desk",
	Long: `deskctl runs maintenance tasks against the triage-desk Postgres database
and Redis triage stream. It reads the same environment (and .env file) as the API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(retriageCmd)
	rootCmd.AddCommand(dlqCmd)
}

// bootstrap loads configuration and a logger for a subcommand.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
