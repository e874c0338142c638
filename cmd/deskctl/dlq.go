package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/triage-desk/internal/persistence"
	"github.com/spec-kit/triage-desk/internal/queue"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the triage dead letter stream",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered triage requests, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt64("limit")
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()

		letters, err := queue.ListDLQ(cmd.Context(), redis.Client, cfg.Triage.DLQStream, limit)
		if err != nil {
			return err
		}
		if len(letters) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "dead letter stream is empty")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MESSAGE\tTICKET\tATTEMPTS\tERROR")
		for _, l := range letters {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.ID, l.TicketID, l.Attempt, l.Error)
		}
		return w.Flush()
	},
}

func init() {
	dlqListCmd.Flags().Int64("limit", 50, "maximum entries to show")
	dlqCmd.AddCommand(dlqListCmd)
}
