package main

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/spec-kit/triage-desk/internal/persistence"
	"github.com/spec-kit/triage-desk/internal/queue"
	"github.com/spec-kit/triage-desk/internal/repository"
)

var retriageCmd = &cobra.Command{
	Use:   "retriage <ticket-id>",
	Short: "Queue a ticket for another triage attempt",
	Long: `Queue a ticket for another triage attempt. The new result overwrites the
stored one. Use this for tickets that ended up in the dead letter stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		ticketID := args[0]

		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		if pool := pg.PoolHandle(); pool != nil {
			if _, err := repository.NewTicketRepository(pool).GetByID(cmd.Context(), ticketID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("ticket %s not found", ticketID)
				}
				return err
			}
		}

		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()

		producer := queue.NewRedisProducer(redis.Client, cfg.Triage.Stream, logger)
		if err := producer.Enqueue(cmd.Context(), ticketID, "retriage"); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ticket %s queued for triage\n", ticketID)
		return nil
	},
}
