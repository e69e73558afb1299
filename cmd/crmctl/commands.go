package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/observability"
	"github.com/spec-kit/bank-crm/internal/persistence"
	"github.com/spec-kit/bank-crm/internal/redact"
	"github.com/spec-kit/bank-crm/internal/store"
)

// withRuntime opens the service graph for the duration of fn.
func withRuntime(cmd *cobra.Command, open opener, fn func(*runtime) (any, error)) error {
	rt, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	out, err := fn(rt)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func statsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show document store connectivity and collection counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			stats := rt.stats.GetDatabaseStats(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if stats.ConnectionStatus == domain.ConnectionError {
				return fmt.Errorf("store unhealthy: %s", stats.Error)
			}
			return nil
		},
	}
}

func customerCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Inspect customer records",
	}

	lookup := &cobra.Command{
		Use:   "lookup [phone]",
		Short: "Look up a masked customer record by phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := redact.DefaultFilterOptions()
			opts.IncludeSupportHistory, _ = cmd.Flags().GetBool("support-history")
			return withRuntime(cmd, open, func(rt *runtime) (any, error) {
				return rt.customers.Lookup(cmd.Context(), args[0], opts)
			})
		},
	}
	lookup.Flags().Bool("support-history", false, "Include support history")

	summary := &cobra.Command{
		Use:   "summary [customer-id]",
		Short: "Show the non-sensitive summary of a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime) (any, error) {
				return rt.customers.Summary(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(lookup, summary)
	return cmd
}

func ticketCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Inspect and update support tickets",
	}

	get := &cobra.Command{
		Use:   "get [ticket-id]",
		Short: "Show a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime) (any, error) {
				return rt.tickets.GetTicket(cmd.Context(), args[0])
			})
		},
	}

	status := &cobra.Command{
		Use:   "status [ticket-id] [status]",
		Short: "Update the status of a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignedTo, _ := cmd.Flags().GetString("assigned-to")
			resolution, _ := cmd.Flags().GetString("resolution")
			update := domain.TicketStatusUpdate{Status: args[1], AssignedTo: assignedTo, Resolution: resolution}
			return withRuntime(cmd, open, func(rt *runtime) (any, error) {
				return rt.tickets.UpdateStatus(cmd.Context(), args[0], update, events.SourceCLI)
			})
		},
	}
	status.Flags().String("assigned-to", "", "Agent the ticket is assigned to")
	status.Flags().String("resolution", "", "Resolution note")

	cmd.AddCommand(get, status)
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema and document tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s, got %q", config.DriverPostgres, cfg.Store.Driver)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Store, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()

			tables := store.NewPostgresConnector(cfg.Store, cfg.Postgres, logger).Tables()
			if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), tables, logger); err != nil {
				return err
			}
			logger.Info("schema ready", zap.String("schema", tables.Schema))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
