package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Connecting runs the migrations.
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			app.log.Info("database schema up to date", zap.String("driver", app.cfg.DatabaseDriver))
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mark completed payment orders as synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.payments.SyncOrders(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync orders: %w", err)
			}
			return printJSON(report)
		},
	}
}

func reconcileCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve PROCESSING orders against PayPal",
		Long: `Ask PayPal about payment orders stuck in PROCESSING.

Orders PayPal reports as COMPLETED become COMPLETED locally, VOIDED orders become
FAILED, anything else is left alone.

Examples:
  farmacia reconcile
  farmacia reconcile --older-than 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			if !cmd.Flags().Changed("older-than") {
				olderThan = app.cfg.ReconcileAfter
			}

			report, err := app.payments.ReconcileOrders(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("reconcile orders: %w", err)
			}
			return printJSON(report)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "only check orders idle for longer than this")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
