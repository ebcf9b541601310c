package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/viralforge/donor-ledger/internal/app/bootstrap"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for the donor ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/default.yaml", "path to the YAML config file")

	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(reconcileCmd(&configPath))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations or index definitions for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bootstrap.Migrate(cmd.Context(), *configPath); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "storage schema is up to date")
			return nil
		},
	}
}

func reconcileCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile [campaign-id]",
		Short: "Rebuild campaign totals from donor rows",
		Long: `Recompute collectedAmount, donorIds and status from the donor rows.

With a campaign id only that campaign is checked; without one every
campaign is walked and a summary is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			runtime, err := bootstrap.NewRuntime(ctx, *configPath)
			if err != nil {
				return fmt.Errorf("bootstrap runtime: %w", err)
			}
			defer runtime.Close(context.Background())

			var out any
			if len(args) == 1 {
				out, err = runtime.Service().ReconcileCampaign(ctx, args[0])
			} else {
				out, err = runtime.Service().ReconcileAll(ctx)
			}
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall deadline for the run")
	return cmd
}
