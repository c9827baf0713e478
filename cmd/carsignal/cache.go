package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irfndi/carprice-ai-go/internal/cache"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the result cache",
	}

	var mode string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Drop stale entries and re-seed the market",
		Long: `Apply a reset to the result cache. full drops every non-seed entry;
forecast_errors drops only entries whose forecast failed. Seeds are always
refreshed afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resetMode, err := cache.ParseResetMode(mode)
			if err != nil {
				return err
			}
			container, err := c.container(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Close()

			report, err := container.Maintenance.Reset(cmd.Context(), resetMode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset (%s): deleted %d entries, seeded %d\n", report.Mode, report.Deleted, report.Seeded)
			return nil
		},
	}
	reset.Flags().StringVar(&mode, "mode", string(cache.ResetFull), "full or forecast_errors")

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Refresh the market seed entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := c.container(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Close()

			report, err := container.Maintenance.SeedMarket(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Message)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := c.container(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Close()

			report, err := container.Maintenance.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d deleted)\n", report.Message, report.Deleted)
			return nil
		},
	}

	cmd.AddCommand(reset, seed, clearCmd)
	return cmd
}
