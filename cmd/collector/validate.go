package main

import (
	"fmt"
	"time"

	"match-snapshots/internal/riot"

	"github.com/spf13/cobra"
)

var validateKeyCmd = &cobra.Command{
	Use:   "validate-key",
	Short: "Check that the API key is accepted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := riot.NewKeyChecker(cfg.PlatformURL, 0).Check(cmd.Context(), cfg.APIKey)
		if err != nil {
			return fmt.Errorf("could not validate key: %w", err)
		}
		if !status.Accepted {
			return fmt.Errorf("API key is invalid or expired (status %d)", status.StatusCode)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "API key is valid for %s (%s)\n", status.Platform, status.Latency.Round(time.Millisecond))
		if n := status.Maintenances + status.Incidents; n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Platform reports %d maintenances and %d incidents\n", status.Maintenances, status.Incidents)
		}
		return nil
	},
}
