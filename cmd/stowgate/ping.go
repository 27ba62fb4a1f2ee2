package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowgate/backend"
	"github.com/sagarc03/stowgate/config"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured backend is reachable",
	Long: `Connect to the configured backend and check that its bucket exists.
Exits non-zero on failure, which makes it usable as a container health check.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	_, closeStore, err := backend.Open(cmd.Context(), cfg.Backend)
	if err != nil {
		return err
	}
	defer closeStore()

	target := cfg.Backend.Bucket
	if target == "" {
		target = cfg.Backend.Path
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s backend reachable: %s\n", cfg.Backend.Type, target)
	return nil
}
