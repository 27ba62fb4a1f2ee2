package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/backend"
	"github.com/sagarc03/stowgate/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <key1> [key2] ...",
	Short: "Remove objects from the backend",
	Long: `Delete objects straight from the configured backend, with the same
existence probe the gateway applies to failed deletes.

Examples:
  # Remove a single object
  stowgate remove myfile.txt

  # Remove multiple objects
  stowgate remove file1.txt file2.txt file3.txt

  # Remove every object under a prefix
  stowgate remove --prefix images/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removePrefix bool
	removeQuiet  bool
)

func init() {
	removeCmd.Flags().BoolVarP(&removePrefix, "prefix", "p", false, "treat arguments as prefixes and remove all matching objects")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-object output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, closeStore, err := backend.Open(ctx, cfg.Backend)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer closeStore()

	service, err := stowgate.NewService(store, stowgate.ServiceConfig{
		DisableDeleteProbe: !cfg.Delete.ProbeOnError,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	removed := 0
	for _, arg := range args {
		if removePrefix {
			count, prefixErr := removeByPrefix(ctx, service, arg)
			removed += count
			if prefixErr != nil {
				return prefixErr
			}
			continue
		}

		if err := removeOne(ctx, service, arg); err != nil {
			return err
		}
		removed++
	}

	slog.Info("remove complete", "removed", removed)
	return nil
}

func removeOne(ctx context.Context, service *stowgate.Service, key string) error {
	if err := service.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	if !removeQuiet {
		slog.Info("removed", "key", key)
	}
	return nil
}

// removeByPrefix removes all objects under prefix and returns how many were
// removed.
func removeByPrefix(ctx context.Context, service *stowgate.Service, prefix string) (int, error) {
	removed := 0
	cursor := ""

	for {
		result, err := service.List(ctx, stowgate.ListQuery{
			Prefix: prefix,
			Limit:  100,
			Cursor: cursor,
		})
		if err != nil {
			return removed, fmt.Errorf("list prefix %s: %w", prefix, err)
		}

		for _, item := range result.Items {
			if err := removeOne(ctx, service, item.Key); err != nil {
				return removed, err
			}
			removed++
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return removed, nil
}
