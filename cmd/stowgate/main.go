package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowgate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "stowgate",
	Short:   "HTTP gateway to S3-compatible object storage",
	Long: `Stowgate serves objects of an S3, MinIO or local bucket over plain HTTP.

GET is public for objects marked x-store-visibility: public. Everything else
requires the shared secret.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cmd.ErrOrStderr(), cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	flags.String("backend", "", "backend type: s3, minio, filesystem (env: STOWGATE_BACKEND_TYPE)")
	flags.String("bucket", "", "bucket name (env: STOWGATE_BACKEND_BUCKET)")
	flags.String("endpoint", "", "backend endpoint URL (env: STOWGATE_BACKEND_ENDPOINT)")
	flags.String("data-path", "", "filesystem backend directory (default: ./data, env: STOWGATE_BACKEND_PATH)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env: STOWGATE_LOG_LEVEL)")
	flags.String("env", "", "environment: dev, prod (env: STOWGATE_ENV)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}
