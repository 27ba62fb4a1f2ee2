package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/backend"
	"github.com/sagarc03/stowgate/config"
	stowgatehttp "github.com/sagarc03/stowgate/http"
	"github.com/sagarc03/stowgate/keybackend"
	"github.com/sagarc03/stowgate/metrics"
	"github.com/sagarc03/stowgate/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long: `Start the stowgate HTTP gateway.

With metrics enabled, Prometheus metrics are served on a separate listener
(metrics.addr) so that /metrics never shadows an object key.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5708, "HTTP server port")
	serveCmd.Flags().String("metrics-addr", "", "metrics listen address (default: :9090, env: STOWGATE_METRICS_ADDR)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("tracing shutdown error", "err", err)
		}
	}()

	store, closeStore, err := backend.Open(ctx, cfg.Backend)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer closeStore()
	slog.Info("connected to backend", "type", cfg.Backend.Type, "bucket", cfg.Backend.Bucket)

	var (
		observer    stowgate.DeleteObserver
		middlewares []func(http.Handler) http.Handler
		metricsSrv  *http.Server
	)

	if cfg.Metrics.Enabled {
		m := metrics.New()
		observer = m
		middlewares = append(middlewares, m.Middleware)
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	if cfg.Tracing.Enabled {
		middlewares = append(middlewares, tracing.Middleware)
	}

	service, err := stowgate.NewService(store, stowgate.ServiceConfig{
		DisableDeleteProbe: !cfg.Delete.ProbeOnError,
		Observer:           observer,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	authorizer, err := newAuthorizer(cfg.Auth)
	if err != nil {
		return fmt.Errorf("create authorizer: %w", err)
	}

	policy, err := stowgate.NewMetadataPolicy(cfg.Metadata.ExtraKeys)
	if err != nil {
		return fmt.Errorf("invalid metadata config: %w", err)
	}

	handler := stowgatehttp.NewHandler(&stowgatehttp.HandlerConfig{
		Authorizer:    authorizer,
		Metadata:      policy,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		ListEnabled:   cfg.Server.ListEnabled,
		CORS:          cfg.CORS,
		Middlewares:   middlewares,
	}, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	// Bodies stream to and from the backend, so only headers are time-boxed.
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		slog.Info("starting server", "addr", addr, "backend", cfg.Backend.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	if metricsSrv != nil {
		go func() {
			slog.Info("starting metrics server", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down server...")
	case runErr = <-errCh:
	}

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "err", err)
		}
	}

	return runErr
}

// newAuthorizer accepts the shared secret and, when presign keys are
// configured, presigned share links.
func newAuthorizer(cfg config.AuthConfig) (stowgate.Authorizer, error) {
	if cfg.Secret == "" {
		slog.Warn("auth.secret is empty, mutations and private reads are rejected")
	}
	secretAuth := stowgate.NewSecretAuthorizer(cfg.Secret, cfg.Cookie)

	keys, err := keybackend.NewSecretStore(cfg.Presign.Keys)
	if err != nil {
		return nil, fmt.Errorf("load presign keys: %w", err)
	}
	if keys.Len() == 0 {
		return secretAuth, nil
	}

	slog.Info("share links enabled", "keys", keys.Len())
	verifier := stowgate.NewPresignVerifier(cfg.Presign.Region, cfg.Presign.Service, keys)
	return stowgate.AnyAuthorizer{secretAuth, stowgate.NewPresignAuthorizer(verifier)}, nil
}
