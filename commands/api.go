package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/api"
	"github.com/curatorhq/curator/config"
	"github.com/curatorhq/curator/engine"
	"github.com/curatorhq/curator/signals"
	"github.com/curatorhq/curator/store"
)

// newAPICommand runs the HTTP façade process.
func newAPICommand(state *rootState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(state.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Addr = addr
			}
			return runAPI(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func runAPI(cfg *config.Config) error {
	logger := slog.Default()

	eng, err := engine.Dial(engine.Config{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		APIKey:    cfg.Temporal.APIKey,
	}, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Engine: eng,
		Store:  st,
		Logger: logger,
	})
	server.Registry().Instrument(signals.NewMetrics("").Subscribers)

	// Relay signals published by workers into locally connected streams.
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name(appName+"-api"))
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		defer conn.Close()

		relay := signals.NewNATSRelay(conn, logger)
		if err := relay.Listen(server.Registry()); err != nil {
			return fmt.Errorf("subscribe signal relay: %w", err)
		}
		defer func() { _ = relay.Stop() }()
	}

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := interruptContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return ErrInterrupted
}

// openStore opens the configured metadata store, falling back to the
// in-memory store when no DSN is configured.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Postgres.DSN == "" {
		logger.Warn("no postgres dsn configured, using in-memory store")
		return store.NewMemory(), nil
	}
	return store.OpenPostgres(cfg.Postgres.DSN, logger)
}
