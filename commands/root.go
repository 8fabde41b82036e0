// Package commands implements the curator CLI: long-running api and worker
// processes plus thin harness subcommands that drive the platform over HTTP.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/config"
)

const (
	Version = "0.1.0"
	appName = "curator"
)

// ErrInterrupted is returned when a command is cut short by SIGINT. The
// binary maps it to exit code 130.
var ErrInterrupted = errors.New("interrupted")

// rootState carries flag values shared by every subcommand.
type rootState struct {
	configPath string
	logLevel   string
}

// Root builds the curator command tree.
func Root() *cobra.Command {
	state := &rootState{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Durable knowledge-domain platform",
		Long: `Curator runs long-lived, human-in-the-loop workflows that research,
review, and index knowledge domains and their documents.

The api and worker subcommands are the two long-running processes; the
remaining subcommands are harnesses that drive the platform over HTTP.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configureLogging(state.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&state.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newAPICommand(state))
	cmd.AddCommand(newWorkerCommand(state))
	cmd.AddCommand(newBootstrapCommand())
	cmd.AddCommand(newContributeCommand())
	cmd.AddCommand(newInboxCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// configureLogging installs the process-wide slog handler.
func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadConfig layers defaults, user config, project config, the --config
// file, and environment overrides.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.NewLoader(slog.Default()).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if configPath != "" {
		override, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
		cfg.Merge(override)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// interruptContext returns a context cancelled on SIGINT/SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
