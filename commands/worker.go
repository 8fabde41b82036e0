package commands

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/activities"
	"github.com/curatorhq/curator/config"
	"github.com/curatorhq/curator/engine"
	"github.com/curatorhq/curator/graphstore"
	"github.com/curatorhq/curator/llm"
	"github.com/curatorhq/curator/model"
	"github.com/curatorhq/curator/signals"
	"github.com/curatorhq/curator/vector"
	"github.com/curatorhq/curator/worker"
)

// newWorkerCommand runs the Temporal worker fleet.
func newWorkerCommand(state *rootState) *cobra.Command {
	var (
		queues   []string
		filesDir string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the workflow and activity workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(state.configPath)
			if err != nil {
				return err
			}
			return runWorker(cfg, queues, filesDir)
		},
	}
	cmd.Flags().StringSliceVar(&queues, "queue", nil, "Task queues to poll (default: all)")
	cmd.Flags().StringVar(&filesDir, "files-dir", "data/files", "Base directory for uploaded document files")
	return cmd
}

func runWorker(cfg *config.Config, queues []string, filesDir string) error {
	logger := slog.Default()
	ctx, stop := interruptContext()
	defer stop()

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

	indexer, err := vector.NewIndexer(vector.Config{
		Host:   cfg.Weaviate.Host,
		Scheme: cfg.Weaviate.Scheme,
		APIKey: cfg.Weaviate.APIKey,
	}, logger)
	if err != nil {
		return err
	}
	if err := indexer.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure vector schema: %w", err)
	}

	graph, err := graphstore.NewWriter(ctx, graphstore.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = graph.Close(ctx) }()

	// Workers have no local stream subscribers; pushes travel over NATS to
	// whichever API process holds the user's connection.
	var publisher signals.Publisher
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name(appName+"-worker"))
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		defer conn.Close()
		publisher = signals.NewNATSRelay(conn, logger)
	}
	signalService := signals.NewService(
		signals.NewRegistry(), st, publisher, signals.NewMetrics(""), logger)

	acts := activities.New(activities.Activities{
		LLM:       llm.NewClient(buildModelRegistry(cfg), llm.WithLogger(logger)),
		Embedding: llm.EmbeddingConfig(cfg.Model.Embeddings),
		Store:     st,
		Vector:    indexer,
		Graph:     graph,
		Signals:   signalService,
		Files:     activities.LocalFiles{Base: filesDir},
		Metrics:   activities.NewMetrics(""),
		Logger:    logger,
	})

	fleet := worker.New(worker.Options{
		Engine:     eng,
		Activities: acts,
		Queues:     queues,
		Logger:     logger,
	})
	if err := fleet.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	return nil
}

// buildModelRegistry overlays configured tiers and endpoints on the default
// registry.
func buildModelRegistry(cfg *config.Config) *model.Registry {
	registry := model.NewDefaultRegistry()
	for name, spec := range cfg.Model.Tiers {
		registry.SetTier(model.Tier(name), spec)
	}
	for name, ep := range cfg.Model.Endpoints {
		registry.SetEndpoint(name, ep)
	}
	return registry
}
