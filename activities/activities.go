// Package activities implements the side-effecting units scheduled by the
// bootstrap and contribution workflows. Every activity is idempotent:
// external writes are keyed on deterministic ids and conflicts count as
// success.
package activities

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/extract"
	"github.com/curatorhq/curator/llm"
	"github.com/curatorhq/curator/store"
	"github.com/curatorhq/curator/vector"
)

// Activity names shared between workers (registration) and workflows
// (scheduling by name).
const (
	NameResearchDomain           = "ResearchDomain"
	NameAnalyzeResearch          = "AnalyzeResearch"
	NameGenerateExampleQuestions = "GenerateExampleQuestions"
	NameIndexDomain              = "IndexDomain"
	NameAssessDocumentRelevance  = "AssessDocumentRelevance"
	NameExtractText              = "ExtractText"
	NameGenerateEmbeddings       = "GenerateEmbeddings"
	NameIndexWeaviate            = "IndexWeaviate"
	NameUpdateGraph              = "UpdateGraph"
	NameNotifyContributor        = "NotifyContributor"
	NameSendSignal               = "SendSignal"
)

// LLMClient is the completion surface activities consume.
type LLMClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
	Embed(ctx context.Context, cfg llm.EmbeddingConfig, texts []string) ([][]float32, error)
}

// VectorIndexer writes domain and document vectors.
type VectorIndexer interface {
	IndexDomain(ctx context.Context, d *domain.Domain, summary string, vec []float32) (string, error)
	IndexDocument(ctx context.Context, doc *domain.Document, chunks []vector.Chunk) (string, error)
}

// GraphWriter maintains the knowledge graph.
type GraphWriter interface {
	UpsertDomain(ctx context.Context, d *domain.Domain) error
	UpsertDocument(ctx context.Context, doc *domain.Document, entities, topics []string) error
}

// SignalSender delivers user-facing signals.
type SignalSender interface {
	Send(ctx context.Context, userID, workflowID string, t domain.SignalType, data map[string]any) (*domain.Signal, error)
}

// FileStore resolves a document file_ref to its raw bytes.
type FileStore interface {
	Fetch(ctx context.Context, fileRef string) ([]byte, error)
}

// LocalFiles serves file refs from a base directory.
type LocalFiles struct {
	Base string
}

// Fetch reads the referenced file, refusing paths that escape the base.
func (l LocalFiles) Fetch(_ context.Context, fileRef string) ([]byte, error) {
	cleaned := filepath.Clean(fileRef)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return nil, fmt.Errorf("file ref %q escapes storage root", fileRef)
	}
	data, err := os.ReadFile(filepath.Join(l.Base, cleaned))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileRef, err)
	}
	return data, nil
}

// Metrics counts activity executions by name and outcome.
type Metrics struct {
	Executions *prometheus.CounterVec
}

// NewMetrics registers activity metrics on the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curator"
	}
	return &Metrics{
		Executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_executions_total",
				Help:      "Activity executions, by activity and outcome",
			},
			[]string{"activity", "outcome"},
		),
	}
}

// Activities bundles the dependencies every activity draws on. One instance
// is registered per worker.
type Activities struct {
	LLM       LLMClient
	Embedding llm.EmbeddingConfig
	Store     store.Store
	Vector    VectorIndexer
	Graph     GraphWriter
	Signals   SignalSender
	Files     FileStore
	Extractor *extract.Extractor
	Metrics   *Metrics
	Logger    *slog.Logger
}

// New assembles the activity registry.
func New(deps Activities) *Activities {
	a := deps
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	if a.Extractor == nil {
		a.Extractor = extract.NewExtractor()
	}
	return &a
}

// observe records one execution outcome.
func (a *Activities) observe(activity string, err error) {
	if a.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	a.Metrics.Executions.WithLabelValues(activity, outcome).Inc()
}
