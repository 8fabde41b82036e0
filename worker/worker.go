// Package worker runs the Temporal workers that host the bootstrap and
// contribution workflows and their activities.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/activity"
	sdkworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/curatorhq/curator/activities"
	"github.com/curatorhq/curator/engine"
	"github.com/curatorhq/curator/workflows"
)

// Options configures a worker fleet.
type Options struct {
	Engine     *engine.Engine
	Activities *activities.Activities

	// Queues to poll. Empty means every queue the platform uses.
	Queues []string

	Logger *slog.Logger
}

// Fleet is one worker per task queue, registered with the same workflow and
// activity set so routing stays a pure scheduling concern.
type Fleet struct {
	workers []sdkworker.Worker
	queues  []string
	logger  *slog.Logger
}

// New builds the fleet. Workers are not started until Run.
func New(opts Options) *Fleet {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queues := opts.Queues
	if len(queues) == 0 {
		queues = []string{
			engine.QueueDomainBootstrap,
			engine.QueueDocumentAnalysis,
			engine.QueueAIProcessing,
			engine.QueueStorage,
			engine.QueueGeneral,
		}
	}

	fleet := &Fleet{queues: queues, logger: logger}
	for _, queue := range queues {
		w := sdkworker.New(opts.Engine.Client(), queue, sdkworker.Options{})
		registerWorkflows(w)
		registerActivities(w, opts.Activities)
		fleet.workers = append(fleet.workers, w)
	}
	return fleet
}

// registerWorkflows registers both workflow types under their wire names.
func registerWorkflows(w sdkworker.Worker) {
	w.RegisterWorkflowWithOptions(workflows.DomainBootstrap,
		workflow.RegisterOptions{Name: workflows.TypeDomainBootstrap})
	w.RegisterWorkflowWithOptions(workflows.DocumentContribution,
		workflow.RegisterOptions{Name: workflows.TypeDocumentContribution})
}

// registerActivities registers every activity under its scheduling name.
func registerActivities(w sdkworker.Worker, a *activities.Activities) {
	for name, fn := range map[string]any{
		activities.NameResearchDomain:           a.ResearchDomain,
		activities.NameAnalyzeResearch:          a.AnalyzeResearch,
		activities.NameGenerateExampleQuestions: a.GenerateExampleQuestions,
		activities.NameIndexDomain:              a.IndexDomain,
		activities.NameAssessDocumentRelevance:  a.AssessDocumentRelevance,
		activities.NameExtractText:              a.ExtractText,
		activities.NameGenerateEmbeddings:       a.GenerateEmbeddings,
		activities.NameIndexWeaviate:            a.IndexWeaviate,
		activities.NameUpdateGraph:              a.UpdateGraph,
		activities.NameNotifyContributor:        a.NotifyContributor,
		activities.NameSendSignal:               a.SendSignal,
		activities.NameSaveDomain:               a.SaveDomain,
		activities.NameUpdateDomainStatus:       a.UpdateDomainStatus,
		activities.NameSaveDocument:             a.SaveDocument,
	} {
		w.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
}

// Run starts every worker and blocks until the context is cancelled or a
// worker fails to start.
func (f *Fleet) Run(ctx context.Context) error {
	for i, w := range f.workers {
		if err := w.Start(); err != nil {
			for _, started := range f.workers[:i] {
				started.Stop()
			}
			return fmt.Errorf("start worker on queue %s: %w", f.queues[i], err)
		}
		f.logger.Info("worker started", "queue", f.queues[i])
	}

	<-ctx.Done()
	f.logger.Info("stopping workers")
	for _, w := range f.workers {
		w.Stop()
	}
	return nil
}
