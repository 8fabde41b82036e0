// Package engine wraps the Temporal client behind the small surface the API
// and CLI need: starting, signalling, querying, and listing workflows.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
)

// ErrAlreadyRunning reports that a workflow with the requested id already
// exists and is still open.
var ErrAlreadyRunning = errors.New("workflow already running")

// Config holds Temporal connection settings.
type Config struct {
	HostPort  string
	Namespace string
	APIKey    string
}

// Engine is the durable-execution client used by the API process and CLI.
type Engine struct {
	client client.Client
	logger *slog.Logger
}

// Dial connects to the Temporal frontend.
func Dial(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	}
	if cfg.APIKey != "" {
		opts.Credentials = client.NewAPIKeyStaticCredentials(cfg.APIKey)
	}
	c, err := client.Dial(opts)
	if err != nil {
		return nil, fmt.Errorf("dial temporal at %s: %w", cfg.HostPort, err)
	}
	return &Engine{client: c, logger: logger}, nil
}

// NewEngine wraps an existing Temporal client, used by tests.
func NewEngine(c client.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{client: c, logger: logger}
}

// Client exposes the underlying Temporal client for worker construction.
func (e *Engine) Client() client.Client {
	return e.client
}

// StartOptions configures a workflow start.
type StartOptions struct {
	ID               string
	Queue            string
	ExecutionTimeout time.Duration
	SearchAttributes map[string]any
}

// StartWorkflow starts a workflow and returns its run id. A duplicate open
// workflow id yields ErrAlreadyRunning.
func (e *Engine) StartWorkflow(ctx context.Context, opts StartOptions, workflow any, args ...any) (string, error) {
	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       opts.ID,
		TaskQueue:                opts.Queue,
		WorkflowExecutionTimeout: opts.ExecutionTimeout,
		SearchAttributes:         opts.SearchAttributes,
	}, workflow, args...)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyRunning, opts.ID)
		}
		return "", fmt.Errorf("start workflow %s: %w", opts.ID, err)
	}
	e.logger.Info("started workflow",
		"workflow_id", opts.ID,
		"run_id", run.GetRunID(),
		"queue", opts.Queue)
	return run.GetRunID(), nil
}

// Signal sends a named signal to a running workflow.
func (e *Engine) Signal(ctx context.Context, workflowID, name string, payload any) error {
	if err := e.client.SignalWorkflow(ctx, workflowID, "", name, payload); err != nil {
		return fmt.Errorf("signal %s to workflow %s: %w", name, workflowID, err)
	}
	return nil
}

// Query runs a named query against a workflow and decodes the result into
// out.
func (e *Engine) Query(ctx context.Context, workflowID, queryType string, out any) error {
	val, err := e.client.QueryWorkflow(ctx, workflowID, "", queryType)
	if err != nil {
		return fmt.Errorf("query %s on workflow %s: %w", queryType, workflowID, err)
	}
	if err := val.Get(out); err != nil {
		return fmt.Errorf("decode query result: %w", err)
	}
	return nil
}

// ExecutionSummary is one row of a visibility listing.
type ExecutionSummary struct {
	WorkflowID string    `json:"workflow_id"`
	RunID      string    `json:"run_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"start_time"`
}

// ListWorkflows runs a visibility query and returns matching executions.
// Visibility paging is token-based, so offset is honored by skipping that
// many executions before collecting the page.
func (e *Engine) ListWorkflows(ctx context.Context, query string, pageSize, offset int) ([]ExecutionSummary, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if offset < 0 {
		offset = 0
	}

	summaries := make([]ExecutionSummary, 0, pageSize)
	var token []byte
	skip := offset
	for {
		resp, err := e.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
			Query:         query,
			PageSize:      int32(pageSize),
			NextPageToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list workflows: %w", err)
		}
		for _, exec := range resp.Executions {
			if skip > 0 {
				skip--
				continue
			}
			if len(summaries) == pageSize {
				return summaries, nil
			}
			s := ExecutionSummary{
				WorkflowID: exec.GetExecution().GetWorkflowId(),
				RunID:      exec.GetExecution().GetRunId(),
				Type:       exec.GetType().GetName(),
				Status:     statusLabel(exec.GetStatus()),
			}
			if ts := exec.GetStartTime(); ts != nil {
				s.StartTime = ts.AsTime()
			}
			summaries = append(summaries, s)
		}
		token = resp.NextPageToken
		if len(token) == 0 || len(summaries) >= pageSize {
			return summaries, nil
		}
	}
}

// Describe returns the execution status of one workflow.
func (e *Engine) Describe(ctx context.Context, workflowID string) (*ExecutionSummary, error) {
	resp, err := e.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("describe workflow %s: %w", workflowID, err)
	}
	info := resp.GetWorkflowExecutionInfo()
	s := &ExecutionSummary{
		WorkflowID: info.GetExecution().GetWorkflowId(),
		RunID:      info.GetExecution().GetRunId(),
		Type:       info.GetType().GetName(),
		Status:     statusLabel(info.GetStatus()),
	}
	if ts := info.GetStartTime(); ts != nil {
		s.StartTime = ts.AsTime()
	}
	return s, nil
}

// Close shuts down the Temporal client.
func (e *Engine) Close() {
	e.client.Close()
}

// statusLabel maps the visibility enum to the lowercase labels exposed over
// the API.
func statusLabel(status enumspb.WorkflowExecutionStatus) string {
	switch status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "running"
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "completed"
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "failed"
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "canceled"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "terminated"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "timed_out"
	case enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "continued_as_new"
	default:
		return "unknown"
	}
}
