package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/curatorhq/curator/activities"
	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/engine"
)

// Workflow execution wall-clock limits.
const (
	BootstrapExecutionTimeout    = 30 * 24 * time.Hour
	ContributionExecutionTimeout = 14 * 24 * time.Hour
)

// Default human-decision timeouts, overridable per workflow input.
const (
	DefaultOwnerDecisionTimeout      = 7 * 24 * time.Hour
	DefaultControllerDecisionTimeout = 7 * 24 * time.Hour
)

// Default routing thresholds for document contributions.
const (
	DefaultAutoApproveThreshold = 8.0
	DefaultRejectThreshold      = 7.0
)

// Retry policies per activity class. MalformedResponse stays retryable so a
// fresh generation can fix schema violations; BudgetExceeded and
// ExtractionFailure are non-retryable at the error level.
var (
	storagePolicy = &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    5,
	}
	llmPolicy = &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    60 * time.Second,
		MaximumAttempts:    3,
	}
	localPolicy = &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    60 * time.Second,
		MaximumAttempts:    3,
	}
	notifyPolicy = &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    3,
	}
	signalPolicy = &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    3,
	}
)

// withLLMOptions routes a call to the AI task queue with the LLM policy.
func withLLMOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           engine.QueueAIProcessing,
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         llmPolicy,
	})
}

// withStorageOptions routes a call to the storage queue.
func withStorageOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           engine.QueueStorage,
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         storagePolicy,
	})
}

// withLocalOptions covers extraction, which runs wherever the worker runs.
func withLocalOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           engine.QueueGeneral,
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         localPolicy,
	})
}

// withNotifyOptions covers contributor notifications.
func withNotifyOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           engine.QueueGeneral,
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         notifyPolicy,
	})
}

// withSignalOptions covers user-signal sends.
func withSignalOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           engine.QueueGeneral,
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         signalPolicy,
	})
}

// emitSignal sends a user signal from workflow context, soft-failing: errors
// are logged and swallowed so signal trouble never stalls a state machine.
func emitSignal(ctx workflow.Context, userID string, t domain.SignalType, data map[string]any) {
	info := workflow.GetInfo(ctx)
	in := activities.SendSignalInput{
		UserID:     userID,
		WorkflowID: info.WorkflowExecution.ID,
		Type:       t,
		Data:       data,
	}
	err := workflow.ExecuteActivity(withSignalOptions(ctx), activities.NameSendSignal, in).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("signal emission failed", "type", string(t), "error", err)
	}
}
