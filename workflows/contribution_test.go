package workflows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/curatorhq/curator/activities"
	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/engine"
	"github.com/curatorhq/curator/extract"
)

func contributionInput() ContributionInput {
	return ContributionInput{
		DocumentID:    "doc-1",
		DomainID:      "isac-gustav-clason",
		DomainTitle:   "Architect Isac Gustav Clason",
		DomainTopics:  []string{"architecture", "national romanticism"},
		ContributorID: "user-9",
		OwnerID:       "owner-1",
		FileRef:       "uploads/clason-facades.pdf",
		ControllerPool: []Controller{
			{ID: "c-2", Load: 3},
			{ID: "c-1", Load: 1},
			{ID: "c-3", Load: 1},
		},
	}
}

func assessment(score float64) *activities.AssessResult {
	return &activities.AssessResult{
		RelevanceScore: score,
		IsRelevant:     score >= 7,
		Summary:        "Survey of Clason's stone facade techniques.",
		Topics:         []string{"stone facades", "restoration"},
	}
}

func mockPipeline(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity(activities.NameExtractText, mock.Anything, mock.Anything).
		Return(&activities.ExtractResult{
			Text:     "facade text",
			Chunks:   []extract.Chunk{{Index: 0, Content: "facade text"}},
			Entities: []string{"Isac Gustav Clason"},
			Topics:   []string{"lime mortar"},
		}, nil).Times(1)
	env.OnActivity(activities.NameGenerateEmbeddings, mock.Anything, mock.Anything).
		Return(&activities.EmbedResult{Vectors: [][]float32{{0.1, 0.2}}}, nil).Times(1)
	env.OnActivity(activities.NameIndexWeaviate, mock.Anything, mock.Anything).
		Return(&activities.IndexWeaviateResult{VectorID: "vec-doc-1", ChunkCount: 1}, nil).Times(1)
	env.OnActivity(activities.NameUpdateGraph, mock.Anything, mock.Anything).
		Return(&activities.UpdateGraphResult{OK: true}, nil).Times(1)
}

func assertPipelineNotRun(t *testing.T, env *testsuite.TestWorkflowEnvironment) {
	t.Helper()
	env.AssertNotCalled(t, activities.NameExtractText, mock.Anything, mock.Anything)
	env.AssertNotCalled(t, activities.NameGenerateEmbeddings, mock.Anything, mock.Anything)
	env.AssertNotCalled(t, activities.NameIndexWeaviate, mock.Anything, mock.Anything)
	env.AssertNotCalled(t, activities.NameUpdateGraph, mock.Anything, mock.Anything)
}

func TestContributionAutoApprove(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(assessment(9.2), nil)
	mockPipeline(env)

	var notified activities.NotifyInput
	env.OnActivity(activities.NameNotifyContributor, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { notified = args.Get(1).(activities.NotifyInput) }).
		Return(&activities.NotifyResult{Delivered: true}, nil).Times(1)

	completions := 0
	env.OnActivity(activities.NameSendSignal, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			if args.Get(1).(activities.SendSignalInput).Type == domain.SignalCompletion {
				completions++
			}
		}).
		Return(&activities.SendSignalResult{OK: true}, nil)

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ContributionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.DocumentStatusIndexed, result.Status)
	assert.Equal(t, 9.2, result.Score)
	assert.Equal(t, "vec-doc-1", result.VectorID)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, "approved", notified.Decision)
	assert.Equal(t, "user-9", notified.ContributorID)
	assert.Equal(t, 1, completions)

	env.AssertExpectations(t)
}

func TestContributionReviewApprove(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(assessment(7.5), nil)
	mockPipeline(env)

	env.RegisterDelayedCallback(func() {
		val, err := env.QueryWorkflow(QueryContributionStatus)
		require.NoError(t, err)
		var status ContributionStatus
		require.NoError(t, val.Get(&status))
		assert.Equal(t, "pending_review", status.Status)
		assert.Equal(t, "c-1", status.ControllerID)

		env.SignalWorkflow(SignalSubmitReview, ReviewDecision{
			Approved:     true,
			ControllerID: "c-1",
			Feedback:     "good primary source",
		})
	}, 2*time.Hour)

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ContributionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.DocumentStatusIndexed, result.Status)
	assert.Equal(t, 7.5, result.Score)

	env.AssertExpectations(t)
}

func TestContributionStatusAttributeTrail(t *testing.T) {
	cases := []struct {
		name   string
		score  float64
		review bool
		want   []string
	}{
		{"auto approve", 9.2, false, []string{"analyzing", "auto_approved", "indexed"}},
		{"review approve", 7.5, true, []string{"analyzing", "pending_review", "approved", "indexed"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestWorkflowEnvironment()
			registerActivityStubs(env)

			env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
				Return(assessment(tc.score), nil)
			mockPipeline(env)

			var statuses []string
			env.OnUpsertSearchAttributes(mock.Anything).
				Run(func(args mock.Arguments) {
					if s, ok := args.Get(0).(map[string]interface{})[engine.AttrStatus].(string); ok {
						statuses = append(statuses, s)
					}
				}).
				Return()

			if tc.review {
				env.RegisterDelayedCallback(func() {
					env.SignalWorkflow(SignalSubmitReview, ReviewDecision{Approved: true, ControllerID: "c-1"})
				}, 2*time.Hour)
			}

			env.ExecuteWorkflow(DocumentContribution, contributionInput())
			require.True(t, env.IsWorkflowCompleted())
			require.NoError(t, env.GetWorkflowError())
			assert.Equal(t, tc.want, statuses)
		})
	}
}

func TestContributionReviewReject(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(assessment(7.2), nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalSubmitReview, ReviewDecision{
			Approved:     false,
			ControllerID: "c-1",
			Feedback:     "secondary source, not authoritative",
		})
	}, time.Hour)

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ContributionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.DocumentStatusRejected, result.Status)
	assert.Equal(t, "secondary source, not authoritative", result.Reason)

	assertPipelineNotRun(t, env)
}

func TestContributionAutoReject(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	low := assessment(4.0)
	low.RejectionReason = "off-topic for this domain"
	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(low, nil)

	var notified activities.NotifyInput
	env.OnActivity(activities.NameNotifyContributor, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { notified = args.Get(1).(activities.NotifyInput) }).
		Return(&activities.NotifyResult{Delivered: true}, nil).Times(1)

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ContributionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.DocumentStatusRejected, result.Status)
	assert.Equal(t, "off-topic for this domain", result.Reason)
	assert.Equal(t, 4.0, result.Score)
	assert.Equal(t, "rejected", notified.Decision)

	assertPipelineNotRun(t, env)
	env.AssertExpectations(t)
}

func TestContributionControllerTimeout(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(assessment(7.5), nil)

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ContributionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.DocumentStatusRejected, result.Status)
	assert.Equal(t, "controller_timeout", result.Reason)

	assertPipelineNotRun(t, env)
}

func TestContributionExtractionFailureRejects(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("no text extracted", activities.ErrTypeExtractionFailure, nil))

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ContributionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, domain.DocumentStatusRejected, result.Status)
	assert.Equal(t, "extraction_failed", result.Reason)

	assertPipelineNotRun(t, env)
}

func TestContributionStoreFailureFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	registerActivityStubs(env)

	env.OnActivity(activities.NameAssessDocumentRelevance, mock.Anything, mock.Anything).
		Return(assessment(9.0), nil)
	env.OnActivity(activities.NameExtractText, mock.Anything, mock.Anything).
		Return(&activities.ExtractResult{Chunks: []extract.Chunk{{Content: "x"}}}, nil)
	env.OnActivity(activities.NameGenerateEmbeddings, mock.Anything, mock.Anything).
		Return(&activities.EmbedResult{Vectors: [][]float32{{0.1}}}, nil)
	env.OnActivity(activities.NameIndexWeaviate, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("vector store down", activities.ErrTypeStoreUnavailable, nil))

	env.ExecuteWorkflow(DocumentContribution, contributionInput())

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	val, err := env.QueryWorkflow(QueryContributionStatus)
	require.NoError(t, err)
	var status ContributionStatus
	require.NoError(t, val.Get(&status))
	assert.Equal(t, "failed", status.Status)
	assert.Contains(t, status.ErrorMessage, "index document")
}

func TestAssignController(t *testing.T) {
	pool := []Controller{
		{ID: "c-9", Load: 2},
		{ID: "c-2", Load: 1},
		{ID: "c-1", Load: 1},
	}
	assert.Equal(t, "c-1", assignController(pool, "owner-1"))
	assert.Equal(t, "owner-1", assignController(nil, "owner-1"))
	// The input slice is never reordered.
	assert.Equal(t, "c-9", pool[0].ID)
}
