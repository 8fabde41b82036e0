package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/curatorhq/curator/activities"
	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/engine"
)

// BootstrapInput starts a domain bootstrap.
type BootstrapInput struct {
	DomainID          string   `json:"domain_id,omitempty"`
	OwnerID           string   `json:"owner_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Slug              string   `json:"slug,omitempty"`
	InitialTopics     []string `json:"initial_topics,omitempty"`
	TargetAudience    []string `json:"target_audience,omitempty"`
	ResearchFocus     string   `json:"research_focus,omitempty"`
	ResearchDepth     string   `json:"research_depth,omitempty"`
	IncludeHistorical bool     `json:"include_historical"`
	IncludeTechnical  bool     `json:"include_technical"`
	IncludePractical  bool     `json:"include_practical"`

	QualityRequirements *QualityOverride `json:"quality_requirements,omitempty"`

	// DecisionTimeout bounds the owner review window. Zero means the
	// default; the window is always finite.
	DecisionTimeout time.Duration `json:"decision_timeout,omitempty"`
	BudgetLimit     float64       `json:"budget_limit,omitempty"`
}

// QualityOverride carries partial quality-criteria overrides from inputs and
// owner feedback.
type QualityOverride struct {
	QualityThreshold *float64 `json:"quality_threshold,omitempty"`
	MinLength        *int     `json:"min_length,omitempty"`
	RequiredSections []string `json:"required_sections,omitempty"`
}

// apply overlays the non-nil fields onto the criteria.
func (q *QualityOverride) apply(criteria *domain.QualityCriteria) {
	if q == nil {
		return
	}
	if q.QualityThreshold != nil {
		criteria.QualityThreshold = *q.QualityThreshold
	}
	if q.MinLength != nil {
		criteria.MinLength = *q.MinLength
	}
	if len(q.RequiredSections) > 0 {
		criteria.RequiredSections = q.RequiredSections
	}
}

// QuestionRanking is the owner's rating of one generated example question.
type QuestionRanking struct {
	Question string `json:"question"`
	Rank     int    `json:"rank"`
}

// OwnerFeedback is the payload of the submit_owner_feedback signal.
type OwnerFeedback struct {
	Approved            bool              `json:"approved"`
	Feedback            map[string]any    `json:"feedback,omitempty"`
	QuestionRankings    []QuestionRanking `json:"question_rankings,omitempty"`
	AdditionalTopics    []string          `json:"additional_topics,omitempty"`
	RemoveTopics        []string          `json:"remove_topics,omitempty"`
	QualityRequirements *QualityOverride  `json:"quality_requirements,omitempty"`
	Reason              string            `json:"reason,omitempty"`
}

// BootstrapStatus is the get_bootstrap_status query result. It reflects the
// state at the last completed transition.
type BootstrapStatus struct {
	Status           string                       `json:"status"`
	ResearchResults  *activities.ResearchResult   `json:"research_results,omitempty"`
	AnalysisResults  *activities.AnalysisResult   `json:"analysis_results,omitempty"`
	DomainConfig     *domain.Domain               `json:"domain_config,omitempty"`
	ExampleQuestions []activities.ExampleQuestion `json:"example_questions,omitempty"`
	OwnerFeedback    *OwnerFeedback               `json:"owner_feedback,omitempty"`
	OwnerApproved    bool                         `json:"owner_approved"`
	ErrorMessage     string                       `json:"error_message,omitempty"`
}

// BootstrapResult is the workflow return value.
type BootstrapResult struct {
	DomainID string              `json:"domain_id"`
	Status   domain.DomainStatus `json:"status"`
	Reason   string              `json:"reason,omitempty"`
	Topics   []string            `json:"topics,omitempty"`
	VectorID string              `json:"vector_id,omitempty"`
}

// DomainBootstrap drives a proposed domain through research, analysis, owner
// review, and indexing.
func DomainBootstrap(ctx workflow.Context, input BootstrapInput) (*BootstrapResult, error) {
	logger := workflow.GetLogger(ctx)

	state := &BootstrapStatus{Status: string(domain.DomainStatusProposed)}
	if err := workflow.SetQueryHandler(ctx, QueryBootstrapStatus, func() (*BootstrapStatus, error) {
		return state, nil
	}); err != nil {
		return nil, err
	}

	timeout := input.DecisionTimeout
	if timeout <= 0 {
		timeout = DefaultOwnerDecisionTimeout
	}

	slug := input.Slug
	if slug == "" {
		slug = domain.Slugify(input.Title)
	}
	domainID := input.DomainID
	if domainID == "" {
		domainID = slug
	}

	d := domain.Domain{
		ID:             domainID,
		OwnerID:        input.OwnerID,
		Title:          input.Title,
		Description:    input.Description,
		Slug:           slug,
		Status:         domain.DomainStatusResearching,
		Topics:         domain.MergeTopics(input.InitialTopics),
		TargetAudience: input.TargetAudience,
		QualityCriteria: domain.QualityCriteria{
			MinLength:         1000,
			QualityThreshold:  DefaultRejectThreshold,
			IncludeHistorical: input.IncludeHistorical,
			IncludeTechnical:  input.IncludeTechnical,
			IncludePractical:  input.IncludePractical,
		},
		CreatedAt: workflow.Now(ctx).UTC(),
		UpdatedAt: workflow.Now(ctx).UTC(),
	}
	input.QualityRequirements.apply(&d.QualityCriteria)

	upsertAttrs(ctx, map[string]any{
		engine.AttrStatus:     string(domain.DomainStatusResearching),
		engine.AttrQueue:      engine.QueueDomainBootstrap,
		engine.AttrAssignee:   input.OwnerID,
		engine.AttrPriority:   "high",
		engine.AttrDomainID:   d.ID,
		engine.AttrDomainName: d.Title,
		engine.AttrOwnerID:    input.OwnerID,
		engine.AttrCreatedAt:  d.CreatedAt,
	})
	state.Status = string(domain.DomainStatusResearching)

	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDomain, d).Get(ctx, nil); err != nil {
		return failBootstrap(ctx, state, &d, "persist domain", err)
	}
	emitSignal(ctx, input.OwnerID, domain.SignalStatusUpdate, map[string]any{
		"status":  "started",
		"message": "researching domain " + d.Title,
	})

	// Research.
	var research activities.ResearchResult
	err := workflow.ExecuteActivity(withLLMOptions(ctx), activities.NameResearchDomain, activities.ResearchInput{
		Title:             input.Title,
		Description:       input.Description,
		InitialTopics:     input.InitialTopics,
		TargetAudience:    input.TargetAudience,
		ResearchFocus:     input.ResearchFocus,
		ResearchDepth:     input.ResearchDepth,
		IncludeHistorical: input.IncludeHistorical,
		IncludeTechnical:  input.IncludeTechnical,
		IncludePractical:  input.IncludePractical,
		BudgetLimit:       input.BudgetLimit,
	}).Get(ctx, &research)
	if err != nil {
		return failBootstrap(ctx, state, &d, "research domain", err)
	}
	state.ResearchResults = &research
	state.Status = "analyzing"
	upsertAttrs(ctx, map[string]any{engine.AttrStatus: "analyzing"})
	emitSignal(ctx, input.OwnerID, domain.SignalProgress, map[string]any{
		"progress": 0.3,
		"step":     "research_complete",
	})

	// Analysis, then example questions.
	var analysis activities.AnalysisResult
	err = workflow.ExecuteActivity(withLLMOptions(ctx), activities.NameAnalyzeResearch, activities.AnalyzeInput{
		DomainTitle: input.Title,
		Research:    research,
	}).Get(ctx, &analysis)
	if err != nil {
		return failBootstrap(ctx, state, &d, "analyze research", err)
	}
	state.AnalysisResults = &analysis

	var questions activities.QuestionsResult
	err = workflow.ExecuteActivity(withLLMOptions(ctx), activities.NameGenerateExampleQuestions, activities.QuestionsInput{
		DomainTitle: input.Title,
		Description: input.Description,
	}).Get(ctx, &questions)
	if err != nil {
		return failBootstrap(ctx, state, &d, "generate example questions", err)
	}
	state.ExampleQuestions = questions.Questions

	// Draft configuration for the owner to review.
	d.Topics = domain.MergeTopics(input.InitialTopics, analysis.Topics)
	d.QualityCriteria.QualityThreshold = analysis.QualityCriteria.QualityThreshold
	d.QualityCriteria.MinLength = analysis.QualityCriteria.MinLength
	d.QualityCriteria.RequiredSections = analysis.QualityCriteria.RequiredSections
	input.QualityRequirements.apply(&d.QualityCriteria)
	if len(analysis.TargetAudience) > 0 {
		d.TargetAudience = domain.MergeTopics(input.TargetAudience, analysis.TargetAudience)
	}
	d.SearchAttributes = analysis.SearchAttributes
	d.Status = domain.DomainStatusAwaitingOwner
	d.UpdatedAt = workflow.Now(ctx).UTC()
	state.DomainConfig = &d
	state.Status = string(domain.DomainStatusAwaitingOwner)

	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDomain, d).Get(ctx, nil); err != nil {
		return failBootstrap(ctx, state, &d, "persist draft configuration", err)
	}
	due := workflow.Now(ctx).Add(timeout)
	upsertAttrs(ctx, map[string]any{
		engine.AttrStatus: string(domain.DomainStatusAwaitingOwner),
		engine.AttrDueAt:  due,
	})
	emitSignal(ctx, input.OwnerID, domain.SignalStatusUpdate, map[string]any{
		"status":  "awaiting_owner",
		"message": "domain research complete, awaiting your review",
	})

	// Owner decision or timeout, whichever first.
	feedback, timedOut := awaitOwnerDecision(ctx, timeout)
	if ctx.Err() != nil {
		return failBootstrap(ctx, state, &d, "await owner decision", temporal.NewCanceledError())
	}

	if timedOut {
		logger.Info("owner decision window elapsed", "domain_id", d.ID, "timeout", timeout)
		return rejectBootstrap(ctx, state, &d, "owner_decision_timeout")
	}
	state.OwnerFeedback = feedback
	if !feedback.Approved {
		reason := feedback.Reason
		if reason == "" {
			reason = "rejected by owner"
		}
		return rejectBootstrap(ctx, state, &d, reason)
	}

	// Approved: apply feedback and go live.
	state.OwnerApproved = true
	d.AddTopics(feedback.AdditionalTopics...)
	d.RemoveTopics(feedback.RemoveTopics...)
	feedback.QualityRequirements.apply(&d.QualityCriteria)
	d.Status = domain.DomainStatusActive
	d.UpdatedAt = workflow.Now(ctx).UTC()
	state.DomainConfig = &d
	state.Status = string(domain.DomainStatusActive)
	upsertAttrs(ctx, map[string]any{engine.AttrStatus: string(domain.DomainStatusActive)})

	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDomain, d).Get(ctx, nil); err != nil {
		return failBootstrap(ctx, state, &d, "persist active domain", err)
	}

	var indexed activities.IndexDomainResult
	err = workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameIndexDomain, activities.IndexDomainInput{
		Domain:  d,
		Summary: research.Summary,
	}).Get(ctx, &indexed)
	if err != nil {
		return failBootstrap(ctx, state, &d, "index domain", err)
	}

	emitSignal(ctx, input.OwnerID, domain.SignalCompletion, map[string]any{
		"result":  "active",
		"message": "domain " + d.Title + " is live",
	})
	logger.Info("domain bootstrap complete", "domain_id", d.ID, "topics", len(d.Topics))

	return &BootstrapResult{
		DomainID: d.ID,
		Status:   domain.DomainStatusActive,
		Topics:   d.Topics,
		VectorID: indexed.VectorID,
	}, nil
}

// awaitOwnerDecision blocks until owner feedback, a bare approve/reject
// signal, or the decision timer. Later duplicates are never read, so signals
// after the first decision cannot move the workflow.
func awaitOwnerDecision(ctx workflow.Context, timeout time.Duration) (*OwnerFeedback, bool) {
	feedbackCh := workflow.GetSignalChannel(ctx, SignalOwnerFeedback)
	approveCh := workflow.GetSignalChannel(ctx, SignalApprove)
	rejectCh := workflow.GetSignalChannel(ctx, SignalReject)

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()
	timer := workflow.NewTimer(timerCtx, timeout)

	var feedback *OwnerFeedback
	timedOut := false

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(feedbackCh, func(c workflow.ReceiveChannel, _ bool) {
		var fb OwnerFeedback
		c.Receive(ctx, &fb)
		feedback = &fb
	})
	selector.AddReceive(approveCh, func(c workflow.ReceiveChannel, _ bool) {
		c.Receive(ctx, nil)
		feedback = &OwnerFeedback{Approved: true}
	})
	selector.AddReceive(rejectCh, func(c workflow.ReceiveChannel, _ bool) {
		var reason string
		c.Receive(ctx, &reason)
		feedback = &OwnerFeedback{Approved: false, Reason: reason}
	})
	selector.AddFuture(timer, func(f workflow.Future) {
		if f.Get(timerCtx, nil) == nil {
			timedOut = true
		}
	})
	selector.Select(ctx)
	return feedback, timedOut
}

// rejectBootstrap finishes the workflow in the Rejected state.
func rejectBootstrap(ctx workflow.Context, state *BootstrapStatus, d *domain.Domain, reason string) (*BootstrapResult, error) {
	d.Status = domain.DomainStatusRejected
	state.Status = string(domain.DomainStatusRejected)
	state.ErrorMessage = ""

	err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameUpdateDomainStatus, activities.UpdateDomainStatusInput{
		DomainID: d.ID,
		Status:   domain.DomainStatusRejected,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("failed to record rejected status", "domain_id", d.ID, "error", err)
	}
	upsertAttrs(ctx, map[string]any{engine.AttrStatus: string(domain.DomainStatusRejected)})
	emitSignal(ctx, d.OwnerID, domain.SignalCompletion, map[string]any{
		"result":  "rejected",
		"message": reason,
	})
	return &BootstrapResult{DomainID: d.ID, Status: domain.DomainStatusRejected, Reason: reason}, nil
}

// failBootstrap finishes the workflow in the Failed state, recording the
// failure in the metadata store and emitting a best-effort error signal.
// Cleanup runs on a disconnected context when the workflow was cancelled.
func failBootstrap(ctx workflow.Context, state *BootstrapStatus, d *domain.Domain, stage string, cause error) (*BootstrapResult, error) {
	cancelled := temporal.IsCanceledError(cause) || ctx.Err() != nil
	cleanupCtx := ctx
	if cancelled {
		cleanupCtx, _ = workflow.NewDisconnectedContext(ctx)
	}

	reason := stage
	code := errorCode(cause)
	if cancelled {
		reason = "cancelled"
		code = "Cancelled"
	}

	state.Status = string(domain.DomainStatusFailed)
	state.ErrorMessage = stage + ": " + cause.Error()

	err := workflow.ExecuteActivity(withStorageOptions(cleanupCtx), activities.NameUpdateDomainStatus, activities.UpdateDomainStatusInput{
		DomainID: d.ID,
		Status:   domain.DomainStatusFailed,
	}).Get(cleanupCtx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("failed to record failed status", "domain_id", d.ID, "error", err)
	}
	upsertAttrs(cleanupCtx, map[string]any{engine.AttrStatus: string(domain.DomainStatusFailed)})
	emitSignal(cleanupCtx, d.OwnerID, domain.SignalError, map[string]any{
		"error":      stage + ": " + cause.Error(),
		"error_code": code,
	})

	return &BootstrapResult{DomainID: d.ID, Status: domain.DomainStatusFailed, Reason: reason},
		temporal.NewApplicationError("domain bootstrap failed at "+stage, code, cause)
}

// upsertAttrs projects business state into visibility attributes.
func upsertAttrs(ctx workflow.Context, attrs map[string]any) {
	if err := workflow.UpsertSearchAttributes(ctx, attrs); err != nil {
		workflow.GetLogger(ctx).Warn("search attribute upsert failed", "error", err)
	}
}

// errorCode extracts the application-error type for error signals.
func errorCode(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return appErr.Type()
	}
	return "Internal"
}
