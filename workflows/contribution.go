package workflows

import (
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/curatorhq/curator/activities"
	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/engine"
)

// Controller is one member of a domain's review pool with its current load.
type Controller struct {
	ID   string `json:"id"`
	Load int    `json:"load"`
}

// ContributionInput starts a document contribution.
type ContributionInput struct {
	DocumentID    string   `json:"document_id"`
	DomainID      string   `json:"domain_id"`
	DomainTitle   string   `json:"domain_title"`
	DomainTopics  []string `json:"domain_topics,omitempty"`
	ContributorID string   `json:"contributor_id"`
	OwnerID       string   `json:"owner_id"`
	FileRef       string   `json:"file_ref"`
	Priority      string   `json:"priority,omitempty"`

	Criteria domain.QualityCriteria `json:"criteria"`

	// Routing thresholds. Zero means the defaults (8.0 / 7.0).
	AutoApproveThreshold float64 `json:"auto_approve_threshold,omitempty"`
	RejectThreshold      float64 `json:"reject_threshold,omitempty"`

	// ControllerPool is the review-pool snapshot taken at start; assignment
	// is computed deterministically from it. Empty pool assigns the owner.
	ControllerPool []Controller `json:"controller_pool,omitempty"`

	// ControllerDecisionTimeout bounds the review window; always finite.
	ControllerDecisionTimeout time.Duration `json:"controller_decision_timeout,omitempty"`
}

// ReviewDecision is the payload of the submit_review signal.
type ReviewDecision struct {
	Approved     bool   `json:"approved"`
	Feedback     string `json:"feedback,omitempty"`
	ControllerID string `json:"controller_id,omitempty"`
}

// ContributionStatus is the get_status query result.
type ContributionStatus struct {
	Status             string                   `json:"status"`
	RelevanceScore     *float64                 `json:"relevance_score,omitempty"`
	Analysis           *activities.AssessResult `json:"analysis,omitempty"`
	ControllerDecision *ReviewDecision          `json:"controller_decision,omitempty"`
	ControllerID       string                   `json:"controller_id,omitempty"`
	ErrorMessage       string                   `json:"error_message,omitempty"`
}

// ContributionResult is the workflow return value.
type ContributionResult struct {
	DocumentID string                `json:"document_id"`
	Status     domain.DocumentStatus `json:"status"`
	Score      float64               `json:"score"`
	Reason     string                `json:"reason,omitempty"`
	VectorID   string                `json:"vector_id,omitempty"`
	ChunkCount int                   `json:"chunk_count,omitempty"`
}

// assignController picks the pool member with the lowest load, breaking ties
// by smallest id. Deterministic across replays: the pool is an input
// snapshot, never a live read.
func assignController(pool []Controller, ownerID string) string {
	if len(pool) == 0 {
		return ownerID
	}
	sorted := make([]Controller, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Load != sorted[j].Load {
			return sorted[i].Load < sorted[j].Load
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0].ID
}

// DocumentContribution scores a document, routes it by score, runs the
// controller review when needed, and indexes accepted documents.
func DocumentContribution(ctx workflow.Context, input ContributionInput) (*ContributionResult, error) {
	logger := workflow.GetLogger(ctx)

	state := &ContributionStatus{Status: "analyzing"}
	if err := workflow.SetQueryHandler(ctx, QueryContributionStatus, func() (*ContributionStatus, error) {
		return state, nil
	}); err != nil {
		return nil, err
	}

	approveAt := input.AutoApproveThreshold
	if approveAt <= 0 {
		approveAt = DefaultAutoApproveThreshold
	}
	rejectBelow := input.RejectThreshold
	if rejectBelow <= 0 {
		rejectBelow = DefaultRejectThreshold
	}
	reviewTimeout := input.ControllerDecisionTimeout
	if reviewTimeout <= 0 {
		reviewTimeout = DefaultControllerDecisionTimeout
	}
	priority := input.Priority
	if priority == "" {
		priority = "normal"
	}

	doc := domain.Document{
		ID:            input.DocumentID,
		DomainID:      input.DomainID,
		ContributorID: input.ContributorID,
		FileRef:       input.FileRef,
		Status:        domain.DocumentStatusAnalyzing,
		CreatedAt:     workflow.Now(ctx).UTC(),
		UpdatedAt:     workflow.Now(ctx).UTC(),
	}

	upsertAttrs(ctx, map[string]any{
		engine.AttrStatus:        "analyzing",
		engine.AttrQueue:         engine.QueueDocumentAnalysis,
		engine.AttrDocumentID:    doc.ID,
		engine.AttrDomainID:      input.DomainID,
		engine.AttrContributorID: input.ContributorID,
		engine.AttrPriority:      priority,
	})
	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDocument, doc).Get(ctx, nil); err != nil {
		return failContribution(ctx, state, &doc, "persist document", err)
	}
	emitSignal(ctx, input.ContributorID, domain.SignalStatusUpdate, map[string]any{
		"status":  "started",
		"message": "analyzing contribution to " + input.DomainTitle,
	})
	emitSignal(ctx, input.ContributorID, domain.SignalProgress, map[string]any{
		"progress": 0.1,
		"step":     "download",
	})

	// Relevance assessment.
	var assessment activities.AssessResult
	err := workflow.ExecuteActivity(withLLMOptions(ctx), activities.NameAssessDocumentRelevance, activities.AssessInput{
		DocumentID:  doc.ID,
		FileRef:     input.FileRef,
		DomainTitle: input.DomainTitle,
		Topics:      input.DomainTopics,
		Criteria:    input.Criteria,
	}).Get(ctx, &assessment)
	if err != nil {
		if errorCode(err) == activities.ErrTypeExtractionFailure {
			return rejectContribution(ctx, state, &doc, "extraction_failed", nil)
		}
		return failContribution(ctx, state, &doc, "assess relevance", err)
	}
	score := assessment.RelevanceScore
	state.Analysis = &assessment
	state.RelevanceScore = &score
	doc.RelevanceScore = &score
	doc.Analysis = &domain.DocumentAnalysis{
		Summary:           assessment.Summary,
		KeyPoints:         assessment.KeyPoints,
		Topics:            assessment.Topics,
		QualityIndicators: assessment.QualityIndicators,
		RejectionReason:   assessment.RejectionReason,
	}
	upsertAttrs(ctx, map[string]any{engine.AttrRelevanceScore: score})

	// Routing.
	switch {
	case score >= approveAt:
		state.Status = "auto_approved"
		doc.Status = domain.DocumentStatusApproved
		upsertAttrs(ctx, map[string]any{engine.AttrStatus: "auto_approved"})
		logger.Info("document auto-approved", "document_id", doc.ID, "score", score)

	case score < rejectBelow:
		reason := assessment.RejectionReason
		if reason == "" {
			reason = "relevance score below threshold"
		}
		logger.Info("document auto-rejected", "document_id", doc.ID, "score", score)
		return rejectContribution(ctx, state, &doc, reason, nil)

	default:
		controller := assignController(input.ControllerPool, input.OwnerID)
		state.Status = "pending_review"
		state.ControllerID = controller
		doc.Status = domain.DocumentStatusPendingReview
		doc.UpdatedAt = workflow.Now(ctx).UTC()

		if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDocument, doc).Get(ctx, nil); err != nil {
			return failContribution(ctx, state, &doc, "persist review state", err)
		}
		upsertAttrs(ctx, map[string]any{
			engine.AttrStatus:   "pending_review",
			engine.AttrAssignee: controller,
			engine.AttrDueAt:    workflow.Now(ctx).Add(reviewTimeout),
		})
		emitSignal(ctx, input.ContributorID, domain.SignalStatusUpdate, map[string]any{
			"status":  "pending_review",
			"message": "document needs controller review",
		})

		decision, timedOut := awaitReview(ctx, reviewTimeout)
		if ctx.Err() != nil {
			return failContribution(ctx, state, &doc, "await review", temporal.NewCanceledError())
		}
		if timedOut {
			logger.Info("controller review window elapsed", "document_id", doc.ID)
			return rejectContribution(ctx, state, &doc, "controller_timeout", nil)
		}
		state.ControllerDecision = decision
		if decision.ControllerID != "" {
			state.ControllerID = decision.ControllerID
		}
		if !decision.Approved {
			reason := decision.Feedback
			if reason == "" {
				reason = "rejected by controller"
			}
			return rejectContribution(ctx, state, &doc, reason, decision)
		}
		state.Status = "approved"
		doc.Status = domain.DocumentStatusApproved
		upsertAttrs(ctx, map[string]any{engine.AttrStatus: "approved"})
	}

	// Indexing pipeline.
	doc.UpdatedAt = workflow.Now(ctx).UTC()
	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDocument, doc).Get(ctx, nil); err != nil {
		return failContribution(ctx, state, &doc, "persist approval", err)
	}

	var extracted activities.ExtractResult
	err = workflow.ExecuteActivity(withLocalOptions(ctx), activities.NameExtractText, activities.ExtractInput{
		FileRef: input.FileRef,
	}).Get(ctx, &extracted)
	if err != nil {
		return failContribution(ctx, state, &doc, "extract text", err)
	}
	emitSignal(ctx, input.ContributorID, domain.SignalProgress, map[string]any{
		"progress": 0.5,
		"step":     "extract_text",
	})

	var embedded activities.EmbedResult
	err = workflow.ExecuteActivity(withLLMOptions(ctx), activities.NameGenerateEmbeddings, activities.EmbedInput{
		Chunks: extracted.Chunks,
	}).Get(ctx, &embedded)
	if err != nil {
		return failContribution(ctx, state, &doc, "generate embeddings", err)
	}
	emitSignal(ctx, input.ContributorID, domain.SignalProgress, map[string]any{
		"progress": 0.7,
		"step":     "generate_embeddings",
	})

	var indexed activities.IndexWeaviateResult
	err = workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameIndexWeaviate, activities.IndexWeaviateInput{
		Document: doc,
		Chunks:   extracted.Chunks,
		Vectors:  embedded.Vectors,
	}).Get(ctx, &indexed)
	if err != nil {
		return failContribution(ctx, state, &doc, "index document", err)
	}
	emitSignal(ctx, input.ContributorID, domain.SignalProgress, map[string]any{
		"progress": 0.8,
		"step":     "index_weaviate",
	})

	topics := domain.MergeTopics(assessment.Topics, extracted.Topics)
	err = workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameUpdateGraph, activities.UpdateGraphInput{
		Document: doc,
		Topics:   topics,
		Entities: extracted.Entities,
	}).Get(ctx, nil)
	if err != nil {
		return failContribution(ctx, state, &doc, "update graph", err)
	}
	emitSignal(ctx, input.ContributorID, domain.SignalProgress, map[string]any{
		"progress": 0.9,
		"step":     "update_graph",
	})

	doc.Status = domain.DocumentStatusIndexed
	doc.IndexRefs = domain.IndexRefs{VectorID: indexed.VectorID, GraphUpdated: true}
	doc.UpdatedAt = workflow.Now(ctx).UTC()
	state.Status = "indexed"
	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDocument, doc).Get(ctx, nil); err != nil {
		return failContribution(ctx, state, &doc, "persist indexed document", err)
	}

	err = workflow.ExecuteActivity(withNotifyOptions(ctx), activities.NameNotifyContributor, activities.NotifyInput{
		ContributorID: input.ContributorID,
		WorkflowID:    workflow.GetInfo(ctx).WorkflowExecution.ID,
		Decision:      "approved",
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("contributor notification failed", "document_id", doc.ID, "error", err)
	}

	upsertAttrs(ctx, map[string]any{engine.AttrStatus: "indexed"})
	emitSignal(ctx, input.ContributorID, domain.SignalCompletion, map[string]any{
		"result":  "indexed",
		"message": "document accepted into " + input.DomainTitle,
	})

	return &ContributionResult{
		DocumentID: doc.ID,
		Status:     domain.DocumentStatusIndexed,
		Score:      score,
		VectorID:   indexed.VectorID,
		ChunkCount: indexed.ChunkCount,
	}, nil
}

// awaitReview blocks until a submit_review signal or the review timer.
func awaitReview(ctx workflow.Context, timeout time.Duration) (*ReviewDecision, bool) {
	reviewCh := workflow.GetSignalChannel(ctx, SignalSubmitReview)

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()
	timer := workflow.NewTimer(timerCtx, timeout)

	var decision *ReviewDecision
	timedOut := false

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(reviewCh, func(c workflow.ReceiveChannel, _ bool) {
		var d ReviewDecision
		c.Receive(ctx, &d)
		decision = &d
	})
	selector.AddFuture(timer, func(f workflow.Future) {
		if f.Get(timerCtx, nil) == nil {
			timedOut = true
		}
	})
	selector.Select(ctx)
	return decision, timedOut
}

// rejectContribution finishes the workflow with a rejected document.
func rejectContribution(ctx workflow.Context, state *ContributionStatus, doc *domain.Document, reason string, decision *ReviewDecision) (*ContributionResult, error) {
	state.Status = "rejected"
	if decision != nil {
		state.ControllerDecision = decision
	}
	doc.Status = domain.DocumentStatusRejected
	if doc.Analysis == nil {
		doc.Analysis = &domain.DocumentAnalysis{}
	}
	doc.Analysis.RejectionReason = reason
	doc.UpdatedAt = workflow.Now(ctx).UTC()

	if err := workflow.ExecuteActivity(withStorageOptions(ctx), activities.NameSaveDocument, *doc).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("failed to record rejected document", "document_id", doc.ID, "error", err)
	}
	err := workflow.ExecuteActivity(withNotifyOptions(ctx), activities.NameNotifyContributor, activities.NotifyInput{
		ContributorID: doc.ContributorID,
		WorkflowID:    workflow.GetInfo(ctx).WorkflowExecution.ID,
		Decision:      "rejected",
		Reason:        reason,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("contributor notification failed", "document_id", doc.ID, "error", err)
	}

	upsertAttrs(ctx, map[string]any{engine.AttrStatus: "rejected"})
	emitSignal(ctx, doc.ContributorID, domain.SignalCompletion, map[string]any{
		"result":  "rejected",
		"message": reason,
	})
	return &ContributionResult{
		DocumentID: doc.ID,
		Status:     domain.DocumentStatusRejected,
		Score:      doc.Score(),
		Reason:     reason,
	}, nil
}

// failContribution finishes the workflow in the Failed state. Cleanup runs
// on a disconnected context when the workflow was cancelled.
func failContribution(ctx workflow.Context, state *ContributionStatus, doc *domain.Document, stage string, cause error) (*ContributionResult, error) {
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

	state.Status = "failed"
	state.ErrorMessage = stage + ": " + cause.Error()
	doc.Status = domain.DocumentStatusFailed
	doc.UpdatedAt = workflow.Now(cleanupCtx).UTC()

	if err := workflow.ExecuteActivity(withStorageOptions(cleanupCtx), activities.NameSaveDocument, *doc).Get(cleanupCtx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("failed to record failed document", "document_id", doc.ID, "error", err)
	}
	upsertAttrs(cleanupCtx, map[string]any{engine.AttrStatus: "failed"})
	emitSignal(cleanupCtx, doc.ContributorID, domain.SignalError, map[string]any{
		"error":      stage + ": " + cause.Error(),
		"error_code": code,
	})

	return &ContributionResult{DocumentID: doc.ID, Status: domain.DocumentStatusFailed, Reason: reason},
		temporal.NewApplicationError("document contribution failed at "+stage, code, cause)
}
