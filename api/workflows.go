package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/engine"
	"github.com/curatorhq/curator/workflows"
)

// StartDomainRequest is the body for POST /domains.
type StartDomainRequest struct {
	OwnerID           string                     `json:"owner_id"`
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	Slug              string                     `json:"slug,omitempty"`
	InitialTopics     []string                   `json:"initial_topics,omitempty"`
	TargetAudience    []string                   `json:"target_audience,omitempty"`
	ResearchFocus     string                     `json:"research_focus,omitempty"`
	ResearchDepth     string                     `json:"research_depth,omitempty"`
	IncludeHistorical bool                       `json:"include_historical"`
	IncludeTechnical  bool                       `json:"include_technical"`
	IncludePractical  bool                       `json:"include_practical"`
	QualityReqs       *workflows.QualityOverride `json:"quality_requirements,omitempty"`
	BudgetLimit       float64                    `json:"budget_limit,omitempty"`
}

// StartWorkflowResponse is the body returned by workflow-start endpoints.
type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// handleStartDomain handles POST /domains.
func (s *Server) handleStartDomain(w http.ResponseWriter, r *http.Request) {
	var req StartDomainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "title_required", "title is required")
		return
	}
	if req.OwnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "owner_required", "owner_id is required")
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = domain.Slugify(req.Title)
	}
	input := workflows.BootstrapInput{
		DomainID:            slug,
		OwnerID:             req.OwnerID,
		Title:               req.Title,
		Description:         req.Description,
		Slug:                slug,
		InitialTopics:       req.InitialTopics,
		TargetAudience:      req.TargetAudience,
		ResearchFocus:       req.ResearchFocus,
		ResearchDepth:       req.ResearchDepth,
		IncludeHistorical:   req.IncludeHistorical,
		IncludeTechnical:    req.IncludeTechnical,
		IncludePractical:    req.IncludePractical,
		QualityRequirements: req.QualityReqs,
		BudgetLimit:         req.BudgetLimit,
	}

	workflowID := "domain-bootstrap-" + slug
	runID, err := s.startWithRetry(r, workflowID, engine.StartOptions{
		Queue:            engine.QueueDomainBootstrap,
		ExecutionTimeout: workflows.BootstrapExecutionTimeout,
		SearchAttributes: map[string]any{
			engine.AttrDomainName: req.Title,
			engine.AttrOwnerID:    req.OwnerID,
		},
	}, workflows.TypeDomainBootstrap, input, &workflowID)
	if err != nil {
		s.logger.Error("failed to start bootstrap workflow", "workflow_id", workflowID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "start_failed", "Failed to start domain bootstrap")
		return
	}

	writeJSON(w, http.StatusAccepted, StartWorkflowResponse{
		WorkflowID: workflowID,
		RunID:      runID,
		Status:     "started",
		Message:    "domain bootstrap started for " + req.Title,
	})
}

// startWithRetry starts a workflow, retrying once with a suffixed id when the
// requested id is already running. The chosen id is written back through id.
func (s *Server) startWithRetry(r *http.Request, workflowID string, opts engine.StartOptions, workflowType string, input any, id *string) (string, error) {
	opts.ID = workflowID
	runID, err := s.engine.StartWorkflow(r.Context(), opts, workflowType, input)
	if err == nil {
		*id = workflowID
		return runID, nil
	}
	if !errors.Is(err, engine.ErrAlreadyRunning) {
		return "", err
	}
	opts.ID = workflowID + "-" + uuid.NewString()[:8]
	runID, err = s.engine.StartWorkflow(r.Context(), opts, workflowType, input)
	if err != nil {
		return "", err
	}
	*id = opts.ID
	return runID, nil
}

// handleDomainStatus handles GET /domains/{workflow_id}/status. Rejected and
// failed bootstraps still answer 200: the outcome is data, not an error.
func (s *Server) handleDomainStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")

	var status workflows.BootstrapStatus
	if err := s.engine.Query(r.Context(), workflowID, workflows.QueryBootstrapStatus, &status); err != nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "Workflow not found: "+workflowID)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleOwnerFeedback handles POST /domains/{workflow_id}/owner-feedback.
func (s *Server) handleOwnerFeedback(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")

	var feedback workflows.OwnerFeedback
	if !decodeBody(w, r, &feedback) {
		return
	}
	if err := s.engine.Signal(r.Context(), workflowID, workflows.SignalOwnerFeedback, feedback); err != nil {
		s.logger.Error("failed to deliver owner feedback", "workflow_id", workflowID, "error", err)
		writeJSONError(w, http.StatusNotFound, "signal_failed", "Could not signal workflow "+workflowID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"workflow_id": workflowID,
		"status":      "delivered",
	})
}

// handleOwnerInbox handles GET /domains/owner/inbox. The inbox is a
// server-side visibility query over search attributes, not a table scan.
func (s *Server) handleOwnerInbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerID := q.Get("owner_id")
	if ownerID == "" {
		writeJSONError(w, http.StatusBadRequest, "owner_required", "owner_id is required")
		return
	}

	filter := engine.NewFilter().
		Equals(engine.AttrAssignee, ownerID).
		Equals(engine.AttrQueue, q.Get("queue")).
		Equals(engine.AttrStatus, q.Get("status"))

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	executions, err := s.engine.ListWorkflows(r.Context(), filter.Query(), limit, offset)
	if err != nil {
		s.logger.Error("owner inbox query failed", "owner_id", ownerID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "query_failed", "Inbox query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"total":      len(executions),
	})
}

// StartContributionRequest is the body for POST /documents.
type StartContributionRequest struct {
	DocumentID           string                 `json:"document_id,omitempty"`
	DomainID             string                 `json:"domain_id"`
	DomainTitle          string                 `json:"domain_title,omitempty"`
	DomainTopics         []string               `json:"domain_topics,omitempty"`
	ContributorID        string                 `json:"contributor_id"`
	OwnerID              string                 `json:"owner_id,omitempty"`
	FileRef              string                 `json:"file_ref"`
	Priority             string                 `json:"priority,omitempty"`
	Criteria             domain.QualityCriteria `json:"criteria"`
	AutoApproveThreshold float64                `json:"auto_approve_threshold,omitempty"`
	RejectThreshold      float64                `json:"reject_threshold,omitempty"`
	ControllerPool       []workflows.Controller `json:"controller_pool,omitempty"`
}

// handleStartContribution handles POST /documents.
func (s *Server) handleStartContribution(w http.ResponseWriter, r *http.Request) {
	var req StartContributionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DomainID == "" {
		writeJSONError(w, http.StatusBadRequest, "domain_required", "domain_id is required")
		return
	}
	if req.ContributorID == "" {
		writeJSONError(w, http.StatusBadRequest, "contributor_required", "contributor_id is required")
		return
	}
	if req.FileRef == "" {
		writeJSONError(w, http.StatusBadRequest, "file_required", "file_ref is required")
		return
	}
	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	input := workflows.ContributionInput{
		DocumentID:           documentID,
		DomainID:             req.DomainID,
		DomainTitle:          req.DomainTitle,
		DomainTopics:         req.DomainTopics,
		ContributorID:        req.ContributorID,
		OwnerID:              req.OwnerID,
		FileRef:              req.FileRef,
		Priority:             req.Priority,
		Criteria:             req.Criteria,
		AutoApproveThreshold: req.AutoApproveThreshold,
		RejectThreshold:      req.RejectThreshold,
		ControllerPool:       req.ControllerPool,
	}

	workflowID := "doc-contribution-" + documentID
	runID, err := s.startWithRetry(r, workflowID, engine.StartOptions{
		Queue:            engine.QueueDocumentAnalysis,
		ExecutionTimeout: workflows.ContributionExecutionTimeout,
		SearchAttributes: map[string]any{
			engine.AttrDomainID:      req.DomainID,
			engine.AttrContributorID: req.ContributorID,
		},
	}, workflows.TypeDocumentContribution, input, &workflowID)
	if err != nil {
		s.logger.Error("failed to start contribution workflow", "workflow_id", workflowID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "start_failed", "Failed to start document contribution")
		return
	}

	writeJSON(w, http.StatusAccepted, StartWorkflowResponse{
		WorkflowID: workflowID,
		RunID:      runID,
		Status:     "started",
		Message:    "document contribution started",
	})
}

// ControllerDecisionRequest is the body for POST /workflows/{id}/controller-decision.
type ControllerDecisionRequest struct {
	Decision     string `json:"decision"`
	ControllerID string `json:"controller_id"`
	Feedback     string `json:"feedback,omitempty"`
}

// handleControllerDecision delivers a review verdict as a submit_review signal.
func (s *Server) handleControllerDecision(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")

	var req ControllerDecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decision := strings.ToLower(req.Decision)
	if decision != "approve" && decision != "reject" {
		writeJSONError(w, http.StatusBadRequest, "invalid_decision", "decision must be approve or reject")
		return
	}

	review := workflows.ReviewDecision{
		Approved:     decision == "approve",
		ControllerID: req.ControllerID,
		Feedback:     req.Feedback,
	}
	if err := s.engine.Signal(r.Context(), workflowID, workflows.SignalSubmitReview, review); err != nil {
		s.logger.Error("failed to deliver controller decision", "workflow_id", workflowID, "error", err)
		writeJSONError(w, http.StatusNotFound, "signal_failed", "Could not signal workflow "+workflowID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"workflow_id": workflowID,
		"status":      "delivered",
		"decision":    decision,
	})
}
