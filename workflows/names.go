// Package workflows implements the two long-running state machines of the
// platform: domain bootstrap and document contribution.
package workflows

// Workflow type names, used as id prefixes and registration names.
const (
	TypeDomainBootstrap      = "DomainBootstrap"
	TypeDocumentContribution = "DocumentContribution"
)

// Signal names accepted by running workflows.
const (
	SignalOwnerFeedback = "submit_owner_feedback"
	SignalApprove       = "approve"
	SignalReject        = "reject"
	SignalSubmitReview  = "submit_review"
)

// Query names.
const (
	QueryBootstrapStatus    = "get_bootstrap_status"
	QueryContributionStatus = "get_status"
)
