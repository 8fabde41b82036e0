package engine

// Task queues route work to dedicated worker pools so LLM-heavy activities
// can scale separately from storage writes.
const (
	QueueDomainBootstrap  = "domain-bootstrap"
	QueueDocumentAnalysis = "document-analysis"
	QueueAIProcessing     = "ai-processing"
	QueueStorage          = "storage"
	QueueGeneral          = "general"
)

// Search attribute keys projected into Temporal visibility. They must be
// registered in the namespace before workers start.
const (
	AttrDomainID       = "DomainId"
	AttrDomainName     = "DomainName"
	AttrDocumentID     = "DocumentId"
	AttrOwnerID        = "OwnerId"
	AttrContributorID  = "ContributorId"
	AttrAssignee       = "Assignee"
	AttrQueue          = "Queue"
	AttrStatus         = "Status"
	AttrPriority       = "Priority"
	AttrDueAt          = "DueAt"
	AttrCreatedAt      = "CreatedAt"
	AttrRelevanceScore = "RelevanceScore"
)
