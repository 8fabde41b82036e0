package domain

import (
	"fmt"
	"time"
)

// DocumentStatus is the lifecycle status of a contributed document.
type DocumentStatus string

const (
	DocumentStatusPending       DocumentStatus = "pending"
	DocumentStatusAnalyzing     DocumentStatus = "analyzing"
	DocumentStatusPendingReview DocumentStatus = "pending_review"
	DocumentStatusApproved      DocumentStatus = "approved"
	DocumentStatusRejected      DocumentStatus = "rejected"
	DocumentStatusIndexed       DocumentStatus = "indexed"
	DocumentStatusFailed        DocumentStatus = "failed"
)

// DocumentAnalysis is the structured result of relevance assessment.
type DocumentAnalysis struct {
	Summary           string             `json:"summary"`
	KeyPoints         []string           `json:"key_points,omitempty"`
	Topics            []string           `json:"topics,omitempty"`
	QualityIndicators map[string]float64 `json:"quality_indicators,omitempty"`
	RejectionReason   string             `json:"rejection_reason,omitempty"`
}

// IndexRefs records where an accepted document landed in the external stores.
type IndexRefs struct {
	VectorID     string `json:"vector_id,omitempty"`
	GraphUpdated bool   `json:"graph_updated"`
}

// Document is a contribution to a knowledge domain.
type Document struct {
	ID             string            `json:"id"`
	DomainID       string            `json:"domain_id"`
	ContributorID  string            `json:"contributor_id"`
	FileRef        string            `json:"file_ref"`
	Status         DocumentStatus    `json:"status"`
	RelevanceScore *float64          `json:"relevance_score,omitempty"`
	Analysis       *DocumentAnalysis `json:"analysis,omitempty"`
	IndexRefs      IndexRefs         `json:"index_refs"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Validate checks structural invariants on the document.
// In particular, an indexed document must reference its vector object and a
// document pending review must carry a score.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if d.DomainID == "" {
		return fmt.Errorf("domain_id is required")
	}
	if d.ContributorID == "" {
		return fmt.Errorf("contributor_id is required")
	}
	if d.RelevanceScore != nil {
		if s := *d.RelevanceScore; s < 0 || s > 10 {
			return fmt.Errorf("relevance_score must be in [0,10], got %g", s)
		}
	}
	switch d.Status {
	case DocumentStatusIndexed:
		if d.IndexRefs.VectorID == "" {
			return fmt.Errorf("indexed document %s has no vector_id", d.ID)
		}
	case DocumentStatusPendingReview:
		if d.RelevanceScore == nil {
			return fmt.Errorf("document %s pending review without relevance score", d.ID)
		}
	}
	return nil
}

// Score returns the relevance score, or -1 when unscored.
func (d *Document) Score() float64 {
	if d.RelevanceScore == nil {
		return -1
	}
	return *d.RelevanceScore
}
