// Package domain defines the core data model shared by workflows,
// activities, and stores: knowledge domains, contributed documents,
// and user-facing signals.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DomainStatus is the lifecycle status of a knowledge domain.
type DomainStatus string

const (
	DomainStatusProposed      DomainStatus = "proposed"
	DomainStatusResearching   DomainStatus = "researching"
	DomainStatusAwaitingOwner DomainStatus = "awaiting_owner"
	DomainStatusActive        DomainStatus = "active"
	DomainStatusRejected      DomainStatus = "rejected"
	DomainStatusFailed        DomainStatus = "failed"
)

// domainTransitions lists the allowed status transitions.
// Failed is reachable from every non-terminal status.
var domainTransitions = map[DomainStatus][]DomainStatus{
	DomainStatusProposed:      {DomainStatusResearching, DomainStatusFailed},
	DomainStatusResearching:   {DomainStatusAwaitingOwner, DomainStatusFailed},
	DomainStatusAwaitingOwner: {DomainStatusActive, DomainStatusRejected, DomainStatusFailed},
}

// CanTransition reports whether a domain may move from one status to another.
func (s DomainStatus) CanTransition(to DomainStatus) bool {
	for _, next := range domainTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s DomainStatus) Terminal() bool {
	return len(domainTransitions[s]) == 0
}

// QualityCriteria captures the quality bar a domain applies to contributions.
type QualityCriteria struct {
	// MinLength is the minimum accepted document length in characters.
	MinLength int `json:"min_length" yaml:"min_length"`

	// QualityThreshold is the minimum quality score on a 0-10 scale.
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`

	// RequiredSections lists section names a contribution must contain.
	RequiredSections []string `json:"required_sections,omitempty" yaml:"required_sections,omitempty"`

	// Depth flags steer research and assessment scope.
	IncludeHistorical bool `json:"include_historical" yaml:"include_historical"`
	IncludeTechnical  bool `json:"include_technical" yaml:"include_technical"`
	IncludePractical  bool `json:"include_practical" yaml:"include_practical"`
}

// Validate checks criteria bounds.
func (q QualityCriteria) Validate() error {
	if q.QualityThreshold < 0 || q.QualityThreshold > 10 {
		return fmt.Errorf("quality_threshold must be in [0,10], got %g", q.QualityThreshold)
	}
	if q.MinLength < 0 {
		return fmt.Errorf("min_length must be non-negative, got %d", q.MinLength)
	}
	return nil
}

// Domain is a curated knowledge domain.
type Domain struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"owner_id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Slug             string            `json:"slug"`
	Status           DomainStatus      `json:"status"`
	Topics           []string          `json:"topics"`
	QualityCriteria  QualityCriteria   `json:"quality_criteria"`
	TargetAudience   []string          `json:"target_audience"`
	SearchAttributes map[string]string `json:"search_attributes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Validate checks the domain for structural problems.
func (d *Domain) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("domain id is required")
	}
	if d.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if d.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	return d.QualityCriteria.Validate()
}

// AddTopics appends topics, preserving order and dropping duplicates
// (case-insensitive).
func (d *Domain) AddTopics(topics ...string) {
	d.Topics = MergeTopics(d.Topics, topics)
}

// RemoveTopics removes the named topics (case-insensitive).
func (d *Domain) RemoveTopics(topics ...string) {
	if len(topics) == 0 {
		return
	}
	drop := make(map[string]bool, len(topics))
	for _, t := range topics {
		drop[strings.ToLower(strings.TrimSpace(t))] = true
	}
	kept := d.Topics[:0]
	for _, t := range d.Topics {
		if !drop[strings.ToLower(strings.TrimSpace(t))] {
			kept = append(kept, t)
		}
	}
	d.Topics = kept
}

// MergeTopics concatenates topic lists, deduplicating case-insensitively
// while preserving first-seen order and original casing.
func MergeTopics(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalid.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
