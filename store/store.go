// Package store persists domain and document metadata and the per-user
// signal inbox. The Postgres implementation is the production store; the
// in-memory implementation serves tests and single-process development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/curatorhq/curator/domain"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("store: not found")

// ErrSlugTaken is returned when a domain slug collides with a live domain.
var ErrSlugTaken = errors.New("store: slug already in use")

// SignalFilter narrows inbox listings.
type SignalFilter struct {
	// Type filters by signal type when non-empty.
	Type domain.SignalType

	// WorkflowID filters to one workflow when non-empty.
	WorkflowID string

	// UnreadOnly drops already-read signals.
	UnreadOnly bool

	// Limit caps the result size (0 means the default of 50).
	Limit int

	// Offset skips results for paging.
	Offset int
}

// InboxStore is the durable signal inbox.
//
// AppendSignal must keep signals for one workflow strictly monotonically
// ordered by timestamp, bumping the timestamp forward when needed.
type InboxStore interface {
	AppendSignal(ctx context.Context, sig *domain.Signal) error
	ListSignals(ctx context.Context, userID string, filter SignalFilter) ([]domain.Signal, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)

	// MarkRead marks one signal read. Returns ErrNotFound when the signal
	// does not exist or belongs to another user.
	MarkRead(ctx context.Context, signalID, userID string) error

	// MarkAllRead marks all of a user's unread signals read, optionally
	// scoped to one workflow. Returns the number of signals updated.
	MarkAllRead(ctx context.Context, userID, workflowID string) (int64, error)
}

// MetadataStore persists domains and documents.
type MetadataStore interface {
	SaveDomain(ctx context.Context, d *domain.Domain) error
	GetDomain(ctx context.Context, id string) (*domain.Domain, error)
	UpdateDomainStatus(ctx context.Context, id string, status domain.DomainStatus) error

	SaveDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}

// Store combines the inbox and metadata stores.
type Store interface {
	InboxStore
	MetadataStore
}

// nextTimestamp advances ts past last so per-workflow ordering stays strict.
func nextTimestamp(ts, last time.Time) time.Time {
	if ts.After(last) {
		return ts
	}
	return last.Add(time.Millisecond)
}
