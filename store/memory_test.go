package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/domain"
)

func newSignal(id, userID, workflowID string, ts time.Time) *domain.Signal {
	return &domain.Signal{
		ID:         id,
		UserID:     userID,
		WorkflowID: workflowID,
		Type:       domain.SignalStatusUpdate,
		Data:       map[string]any{"status": "running"},
		Timestamp:  ts,
	}
}

func TestAppendSignalMonotonicPerWorkflow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := newSignal("s1", "user-1", "wf-1", base)
	require.NoError(t, m.AppendSignal(ctx, first))
	assert.Equal(t, base, first.Timestamp)

	// Same timestamp must be bumped strictly past the previous one.
	second := newSignal("s2", "user-1", "wf-1", base)
	require.NoError(t, m.AppendSignal(ctx, second))
	assert.True(t, second.Timestamp.After(first.Timestamp))
	assert.Equal(t, base.Add(time.Millisecond), second.Timestamp)

	// Earlier timestamp is also bumped.
	third := newSignal("s3", "user-1", "wf-1", base.Add(-time.Hour))
	require.NoError(t, m.AppendSignal(ctx, third))
	assert.True(t, third.Timestamp.After(second.Timestamp))

	// A different workflow is unaffected.
	other := newSignal("s4", "user-1", "wf-2", base)
	require.NoError(t, m.AppendSignal(ctx, other))
	assert.Equal(t, base, other.Timestamp)

	// A later timestamp passes through untouched.
	later := newSignal("s5", "user-1", "wf-1", base.Add(time.Minute))
	require.NoError(t, m.AppendSignal(ctx, later))
	assert.Equal(t, base.Add(time.Minute), later.Timestamp)
}

func TestListSignalsFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.AppendSignal(ctx, newSignal("s1", "user-1", "wf-1", base)))
	require.NoError(t, m.AppendSignal(ctx, newSignal("s2", "user-1", "wf-2", base.Add(time.Second))))
	require.NoError(t, m.AppendSignal(ctx, newSignal("s3", "user-2", "wf-3", base.Add(2*time.Second))))
	err := m.AppendSignal(ctx, &domain.Signal{
		ID: "s4", UserID: "user-1", WorkflowID: "wf-1",
		Type:      domain.SignalError,
		Data:      map[string]any{"error": "boom"},
		Timestamp: base.Add(3 * time.Second),
	})
	require.NoError(t, err)

	all, err := m.ListSignals(ctx, "user-1", SignalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "s4", all[0].ID)
	assert.Equal(t, "s2", all[1].ID)
	assert.Equal(t, "s1", all[2].ID)

	errs, err := m.ListSignals(ctx, "user-1", SignalFilter{Type: domain.SignalError})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "s4", errs[0].ID)

	wf1, err := m.ListSignals(ctx, "user-1", SignalFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Len(t, wf1, 2)

	paged, err := m.ListSignals(ctx, "user-1", SignalFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "s2", paged[0].ID)
}

func TestMarkReadOwnershipScoped(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.AppendSignal(ctx, newSignal("s1", "user-1", "wf-1", base)))

	// Another user cannot mark the signal read, and the signal stays unread.
	err := m.MarkRead(ctx, "s1", "user-2")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := m.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, m.MarkRead(ctx, "s1", "user-1"))
	count, err = m.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	got, err := m.ListSignals(ctx, "user-1", SignalFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Read)
	require.NotNil(t, got[0].ReadAt)

	// Marking an already-read signal again is a no-op, not an error.
	require.NoError(t, m.MarkRead(ctx, "s1", "user-1"))

	err = m.MarkRead(ctx, "missing", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.AppendSignal(ctx, newSignal("s1", "user-1", "wf-1", base)))
	require.NoError(t, m.AppendSignal(ctx, newSignal("s2", "user-1", "wf-2", base.Add(time.Second))))
	require.NoError(t, m.AppendSignal(ctx, newSignal("s3", "user-2", "wf-1", base.Add(2*time.Second))))

	count, err := m.MarkAllRead(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = m.MarkAllRead(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	unread, err := m.UnreadCount(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestDomainSlugUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	d := &domain.Domain{
		ID:      "dom-1",
		OwnerID: "user-1",
		Title:   "Masonry Heaters",
		Slug:    "masonry-heaters",
		Status:  domain.DomainStatusActive,
	}
	require.NoError(t, m.SaveDomain(ctx, d))

	dup := &domain.Domain{
		ID:      "dom-2",
		OwnerID: "user-2",
		Title:   "Masonry Heaters",
		Slug:    "Masonry-Heaters",
		Status:  domain.DomainStatusResearching,
	}
	assert.ErrorIs(t, m.SaveDomain(ctx, dup), ErrSlugTaken)

	// Re-saving the same domain keeps its slug.
	d.Status = domain.DomainStatusAwaitingOwner
	require.NoError(t, m.SaveDomain(ctx, d))

	// A rejected domain releases the slug.
	require.NoError(t, m.UpdateDomainStatus(ctx, "dom-1", domain.DomainStatusRejected))
	require.NoError(t, m.SaveDomain(ctx, dup))
}

func TestDocumentRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc := &domain.Document{
		ID:            "doc-1",
		DomainID:      "dom-1",
		ContributorID: "user-3",
		FileRef:       "uploads/firebox-sizing.md",
		Status:        domain.DocumentStatusAnalyzing,
	}
	require.NoError(t, m.SaveDocument(ctx, doc))

	got, err := m.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.FileRef, got.FileRef)

	_, err = m.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
