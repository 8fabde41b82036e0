package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/curatorhq/curator/domain"
)

// Memory is an in-memory Store used by tests and local development. It
// mirrors the Postgres semantics, including the per-workflow timestamp
// ordering rule.
type Memory struct {
	mu        sync.RWMutex
	domains   map[string]*domain.Domain
	documents map[string]*domain.Document
	signals   []*domain.Signal
	lastTS    map[string]time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		domains:   make(map[string]*domain.Domain),
		documents: make(map[string]*domain.Document),
		lastTS:    make(map[string]time.Time),
	}
}

func (m *Memory) SaveDomain(_ context.Context, d *domain.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.domains {
		if id == d.ID {
			continue
		}
		if strings.EqualFold(existing.Slug, d.Slug) &&
			(existing.Status == domain.DomainStatusActive || existing.Status == domain.DomainStatusAwaitingOwner) {
			return ErrSlugTaken
		}
	}
	cp := *d
	m.domains[d.ID] = &cp
	return nil
}

func (m *Memory) GetDomain(_ context.Context, id string) (*domain.Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.domains[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) UpdateDomainStatus(_ context.Context, id string, status domain.DomainStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SaveDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *Memory) AppendSignal(_ context.Context, sig *domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastTS[sig.WorkflowID]; ok {
		sig.Timestamp = nextTimestamp(sig.Timestamp, last)
	}
	m.lastTS[sig.WorkflowID] = sig.Timestamp
	cp := *sig
	m.signals = append(m.signals, &cp)
	return nil
}

func (m *Memory) ListSignals(_ context.Context, userID string, filter SignalFilter) ([]domain.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.Signal
	for _, sig := range m.signals {
		if sig.UserID != userID {
			continue
		}
		if filter.Type != "" && sig.Type != filter.Type {
			continue
		}
		if filter.WorkflowID != "" && sig.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.UnreadOnly && sig.Read {
			continue
		}
		matched = append(matched, *sig)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) UnreadCount(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, sig := range m.signals {
		if sig.UserID == userID && !sig.Read {
			count++
		}
	}
	return count, nil
}

func (m *Memory) MarkRead(_ context.Context, signalID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sig := range m.signals {
		if sig.ID != signalID {
			continue
		}
		if sig.UserID != userID {
			return ErrNotFound
		}
		if !sig.Read {
			now := time.Now().UTC()
			sig.Read = true
			sig.ReadAt = &now
		}
		return nil
	}
	return ErrNotFound
}

func (m *Memory) MarkAllRead(_ context.Context, userID, workflowID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for _, sig := range m.signals {
		if sig.UserID != userID || sig.Read {
			continue
		}
		if workflowID != "" && sig.WorkflowID != workflowID {
			continue
		}
		sig.Read = true
		sig.ReadAt = &now
		count++
	}
	return count, nil
}
