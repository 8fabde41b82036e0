package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/curatorhq/curator/domain"
)

// DomainRecord is the domains table row. The full domain is stored as JSON
// next to the indexed scalar columns.
type DomainRecord struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"index"`
	Slug      string `gorm:"index"`
	Status    string `gorm:"index"`
	Data      []byte `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentRecord is the documents table row.
type DocumentRecord struct {
	ID            string `gorm:"primaryKey"`
	DomainID      string `gorm:"index"`
	ContributorID string `gorm:"index"`
	Status        string `gorm:"index"`
	Data          []byte `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SignalRecord is the inbox table row.
type SignalRecord struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index:idx_signals_user"`
	WorkflowID string `gorm:"index:idx_signals_workflow"`
	Type       string
	Data       []byte    `gorm:"type:jsonb"`
	Timestamp  time.Time `gorm:"index"`
	Read       bool
	ReadAt     *time.Time
}

// Postgres implements Store on PostgreSQL via gorm.
type Postgres struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenPostgres connects to Postgres and migrates the schema.
func OpenPostgres(dsn string, log *slog.Logger) (*Postgres, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&DomainRecord{}, &DocumentRecord{}, &SignalRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Postgres{db: db, logger: log}, nil
}

// SaveDomain inserts or replaces a domain, enforcing slug uniqueness across
// live domains.
func (p *Postgres) SaveDomain(ctx context.Context, d *domain.Domain) error {
	var count int64
	err := p.db.WithContext(ctx).Model(&DomainRecord{}).
		Where("slug = ? AND id <> ? AND status IN ?", d.Slug, d.ID,
			[]string{string(domain.DomainStatusActive), string(domain.DomainStatusAwaitingOwner)}).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	if count > 0 {
		return ErrSlugTaken
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal domain: %w", err)
	}
	rec := DomainRecord{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Slug:      d.Slug,
		Status:    string(d.Status),
		Data:      data,
		CreatedAt: d.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	return p.db.WithContext(ctx).Save(&rec).Error
}

// GetDomain loads a domain by id.
func (p *Postgres) GetDomain(ctx context.Context, id string) (*domain.Domain, error) {
	var rec DomainRecord
	if err := p.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load domain: %w", err)
	}
	var d domain.Domain
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal domain %s: %w", id, err)
	}
	return &d, nil
}

// UpdateDomainStatus updates the status column and the embedded JSON.
func (p *Postgres) UpdateDomainStatus(ctx context.Context, id string, status domain.DomainStatus) error {
	d, err := p.GetDomain(ctx, id)
	if err != nil {
		return err
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return p.SaveDomain(ctx, d)
}

// SaveDocument inserts or replaces a document.
func (p *Postgres) SaveDocument(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	rec := DocumentRecord{
		ID:            doc.ID,
		DomainID:      doc.DomainID,
		ContributorID: doc.ContributorID,
		Status:        string(doc.Status),
		Data:          data,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     time.Now().UTC(),
	}
	return p.db.WithContext(ctx).Save(&rec).Error
}

// GetDocument loads a document by id.
func (p *Postgres) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var rec DocumentRecord
	if err := p.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load document: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

// AppendSignal appends a signal to the inbox, keeping per-workflow
// timestamps strictly monotonic.
func (p *Postgres) AppendSignal(ctx context.Context, sig *domain.Signal) error {
	var last *time.Time
	err := p.db.WithContext(ctx).Model(&SignalRecord{}).
		Where("workflow_id = ?", sig.WorkflowID).
		Select("max(timestamp)").Scan(&last).Error
	if err != nil {
		return fmt.Errorf("read last signal timestamp: %w", err)
	}
	if last != nil {
		sig.Timestamp = nextTimestamp(sig.Timestamp, *last)
	}

	data, err := json.Marshal(sig.Data)
	if err != nil {
		return fmt.Errorf("marshal signal data: %w", err)
	}
	rec := SignalRecord{
		ID:         sig.ID,
		UserID:     sig.UserID,
		WorkflowID: sig.WorkflowID,
		Type:       string(sig.Type),
		Data:       data,
		Timestamp:  sig.Timestamp,
		Read:       false,
	}
	if err := p.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// ListSignals lists a user's signals, newest first.
func (p *Postgres) ListSignals(ctx context.Context, userID string, filter SignalFilter) ([]domain.Signal, error) {
	q := p.db.WithContext(ctx).Model(&SignalRecord{}).Where("user_id = ?", userID)
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.WorkflowID != "" {
		q = q.Where("workflow_id = ?", filter.WorkflowID)
	}
	if filter.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var recs []SignalRecord
	if err := q.Order("timestamp DESC").Limit(limit).Offset(filter.Offset).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}

	signals := make([]domain.Signal, 0, len(recs))
	for _, rec := range recs {
		sig, err := recordToSignal(rec)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// UnreadCount returns the number of unread signals for a user.
func (p *Postgres) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&SignalRecord{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks one signal read for its owning user.
func (p *Postgres) MarkRead(ctx context.Context, signalID, userID string) error {
	now := time.Now().UTC()
	res := p.db.WithContext(ctx).Model(&SignalRecord{}).
		Where("id = ? AND user_id = ?", signalID, userID).
		Updates(map[string]any{"read": true, "read_at": &now})
	if res.Error != nil {
		return fmt.Errorf("mark read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks a user's unread signals read, optionally scoped to one
// workflow.
func (p *Postgres) MarkAllRead(ctx context.Context, userID, workflowID string) (int64, error) {
	now := time.Now().UTC()
	q := p.db.WithContext(ctx).Model(&SignalRecord{}).
		Where("user_id = ? AND read = ?", userID, false)
	if workflowID != "" {
		q = q.Where("workflow_id = ?", workflowID)
	}
	res := q.Updates(map[string]any{"read": true, "read_at": &now})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func recordToSignal(rec SignalRecord) (domain.Signal, error) {
	var data map[string]any
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return domain.Signal{}, fmt.Errorf("unmarshal signal %s: %w", rec.ID, err)
		}
	}
	return domain.Signal{
		ID:         rec.ID,
		UserID:     rec.UserID,
		WorkflowID: rec.WorkflowID,
		Type:       domain.SignalType(rec.Type),
		Data:       data,
		Timestamp:  rec.Timestamp,
		Read:       rec.Read,
		ReadAt:     rec.ReadAt,
	}, nil
}
