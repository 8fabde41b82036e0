package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/store"
)

// Metadata-store activity names.
const (
	NameSaveDomain         = "SaveDomain"
	NameUpdateDomainStatus = "UpdateDomainStatus"
	NameSaveDocument       = "SaveDocument"
)

// ErrTypeSlugTaken reports a slug collision with a live domain. Non-retryable:
// the collision will not clear on its own.
const ErrTypeSlugTaken = "SlugTaken"

// SaveDomain persists a domain snapshot to the metadata store.
func (a *Activities) SaveDomain(ctx context.Context, d domain.Domain) (err error) {
	defer func() { a.observe(NameSaveDomain, err) }()

	if err := d.Validate(); err != nil {
		return temporal.NewNonRetryableApplicationError("invalid domain", ErrTypeStoreUnavailable, err)
	}
	if err := a.Store.SaveDomain(ctx, &d); err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			return temporal.NewNonRetryableApplicationError("slug already in use", ErrTypeSlugTaken, err)
		}
		return storeErr("save domain", err)
	}
	return nil
}

// UpdateDomainStatusInput names the status to record.
type UpdateDomainStatusInput struct {
	DomainID string              `json:"domain_id"`
	Status   domain.DomainStatus `json:"status"`
}

// UpdateDomainStatus records a domain status change in the metadata store.
func (a *Activities) UpdateDomainStatus(ctx context.Context, in UpdateDomainStatusInput) (err error) {
	defer func() { a.observe(NameUpdateDomainStatus, err) }()

	if err := a.Store.UpdateDomainStatus(ctx, in.DomainID, in.Status); err != nil {
		return storeErr("update domain status", err)
	}
	return nil
}

// SaveDocument persists a document snapshot to the metadata store.
func (a *Activities) SaveDocument(ctx context.Context, doc domain.Document) (err error) {
	defer func() { a.observe(NameSaveDocument, err) }()

	if err := doc.Validate(); err != nil {
		return temporal.NewNonRetryableApplicationError("invalid document", ErrTypeStoreUnavailable, err)
	}
	if err := a.Store.SaveDocument(ctx, &doc); err != nil {
		return storeErr("save document", err)
	}
	return nil
}
