// Package vector indexes domain knowledge and document chunks into Weaviate.
// All objects carry externally computed vectors, so the classes are created
// with the vectorizer disabled.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/curatorhq/curator/domain"
)

const (
	ClassDomainKnowledge = "DomainKnowledge"
	ClassDocumentChunk   = "DocumentChunk"
)

// Indexer writes vectors to a Weaviate instance.
type Indexer struct {
	client *weaviate.Client
	logger *slog.Logger
}

// Config holds Weaviate connection settings.
type Config struct {
	Host   string
	Scheme string
	APIKey string
}

// NewIndexer connects to Weaviate.
func NewIndexer(cfg Config, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wcfg := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}
	return &Indexer{client: client, logger: logger}, nil
}

// EnsureSchema creates the two classes if they do not exist yet.
func (ix *Indexer) EnsureSchema(ctx context.Context) error {
	classes := []*models.Class{
		{
			Class:      ClassDomainKnowledge,
			Vectorizer: "none",
			Properties: []*models.Property{
				{Name: "domainId", DataType: []string{"text"}},
				{Name: "title", DataType: []string{"text"}},
				{Name: "summary", DataType: []string{"text"}},
				{Name: "topics", DataType: []string{"text[]"}},
			},
		},
		{
			Class:      ClassDocumentChunk,
			Vectorizer: "none",
			Properties: []*models.Property{
				{Name: "documentId", DataType: []string{"text"}},
				{Name: "domainId", DataType: []string{"text"}},
				{Name: "chunkIndex", DataType: []string{"int"}},
				{Name: "section", DataType: []string{"text"}},
				{Name: "content", DataType: []string{"text"}},
			},
		},
	}
	for _, class := range classes {
		exists, err := ix.client.Schema().ClassExistenceChecker().
			WithClassName(class.Class).Do(ctx)
		if err != nil {
			return fmt.Errorf("check class %s: %w", class.Class, err)
		}
		if exists {
			continue
		}
		if err := ix.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			if isConflict(err) {
				continue
			}
			return fmt.Errorf("create class %s: %w", class.Class, err)
		}
		ix.logger.Info("created weaviate class", "class", class.Class)
	}
	return nil
}

// DomainID returns the deterministic Weaviate id for a domain summary object.
// Re-indexing the same domain overwrites instead of duplicating.
func DomainID(domainID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewMD5(uuid.NameSpaceURL, []byte("curator/domain/"+domainID)).String())
}

// ChunkID returns the deterministic Weaviate id for a document chunk.
func ChunkID(documentID string, index int) strfmt.UUID {
	key := fmt.Sprintf("curator/chunk/%s/%d", documentID, index)
	return strfmt.UUID(uuid.NewMD5(uuid.NameSpaceURL, []byte(key)).String())
}

// IndexDomain writes the domain summary object with its embedding and returns
// the object id.
func (ix *Indexer) IndexDomain(ctx context.Context, d *domain.Domain, summary string, vec []float32) (string, error) {
	id := DomainID(d.ID)
	obj := &models.Object{
		Class: ClassDomainKnowledge,
		ID:    id,
		Properties: map[string]any{
			"domainId": d.ID,
			"title":    d.Title,
			"summary":  summary,
			"topics":   d.Topics,
		},
		Vector: vec,
	}
	if err := ix.put(ctx, obj); err != nil {
		return "", fmt.Errorf("index domain %s: %w", d.ID, err)
	}
	return string(id), nil
}

// Chunk is one embeddable slice of a document.
type Chunk struct {
	Index   int
	Section string
	Content string
	Vector  []float32
}

// IndexDocument writes all chunks of a document in one batch and returns the
// id of the first chunk object. Chunks that already exist are overwritten.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *domain.Document, chunks []Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", errors.New("no chunks to index")
	}
	objs := make([]*models.Object, len(chunks))
	for i, ch := range chunks {
		objs[i] = &models.Object{
			Class: ClassDocumentChunk,
			ID:    ChunkID(doc.ID, ch.Index),
			Properties: map[string]any{
				"documentId": doc.ID,
				"domainId":   doc.DomainID,
				"chunkIndex": ch.Index,
				"section":    ch.Section,
				"content":    ch.Content,
			},
			Vector: ch.Vector,
		}
	}

	start := time.Now()
	resp, err := ix.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		if isConflict(err) {
			return string(objs[0].ID), nil
		}
		return "", fmt.Errorf("batch index document %s: %w", doc.ID, err)
	}
	for _, res := range resp {
		if res.Result != nil && res.Result.Errors != nil && len(res.Result.Errors.Error) > 0 {
			msg := res.Result.Errors.Error[0].Message
			if isConflictMessage(msg) {
				continue
			}
			return "", fmt.Errorf("batch index document %s: object %s: %s", doc.ID, res.ID, msg)
		}
	}
	ix.logger.Info("indexed document chunks",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"duration", time.Since(start))
	return string(objs[0].ID), nil
}

// put creates an object, replacing it if it already exists.
func (ix *Indexer) put(ctx context.Context, obj *models.Object) error {
	_, err := ix.client.Data().Creator().
		WithClassName(obj.Class).
		WithID(string(obj.ID)).
		WithProperties(obj.Properties).
		WithVector(obj.Vector).
		Do(ctx)
	if err == nil {
		return nil
	}
	if !isConflict(err) {
		return err
	}
	return ix.client.Data().Updater().
		WithClassName(obj.Class).
		WithID(string(obj.ID)).
		WithProperties(obj.Properties).
		WithVector(obj.Vector).
		Do(ctx)
}

// isConflict treats an already-existing object as success so that retried
// activity executions stay idempotent.
func isConflict(err error) bool {
	var werr *fault.WeaviateClientError
	if errors.As(err, &werr) {
		return werr.StatusCode == 409 || werr.StatusCode == 422
	}
	return false
}

func isConflictMessage(msg string) bool {
	return msg == "id already exists" || msg == "already exists"
}
