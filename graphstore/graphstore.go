// Package graphstore maintains the knowledge graph in Neo4j. Domains, topics,
// documents, and extracted entities become nodes, linked by HAS_TOPIC,
// BELONGS_TO, and MENTIONS edges.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/curatorhq/curator/domain"
)

// Writer upserts knowledge-graph nodes and edges.
type Writer struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
}

// NewWriter connects to Neo4j and verifies connectivity.
func NewWriter(ctx context.Context, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &Writer{driver: driver, logger: logger}, nil
}

// UpsertDomain merges the domain node and its topic edges. MERGE keeps the
// write idempotent across activity retries.
func (w *Writer) UpsertDomain(ctx context.Context, d *domain.Domain) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (d:Domain {id: $id})
			SET d.title = $title,
			    d.slug = $slug,
			    d.status = $status,
			    d.owner_id = $ownerId
		`
		params := map[string]any{
			"id":      d.ID,
			"title":   d.Title,
			"slug":    d.Slug,
			"status":  string(d.Status),
			"ownerId": d.OwnerID,
		}
		if _, err := tx.Run(ctx, query, params); err != nil {
			return nil, err
		}

		for _, topic := range d.Topics {
			topicQuery := `
				MATCH (d:Domain {id: $domainId})
				MERGE (t:Topic {name: $topic})
				MERGE (d)-[:HAS_TOPIC]->(t)
			`
			topicParams := map[string]any{
				"domainId": d.ID,
				"topic":    topic,
			}
			if _, err := tx.Run(ctx, topicQuery, topicParams); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert domain %s: %w", d.ID, err)
	}
	w.logger.Debug("upserted domain node", "domain_id", d.ID, "topics", len(d.Topics))
	return nil
}

// UpsertDocument merges the document node, links it to its domain, and
// records mentioned entities and covered topics.
func (w *Writer) UpsertDocument(ctx context.Context, doc *domain.Document, entities, topics []string) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (doc:Document {id: $id})
			SET doc.status = $status,
			    doc.contributor_id = $contributorId,
			    doc.relevance_score = $score
			WITH doc
			MATCH (d:Domain {id: $domainId})
			MERGE (doc)-[:BELONGS_TO]->(d)
		`
		params := map[string]any{
			"id":            doc.ID,
			"status":        string(doc.Status),
			"contributorId": doc.ContributorID,
			"score":         doc.Score(),
			"domainId":      doc.DomainID,
		}
		if _, err := tx.Run(ctx, query, params); err != nil {
			return nil, err
		}

		for _, entity := range entities {
			entityQuery := `
				MATCH (doc:Document {id: $docId})
				MERGE (e:Entity {name: $entity})
				MERGE (doc)-[:MENTIONS]->(e)
			`
			if _, err := tx.Run(ctx, entityQuery, map[string]any{
				"docId":  doc.ID,
				"entity": entity,
			}); err != nil {
				return nil, err
			}
		}

		for _, topic := range topics {
			topicQuery := `
				MATCH (doc:Document {id: $docId})
				MERGE (t:Topic {name: $topic})
				MERGE (doc)-[:HAS_TOPIC]->(t)
			`
			if _, err := tx.Run(ctx, topicQuery, map[string]any{
				"docId": doc.ID,
				"topic": topic,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	w.logger.Debug("upserted document node",
		"document_id", doc.ID,
		"entities", len(entities),
		"topics", len(topics))
	return nil
}

// DomainDocuments lists ids of documents attached to a domain.
func (w *Writer) DomainDocuments(ctx context.Context, domainID string) ([]string, error) {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (doc:Document)-[:BELONGS_TO]->(d:Domain {id: $domainId})
			RETURN doc.id AS docId
		`
		res, err := tx.Run(ctx, query, map[string]any{"domainId": domainID})
		if err != nil {
			return nil, err
		}
		var ids []string
		for res.Next(ctx) {
			if id, ok := res.Record().Get("docId"); ok {
				ids = append(ids, id.(string))
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list domain documents: %w", err)
	}
	ids, _ := result.([]string)
	return ids, nil
}

// Close shuts down the driver.
func (w *Writer) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}
