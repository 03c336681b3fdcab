// Package graph records extraction lineage in Neo4j: which document
// produced which extraction, and what package payload an encrypted
// container unwrapped to. Recording is best-effort and never blocks the
// processing pipeline.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/infrastructure/resilience"
)

type Recorder struct {
	driver   neo4j.DriverWithContext
	executor *resilience.Executor
}

func NewRecorder(uri, user, password string, executor *resilience.Executor) (*Recorder, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}
	return &Recorder{driver: driver, executor: executor}, nil
}

func (r *Recorder) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Recorder) RecordExtraction(ctx context.Context, doc *domain.Document, ext *domain.Extraction) error {
	record := func(ctx context.Context) error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			params := map[string]any{
				"docID":       doc.ID,
				"filename":    doc.Filename,
				"contentType": ext.ContentType,
				"blocks":      len(ext.Blocks),
				"createdAt":   ext.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			}
			_, err := tx.Run(ctx, `
MERGE (d:Document {id: $docID})
SET d.filename = $filename
MERGE (e:Extraction {document_id: $docID})
SET e.content_type = $contentType, e.blocks = $blocks, e.created_at = $createdAt
MERGE (d)-[:EXTRACTED_TO]->(e)
`, params)
			if err != nil {
				return nil, err
			}

			// Encrypted containers unwrap to an inner package; track it
			// as its own node.
			if pkgType := ext.Metadata.Get(domain.MetaPackageContentType); pkgType != "" {
				_, err = tx.Run(ctx, `
MATCH (d:Document {id: $docID})
MERGE (p:Package {document_id: $docID})
SET p.content_type = $pkgType
MERGE (d)-[:UNWRAPPED_TO]->(p)
`, map[string]any{"docID": doc.ID, "pkgType": pkgType})
				if err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		if err != nil {
			return fmt.Errorf("record lineage: %w", err)
		}
		return nil
	}

	if r.executor != nil {
		return r.executor.Execute(ctx, "neo4j.record", record, nil)
	}
	return record(ctx)
}
