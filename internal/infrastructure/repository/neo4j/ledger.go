// Package neo4j stores the classification ledger as a graph:
// (:Session)-[:HAS_DOCUMENT]->(:Document)-[:CLASSIFIED_AS]->(:Classification).
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

type runner func(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error)

type Ledger struct {
	driver neo4j.DriverWithContext
	run    runner
}

func Open(ctx context.Context, uri, username, password, database string) (*Ledger, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}

	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(database))
	}
	return &Ledger{
		driver: driver,
		run: func(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
			return neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
		},
	}, nil
}

func (l *Ledger) Close(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	return l.driver.Close(ctx)
}

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT session_id IF NOT EXISTS FOR (s:Session) REQUIRE s.id IS UNIQUE`,
	} {
		if _, err := l.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("neo4j schema: %w", err)
		}
	}
	return nil
}

const createDocumentCypher = `
MERGE (s:Session {id: $session_id})
CREATE (s)-[:HAS_DOCUMENT]->(d:Document {
	id: $id,
	session_id: $session_id,
	filename: $filename,
	content_kind: $content_kind,
	storage_path: $storage_path,
	size_bytes: $size_bytes,
	type: $type,
	type_source: $type_source,
	index_status: $index_status,
	error_message: $error_message,
	created_at: $created_at,
	updated_at: $updated_at
})
CREATE (d)-[:CLASSIFIED_AS]->(:Classification {type: $type, source: $type_source, at: $created_at})
RETURN d.id AS id`

func (l *Ledger) Create(ctx context.Context, doc *domain.Document) error {
	_, err := l.run(ctx, createDocumentCypher, map[string]any{
		"id":            doc.ID,
		"session_id":    doc.SessionID,
		"filename":      doc.Filename,
		"content_kind":  string(doc.ContentKind),
		"storage_path":  doc.StoragePath,
		"size_bytes":    doc.Size,
		"type":          string(doc.Type),
		"type_source":   string(doc.TypeSource),
		"index_status":  string(doc.IndexStatus),
		"error_message": doc.Error,
		"created_at":    doc.CreatedAt,
		"updated_at":    doc.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("create document node: %w", err)
	}
	return nil
}

const getDocumentCypher = `
MATCH (d:Document {id: $id})
RETURN d.id AS id, d.session_id AS session_id, d.filename AS filename,
	d.content_kind AS content_kind, d.storage_path AS storage_path, d.size_bytes AS size_bytes,
	d.type AS type, d.type_source AS type_source, d.index_status AS index_status,
	d.error_message AS error_message, d.created_at AS created_at, d.updated_at AS updated_at`

func (l *Ledger) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	result, err := l.run(ctx, getDocumentCypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get document node: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}

	rec := result.Records[0]
	var doc domain.Document
	var contentKind, docType, typeSource, indexStatus string
	fields := []struct {
		key string
		dst *string
	}{
		{"id", &doc.ID},
		{"session_id", &doc.SessionID},
		{"filename", &doc.Filename},
		{"content_kind", &contentKind},
		{"storage_path", &doc.StoragePath},
		{"type", &docType},
		{"type_source", &typeSource},
		{"index_status", &indexStatus},
		{"error_message", &doc.Error},
	}
	for _, f := range fields {
		value, _, err := neo4j.GetRecordValue[string](rec, f.key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.key, err)
		}
		*f.dst = value
	}
	if doc.Size, _, err = neo4j.GetRecordValue[int64](rec, "size_bytes"); err != nil {
		return nil, fmt.Errorf("read size_bytes: %w", err)
	}
	if doc.CreatedAt, _, err = neo4j.GetRecordValue[time.Time](rec, "created_at"); err != nil {
		return nil, fmt.Errorf("read created_at: %w", err)
	}
	if doc.UpdatedAt, _, err = neo4j.GetRecordValue[time.Time](rec, "updated_at"); err != nil {
		return nil, fmt.Errorf("read updated_at: %w", err)
	}

	doc.ContentKind = domain.ContentKind(contentKind)
	doc.Type = domain.DocumentType(docType)
	doc.TypeSource = domain.TypeSource(typeSource)
	doc.IndexStatus = domain.IndexStatus(indexStatus)
	return &doc, nil
}

// The first SET takes the node's write lock before the rule is read, so a
// concurrent override waits and then sees the manual type.
const overrideCypher = `
MATCH (d:Document {id: $id})
SET d._lock = true
WITH d, (d.type = 'unknown' AND d.type_source = 'auto') AS allowed, d.type AS previous
FOREACH (_ IN CASE WHEN allowed THEN [1] ELSE [] END |
	SET d.type = $type, d.type_source = 'manual', d.updated_at = $now
	CREATE (d)-[:CLASSIFIED_AS]->(:Classification {type: $type, source: 'manual', at: $now})
)
REMOVE d._lock
RETURN allowed, previous`

func (l *Ledger) SaveTypeOverride(ctx context.Context, id string, docType domain.DocumentType) error {
	result, err := l.run(ctx, overrideCypher, map[string]any{
		"id":   id,
		"type": string(docType),
		"now":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save type override: %w", err)
	}
	if len(result.Records) == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "save type override", fmt.Errorf("id=%s", id))
	}
	allowed, _, err := neo4j.GetRecordValue[bool](result.Records[0], "allowed")
	if err != nil {
		return fmt.Errorf("read override result: %w", err)
	}
	if !allowed {
		previous, _, _ := neo4j.GetRecordValue[string](result.Records[0], "previous")
		return domain.WrapError(domain.ErrOverrideNotAllowed, "save type override", fmt.Errorf("id=%s type=%s", id, previous))
	}
	return nil
}

const updateIndexStatusCypher = `
MATCH (d:Document {id: $id})
SET d.index_status = $status, d.error_message = $error_message, d.updated_at = $now
RETURN d.id AS id`

func (l *Ledger) UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMessage string) error {
	result, err := l.run(ctx, updateIndexStatusCypher, map[string]any{
		"id":            id,
		"status":        string(status),
		"error_message": errMessage,
		"now":           time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update index status: %w", err)
	}
	if len(result.Records) == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update index status", fmt.Errorf("id=%s", id))
	}
	return nil
}

const historyCypher = `
MATCH (d:Document {id: $id})-[:CLASSIFIED_AS]->(c:Classification)
RETURN c.type AS type, c.source AS source, c.at AS at
ORDER BY c.at`

func (l *Ledger) History(ctx context.Context, id string) ([]domain.ClassificationRecord, error) {
	result, err := l.run(ctx, historyCypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("list classification events: %w", err)
	}

	out := make([]domain.ClassificationRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		docType, _, err := neo4j.GetRecordValue[string](rec, "type")
		if err != nil {
			return nil, fmt.Errorf("read type: %w", err)
		}
		source, _, err := neo4j.GetRecordValue[string](rec, "source")
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		at, _, err := neo4j.GetRecordValue[time.Time](rec, "at")
		if err != nil {
			return nil, fmt.Errorf("read at: %w", err)
		}
		out = append(out, domain.ClassificationRecord{
			DocumentID: id,
			Type:       domain.DocumentType(docType),
			Source:     domain.TypeSource(source),
			At:         at,
		})
	}
	return out, nil
}
