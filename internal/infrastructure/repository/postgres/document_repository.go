package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// DocumentRepository is the Postgres classification ledger: one row per
// upload plus an append-only history of type decisions.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_kind TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	doc_type TEXT NOT NULL,
	type_source TEXT NOT NULL,
	index_status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS classification_events (
	id BIGSERIAL PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	doc_type TEXT NOT NULL,
	type_source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_documents_index_status ON documents(index_status);
CREATE INDEX IF NOT EXISTS idx_classification_events_document ON classification_events(document_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (
	id, session_id, filename, content_kind, storage_path, size_bytes, doc_type, type_source, index_status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.SessionID, doc.Filename, string(doc.ContentKind), doc.StoragePath, doc.Size,
		string(doc.Type), string(doc.TypeSource), string(doc.IndexStatus), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := insertEvent(ctx, tx, domain.ClassificationRecord{
		DocumentID: doc.ID,
		Type:       doc.Type,
		Source:     doc.TypeSource,
		At:         doc.CreatedAt,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, session_id, filename, content_kind, storage_path, size_bytes, doc_type, type_source, index_status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var contentKind, docType, typeSource, indexStatus string

	err := row.Scan(
		&doc.ID, &doc.SessionID, &doc.Filename, &contentKind, &doc.StoragePath, &doc.Size,
		&docType, &typeSource, &indexStatus, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.ContentKind = domain.ContentKind(contentKind)
	doc.Type = domain.DocumentType(docType)
	doc.TypeSource = domain.TypeSource(typeSource)
	doc.IndexStatus = domain.IndexStatus(indexStatus)
	return &doc, nil
}

// SaveTypeOverride records a manual type. The row is locked while the
// override rule is checked so concurrent overrides cannot both succeed.
func (r *DocumentRepository) SaveTypeOverride(ctx context.Context, id string, docType domain.DocumentType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin override tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var currentType, currentSource string
	err = tx.QueryRowContext(ctx, `SELECT doc_type, type_source FROM documents WHERE id = $1 FOR UPDATE`, id).
		Scan(&currentType, &currentSource)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrDocumentNotFound, "save type override", fmt.Errorf("id=%s", id))
		}
		return fmt.Errorf("lock document: %w", err)
	}
	current := domain.Document{Type: domain.DocumentType(currentType), TypeSource: domain.TypeSource(currentSource)}
	if !current.CanOverride() {
		return domain.WrapError(domain.ErrOverrideNotAllowed, "save type override",
			fmt.Errorf("id=%s type=%s source=%s", id, currentType, currentSource))
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE documents
SET doc_type = $2, type_source = $3, updated_at = $4
WHERE id = $1
`, id, string(docType), string(domain.TypeSourceManual), now); err != nil {
		return fmt.Errorf("update document type: %w", err)
	}

	if err := insertEvent(ctx, tx, domain.ClassificationRecord{
		DocumentID: id,
		Type:       docType,
		Source:     domain.TypeSourceManual,
		At:         now,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit override tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET index_status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update index status: %w", err)
	}
	return requireAffected(result, "update index status", id)
}

// History lists the type decisions recorded for a document, oldest first.
func (r *DocumentRepository) History(ctx context.Context, id string) ([]domain.ClassificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, doc_type, type_source, created_at
FROM classification_events
WHERE document_id = $1
ORDER BY created_at, id
`, id)
	if err != nil {
		return nil, fmt.Errorf("list classification events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ClassificationRecord, 0)
	for rows.Next() {
		var rec domain.ClassificationRecord
		var docType, source string
		if err := rows.Scan(&rec.DocumentID, &docType, &source, &rec.At); err != nil {
			return nil, fmt.Errorf("scan classification event: %w", err)
		}
		rec.Type = domain.DocumentType(docType)
		rec.Source = domain.TypeSource(source)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classification events: %w", err)
	}
	return out, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, rec domain.ClassificationRecord) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO classification_events (document_id, doc_type, type_source, created_at)
VALUES ($1,$2,$3,$4)
`, rec.DocumentID, string(rec.Type), string(rec.Source), rec.At)
	if err != nil {
		return fmt.Errorf("insert classification event: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result, operation, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
