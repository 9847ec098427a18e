package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateInsertsDocumentAndEvent(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := &domain.Document{
		ID:          "doc-1",
		SessionID:   "s1",
		Filename:    "bill.csv",
		ContentKind: domain.ContentKindTable,
		StoragePath: "s1/doc-1/bill.csv",
		Size:        42,
		Type:        domain.TypeInvoice,
		TypeSource:  domain.TypeSourceAuto,
		IndexStatus: domain.IndexStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "s1", "bill.csv", "table", "s1/doc-1/bill.csv", int64(42), "invoice", "auto", "queued", "", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO classification_events").
		WithArgs("doc-1", "invoice", "auto", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDMapsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "filename", "content_kind", "storage_path", "size_bytes",
		"doc_type", "type_source", "index_status", "error_message", "created_at", "updated_at",
	}).AddRow("doc-1", "s1", "notes.pdf", "text", "s1/doc-1/notes.pdf", int64(7), "unknown", "auto", "ready", "", now, now)
	mock.ExpectQuery("SELECT id, session_id, filename").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.ContentKind != domain.ContentKindText || doc.Type != domain.TypeUnknown || doc.IndexStatus != domain.IndexStatusReady {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, session_id, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateIndexStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.IndexStatusIndexing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateIndexStatus(context.Background(), "missing", domain.IndexStatusIndexing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTypeOverrideUpdatesUnknownDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc_type, type_source FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc_type", "type_source"}).AddRow("unknown", "auto"))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "payroll", "manual", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO classification_events").
		WithArgs("doc-1", "payroll", "manual", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.SaveTypeOverride(context.Background(), "doc-1", "payroll"); err != nil {
		t.Fatalf("SaveTypeOverride() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTypeOverrideRejectsManualDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc_type, type_source FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc_type", "type_source"}).AddRow("payroll", "manual"))
	mock.ExpectRollback()

	err := repo.SaveTypeOverride(context.Background(), "doc-1", "invoice")
	if !domain.IsKind(err, domain.ErrOverrideNotAllowed) {
		t.Fatalf("expected ErrOverrideNotAllowed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTypeOverrideMissingDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc_type, type_source FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.SaveTypeOverride(context.Background(), "missing", "invoice")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestHistoryListsEvents(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	mock.ExpectQuery("SELECT document_id, doc_type, type_source, created_at").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "doc_type", "type_source", "created_at"}).
			AddRow("doc-1", "unknown", "auto", t1).
			AddRow("doc-1", "payroll", "manual", t2))

	history, err := repo.History(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[1].Type != "payroll" || history[1].Source != domain.TypeSourceManual {
		t.Fatalf("unexpected history %+v", history)
	}
}
