package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docquery-assistant/internal/core/classify"
	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
)

// UploadUseCase extracts, classifies and records one uploaded file.
type UploadUseCase struct {
	store     ports.SessionStore
	extractor ports.ContentExtractor
	storage   ports.ObjectStorage
	ledger    ports.DocumentLedger
	queue     ports.MessageQueue
	journal   Journal
}

// NewUploadUseCase wires the upload pipeline. A nil queue disables retrieval
// indexing: documents are recorded with index status "skipped".
func NewUploadUseCase(
	store ports.SessionStore,
	extractor ports.ContentExtractor,
	storage ports.ObjectStorage,
	ledger ports.DocumentLedger,
	queue ports.MessageQueue,
	journal Journal,
) *UploadUseCase {
	return &UploadUseCase{
		store:     store,
		extractor: extractor,
		storage:   storage,
		ledger:    ledger,
		queue:     queue,
		journal:   journal.normalize(),
	}
}

func (uc *UploadUseCase) Upload(ctx context.Context, sessionID, filename string, body io.Reader) (*domain.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}
	if _, err := uc.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	var reader io.Reader
	if body != nil {
		reader = io.TeeReader(body, &raw)
	}
	content, err := uc.extractor.Extract(ctx, filename, reader)
	if err != nil {
		uc.journal.Errors.Error("extraction_failed", "session_id", sessionID, "filename", filename, "error", err)
		return nil, err
	}

	docType := domain.TypeEmpty
	if !domain.IsEmpty(content) {
		docType = classify.Classify(content)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          id,
		SessionID:   sessionID,
		Filename:    filename,
		ContentKind: content.Kind(),
		Type:        docType,
		TypeSource:  domain.TypeSourceAuto,
		StoragePath: path.Join(sessionID, id, sanitizeFilename(filename)),
		IndexStatus: domain.IndexStatusSkipped,
		CreatedAt:   now,
		UpdatedAt:   now,
		Content:     content,
	}
	if uc.queue != nil && docType != domain.TypeEmpty {
		doc.IndexStatus = domain.IndexStatusQueued
	}

	size, err := uc.storage.Save(ctx, doc.StoragePath, bytes.NewReader(raw.Bytes()))
	if err != nil {
		uc.journal.Errors.Error("raw_save_failed", "session_id", sessionID, "document_id", id, "error", err)
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	doc.Size = size

	if err := uc.ledger.Create(ctx, doc); err != nil {
		uc.journal.Errors.Error("ledger_create_failed", "session_id", sessionID, "document_id", id, "error", err)
		uc.discardRaw(ctx, doc)
		return nil, fmt.Errorf("create document record: %w", err)
	}
	if err := uc.store.AddDocument(ctx, sessionID, *doc); err != nil {
		return nil, err
	}

	uc.journal.Upload.Info("document_uploaded",
		"session_id", sessionID,
		"document_id", id,
		"filename", filename,
		"size", size,
		"content_kind", doc.ContentKind,
	)
	uc.logClassification(doc, content)

	if doc.IndexStatus == domain.IndexStatusQueued {
		uc.enqueue(ctx, doc)
	}
	return doc, nil
}

// enqueue publishes the upload event. A publish failure leaves the document
// usable for direct questions and only marks indexing as failed.
func (uc *UploadUseCase) enqueue(ctx context.Context, doc *domain.Document) {
	err := uc.queue.PublishDocumentUploaded(ctx, doc.ID)
	if err == nil {
		return
	}
	uc.journal.Errors.Error("publish_upload_failed", "document_id", doc.ID, "error", err)

	doc.IndexStatus = domain.IndexStatusFailed
	doc.Error = err.Error()
	if err := uc.ledger.UpdateIndexStatus(ctx, doc.ID, doc.IndexStatus, doc.Error); err != nil {
		uc.journal.Errors.Error("index_status_update_failed", "document_id", doc.ID, "error", err)
	}
	if err := uc.store.UpdateIndexStatus(ctx, doc.SessionID, doc.ID, doc.IndexStatus, doc.Error); err != nil {
		uc.journal.Errors.Error("session_update_failed", "document_id", doc.ID, "error", err)
	}
}

// discardRaw removes a stored upload that has no ledger record.
func (uc *UploadUseCase) discardRaw(ctx context.Context, doc *domain.Document) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), doc.StoragePath); err != nil {
		uc.journal.Errors.Error("raw_cleanup_failed", "session_id", doc.SessionID, "document_id", doc.ID, "error", err)
	}
}

func (uc *UploadUseCase) logClassification(doc *domain.Document, content domain.Content) {
	attrs := []any{
		"session_id", doc.SessionID,
		"document_id", doc.ID,
		"filename", doc.Filename,
		"type", doc.Type,
	}
	if table, ok := content.(domain.Table); ok {
		attrs = append(attrs,
			"columns", len(table.Columns),
			"rows", len(table.NonBlankRows()),
			"attendance_keywords", classify.MatchedAttendanceKeywords(table.Columns),
		)
	}
	uc.journal.Classification.Info("document_classified", attrs...)
}

// OpenRaw returns the document and its original bytes.
func (uc *UploadUseCase) OpenRaw(ctx context.Context, sessionID, documentID string) (*domain.Document, io.ReadCloser, error) {
	doc, err := uc.store.Document(ctx, sessionID, documentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open raw document: %w", err)
	}
	return doc, rc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
