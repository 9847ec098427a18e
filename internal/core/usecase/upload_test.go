package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

func TestUploadClassifiesStoresAndQueues(t *testing.T) {
	store := newStoreFake("s1")
	storage := newStorageFake()
	ledger := newLedgerFake()
	queue := &queueFake{}
	extractor := &extractorFake{content: invoiceContent}
	uc := NewUploadUseCase(store, extractor, storage, ledger, queue, Journal{})

	doc, err := uc.Upload(context.Background(), "s1", "Bill May.csv", strings.NewReader("Item,Qty,Price\nPen,2,10\n"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Type != domain.TypeInvoice || doc.TypeSource != domain.TypeSourceAuto {
		t.Fatalf("unexpected classification %s/%s", doc.Type, doc.TypeSource)
	}
	if doc.IndexStatus != domain.IndexStatusQueued {
		t.Fatalf("expected queued index status, got %s", doc.IndexStatus)
	}
	if !strings.HasPrefix(doc.StoragePath, "s1/"+doc.ID+"/") || !strings.HasSuffix(doc.StoragePath, "Bill_May.csv") {
		t.Fatalf("unexpected storage path %q", doc.StoragePath)
	}
	if got := string(storage.objects[doc.StoragePath]); got != "Item,Qty,Price\nPen,2,10\n" {
		t.Fatalf("raw bytes not stored, got %q", got)
	}
	if doc.Size != int64(len("Item,Qty,Price\nPen,2,10\n")) {
		t.Fatalf("unexpected size %d", doc.Size)
	}
	if _, ok := ledger.docs[doc.ID]; !ok {
		t.Fatalf("document not recorded in ledger")
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("unexpected published ids %v", queue.published)
	}
	docs, _ := store.Documents(context.Background(), "s1")
	if len(docs) != 1 || docs[0].Content == nil {
		t.Fatalf("document not added to session with content: %+v", docs)
	}
}

func TestUploadEmptyDocumentIsKeptAsEmpty(t *testing.T) {
	store := newStoreFake("s1")
	queue := &queueFake{}
	uc := NewUploadUseCase(store, &extractorFake{content: domain.Table{Columns: []string{"a", "b"}}}, newStorageFake(), newLedgerFake(), queue, Journal{})

	doc, err := uc.Upload(context.Background(), "s1", "header_only.csv", strings.NewReader("a,b\n"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Type != domain.TypeEmpty {
		t.Fatalf("expected empty type, got %s", doc.Type)
	}
	if doc.IndexStatus != domain.IndexStatusSkipped || len(queue.published) != 0 {
		t.Fatalf("empty documents must not be queued: %s %v", doc.IndexStatus, queue.published)
	}
}

func TestUploadWithoutQueueSkipsIndexing(t *testing.T) {
	uc := NewUploadUseCase(newStoreFake("s1"), &extractorFake{content: attendanceContent}, newStorageFake(), newLedgerFake(), nil, Journal{})

	doc, err := uc.Upload(context.Background(), "s1", "att.xlsx", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Type != domain.TypeAttendance || doc.IndexStatus != domain.IndexStatusSkipped {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestUploadExtractionFailureLeavesSetUntouched(t *testing.T) {
	store := newStoreFake("s1")
	ledger := newLedgerFake()
	extractErr := domain.WrapError(domain.ErrUnsupportedFormat, "detect", errors.New(".docx"))
	uc := NewUploadUseCase(store, &extractorFake{err: extractErr}, newStorageFake(), ledger, &queueFake{}, Journal{})

	_, err := uc.Upload(context.Background(), "s1", "notes.docx", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	docs, _ := store.Documents(context.Background(), "s1")
	if len(docs) != 0 || len(ledger.docs) != 0 {
		t.Fatalf("failed upload must not be recorded: docs=%d ledger=%d", len(docs), len(ledger.docs))
	}
}

func TestUploadLedgerFailureLeavesSetUntouched(t *testing.T) {
	store := newStoreFake("s1")
	ledger := newLedgerFake()
	ledger.createErr = errors.New("db down")
	storage := newStorageFake()
	uc := NewUploadUseCase(store, &extractorFake{content: invoiceContent}, storage, ledger, nil, Journal{})

	if _, err := uc.Upload(context.Background(), "s1", "a.csv", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error")
	}
	docs, _ := store.Documents(context.Background(), "s1")
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
	if len(storage.objects) != 0 {
		t.Fatalf("raw upload left behind: %v", storage.objects)
	}
	if len(storage.deleted) != 1 || !strings.HasSuffix(storage.deleted[0], "/a.csv") {
		t.Fatalf("unexpected deletes %v", storage.deleted)
	}
}

func TestUploadPublishFailureMarksIndexFailed(t *testing.T) {
	store := newStoreFake("s1")
	ledger := newLedgerFake()
	uc := NewUploadUseCase(store, &extractorFake{content: invoiceContent}, newStorageFake(), ledger, &queueFake{err: errors.New("nats down")}, Journal{})

	doc, err := uc.Upload(context.Background(), "s1", "a.csv", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.IndexStatus != domain.IndexStatusFailed {
		t.Fatalf("expected failed index status, got %s", doc.IndexStatus)
	}
	stored, _ := store.Document(context.Background(), "s1", doc.ID)
	if stored.IndexStatus != domain.IndexStatusFailed || stored.Type != domain.TypeInvoice {
		t.Fatalf("unexpected stored document %+v", stored)
	}
	if len(ledger.statusCalls) != 1 || ledger.statusCalls[0].status != domain.IndexStatusFailed {
		t.Fatalf("unexpected ledger status calls %+v", ledger.statusCalls)
	}
}

func TestUploadUnknownSession(t *testing.T) {
	uc := NewUploadUseCase(newStoreFake(), &extractorFake{content: invoiceContent}, newStorageFake(), newLedgerFake(), nil, Journal{})
	_, err := uc.Upload(context.Background(), "missing", "a.csv", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUploadRequiresFilename(t *testing.T) {
	uc := NewUploadUseCase(newStoreFake("s1"), &extractorFake{content: invoiceContent}, newStorageFake(), newLedgerFake(), nil, Journal{})
	_, err := uc.Upload(context.Background(), "s1", "  ", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenRawReturnsStoredBytes(t *testing.T) {
	store := newStoreFake("s1")
	uc := NewUploadUseCase(store, &extractorFake{content: invoiceContent}, newStorageFake(), newLedgerFake(), nil, Journal{})
	doc, err := uc.Upload(context.Background(), "s1", "a.csv", strings.NewReader("raw-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	got, rc, err := uc.OpenRaw(context.Background(), "s1", doc.ID)
	if err != nil {
		t.Fatalf("OpenRaw() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if got.Filename != "a.csv" || string(body) != "raw-bytes" {
		t.Fatalf("unexpected raw document %s %q", got.Filename, body)
	}

	if _, _, err := uc.OpenRaw(context.Background(), "s1", "nope"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"My Invoice (1).csv":    "My_Invoice__1_.csv",
		"../../etc/passwd":      "passwd",
		`C:\Users\a\sheet.xlsx`: "sheet.xlsx",
		"":                      "document.bin",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
