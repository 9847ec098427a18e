package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

type call struct {
	cypher string
	params map[string]any
}

type fakeRunner struct {
	calls   []call
	results []*neo4j.EagerResult
	err     error
}

func (f *fakeRunner) run(_ context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	f.calls = append(f.calls, call{cypher: cypher, params: params})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &neo4j.EagerResult{}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next, nil
}

func newLedger(f *fakeRunner) *Ledger {
	return &Ledger{run: f.run}
}

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func TestCreatePassesDocumentProperties(t *testing.T) {
	runner := &fakeRunner{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := newLedger(runner).Create(context.Background(), &domain.Document{
		ID:          "doc-1",
		SessionID:   "s1",
		Filename:    "class.xlsx",
		ContentKind: domain.ContentKindTable,
		Type:        domain.TypeAttendance,
		TypeSource:  domain.TypeSourceAuto,
		IndexStatus: domain.IndexStatusSkipped,
		Size:        512,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(runner.calls) != 1 || !strings.Contains(runner.calls[0].cypher, "HAS_DOCUMENT") {
		t.Fatalf("unexpected calls %+v", runner.calls)
	}
	params := runner.calls[0].params
	if params["type"] != "attendance" || params["session_id"] != "s1" || params["size_bytes"] != int64(512) {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestGetByIDMapsRecord(t *testing.T) {
	now := time.Now().UTC()
	keys := []string{"id", "session_id", "filename", "content_kind", "storage_path", "size_bytes", "type", "type_source", "index_status", "error_message", "created_at", "updated_at"}
	runner := &fakeRunner{results: []*neo4j.EagerResult{{
		Keys:    keys,
		Records: []*neo4j.Record{record(keys, "doc-1", "s1", "bill.csv", "table", "s1/doc-1/bill.csv", int64(9), "invoice", "auto", "ready", "", now, now)},
	}}}

	doc, err := newLedger(runner).GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Type != domain.TypeInvoice || doc.Size != 9 || doc.IndexStatus != domain.IndexStatusReady || !doc.CreatedAt.Equal(now) {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	_, err := newLedger(&fakeRunner{}).GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSaveTypeOverride(t *testing.T) {
	keys := []string{"allowed", "previous"}
	tests := []struct {
		name    string
		result  *neo4j.EagerResult
		wantErr error
	}{
		{name: "allowed", result: &neo4j.EagerResult{Records: []*neo4j.Record{record(keys, true, "unknown")}}},
		{name: "already typed", result: &neo4j.EagerResult{Records: []*neo4j.Record{record(keys, false, "invoice")}}, wantErr: domain.ErrOverrideNotAllowed},
		{name: "missing", result: &neo4j.EagerResult{}, wantErr: domain.ErrDocumentNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{results: []*neo4j.EagerResult{tc.result}}
			err := newLedger(runner).SaveTypeOverride(context.Background(), "doc-1", "payroll")
			if tc.wantErr == nil && err != nil {
				t.Fatalf("SaveTypeOverride() error = %v", err)
			}
			if tc.wantErr != nil && !domain.IsKind(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if runner.calls[0].params["type"] != "payroll" {
				t.Fatalf("unexpected params %+v", runner.calls[0].params)
			}
		})
	}
}

func TestSaveTypeOverrideLocksBeforeReadingType(t *testing.T) {
	runner := &fakeRunner{results: []*neo4j.EagerResult{{Records: []*neo4j.Record{record([]string{"allowed", "previous"}, true, "unknown")}}}}
	if err := newLedger(runner).SaveTypeOverride(context.Background(), "doc-1", "payroll"); err != nil {
		t.Fatalf("SaveTypeOverride() error = %v", err)
	}
	cypher := runner.calls[0].cypher
	lock := strings.Index(cypher, "SET d._lock = true")
	check := strings.Index(cypher, "AS allowed")
	if lock < 0 || check < 0 || lock > check {
		t.Fatalf("write lock must be taken before the type is read:\n%s", cypher)
	}
	if !strings.Contains(cypher, "REMOVE d._lock") {
		t.Fatalf("lock property is never removed:\n%s", cypher)
	}
}

func TestUpdateIndexStatusNotFound(t *testing.T) {
	err := newLedger(&fakeRunner{}).UpdateIndexStatus(context.Background(), "missing", domain.IndexStatusReady, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	keys := []string{"type", "source", "at"}
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	runner := &fakeRunner{results: []*neo4j.EagerResult{{Records: []*neo4j.Record{
		record(keys, "unknown", "auto", t1),
		record(keys, "payroll", "manual", t1.Add(time.Minute)),
	}}}}

	history, err := newLedger(runner).History(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Type != domain.TypeUnknown || history[1].Source != domain.TypeSourceManual {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestRunnerErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	err := newLedger(&fakeRunner{err: boom}).UpdateIndexStatus(context.Background(), "doc-1", domain.IndexStatusReady, "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped runner error, got %v", err)
	}
}
