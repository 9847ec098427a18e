package httpadapter

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

const (
	testSessionID  = "6f1c2a4e-3b7d-4c1e-9a55-0d9b8e2f7a10"
	testDocumentID = "b0c3d9e2-8f41-4a6b-a1d7-5e2c9f0b3a44"
)

type sessionsFake struct {
	err     error
	docs    []domain.Document
	entries []domain.ConversationEntry
	history []domain.ClassificationRecord
	cleared bool
	ended   string
}

func (f *sessionsFake) Create(context.Context) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Session{ID: testSessionID, CreatedAt: time.Now()}, nil
}

func (f *sessionsFake) Get(context.Context, string) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Session{ID: testSessionID}, nil
}

func (f *sessionsFake) End(_ context.Context, sessionID string) error {
	f.ended = sessionID
	return f.err
}

func (f *sessionsFake) ListDocuments(context.Context, string) ([]domain.Document, error) {
	return f.docs, f.err
}

func (f *sessionsFake) DocumentHistory(context.Context, string, string) ([]domain.ClassificationRecord, error) {
	return f.history, f.err
}

func (f *sessionsFake) Conversation(context.Context, string) ([]domain.ConversationEntry, error) {
	return f.entries, f.err
}

func (f *sessionsFake) ClearConversation(context.Context, string) error {
	f.cleared = true
	return f.err
}

type uploaderFake struct {
	mu        sync.Mutex
	errByName map[string]error
	bodies    map[string]string
	raw       string
}

func (f *uploaderFake) Upload(_ context.Context, sessionID, filename string, body io.Reader) (*domain.Document, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailure, "read", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[filename] = string(data)
	if err := f.errByName[filename]; err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:         testDocumentID,
		SessionID:  sessionID,
		Filename:   filename,
		Type:       domain.TypeInvoice,
		TypeSource: domain.TypeSourceAuto,
		Size:       int64(len(data)),
	}, nil
}

func (f *uploaderFake) OpenRaw(_ context.Context, _, documentID string) (*domain.Document, io.ReadCloser, error) {
	if documentID != testDocumentID {
		return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "open raw", io.EOF)
	}
	return &domain.Document{ID: documentID, Filename: "bill.csv"}, io.NopCloser(strings.NewReader(f.raw)), nil
}

type overriderFake struct {
	err   error
	label string
}

func (f *overriderFake) OverrideType(_ context.Context, _, documentID, label string) (*domain.Document, error) {
	f.label = label
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: documentID, Type: domain.ParseDocumentType(label), TypeSource: domain.TypeSourceManual}, nil
}

type answererFake struct {
	err   error
	input domain.AskInput
}

func (f *answererFake) Ask(_ context.Context, _ string, input domain.AskInput) (*domain.Answer, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Text: "Total is 42", Kind: domain.AnswerKindGrounded, Model: "llama3"}, nil
}

func (f *answererFake) Reconcile(_ context.Context, answers []string) string {
	return strings.Join(answers, "|")
}

type modelsFake struct{}

func (modelsFake) ListModels(context.Context) ([]string, error) {
	return []string{"llama3", "mistral"}, nil
}

type recorderFake struct {
	mu      sync.Mutex
	uploads int
	classes []string
	answers []string
}

func (r *recorderFake) RecordUpload(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads++
}

func (r *recorderFake) RecordClassification(_, docType, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = append(r.classes, docType+"/"+source)
}

func (r *recorderFake) RecordAnswer(_, kind string, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, kind)
}

type testDeps struct {
	sessions  *sessionsFake
	uploader  *uploaderFake
	overrider *overriderFake
	answerer  *answererFake
	recorder  *recorderFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		sessions:  &sessionsFake{},
		uploader:  &uploaderFake{},
		overrider: &overriderFake{},
		answerer:  &answererFake{},
		recorder:  &recorderFake{},
	}
}

func (d *testDeps) handler(opts Options) http.Handler {
	opts.Metrics = d.recorder
	rt, err := NewRouter(d.sessions, d.uploader, d.overrider, d.answerer, modelsFake{}, opts)
	if err != nil {
		panic(err)
	}
	return rt.Handler()
}
