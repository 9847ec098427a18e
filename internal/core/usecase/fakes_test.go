package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

type storeFake struct {
	mu        sync.Mutex
	sessions  map[string]bool
	documents map[string][]domain.Document
	entries   map[string][]domain.ConversationEntry
}

func newStoreFake(sessionIDs ...string) *storeFake {
	f := &storeFake{
		sessions:  map[string]bool{},
		documents: map[string][]domain.Document{},
		entries:   map[string][]domain.ConversationEntry{},
	}
	for _, id := range sessionIDs {
		f.sessions[id] = true
	}
	return f
}

func (f *storeFake) check(id string) error {
	if !f.sessions[id] {
		return domain.WrapError(domain.ErrSessionNotFound, "fake", errors.New(id))
	}
	return nil
}

func (f *storeFake) Create(context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "sess-new"
	f.sessions[id] = true
	return &domain.Session{ID: id}, nil
}

func (f *storeFake) Get(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return nil, err
	}
	return &domain.Session{ID: id, Documents: len(f.documents[id]), Entries: len(f.entries[id])}, nil
}

func (f *storeFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return err
	}
	delete(f.sessions, id)
	return nil
}

func (f *storeFake) AddDocument(_ context.Context, id string, doc domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return err
	}
	f.documents[id] = append(f.documents[id], doc)
	return nil
}

func (f *storeFake) Documents(_ context.Context, id string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return nil, err
	}
	return append([]domain.Document(nil), f.documents[id]...), nil
}

func (f *storeFake) Document(_ context.Context, id, docID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return nil, err
	}
	for _, doc := range f.documents[id] {
		if doc.ID == docID {
			out := doc
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake", errors.New(docID))
}

func (f *storeFake) find(id, docID string) (*domain.Document, error) {
	if err := f.check(id); err != nil {
		return nil, err
	}
	for i := range f.documents[id] {
		if f.documents[id][i].ID == docID {
			return &f.documents[id][i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake", errors.New(docID))
}

func (f *storeFake) UpdateIndexStatus(_ context.Context, id, docID string, status domain.IndexStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.find(id, docID)
	if err != nil {
		return err
	}
	doc.IndexStatus = status
	doc.Error = errMessage
	return nil
}

func (f *storeFake) SetManualType(_ context.Context, id, docID string, docType domain.DocumentType) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.find(id, docID)
	if err != nil {
		return nil, err
	}
	if !doc.CanOverride() {
		return nil, domain.WrapError(domain.ErrOverrideNotAllowed, "fake", errors.New(docID))
	}
	doc.Type = docType
	doc.TypeSource = domain.TypeSourceManual
	out := *doc
	return &out, nil
}

func (f *storeFake) AppendEntries(_ context.Context, id string, entries ...domain.ConversationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return err
	}
	f.entries[id] = append(f.entries[id], entries...)
	return nil
}

func (f *storeFake) Entries(_ context.Context, id string) ([]domain.ConversationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return nil, err
	}
	return append([]domain.ConversationEntry(nil), f.entries[id]...), nil
}

func (f *storeFake) ClearEntries(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(id); err != nil {
		return err
	}
	f.entries[id] = nil
	return nil
}

type statusCall struct {
	id     string
	status domain.IndexStatus
	errMsg string
}

type ledgerFake struct {
	docs        map[string]*domain.Document
	createErr   error
	overrideErr error
	statusErr   error
	overrides   map[string]domain.DocumentType
	statusCalls []statusCall
	// beforeGet runs inside GetByID, before the lookup returns.
	beforeGet func(id string)
}

func newLedgerFake() *ledgerFake {
	return &ledgerFake{
		docs:      map[string]*domain.Document{},
		overrides: map[string]domain.DocumentType{},
	}
}

func (f *ledgerFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	copyDoc.Content = nil
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *ledgerFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.beforeGet != nil {
		f.beforeGet(id)
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *ledgerFake) SaveTypeOverride(_ context.Context, id string, docType domain.DocumentType) error {
	if f.overrideErr != nil {
		return f.overrideErr
	}
	f.overrides[id] = docType
	return nil
}

func (f *ledgerFake) UpdateIndexStatus(_ context.Context, id string, status domain.IndexStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{id: id, status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	if doc, ok := f.docs[id]; ok {
		doc.IndexStatus = status
		doc.Error = errMessage
	}
	return nil
}

func (f *ledgerFake) History(_ context.Context, id string) ([]domain.ClassificationRecord, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake", errors.New(id))
	}
	records := []domain.ClassificationRecord{{DocumentID: id, Type: doc.Type, Source: domain.TypeSourceAuto}}
	if override, ok := f.overrides[id]; ok {
		records = append(records, domain.ClassificationRecord{DocumentID: id, Type: override, Source: domain.TypeSourceManual})
	}
	return records, nil
}

type storageFake struct {
	objects map[string][]byte
	saveErr error
	deleted []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	f.objects[key] = body
	return int64(len(body)), nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

// extractorFake returns the configured content after draining the body.
type extractorFake struct {
	content domain.Content
	err     error
	read    string
}

func (f *extractorFake) Extract(_ context.Context, _ string, body io.Reader) (domain.Content, error) {
	if body != nil {
		raw, _ := io.ReadAll(body)
		f.read = string(raw)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return nil
}

type generatorFake struct {
	requests []domain.AnswerRequest
	models   []string
	text     string
	model    string
	err      error
}

func (f *generatorFake) Answer(_ context.Context, req domain.AnswerRequest, model string) (string, string, error) {
	f.requests = append(f.requests, req)
	f.models = append(f.models, model)
	if f.err != nil {
		return "[Fallback failed] Error from Ollama: " + f.err.Error(), "", f.err
	}
	return f.text, f.model, nil
}

func (f *generatorFake) Generate(_ context.Context, prompt, model string) (string, string, error) {
	return f.Answer(context.Background(), domain.AnswerRequest{Context: prompt}, model)
}

type chunkerFake struct {
	chunks []string
	input  string
}

func (f *chunkerFake) Split(text string) []string {
	f.input = text
	return f.chunks
}

type embedderFake struct {
	vectors [][]float32
	err     error
	query   string
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type vectorFake struct {
	indexErr   error
	chunkTypes []domain.DocumentType
	results    []domain.RetrievedChunk
	limit      int
	filter     domain.SearchFilter
}

func (f *vectorFake) IndexChunks(_ context.Context, _ *domain.Document, _ []string, chunkTypes []domain.DocumentType, _ [][]float32) error {
	f.chunkTypes = chunkTypes
	return f.indexErr
}

func (f *vectorFake) Search(_ context.Context, _ []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	f.limit = limit
	f.filter = filter
	return f.results, nil
}

var invoiceContent = domain.Table{
	Columns: []string{"Item", "Qty", "Price"},
	Rows:    [][]string{{"Pen", "2", "10"}, {"Book", "1", "250"}},
}

var attendanceContent = domain.Table{
	Columns: []string{"Name", "Date", "Present", "Absent"},
	Rows:    [][]string{{"Asha", "2024-01-02", "1", "0"}, {"Ravi", "2024-01-02", "0", "1"}},
}
