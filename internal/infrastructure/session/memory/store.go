package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// DefaultIdleTimeout is how long an untouched session is kept.
const DefaultIdleTimeout = 30 * time.Minute

type sessionState struct {
	session   domain.Session
	documents []domain.Document
	entries   []domain.ConversationEntry
}

// Store keeps every session's document set and conversation log in memory.
// Sessions never share state; reads return copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Store)

func WithIdleTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		sessions:    make(map[string]*sessionState),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(_ context.Context) (*domain.Session, error) {
	now := s.now().UTC()
	state := &sessionState{
		session: domain.Session{
			ID:           uuid.NewString(),
			CreatedAt:    now,
			LastAccessed: now,
		},
	}

	s.mu.Lock()
	s.sessions[state.session.ID] = state
	s.mu.Unlock()

	out := state.session
	return &out, nil
}

func (s *Store) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	out := state.session
	out.Documents = len(state.documents)
	out.Entries = len(state.entries)
	return &out, nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return notFound("delete session", sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) AddDocument(_ context.Context, sessionID string, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.touch(sessionID)
	if err != nil {
		return err
	}
	state.documents = append(state.documents, doc)
	return nil
}

// Documents returns the session's documents in upload order.
func (s *Store) Documents(_ context.Context, sessionID string) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Document(nil), state.documents...), nil
}

func (s *Store) Document(_ context.Context, sessionID, documentID string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.document(sessionID, documentID, "get document")
	if err != nil {
		return nil, err
	}
	out := *doc
	return &out, nil
}

func (s *Store) UpdateIndexStatus(_ context.Context, sessionID, documentID string, status domain.IndexStatus, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.document(sessionID, documentID, "update index status")
	if err != nil {
		return err
	}
	doc.IndexStatus = status
	doc.Error = errMessage
	doc.UpdatedAt = s.now().UTC()
	return nil
}

// SetManualType replaces the type of an auto-classified unknown document.
// The check and the write happen under one lock, so of two concurrent
// overrides only the first succeeds.
func (s *Store) SetManualType(_ context.Context, sessionID, documentID string, docType domain.DocumentType) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.document(sessionID, documentID, "set manual type")
	if err != nil {
		return nil, err
	}
	if !doc.CanOverride() {
		return nil, domain.WrapError(domain.ErrOverrideNotAllowed, "set manual type",
			fmt.Errorf("document %s is %s (%s)", doc.ID, doc.Type, doc.TypeSource))
	}
	doc.Type = docType
	doc.TypeSource = domain.TypeSourceManual
	doc.UpdatedAt = s.now().UTC()
	out := *doc
	return &out, nil
}

// document must be called with mu held for writing.
func (s *Store) document(sessionID, documentID, op string) (*domain.Document, error) {
	state, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range state.documents {
		if state.documents[i].ID == documentID {
			return &state.documents[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, op, errors.New(documentID))
}

func (s *Store) AppendEntries(_ context.Context, sessionID string, entries ...domain.ConversationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.touch(sessionID)
	if err != nil {
		return err
	}
	state.entries = append(state.entries, entries...)
	return nil
}

func (s *Store) Entries(_ context.Context, sessionID string) ([]domain.ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]domain.ConversationEntry(nil), state.entries...), nil
}

func (s *Store) ClearEntries(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.touch(sessionID)
	if err != nil {
		return err
	}
	state.entries = nil
	return nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().UTC().Add(-s.idleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, state := range s.sessions {
		if state.session.LastAccessed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is canceled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.idleTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("sessions_expired", "count", n, "remaining", s.Len())
			}
		}
	}
}

// touch must be called with mu held for writing.
func (s *Store) touch(sessionID string) (*sessionState, error) {
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFound("get session", sessionID)
	}
	state.session.LastAccessed = s.now().UTC()
	return state, nil
}

func notFound(op, sessionID string) error {
	return domain.WrapError(domain.ErrSessionNotFound, op, errors.New(sessionID))
}
