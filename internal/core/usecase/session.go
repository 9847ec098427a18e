package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
)

type SessionUseCase struct {
	store   ports.SessionStore
	ledger  ports.DocumentLedger
	journal Journal
}

func NewSessionUseCase(store ports.SessionStore, ledger ports.DocumentLedger, journal Journal) *SessionUseCase {
	return &SessionUseCase{
		store:   store,
		ledger:  ledger,
		journal: journal.normalize(),
	}
}

func (uc *SessionUseCase) Create(ctx context.Context) (*domain.Session, error) {
	session, err := uc.store.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	uc.journal.UserActions.Info("session_started", "session_id", session.ID)
	return session, nil
}

func (uc *SessionUseCase) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return uc.store.Get(ctx, sessionID)
}

func (uc *SessionUseCase) End(ctx context.Context, sessionID string) error {
	if err := uc.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	uc.journal.UserActions.Info("session_ended", "session_id", sessionID)
	return nil
}

// ListDocuments returns the session's documents in upload order. Documents
// still waiting for the indexer get their status refreshed from the ledger;
// only the indexing fields are written back.
func (uc *SessionUseCase) ListDocuments(ctx context.Context, sessionID string) ([]domain.Document, error) {
	docs, err := uc.store.Documents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if uc.ledger == nil {
		return docs, nil
	}
	refreshed := false
	for _, doc := range docs {
		if doc.IndexStatus != domain.IndexStatusQueued && doc.IndexStatus != domain.IndexStatusIndexing {
			continue
		}
		stored, err := uc.ledger.GetByID(ctx, doc.ID)
		if err != nil {
			uc.journal.Errors.Warn("index_status_refresh_failed", "document_id", doc.ID, "error", err)
			continue
		}
		if stored.IndexStatus == doc.IndexStatus {
			continue
		}
		if err := uc.store.UpdateIndexStatus(ctx, sessionID, doc.ID, stored.IndexStatus, stored.Error); err != nil {
			return nil, err
		}
		refreshed = true
	}
	if !refreshed {
		return docs, nil
	}
	return uc.store.Documents(ctx, sessionID)
}

// DocumentHistory lists the type decisions recorded for a session document.
func (uc *SessionUseCase) DocumentHistory(ctx context.Context, sessionID, documentID string) ([]domain.ClassificationRecord, error) {
	if _, err := uc.store.Document(ctx, sessionID, documentID); err != nil {
		return nil, err
	}
	if uc.ledger == nil {
		return []domain.ClassificationRecord{}, nil
	}
	return uc.ledger.History(ctx, documentID)
}

func (uc *SessionUseCase) Conversation(ctx context.Context, sessionID string) ([]domain.ConversationEntry, error) {
	return uc.store.Entries(ctx, sessionID)
}

func (uc *SessionUseCase) ClearConversation(ctx context.Context, sessionID string) error {
	if err := uc.store.ClearEntries(ctx, sessionID); err != nil {
		return err
	}
	uc.journal.UserActions.Info("conversation_cleared", "session_id", sessionID)
	return nil
}
