package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// SessionService is the inbound contract for session lifecycle and state reads.
type SessionService interface {
	Create(ctx context.Context) (*domain.Session, error)
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	End(ctx context.Context, sessionID string) error
	ListDocuments(ctx context.Context, sessionID string) ([]domain.Document, error)
	DocumentHistory(ctx context.Context, sessionID, documentID string) ([]domain.ClassificationRecord, error)
	Conversation(ctx context.Context, sessionID string) ([]domain.ConversationEntry, error)
	ClearConversation(ctx context.Context, sessionID string) error
}

// DocumentUploader is the inbound contract for extract + classify of one upload.
type DocumentUploader interface {
	Upload(ctx context.Context, sessionID, filename string, body io.Reader) (*domain.Document, error)
	OpenRaw(ctx context.Context, sessionID, documentID string) (*domain.Document, io.ReadCloser, error)
}

// TypeOverrider is the inbound contract for manual type assignment.
type TypeOverrider interface {
	OverrideType(ctx context.Context, sessionID, documentID, label string) (*domain.Document, error)
}

// QuestionAnswerer is the inbound contract for routed question answering.
type QuestionAnswerer interface {
	Ask(ctx context.Context, sessionID string, input domain.AskInput) (*domain.Answer, error)
	Reconcile(ctx context.Context, answers []string) string
}

// ModelLister lists language models available to the answer generator.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// DocumentIndexer is the inbound contract for asynchronous retrieval indexing.
type DocumentIndexer interface {
	IndexByID(ctx context.Context, documentID string) error
}
