package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// ContentExtractor turns an uploaded file into table or text content.
type ContentExtractor interface {
	Extract(ctx context.Context, filename string, body io.Reader) (domain.Content, error)
}

// SessionStore keeps per-session document sets and conversation logs.
type SessionStore interface {
	Create(ctx context.Context) (*domain.Session, error)
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	AddDocument(ctx context.Context, sessionID string, doc domain.Document) error
	Documents(ctx context.Context, sessionID string) ([]domain.Document, error)
	Document(ctx context.Context, sessionID, documentID string) (*domain.Document, error)
	// UpdateIndexStatus changes only the indexing fields of a document.
	UpdateIndexStatus(ctx context.Context, sessionID, documentID string, status domain.IndexStatus, errMessage string) error
	// SetManualType records a manual type if the document still allows an
	// override, otherwise it fails with ErrOverrideNotAllowed.
	SetManualType(ctx context.Context, sessionID, documentID string, docType domain.DocumentType) (*domain.Document, error)
	AppendEntries(ctx context.Context, sessionID string, entries ...domain.ConversationEntry) error
	Entries(ctx context.Context, sessionID string) ([]domain.ConversationEntry, error)
	ClearEntries(ctx context.Context, sessionID string) error
}

// DocumentLedger persists upload and classification decisions.
type DocumentLedger interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	SaveTypeOverride(ctx context.Context, id string, docType domain.DocumentType) error
	UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMessage string) error
	History(ctx context.Context, id string) ([]domain.ClassificationRecord, error)
}

// ObjectStorage stores raw uploaded bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Delete(ctx context.Context, key string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// AnswerGenerator turns routed requests and prompts into model text.
// On total failure Generate returns the fallback text together with an
// ErrAnswerGeneration error.
type AnswerGenerator interface {
	Answer(ctx context.Context, req domain.AnswerRequest, model string) (text string, usedModel string, err error)
	Generate(ctx context.Context, prompt, model string) (text string, usedModel string, err error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into retrieval chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore indexes chunks and performs semantic search.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, chunkTypes []domain.DocumentType, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}
