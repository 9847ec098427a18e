package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/docquery-assistant/internal/core/classify"
	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
	"github.com/kirillkom/docquery-assistant/internal/core/routing"
)

// IndexDocumentUseCase prepares an uploaded document for retrieval questions.
type IndexDocumentUseCase struct {
	ledger    ports.DocumentLedger
	storage   ports.ObjectStorage
	extractor ports.ContentExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
}

func NewIndexDocumentUseCase(
	ledger ports.DocumentLedger,
	storage ports.ObjectStorage,
	extractor ports.ContentExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *IndexDocumentUseCase {
	return &IndexDocumentUseCase{
		ledger:    ledger,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

func (uc *IndexDocumentUseCase) IndexByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.IndexStatusIndexing, ""); err != nil {
		return fmt.Errorf("set index status=indexing: %w", err)
	}

	if err := uc.indexPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.IndexStatusReady, ""); err != nil {
		return fmt.Errorf("set index status=ready: %w", err)
	}
	return nil
}

func (uc *IndexDocumentUseCase) indexPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return err
	}

	chunks, err := uc.chunk(text)
	if err != nil {
		return err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return err
	}

	chunkTypes := make([]domain.DocumentType, len(chunks))
	for i, chunk := range chunks {
		chunkTypes[i] = classify.DetectChunkType(chunk)
	}

	if err := uc.vectorDB.IndexChunks(ctx, doc, chunks, chunkTypes, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

func (uc *IndexDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.ledger.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

// extractText re-reads the stored upload and flattens it: tables become the
// same Markdown rendering the direct path sends to the model.
func (uc *IndexDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open raw document: %w", err)
	}
	defer rc.Close()

	content, err := uc.extractor.Extract(ctx, doc.Filename, rc)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	if domain.IsEmpty(content) {
		return "", domain.WrapError(domain.ErrEmptyContent, "extract content", errors.New(doc.Filename))
	}
	_, text := routing.Render(content)
	return text, nil
}

func (uc *IndexDocumentUseCase) chunk(text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyContent, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *IndexDocumentUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *IndexDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.IndexStatus, errMessage string) error {
	return uc.ledger.UpdateIndexStatus(ctx, documentID, status, errMessage)
}

func (uc *IndexDocumentUseCase) markFailed(ctx context.Context, documentID string, indexErr error) error {
	if indexErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.IndexStatusFailed, indexErr.Error())
}
