package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
	"github.com/kirillkom/docquery-assistant/internal/core/routing"
)

const defaultRetrievalTopK = 3

// RetrievalQueryUseCase answers from the most similar indexed chunks of the
// session instead of whole documents.
type RetrievalQueryUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	generator ports.AnswerGenerator
	topK      int
	journal   Journal
}

func NewRetrievalQueryUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	generator ports.AnswerGenerator,
	topK int,
	journal Journal,
) *RetrievalQueryUseCase {
	if topK <= 0 {
		topK = defaultRetrievalTopK
	}
	return &RetrievalQueryUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		generator: generator,
		topK:      topK,
		journal:   journal.normalize(),
	}
}

func (uc *RetrievalQueryUseCase) Answer(ctx context.Context, sessionID, question, model string) (*domain.Answer, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := uc.vectorDB.Search(ctx, queryVector, uc.topK, domain.SearchFilter{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("search vector db: %w", err)
	}
	if len(chunks) == 0 {
		return &domain.Answer{
			Text: routing.GenericReply(question),
			Kind: domain.AnswerKindGeneric,
		}, nil
	}

	req := domain.AnswerRequest{
		Kind:        domain.AnswerKindRetrieval,
		Question:    question,
		ContextKind: domain.ContextRetrieve,
		Context:     mergeChunks(chunks),
		Sources:     chunkSources(chunks),
	}
	return generateAnswer(ctx, uc.generator, uc.journal, req, model)
}

func mergeChunks(chunks []domain.RetrievedChunk) string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

func chunkSources(chunks []domain.RetrievedChunk) []string {
	sources := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Filename]; ok {
			continue
		}
		seen[chunk.Filename] = struct{}{}
		sources = append(sources, chunk.Filename)
	}
	return sources
}
