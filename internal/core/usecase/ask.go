package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
	"github.com/kirillkom/docquery-assistant/internal/core/routing"
)

type AskUseCase struct {
	store     ports.SessionStore
	generator ports.AnswerGenerator
	retrieval *RetrievalQueryUseCase
	journal   Journal
}

// NewAskUseCase wires question answering. retrieval may be nil, in which case
// retrieval mode questions are rejected.
func NewAskUseCase(
	store ports.SessionStore,
	generator ports.AnswerGenerator,
	retrieval *RetrievalQueryUseCase,
	journal Journal,
) *AskUseCase {
	return &AskUseCase{
		store:     store,
		generator: generator,
		retrieval: retrieval,
		journal:   journal.normalize(),
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, sessionID string, input domain.AskInput) (*domain.Answer, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}

	docs, err := uc.store.Documents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrNoDocuments, "ask", fmt.Errorf("session %s", sessionID))
	}

	var answer *domain.Answer
	switch input.Mode {
	case "", domain.AskModeDirect:
		answer, err = uc.askDirect(ctx, sessionID, docs, question, input)
	case domain.AskModeRetrieval:
		if uc.retrieval == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("retrieval mode is disabled"))
		}
		answer, err = uc.retrieval.Answer(ctx, sessionID, question, input.Model)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("unknown mode %q", input.Mode))
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := uc.store.AppendEntries(ctx, sessionID,
		domain.ConversationEntry{Role: domain.RoleUser, Text: question, CreatedAt: now},
		domain.ConversationEntry{Role: domain.RoleAssistant, Text: answer.Text, CreatedAt: now},
	); err != nil {
		return nil, err
	}

	uc.journal.UserActions.Info("question_answered",
		"session_id", sessionID,
		"document_id", input.DocumentID,
		"mode", input.Mode,
		"kind", answer.Kind,
		"model", answer.Model,
		"fallback", answer.Fallback,
	)
	return answer, nil
}

func (uc *AskUseCase) askDirect(
	ctx context.Context,
	sessionID string,
	docs []domain.Document,
	question string,
	input domain.AskInput,
) (*domain.Answer, error) {
	var req domain.AnswerRequest
	if input.DocumentID != "" {
		doc, err := uc.store.Document(ctx, sessionID, input.DocumentID)
		if err != nil {
			return nil, err
		}
		req = routing.RouteDocument(*doc, question)
	} else {
		req = routing.RouteMany(docs, question)
	}
	return generateAnswer(ctx, uc.generator, uc.journal, req, input.Model)
}

// Reconcile merges answers gathered from several documents.
func (uc *AskUseCase) Reconcile(_ context.Context, answers []string) string {
	return routing.ReconcileAnswers(answers)
}

// generateAnswer sends grounded and retrieval requests to the generator and
// returns fixed replies as they are. A generation failure still produces an
// answer carrying the generator's fallback text.
func generateAnswer(
	ctx context.Context,
	generator ports.AnswerGenerator,
	journal Journal,
	req domain.AnswerRequest,
	model string,
) (*domain.Answer, error) {
	answer := &domain.Answer{
		Kind:    req.Kind,
		Sources: req.Sources,
	}
	if req.Kind != domain.AnswerKindGrounded && req.Kind != domain.AnswerKindRetrieval {
		answer.Text = req.Reply
		return answer, nil
	}

	text, usedModel, err := generator.Answer(ctx, req, model)
	if err != nil {
		if !domain.IsKind(err, domain.ErrAnswerGeneration) || ctx.Err() != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		journal.Errors.Error("answer_generation_failed", "question", req.Question, "model", model, "error", err)
		answer.Text = text
		answer.Fallback = true
		return answer, nil
	}
	answer.Text = text
	answer.Model = usedModel
	return answer, nil
}
