// Package routing decides how a question about uploaded documents is
// answered and renders document content into model context.
package routing

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

const (
	EmptyDocumentReply  = "This document is empty. Please upload a valid file."
	genericReplyFormat  = "Sorry, I couldn't find a specific answer. Here is a generic response to: %s"
	noAnswerReply       = "No answer found."
	conflictReplyHeader = "Multiple documents provide different answers:\n"
	conflictSeparator   = "\n---\n"
)

// GenericReply is the fixed answer for documents without a type-specific strategy.
func GenericReply(question string) string {
	return fmt.Sprintf(genericReplyFormat, question)
}

// Route picks the answer path for a single document.
func Route(docType domain.DocumentType, content domain.Content, question string) domain.AnswerRequest {
	if domain.IsEmpty(content) {
		return domain.AnswerRequest{
			Kind:     domain.AnswerKindEmpty,
			Question: question,
			Reply:    EmptyDocumentReply,
		}
	}

	switch docType {
	case domain.TypeAttendance, domain.TypeInvoice:
		contextKind, rendered := Render(content)
		return domain.AnswerRequest{
			Kind:        domain.AnswerKindGrounded,
			Question:    question,
			ContextKind: contextKind,
			Context:     rendered,
		}
	default:
		return domain.AnswerRequest{
			Kind:     domain.AnswerKindGeneric,
			Question: question,
			Reply:    GenericReply(question),
		}
	}
}

// RouteDocument routes a single session document and records its source.
func RouteDocument(doc domain.Document, question string) domain.AnswerRequest {
	req := Route(doc.Type, doc.Content, question)
	if req.Kind == domain.AnswerKindGrounded {
		req.Sources = []string{doc.Filename}
	}
	return req
}

// RouteMany answers against every answerable document of a set. Contexts are
// concatenated in upload order, each under a header naming its source file.
func RouteMany(docs []domain.Document, question string) domain.AnswerRequest {
	eligible := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if !doc.Type.Answerable() || domain.IsEmpty(doc.Content) {
			continue
		}
		eligible = append(eligible, doc)
	}

	switch len(eligible) {
	case 0:
		return domain.AnswerRequest{
			Kind:     domain.AnswerKindEmpty,
			Question: question,
			Reply:    EmptyDocumentReply,
		}
	case 1:
		return RouteDocument(eligible[0], question)
	}

	var b strings.Builder
	sources := make([]string, 0, len(eligible))
	for i, doc := range eligible {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== Document: %s (type: %s) ===\n", doc.Filename, doc.Type)
		_, rendered := Render(doc.Content)
		b.WriteString(rendered)
		if !strings.HasSuffix(rendered, "\n") {
			b.WriteString("\n")
		}
		sources = append(sources, doc.Filename)
	}

	return domain.AnswerRequest{
		Kind:        domain.AnswerKindGrounded,
		Question:    question,
		ContextKind: domain.ContextMulti,
		Context:     b.String(),
		Sources:     sources,
	}
}

// ReconcileAnswers merges candidate answers to the same question coming from
// different documents.
func ReconcileAnswers(answers []string) string {
	if len(answers) == 0 {
		return noAnswerReply
	}

	distinct := make([]string, 0, len(answers))
	seen := make(map[string]struct{}, len(answers))
	for _, answer := range answers {
		if _, ok := seen[answer]; ok {
			continue
		}
		seen[answer] = struct{}{}
		distinct = append(distinct, answer)
	}
	if len(distinct) == 1 {
		return distinct[0]
	}
	return conflictReplyHeader + strings.Join(distinct, conflictSeparator)
}
