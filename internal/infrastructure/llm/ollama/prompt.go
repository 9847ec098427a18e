package ollama

import (
	"fmt"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// BuildPrompt renders the model prompt for a routed request.
func BuildPrompt(req domain.AnswerRequest) (string, error) {
	switch req.ContextKind {
	case domain.ContextTable:
		return buildTablePrompt(req.Context, req.Question), nil
	case domain.ContextText:
		return buildTextPrompt(req.Context, req.Question), nil
	case domain.ContextMulti:
		return buildMultiDocumentPrompt(req.Context, req.Question), nil
	case domain.ContextRetrieve:
		return buildRetrievalPrompt(req.Context, req.Question), nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "build prompt", fmt.Errorf("unknown context kind %q", req.ContextKind))
	}
}

func buildTablePrompt(table, question string) string {
	return fmt.Sprintf(`You are an intelligent assistant. Below is a document in table format:

%s

Now answer the question: %s`, table, question)
}

func buildTextPrompt(text, question string) string {
	return fmt.Sprintf(`You are a helpful assistant. Here is some content extracted from a PDF document:

%s

Answer the following question clearly based on the document:

Question: %s`, text, question)
}

func buildMultiDocumentPrompt(documents, question string) string {
	return fmt.Sprintf(`You are an intelligent assistant. Below are several documents, each introduced by a header line with its file name and type:

%s

Answer the question using every document that is relevant. If the documents disagree, say which document says what.

Question: %s`, documents, question)
}

func buildRetrievalPrompt(context, question string) string {
	return fmt.Sprintf(`Use the following context to answer the question as accurately as possible.
If the answer is not in the context, say you don't have enough information.

Context:
%s

Question: %s
Answer:`, context, question)
}
