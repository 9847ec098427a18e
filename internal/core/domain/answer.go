package domain

type AnswerKind string

const (
	AnswerKindGrounded  AnswerKind = "grounded"
	AnswerKindGeneric   AnswerKind = "generic"
	AnswerKindEmpty     AnswerKind = "empty"
	AnswerKindRetrieval AnswerKind = "retrieval"
)

// ContextKind describes how AnswerRequest.Context was rendered.
type ContextKind string

const (
	ContextTable    ContextKind = "table"
	ContextText     ContextKind = "text"
	ContextMulti    ContextKind = "multi"
	ContextRetrieve ContextKind = "retrieval"
)

// AnswerRequest is the router's decision for one question. Grounded requests
// go to the answer generator; generic and empty requests carry a fixed Reply.
type AnswerRequest struct {
	Kind        AnswerKind  `json:"kind"`
	Question    string      `json:"question"`
	ContextKind ContextKind `json:"context_kind,omitempty"`
	Context     string      `json:"-"`
	Sources     []string    `json:"sources,omitempty"`
	Reply       string      `json:"reply,omitempty"`
}

type Answer struct {
	Text     string     `json:"text"`
	Kind     AnswerKind `json:"kind"`
	Model    string     `json:"model,omitempty"`
	Sources  []string   `json:"sources,omitempty"`
	Fallback bool       `json:"fallback,omitempty"`
}

type AskMode string

const (
	AskModeDirect    AskMode = "direct"
	AskModeRetrieval AskMode = "retrieval"
)

type AskInput struct {
	Question   string  `json:"question"`
	Model      string  `json:"model,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
	Mode       AskMode `json:"mode,omitempty"`
}

type RetrievedChunk struct {
	DocumentID string       `json:"document_id"`
	Filename   string       `json:"filename"`
	ChunkType  DocumentType `json:"chunk_type"`
	Text       string       `json:"text"`
	Score      float64      `json:"score"`
}

type SearchFilter struct {
	SessionID string
}
