// Package mcpadapter exposes upload, ask, type override and reconciliation as
// MCP tools.
package mcpadapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
)

type Tools struct {
	sessions  ports.SessionService
	uploader  ports.DocumentUploader
	overrider ports.TypeOverrider
	answerer  ports.QuestionAnswerer
}

func NewTools(
	sessions ports.SessionService,
	uploader ports.DocumentUploader,
	overrider ports.TypeOverrider,
	answerer ports.QuestionAnswerer,
) *Tools {
	return &Tools{
		sessions:  sessions,
		uploader:  uploader,
		overrider: overrider,
		answerer:  answerer,
	}
}

// NewServer builds an MCP server with every docquery tool registered.
func NewServer(version string, tools *Tools) *server.MCPServer {
	srv := server.NewMCPServer("docquery-assistant", version, server.WithToolCapabilities(false))
	srv.AddTools(tools.ServerTools()...)
	return srv
}

func (t *Tools) ServerTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("docquery_upload",
				mcp.WithDescription("Upload a local CSV, XLSX or PDF file into a session. It is extracted and classified as attendance, invoice, unknown or empty. A new session is created when session_id is omitted."),
				mcp.WithString("path", mcp.Required(), mcp.Description("local path of the file to upload")),
				mcp.WithString("session_id", mcp.Description("existing session, omitted to start a new one")),
			),
			Handler: handle(t.upload),
		},
		{
			Tool: mcp.NewTool("docquery_ask",
				mcp.WithDescription("Ask a question about the documents of a session. Targets one document when document_id is set, otherwise all documents."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("session holding the documents")),
				mcp.WithString("question", mcp.Required()),
				mcp.WithString("model", mcp.Description("preferred model, fallbacks are tried after it")),
				mcp.WithString("document_id"),
				mcp.WithString("mode", mcp.Enum("direct", "retrieval"), mcp.Description("direct (default) or retrieval")),
			),
			Handler: handle(t.ask),
		},
		{
			Tool: mcp.NewTool("docquery_override_type",
				mcp.WithDescription("Assign a type to a document that was automatically classified as unknown. Allowed once per document."),
				mcp.WithString("session_id", mcp.Required()),
				mcp.WithString("document_id", mcp.Required()),
				mcp.WithString("type", mcp.Required(), mcp.Description("new label, e.g. payroll")),
			),
			Handler: handle(t.overrideType),
		},
		{
			Tool: mcp.NewTool("docquery_reconcile",
				mcp.WithDescription("Merge answers from several documents into one reply, listing distinct answers when they disagree."),
				mcp.WithArray("answers", mcp.Required(), mcp.WithStringItems()),
			),
			Handler: handle(t.reconcile),
		},
	}
}

// handle binds the call arguments to In and reports a failed call as a tool
// error result, so the client sees the message instead of a protocol error.
func handle[In, Out any](fn func(context.Context, In) (Out, error)) server.ToolHandlerFunc {
	return mcp.NewTypedToolHandler(func(ctx context.Context, _ mcp.CallToolRequest, in In) (*mcp.CallToolResult, error) {
		out, err := fn(ctx, in)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultJSON(out)
	})
}

type documentView struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Type        string `json:"type"`
	TypeSource  string `json:"type_source"`
	ContentKind string `json:"content_kind"`
	IndexStatus string `json:"index_status"`
}

func viewDocument(doc *domain.Document) documentView {
	return documentView{
		ID:          doc.ID,
		Filename:    doc.Filename,
		Type:        string(doc.Type),
		TypeSource:  string(doc.TypeSource),
		ContentKind: string(doc.ContentKind),
		IndexStatus: string(doc.IndexStatus),
	}
}

type uploadInput struct {
	Path      string `json:"path"`
	SessionID string `json:"session_id,omitempty"`
}

type uploadOutput struct {
	SessionID string       `json:"session_id"`
	Document  documentView `json:"document"`
}

func (t *Tools) upload(ctx context.Context, in uploadInput) (uploadOutput, error) {
	path := strings.TrimSpace(in.Path)
	if path == "" {
		return uploadOutput{}, fmt.Errorf("path is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return uploadOutput{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		session, err := t.sessions.Create(ctx)
		if err != nil {
			return uploadOutput{}, err
		}
		sessionID = session.ID
	}

	doc, err := t.uploader.Upload(ctx, sessionID, filepath.Base(path), f)
	if err != nil {
		return uploadOutput{}, err
	}
	return uploadOutput{SessionID: sessionID, Document: viewDocument(doc)}, nil
}

type askInput struct {
	SessionID  string `json:"session_id"`
	Question   string `json:"question"`
	Model      string `json:"model,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

type answerOutput struct {
	Text     string   `json:"text"`
	Kind     string   `json:"kind"`
	Model    string   `json:"model,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
}

func (t *Tools) ask(ctx context.Context, in askInput) (answerOutput, error) {
	answer, err := t.answerer.Ask(ctx, in.SessionID, domain.AskInput{
		Question:   in.Question,
		Model:      in.Model,
		DocumentID: in.DocumentID,
		Mode:       domain.AskMode(in.Mode),
	})
	if err != nil {
		return answerOutput{}, err
	}
	return answerOutput{
		Text:     answer.Text,
		Kind:     string(answer.Kind),
		Model:    answer.Model,
		Sources:  answer.Sources,
		Fallback: answer.Fallback,
	}, nil
}

type overrideInput struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
}

func (t *Tools) overrideType(ctx context.Context, in overrideInput) (documentView, error) {
	doc, err := t.overrider.OverrideType(ctx, in.SessionID, in.DocumentID, in.Type)
	if err != nil {
		return documentView{}, err
	}
	return viewDocument(doc), nil
}

type reconcileInput struct {
	Answers []string `json:"answers"`
}

type reconcileOutput struct {
	Answer string `json:"answer"`
}

func (t *Tools) reconcile(ctx context.Context, in reconcileInput) (reconcileOutput, error) {
	return reconcileOutput{Answer: t.answerer.Reconcile(ctx, in.Answers)}, nil
}
