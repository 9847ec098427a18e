package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
)

// Recorder receives per-request domain measurements.
type Recorder interface {
	RecordUpload(service string, err error)
	RecordClassification(service, docType, source string)
	RecordAnswer(service, kind string, fallback bool, duration time.Duration)
}

type Options struct {
	Service string
	Logger  *slog.Logger
	Metrics Recorder

	RateLimitRPS   float64
	RateLimitBurst int
	MaxInflight    int
	MaxUploadBytes int64
}

type Router struct {
	sessions  ports.SessionService
	uploader  ports.DocumentUploader
	overrider ports.TypeOverrider
	answerer  ports.QuestionAnswerer
	models    ports.ModelLister

	opts      Options
	logger    *slog.Logger
	validator *requestValidator
}

func NewRouter(
	sessions ports.SessionService,
	uploader ports.DocumentUploader,
	overrider ports.TypeOverrider,
	answerer ports.QuestionAnswerer,
	models ports.ModelLister,
	opts Options,
) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	return &Router{
		sessions:  sessions,
		uploader:  uploader,
		overrider: overrider,
		answerer:  answerer,
		models:    models,
		opts:      opts,
		logger:    logger,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/models", rt.listModels)
	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("DELETE /v1/sessions/{session_id}", rt.endSession)
	mux.HandleFunc("GET /v1/sessions/{session_id}/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/sessions/{session_id}/documents", rt.uploadDocuments)
	mux.HandleFunc("GET /v1/sessions/{session_id}/documents/{document_id}/raw", rt.downloadDocument)
	mux.HandleFunc("PUT /v1/sessions/{session_id}/documents/{document_id}/type", rt.overrideType)
	mux.HandleFunc("GET /v1/sessions/{session_id}/documents/{document_id}/history", rt.documentHistory)
	mux.HandleFunc("POST /v1/sessions/{session_id}/ask", rt.ask)
	mux.HandleFunc("GET /v1/sessions/{session_id}/conversation", rt.conversation)
	mux.HandleFunc("DELETE /v1/sessions/{session_id}/conversation", rt.clearConversation)
	mux.HandleFunc("POST /v1/answers/reconcile", rt.reconcile)

	var handler http.Handler = rt.validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.opts.MaxInflight, 50*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := rt.models.ListModels(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	session, err := rt.sessions.Create(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := rt.sessions.End(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	docs, err := rt.sessions.ListDocuments(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

type uploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// uploadDocuments streams every "file" part straight into the upload use
// case. Parts are processed independently; the request fails only when no
// part succeeded.
func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rt.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart body is required")
		return
	}

	docs := []*domain.Document{}
	failures := []uploadFailure{}
	var firstErr error
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if firstErr == nil {
				firstErr = domain.WrapError(domain.ErrInvalidInput, "read multipart", err)
			}
			break
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		filename := part.FileName()
		doc, err := rt.uploader.Upload(r.Context(), sessionID, filename, part)
		_ = part.Close()
		rt.recordUpload(doc, err)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failures = append(failures, uploadFailure{Filename: filename, Error: err.Error()})
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		if firstErr == nil {
			writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		writeDomainError(w, firstErr)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"documents": docs, "errors": failures})
}

func (rt *Router) recordUpload(doc *domain.Document, err error) {
	if rt.opts.Metrics == nil {
		return
	}
	rt.opts.Metrics.RecordUpload(rt.opts.Service, err)
	if doc != nil {
		rt.opts.Metrics.RecordClassification(rt.opts.Service, string(doc.Type), string(doc.TypeSource))
	}
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	sessionID, documentID, err := sessionAndDocument(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	doc, body, err := rt.uploader.OpenRaw(r.Context(), sessionID, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		rt.logger.Warn("raw_download_interrupted", "document_id", documentID, "error", err)
	}
}

func (rt *Router) overrideType(w http.ResponseWriter, r *http.Request) {
	sessionID, documentID, err := sessionAndDocument(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	doc, err := rt.overrider.OverrideType(r.Context(), sessionID, documentID, req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordClassification(rt.opts.Service, string(doc.Type), string(doc.TypeSource))
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) documentHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, documentID, err := sessionAndDocument(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	history, err := rt.sessions.DocumentHistory(r.Context(), sessionID, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if history == nil {
		history = []domain.ClassificationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var input domain.AskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Ask(r.Context(), sessionID, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordAnswer(rt.opts.Service, string(answer.Kind), answer.Fallback, time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) conversation(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := rt.sessions.Conversation(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.ConversationEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (rt *Router) clearConversation(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := rt.sessions.ClearConversation(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers []string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": rt.answerer.Reconcile(r.Context(), req.Answers)})
}

func sessionAndDocument(r *http.Request) (string, string, error) {
	sessionID, err := pathID(r, "session_id")
	if err != nil {
		return "", "", err
	}
	documentID, err := pathID(r, "document_id")
	if err != nil {
		return "", "", err
	}
	return sessionID, documentID, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
