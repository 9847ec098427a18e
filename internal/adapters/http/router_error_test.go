package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cause := errors.New("cause")
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrUnsupportedFormat, "extract", cause), http.StatusUnsupportedMediaType},
		{domain.WrapError(domain.ErrExtractionFailure, "extract", cause), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrEmptyContent, "index", cause), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrInvalidInput, "ask", cause), http.StatusBadRequest},
		{domain.WrapError(domain.ErrSessionNotFound, "get", cause), http.StatusNotFound},
		{domain.WrapError(domain.ErrDocumentNotFound, "get", cause), http.StatusNotFound},
		{domain.WrapError(domain.ErrOverrideNotAllowed, "override", cause), http.StatusConflict},
		{domain.WrapError(domain.ErrNoDocuments, "ask", cause), http.StatusConflict},
		{domain.WrapError(domain.ErrTemporary, "embed", cause), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrAnswerGeneration, "generate", cause), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrExtractionFailure, "read", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
		{cause, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Errorf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestUploadUnsupportedFormatReturns415WithMessage(t *testing.T) {
	deps := newTestDeps()
	deps.uploader.errByName = map[string]error{
		"slides.pptx": domain.WrapError(domain.ErrUnsupportedFormat, "extract", errors.New(`suffix ".pptx"`)),
	}
	handler := deps.handler(Options{})

	body, contentType := multipartBody(t, map[string]string{"slides.pptx": "x"}, "slides.pptx")
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+testSessionID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp["error"], "unsupported format") || !strings.Contains(resp["error"], ".pptx") {
		t.Fatalf("expected error to echo the cause, got %q", resp["error"])
	}
}

func TestAskWithoutDocumentsReturns409(t *testing.T) {
	deps := newTestDeps()
	deps.answerer.err = domain.WrapError(domain.ErrNoDocuments, "ask", errors.New("session has no documents"))
	handler := deps.handler(Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+testSessionID+"/ask", strings.NewReader(`{"question":"total?"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestOverrideNotAllowedReturns409(t *testing.T) {
	deps := newTestDeps()
	deps.overrider.err = domain.WrapError(domain.ErrOverrideNotAllowed, "override", errors.New("type is invoice"))
	handler := deps.handler(Options{})

	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/"+testSessionID+"/documents/"+testDocumentID+"/type", strings.NewReader(`{"type":"payroll"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	deps := newTestDeps()
	deps.sessions.err = domain.WrapError(domain.ErrSessionNotFound, "get", errors.New("id=x"))
	handler := deps.handler(Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+testSessionID+"/documents", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestMalformedSessionIDReturns400(t *testing.T) {
	handler := newTestDeps().handler(Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/not-a-uuid/conversation", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskBodyValidatedAgainstContract(t *testing.T) {
	deps := newTestDeps()
	handler := deps.handler(Options{})

	for _, payload := range []string{`{"question":""}`, `{"question":"x","mode":"hybrid"}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+testSessionID+"/ask", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400, got %d", payload, res.Code)
		}
	}
	if deps.answerer.input.Question != "" {
		t.Fatalf("invalid payload must not reach the use case")
	}
}

func TestUnknownRouteFallsThroughTo404(t *testing.T) {
	handler := newTestDeps().handler(Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
