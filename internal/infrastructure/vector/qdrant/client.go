package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/resilience"
)

// pointNamespace derives stable point IDs so re-indexing a document
// overwrites its previous chunks.
var pointNamespace = uuid.MustParse("8f5c2c1e-6a0b-4c53-9a55-2a4f3d9b7e10")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func NewWithOptions(baseURL, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

func pointID(documentID string, index int) string {
	return uuid.NewSHA1(pointNamespace, fmt.Appendf(nil, "%s:%d", documentID, index)).String()
}

func (c *Client) IndexChunks(
	ctx context.Context,
	doc *domain.Document,
	chunks []string,
	chunkTypes []domain.DocumentType,
	vectors [][]float32,
) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) || len(chunks) != len(chunkTypes) {
		return fmt.Errorf("chunks/types/vectors mismatch: %d/%d/%d", len(chunks), len(chunkTypes), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID:     pointID(doc.ID, i),
			Vector: vectors[i],
			Payload: map[string]any{
				"session_id":  doc.SessionID,
				"doc_id":      doc.ID,
				"filename":    doc.Filename,
				"doc_type":    string(doc.Type),
				"chunk_type":  string(chunkTypes[i]),
				"chunk_index": i,
				"text":        chunks[i],
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
		return err
	}
	return nil
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter.SessionID != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": "session_id",
					"match": map[string]any{
						"value": filter.SessionID,
					},
				},
			},
		}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			DocumentID: getStringPayload(r.Payload, "doc_id"),
			Filename:   getStringPayload(r.Payload, "filename"),
			ChunkType:  domain.DocumentType(getStringPayload(r.Payload, "chunk_type")),
			Text:       getStringPayload(r.Payload, "text"),
			Score:      r.Score,
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	var statusErr *statusError
	// 409 when the collection already exists.
	if err != nil && !(errors.As(err, &statusErr) && statusErr.code == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	call := func(callCtx context.Context) error {
		return c.roundTrip(callCtx, method, path, body, out, operation)
	}
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil && classifyQdrantError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation: operation,
			code:      resp.StatusCode,
			status:    resp.Status,
			body:      strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// classifyQdrantError retries transport failures and 5xx/429. Other 4xx
// answers (including the expected 409 on collection creation) never count
// against the breaker.
func classifyQdrantError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		retryable := statusErr.code == http.StatusTooManyRequests || statusErr.code >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
