package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the Ollama server. Message is the
// server's "error" field when the body carries one.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ollama %s: %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("ollama %s: %d %s", e.Endpoint, e.StatusCode, e.Message)
}

// call runs one HTTP exchange with /api/<endpoint> under the executor when
// one is configured. A nil payload sends a GET.
func (c *Client) call(ctx context.Context, operation, endpoint string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
	}
	exchange := func(callCtx context.Context) error {
		return c.exchange(callCtx, endpoint, body, out)
	}
	if c.executor == nil {
		return exchange(ctx)
	}
	return c.executor.Execute(ctx, operation, exchange, classifyOllamaError)
}

func (c *Client) exchange(ctx context.Context, endpoint string, body []byte, out any) error {
	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/"+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(endpoint, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func readAPIError(endpoint string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
