package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/resilience"
)

// FallbackFailedPrefix starts the reply text returned when every model failed.
const FallbackFailedPrefix = "[Fallback failed] Error from Ollama:"

// DefaultFallbackModels is tried in order after the requested model.
var DefaultFallbackModels = []string{"llama3", "falcon-7b-instruct", "mistral"}

type Client struct {
	baseURL        string
	genModel       string
	embedModel     string
	fallbackModels []string
	httpClient     *http.Client
	executor       *resilience.Executor
	logger         *slog.Logger
}

type Options struct {
	GenModel       string
	EmbedModel     string
	FallbackModels []string
	Timeout        time.Duration
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

func New(baseURL, genModel, embedModel string) *Client {
	return NewWithOptions(baseURL, Options{GenModel: genModel, EmbedModel: embedModel})
}

func NewWithOptions(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	fallbacks := options.FallbackModels
	if len(fallbacks) == 0 {
		fallbacks = DefaultFallbackModels
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		genModel:       strings.TrimSpace(options.GenModel),
		embedModel:     options.EmbedModel,
		fallbackModels: append([]string(nil), fallbacks...),
		httpClient:     &http.Client{Timeout: timeout},
		executor:       options.Executor,
		logger:         logger,
	}
}

// FallbackModels returns the configured fallback list.
func (c *Client) FallbackModels() []string {
	return append([]string(nil), c.fallbackModels...)
}

// ModelOrder is the attempt order for one call: the requested model (or the
// default generation model) first, then the fallbacks without duplicates.
func (c *Client) ModelOrder(requested string) []string {
	first := strings.TrimSpace(requested)
	if first == "" {
		first = c.genModel
	}
	order := make([]string, 0, len(c.fallbackModels)+1)
	seen := make(map[string]struct{}, len(c.fallbackModels)+1)
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" {
			return
		}
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		order = append(order, m)
	}
	add(first)
	for _, m := range c.fallbackModels {
		add(m)
	}
	return order
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) generateText(ctx context.Context, model, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
	var response generateResponse
	if err := c.call(ctx, "ollama.generate:"+model, "generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// AttemptObserver is told about each model attempt; err is nil on success.
type AttemptObserver func(model string, err error)

type Generator struct {
	client   *Client
	observer AttemptObserver
}

type GeneratorOption func(*Generator)

func WithAttemptObserver(observer AttemptObserver) GeneratorOption {
	return func(g *Generator) {
		g.observer = observer
	}
}

func NewGenerator(client *Client, opts ...GeneratorOption) *Generator {
	g := &Generator{client: client}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Answer renders the prompt for a grounded or retrieval request and generates
// the reply. Requests that carry a fixed Reply are returned as is.
func (g *Generator) Answer(ctx context.Context, req domain.AnswerRequest, model string) (string, string, error) {
	switch req.Kind {
	case domain.AnswerKindGeneric, domain.AnswerKindEmpty:
		return req.Reply, "", nil
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", "", err
	}
	return g.Generate(ctx, prompt, model)
}

// Generate tries each model in order and returns the first success along with
// the model that produced it.
func (g *Generator) Generate(ctx context.Context, prompt, model string) (string, string, error) {
	models := g.client.ModelOrder(model)
	if len(models) == 0 {
		err := errors.New("no generation models configured")
		return failureText(err), "", domain.WrapError(domain.ErrAnswerGeneration, "generate", err)
	}

	var lastErr error
	for _, m := range models {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		text, err := g.client.generateText(ctx, m, prompt)
		if g.observer != nil {
			g.observer(m, err)
		}
		if err == nil {
			if m != models[0] {
				g.client.logger.Info("model_fallback_used", "requested", models[0], "model", m)
			}
			return text, m, nil
		}
		lastErr = err
		if isModelMissing(err) {
			g.client.logger.Warn("model_not_installed", "model", m)
			continue
		}
		g.client.logger.Warn("model_attempt_failed", "model", m, "error", err)
	}

	g.client.logger.Error("all_models_failed", "models", models, "error", lastErr)
	return failureText(lastErr), "", domain.WrapError(domain.ErrAnswerGeneration, "generate", asTemporary("ollama generate", lastErr))
}

func failureText(err error) string {
	return fmt.Sprintf("%s %v", FallbackFailedPrefix, err)
}

type ModelCatalog struct {
	client *Client
}

func NewModelCatalog(client *Client) *ModelCatalog {
	return &ModelCatalog{client: client}
}

// ListModels asks Ollama for installed models and falls back to the
// configured fallback list when the call fails or returns nothing.
func (m *ModelCatalog) ListModels(ctx context.Context) ([]string, error) {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := m.client.call(ctx, "ollama.tags", "tags", nil, &response); err != nil {
		m.client.logger.Warn("model_list_unavailable", "error", err)
		return m.client.FallbackModels(), nil
	}

	names := make([]string, 0, len(response.Models))
	for _, model := range response.Models {
		if name := strings.TrimSpace(model.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		m.client.logger.Warn("model_list_empty")
		return m.client.FallbackModels(), nil
	}
	return names, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "ollama.embed", "embed", request, &response); err != nil {
		return nil, asTemporary("ollama embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
