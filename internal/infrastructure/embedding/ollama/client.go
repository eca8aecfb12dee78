package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/doc-salience/internal/infrastructure/resilience"
)

const initProbeText = "embedding gateway warmup"

// Client is the embedding gateway over Ollama's /api/embed endpoint. One
// client serves one model; batches larger than maxBatch are split before
// hitting the wire. All calls run through the resilience executor.
type Client struct {
	baseURL    string
	model      string
	maxBatch   int
	httpClient *http.Client
	exec       *resilience.Executor

	initOnce sync.Once
	initErr  error
	dim      int
}

type Config struct {
	BaseURL  string
	Model    string
	MaxBatch int
	Timeout  time.Duration
}

func New(cfg Config, exec *resilience.Executor) *Client {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxBatch:   cfg.MaxBatch,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		exec:       exec,
	}
}

// Init warms the model with a probe embedding and records the vector
// dimension. Idempotent: repeat calls return the first outcome.
func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		vectors, err := c.embedBatch(ctx, []string{initProbeText})
		if err != nil {
			c.initErr = fmt.Errorf("warm up embedding model %s: %w", c.model, err)
			return
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			c.initErr = fmt.Errorf("embedding model %s returned no vector on warmup", c.model)
			return
		}
		c.dim = len(vectors[0])
	})
	return c.initErr
}

// Dimension is the vector length observed at Init; zero before Init.
func (c *Client) Dimension() int {
	return c.dim
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.maxBatch {
		end := start + c.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed batch: requested %d vectors, got %d", end-start, len(vectors))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": c.model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	err := c.exec.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyEmbedError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed batch", err)
	}
	return response.Embeddings, nil
}
