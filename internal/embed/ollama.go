package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general-purpose text embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout bounds the model discovery call made at startup.
	OllamaConnectTimeout = 30 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host      string
	Model     string
	BatchSize int
	// Timeout bounds each /api/embed request.
	Timeout time.Duration
	Retry   rmerrors.RetryConfig
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to Ollama, resolves the model and detects its
// dimension. Any failure is ModelUnavailable.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = rmerrors.DefaultRetryConfig()
	}

	// No client-level timeout: each request carries its own context deadline.
	e := &OllamaEmbedder{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}},
		config: cfg,
	}

	checkCtx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
	defer cancel()

	name, err := e.findModel(checkCtx)
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("ollama model %q unavailable at %s", cfg.Model, cfg.Host), err).
			WithSuggestion(fmt.Sprintf("run 'ollama pull %s' or set embeddings.provider: static", cfg.Model))
	}
	e.modelName = name

	probe, err := e.doEmbed(checkCtx, []string{"dimension probe"})
	if err != nil || len(probe) != 1 || len(probe[0]) == 0 {
		if err == nil {
			err = fmt.Errorf("empty embedding returned")
		}
		return nil, rmerrors.New(rmerrors.ErrCodeModelUnavailable, "ollama returned no usable embedding", err)
	}
	e.dims = len(probe[0])

	slog.Debug("ollama_embedder_ready",
		slog.String("host", cfg.Host),
		slog.String("model", e.modelName),
		slog.Int("dimensions", e.dims))

	return e, nil
}

// findModel looks the configured model up in /api/tags. Tags must match
// exactly; see NormalizeModelName.
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list models failed with status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("failed to decode model list: %w", err)
	}

	want := NormalizeModelName(e.config.Model)
	for _, m := range tags.Models {
		if NormalizeModelName(m.Name) == want {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("model %s is not installed", want)
}

// NormalizeModelName lowercases an Ollama model reference and adds the
// implicit ":latest" tag, so "Nomic-Embed-Text" and
// "nomic-embed-text:latest" compare equal but other tags do not.
func NormalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized batches.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	return embedNonBlank(texts, e.dims, func(pending []string) ([][]float32, error) {
		out := make([][]float32, 0, len(pending))
		for _, batch := range splitBatches(pending, e.config.BatchSize) {
			vecs, err := rmerrors.Retry(ctx, e.config.Retry, func() ([][]float32, error) {
				reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
				defer cancel()
				return e.doEmbed(reqCtx, batch)
			})
			if err != nil {
				return nil, rmerrors.New(rmerrors.ErrCodeEmbeddingFailed, "ollama embedding failed", err)
			}
			out = append(out, vecs...)
		}
		return out, nil
	})
}

// doEmbed performs one /api/embed call. Transport errors and 5xx responses
// are retryable.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeNetworkTimeout, "ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := rmerrors.ErrCodeEmbeddingFailed
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = rmerrors.ErrCodeNetworkTimeout
		}
		return nil, rmerrors.Newf(code, "embedding failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		if e.dims != 0 && len(vec) != e.dims {
			return nil, rmerrors.Newf(rmerrors.ErrCodeDimensionMismatch,
				"ollama returned %d dimensions, expected %d", len(vec), e.dims)
		}
		embeddings[i] = normalizeVector(vec)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension detected at startup.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the resolved Ollama model name.
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available pings /api/tags.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.findModel(ctx)
	return err == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
