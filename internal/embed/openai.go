package embed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// DefaultOpenAIModel is the hosted embedding model used when none is set.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible gateway; empty uses api.openai.com.
	BaseURL string
	Model   string
	// Dimensions is sent as the requested output size; 0 keeps the model's.
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	Retry      rmerrors.RetryConfig
}

// OpenAIEmbedder generates embeddings with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds the client and embeds a probe string to confirm
// the key, model and dimension. Any failure is ModelUnavailable.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, rmerrors.New(rmerrors.ErrCodeModelUnavailable, "OPENAI_API_KEY is not set", nil).
			WithSuggestion("export OPENAI_API_KEY or add it to .env")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
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

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	probe, err := e.doEmbed(probeCtx, []string{"dimension probe"})
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("openai model %q unavailable", cfg.Model), err)
	}
	e.dims = len(probe[0])

	slog.Debug("openai_embedder_ready",
		slog.String("model", cfg.Model),
		slog.Int("dimensions", e.dims))

	return e, nil
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized batches.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
				return nil, rmerrors.New(rmerrors.ErrCodeEmbeddingFailed, "openai embedding failed", err)
			}
			out = append(out, vecs...)
		}
		return out, nil
	})
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.config.Model),
		Dimensions: e.config.Dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// The API documents Data in input order but carries Index; trust Index.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		if e.dims != 0 && len(vec) != e.dims {
			return nil, rmerrors.Newf(rmerrors.ErrCodeDimensionMismatch,
				"openai returned %d dimensions, expected %d", len(vec), e.dims)
		}
		out[i] = normalizeVector(vec)
	}
	return out, nil
}

// classifyOpenAIError marks rate limits and server errors retryable.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusNotFound:
		return rmerrors.New(rmerrors.ErrCodeModelUnavailable, "openai rejected the request", err)
	case status == http.StatusTooManyRequests || status >= 500 || status == 0:
		return rmerrors.New(rmerrors.ErrCodeNetworkTimeout, "openai request failed", err)
	default:
		return rmerrors.New(rmerrors.ErrCodeEmbeddingFailed, "openai request failed", err)
	}
}

// Dimensions returns the embedding dimension detected at startup.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the embedder has not been closed.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
