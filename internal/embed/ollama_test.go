package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// fakeOllama serves /api/tags and /api/embed. Each input gets a vector
// derived from its length so results are deterministic. Setting failNext
// makes that many /api/embed calls answer 503.
func fakeOllama(t *testing.T, dims int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var failNext atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		if failNext.Load() > 0 {
			failNext.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range req.Input {
			vec := make([]float64, dims)
			vec[len(in)%dims] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &failNext
}

func fastRetry() rmerrors.RetryConfig {
	return rmerrors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func TestOllamaEmbedder_DetectsModelAndDimensions(t *testing.T) {
	srv, _ := fakeOllama(t, 8)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text", Retry: fastRetry()})

	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 8, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_BatchMatchesSingleAndBlank(t *testing.T) {
	srv, _ := fakeOllama(t, 8)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text", BatchSize: 2, Retry: fastRetry()})
	require.NoError(t, err)
	ctx := context.Background()

	texts := []string{"go", "", "rust dev", "python"}
	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 4)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
	assert.Equal(t, make([]float32, 8), batch[1])
}

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	srv, failNext := fakeOllama(t, 4)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)

	// Given: the next two requests fail with 503
	failNext.Store(2)

	// When: embedding
	vec, err := e.Embed(context.Background(), "retry me")

	// Then: the third attempt succeeds
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Zero(t, failNext.Load())
}

func TestOllamaEmbedder_RetriesExhausted(t *testing.T) {
	srv, failNext := fakeOllama(t, 4)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)
	failNext.Store(10)

	_, err = e.Embed(context.Background(), "never")

	require.Error(t, err)
	assert.Equal(t, rmerrors.ErrCodeEmbeddingFailed, rmerrors.GetCode(err))
}

func TestOllamaEmbedder_ModelMissingIsModelUnavailable(t *testing.T) {
	srv, _ := fakeOllama(t, 4)

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "mxbai-embed-large", Retry: fastRetry()})

	require.Error(t, err)
	assert.True(t, errors.Is(err, rmerrors.ErrModelUnavailable))
	assert.True(t, rmerrors.IsFatal(err))
}

func TestOllamaEmbedder_ServerDownIsModelUnavailable(t *testing.T) {
	srv, _ := fakeOllama(t, 4)
	url := srv.URL
	srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: url, Retry: fastRetry()})

	assert.True(t, errors.Is(err, rmerrors.ErrModelUnavailable))
}

func TestNormalizeModelName(t *testing.T) {
	assert.Equal(t, "nomic-embed-text:latest", NormalizeModelName(" Nomic-Embed-Text "))
	assert.Equal(t, "nomic-embed-text:v1.5", NormalizeModelName("nomic-embed-text:v1.5"))
}

func TestOllamaEmbedder_FindModelRequiresExactTag(t *testing.T) {
	// Given: a server with only a non-default tag of the model
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:v1.5"}]}`))
	}))
	t.Cleanup(srv.Close)
	find := func(model string) (string, error) {
		e := &OllamaEmbedder{client: srv.Client(), config: OllamaConfig{Host: srv.URL, Model: model}}
		return e.findModel(context.Background())
	}

	// When/Then: the untagged name means :latest and does not match v1.5
	_, err := find("nomic-embed-text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nomic-embed-text:latest is not installed")

	// And: the exact tag matches regardless of case
	name, err := find("Nomic-Embed-Text:V1.5")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text:v1.5", name)
}
