package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// fakeOpenAI answers POST /v1/embeddings, returning data in reverse order
// to exercise index-based reordering.
func fakeOpenAI(t *testing.T, dims int, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dims)
			vec[len(req.Input[i])%dims] = 2
			data = append(data, item{Object: "embedding", Embedding: vec, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_EmbedsAndReordersByIndex(t *testing.T) {
	srv := fakeOpenAI(t, 6, http.StatusOK)
	e, err := NewOpenAIEmbedder(context.Background(), OpenAIConfig{
		APIKey: "sk-test", BaseURL: srv.URL + "/v1", Retry: fastRetry(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	batch, err := e.EmbedBatch(ctx, []string{"a", "bb", "", "cccc"})

	require.NoError(t, err)
	require.Len(t, batch, 4)
	assert.Equal(t, 6, e.Dimensions())
	assert.Equal(t, DefaultOpenAIModel, e.ModelName())
	assert.Equal(t, float32(1), batch[0][1])
	assert.Equal(t, float32(1), batch[1][2])
	assert.Equal(t, make([]float32, 6), batch[2])

	single, err := e.Embed(ctx, "cccc")
	require.NoError(t, err)
	assert.Equal(t, single, batch[3])
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(context.Background(), OpenAIConfig{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, rmerrors.ErrModelUnavailable))
}

func TestOpenAIEmbedder_UnauthorizedIsModelUnavailable(t *testing.T) {
	srv := fakeOpenAI(t, 6, http.StatusUnauthorized)

	_, err := NewOpenAIEmbedder(context.Background(), OpenAIConfig{
		APIKey: "sk-bad", BaseURL: srv.URL + "/v1", Retry: fastRetry(),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, rmerrors.ErrModelUnavailable))
}
