package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/tags and a streaming /api/pull.
type fakeOllama struct {
	mu     sync.Mutex
	models []string
	pulled []string
	fail   string
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var resp struct {
			Models []map[string]string `json:"models"`
		}
		for _, m := range f.models {
			resp.Models = append(resp.Models, map[string]string{"name": m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if f.fail != "" {
			_, _ = fmt.Fprintf(w, "{\"error\":%q}\n", f.fail)
			return
		}
		_, _ = fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		_, _ = fmt.Fprintln(w, `{"status":"downloading","digest":"sha256:1","total":100,"completed":50}`)
		_, _ = fmt.Fprintln(w, `{"status":"downloading","digest":"sha256:1","total":100,"completed":100}`)
		_, _ = fmt.Fprintln(w, `{"status":"success"}`)
		f.mu.Lock()
		f.pulled = append(f.pulled, req.Model)
		f.models = append(f.models, req.Model)
		f.mu.Unlock()
	})
	return mux
}

func newFake(t *testing.T, models ...string) (*fakeOllama, *OllamaManager) {
	t.Helper()
	f := &fakeOllama{models: models}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	m := NewOllamaManager(srv.URL + "/")
	m.lookPath = func(string) (string, error) { return "/usr/bin/ollama", nil }
	return f, m
}

func TestNewOllamaManager_DefaultHost(t *testing.T) {
	m := NewOllamaManager("")

	assert.Equal(t, DefaultHost, m.Host())
	assert.False(t, m.IsRemoteHost())
	assert.True(t, NewOllamaManager("http://gpu-box:11434").IsRemoteHost())
}

func TestHasModel_ImpliedLatestTag(t *testing.T) {
	_, m := newFake(t, "nomic-embed-text:latest", "mxbai-embed-large:335m")
	ctx := context.Background()

	has, err := m.HasModel(ctx, "nomic-embed-text")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = m.HasModel(ctx, "mxbai-embed-large")
	require.NoError(t, err)
	assert.False(t, has, "a different tag is a different model")
}

func TestStatus(t *testing.T) {
	// Given: a running server without the target model
	_, m := newFake(t, "llama3:latest")

	// When: gathering status
	st, err := m.Status(context.Background(), "nomic-embed-text")

	// Then: it is running, installed and missing the model
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.True(t, st.Installed)
	assert.False(t, st.HasModel)
	assert.Equal(t, []string{"llama3:latest"}, st.Models)
	assert.Contains(t, st.Hint(), "ollama pull nomic-embed-text")
}

func TestStatus_NotRunning(t *testing.T) {
	m := NewOllamaManager("http://127.0.0.1:1")
	m.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	st, err := m.Status(context.Background(), "nomic-embed-text")

	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.False(t, st.Installed)
	assert.Contains(t, st.Hint(), "ollama serve")
}

func TestHint(t *testing.T) {
	assert.Contains(t, (&OllamaStatus{Host: DefaultHost}).Hint(), "Install Ollama")
	assert.Empty(t, (&OllamaStatus{Host: DefaultHost, Installed: true, Running: true, HasModel: true}).Hint())
}

func TestPullModel_ReportsProgress(t *testing.T) {
	// Given: a server lacking the model
	f, m := newFake(t)
	var updates []PullProgress

	// When: pulling it
	err := m.PullModel(context.Background(), "nomic-embed-text", func(p PullProgress) { updates = append(updates, p) })

	// Then: progress is reported and the model becomes available
	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text"}, f.pulled)
	require.Len(t, updates, 4)
	assert.InDelta(t, 50.0, updates[1].Percent, 0.01)
	assert.Equal(t, "success", updates[3].Status)

	// And: a second pull is a no-op
	require.NoError(t, m.PullModel(context.Background(), "nomic-embed-text", nil))
	assert.Len(t, f.pulled, 1)
}

func TestPullModel_StreamError(t *testing.T) {
	f, m := newFake(t)
	f.fail = "pull model manifest: file does not exist"

	err := m.PullModel(context.Background(), "no-such-model", nil)

	assert.ErrorContains(t, err, "file does not exist")
}

func TestWaitForReady(t *testing.T) {
	_, m := newFake(t)
	require.NoError(t, m.WaitForReady(context.Background(), time.Second))

	down := NewOllamaManager("http://127.0.0.1:1")
	err := down.WaitForReady(context.Background(), 300*time.Millisecond)
	assert.ErrorContains(t, err, "timeout waiting for Ollama")
}
