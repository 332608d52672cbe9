// Package lifecycle checks on and prepares a local Ollama server for the
// ollama embedding provider: is it installed, is it answering, does it have
// the configured model, and pulling the model when it does not.
package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/Aman-CERP/resumatch/internal/embed"
)

const (
	// DefaultHost is the default Ollama API endpoint.
	DefaultHost = "http://localhost:11434"

	// ReadyPollInterval is the initial polling interval for WaitForReady.
	ReadyPollInterval = 100 * time.Millisecond

	// MaxReadyPollInterval caps exponential backoff.
	MaxReadyPollInterval = 2 * time.Second

	// PullTimeout bounds a model pull.
	PullTimeout = 30 * time.Minute
)

// OllamaManager talks to the Ollama HTTP API at one host.
type OllamaManager struct {
	host   string
	client *http.Client

	// lookPath is replaced in tests.
	lookPath func(file string) (string, error)
}

// OllamaStatus is a snapshot of the server as seen from resumatch.
type OllamaStatus struct {
	Host          string   `json:"host"`
	Installed     bool     `json:"installed"`
	InstalledPath string   `json:"installed_path,omitempty"`
	Running       bool     `json:"running"`
	Models        []string `json:"models,omitempty"`
	TargetModel   string   `json:"target_model"`
	HasModel      bool     `json:"has_model"`
}

// PullProgress is one update from a model pull.
type PullProgress struct {
	Status    string
	Digest    string
	Total     int64
	Completed int64
	Percent   float64
}

// NewOllamaManager creates a manager for host. An empty host uses
// DefaultHost.
func NewOllamaManager(host string) *OllamaManager {
	if host == "" {
		host = DefaultHost
	}
	return &OllamaManager{
		host:     strings.TrimRight(host, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
		lookPath: exec.LookPath,
	}
}

// Host returns the API endpoint.
func (m *OllamaManager) Host() string {
	return m.host
}

// IsRemoteHost reports whether the server is on another machine, in which
// case a missing local binary says nothing.
func (m *OllamaManager) IsRemoteHost() bool {
	h := strings.TrimPrefix(strings.TrimPrefix(m.host, "http://"), "https://")
	return !strings.HasPrefix(h, "localhost") && !strings.HasPrefix(h, "127.0.0.1") && !strings.HasPrefix(h, "[::1]")
}

// IsInstalled reports whether the ollama binary is on PATH.
func (m *OllamaManager) IsInstalled() (bool, string) {
	path, err := m.lookPath("ollama")
	if err != nil {
		return false, ""
	}
	return true, path
}

// IsRunning reports whether the API answers.
func (m *OllamaManager) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of the locally available models.
func (m *OllamaManager) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, md := range result.Models {
		models[i] = md.Name
	}
	return models, nil
}

// HasModel reports whether model is available. A name without a tag
// matches its ":latest" variant.
func (m *OllamaManager) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := m.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := embed.NormalizeModelName(model)
	for _, available := range models {
		if embed.NormalizeModelName(available) == want {
			return true, nil
		}
	}
	return false, nil
}

// Status gathers installation, reachability and model availability.
func (m *OllamaManager) Status(ctx context.Context, targetModel string) (*OllamaStatus, error) {
	status := &OllamaStatus{Host: m.host, TargetModel: targetModel}
	status.Installed, status.InstalledPath = m.IsInstalled()
	status.Running = m.IsRunning(ctx)
	if !status.Running {
		return status, nil
	}

	models, err := m.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	status.Models = models
	want := embed.NormalizeModelName(targetModel)
	for _, md := range models {
		if embed.NormalizeModelName(md) == want {
			status.HasModel = true
			break
		}
	}
	return status, nil
}

// Hint returns what the user should do next, or "" when the server is
// ready for the target model.
func (s *OllamaStatus) Hint() string {
	switch {
	case !s.Running && !s.Installed && s.Host == DefaultHost:
		return "Install Ollama from https://ollama.com/download, then run 'ollama serve'"
	case !s.Running:
		return fmt.Sprintf("Start Ollama with 'ollama serve' or check that %s is reachable", s.Host)
	case !s.HasModel:
		return fmt.Sprintf("Pull the model with 'resumatch doctor --fix' or 'ollama pull %s'", s.TargetModel)
	default:
		return ""
	}
}

// WaitForReady polls with backoff until the API answers or timeout passes.
func (m *OllamaManager) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := ReadyPollInterval
	for {
		if m.IsRunning(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Ollama at %s: %w", m.host, ctx.Err())
		case <-time.After(interval):
		}
		interval = min(interval*2, MaxReadyPollInterval)
	}
}

// PullModel downloads model, reporting progress from the streaming API.
// It returns immediately when the model is already available.
func (m *OllamaManager) PullModel(ctx context.Context, model string, progress func(PullProgress)) error {
	has, err := m.HasModel(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to check model: %w", err)
	}
	if has {
		return nil
	}

	// Older servers read "name", newer ones "model".
	body, err := json.Marshal(map[string]any{"model": model, "name": model, "stream": true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PullTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.host+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Streaming: the context bounds the pull, not the client.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to start pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var update struct {
			Status    string `json:"status"`
			Digest    string `json:"digest"`
			Total     int64  `json:"total"`
			Completed int64  `json:"completed"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(line, &update); err != nil {
			continue
		}
		if update.Error != "" {
			return fmt.Errorf("pull %s: %s", model, update.Error)
		}
		if progress != nil {
			p := PullProgress{Status: update.Status, Digest: update.Digest, Total: update.Total, Completed: update.Completed}
			if update.Total > 0 {
				p.Percent = float64(update.Completed) / float64(update.Total) * 100
			}
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull response: %w", err)
	}
	return nil
}
