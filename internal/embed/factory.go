package embed

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/resumatch/internal/config"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderStatic uses in-process feature hashing.
	ProviderStatic ProviderType = "static"
	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"
	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	BatchSize  int
	// CacheSize wraps the provider in an LRU when positive.
	CacheSize int

	OllamaHost    string
	OpenAIBaseURL string
	OpenAIKey     string

	Timeout time.Duration
}

// OptionsFromConfig maps the embeddings section of the config. The OpenAI
// key is read from OPENAI_API_KEY, which config.Load may have filled from .env.
func OptionsFromConfig(cfg config.EmbeddingsConfig) Options {
	return Options{
		Provider:      ParseProvider(cfg.Provider),
		Model:         cfg.Model,
		Dimensions:    cfg.Dimensions,
		BatchSize:     cfg.BatchSize,
		CacheSize:     cfg.CacheSize,
		OllamaHost:    cfg.OllamaHost,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		Timeout:       cfg.Timeout,
	}
}

// New is the one-time model initialization. It returns the handle every
// embedding call site shares. A provider that cannot be loaded fails with
// ModelUnavailable; there is no silent fallback to another provider because
// vectors from different models are not comparable.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch opts.Provider {
	case ProviderStatic:
		e = NewStaticEmbedder(opts.Dimensions)
	case ProviderOllama:
		e, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      opts.OllamaHost,
			Model:     opts.Model,
			BatchSize: opts.BatchSize,
			Timeout:   opts.Timeout,
		})
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(ctx, OpenAIConfig{
			APIKey:     opts.OpenAIKey,
			BaseURL:    opts.OpenAIBaseURL,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
			BatchSize:  opts.BatchSize,
			Timeout:    opts.Timeout,
		})
	default:
		return nil, rmerrors.Newf(rmerrors.ErrCodeModelUnavailable,
			"unknown embedding provider %q (valid: %s)", opts.Provider, strings.Join(ValidProviders(), ", "))
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheSize > 0 {
		e = NewCachedEmbedder(e, opts.CacheSize)
	}
	return e, nil
}

// ParseProvider normalizes a provider name. Unknown names are kept as-is so
// New can report them.
func ParseProvider(s string) ProviderType {
	return ProviderType(strings.ToLower(strings.TrimSpace(s)))
}

// String returns the provider name.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders lists the supported provider names.
func ValidProviders() []string {
	return []string{string(ProviderStatic), string(ProviderOllama), string(ProviderOpenAI)}
}

// EmbedderInfo describes an embedder for status output.
type EmbedderInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
	Cached     bool   `json:"cached"`
}

// GetInfo returns status information about an embedder.
func GetInfo(ctx context.Context, e Embedder) EmbedderInfo {
	_, cached := e.(*CachedEmbedder)
	return EmbedderInfo{
		Model:      e.ModelName(),
		Dimensions: e.Dimensions(),
		Available:  e.Available(ctx),
		Cached:     cached,
	}
}
