package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/embed"
	"github.com/Aman-CERP/resumatch/internal/lifecycle"
)

// embedProbeTimeout bounds provider start-up and the probe request.
const embedProbeTimeout = 20 * time.Second

// CheckEmbedder starts the configured provider (or uses the one passed with
// WithEmbedder), embeds a probe text and compares the vector length with the
// configured dimensions. Nothing can be indexed or matched without it, so a
// failure is critical.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}

	ctx, cancel := context.WithTimeout(ctx, embedProbeTimeout)
	defer cancel()

	e := c.embedder
	if e == nil {
		var err error
		e, err = embed.New(ctx, embed.OptionsFromConfig(cfg))
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("%s provider unavailable", cfg.Provider)
			result.Details = err.Error()
			result.Fix = providerHint(ctx, cfg)
			return result
		}
		defer func() { _ = e.Close() }()
	}

	start := time.Now()
	vec, err := e.Embed(ctx, "preflight probe: senior go engineer")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s failed to embed", e.ModelName())
		result.Details = err.Error()
		result.Fix = providerHint(ctx, cfg)
		return result
	}

	result.Details = fmt.Sprintf("probe took %s", time.Since(start).Round(time.Millisecond))
	if cfg.Dimensions > 0 && len(vec) != cfg.Dimensions {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s returns %d dims, config says %d", e.ModelName(), len(vec), cfg.Dimensions)
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d dims)", e.ModelName(), len(vec))
	return result
}

// providerHint asks the Ollama server what is missing. Other providers
// have no local state to inspect.
func providerHint(ctx context.Context, cfg config.EmbeddingsConfig) string {
	if embed.ParseProvider(cfg.Provider) != embed.ProviderOllama {
		return ""
	}
	status, err := lifecycle.NewOllamaManager(cfg.OllamaHost).Status(ctx, cfg.Model)
	if err != nil {
		return ""
	}
	return status.Hint()
}

// CheckCatalog opens the catalog and counts records of each kind.
func (c *Checker) CheckCatalog(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "catalog",
		Required: true,
		Details:  cfg.CatalogPath(),
	}

	store, err := catalog.Open(ctx, cfg.CatalogPath(), cfg.Data.Driver)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = store.Close() }()

	jobs, err := store.Count(ctx, catalog.KindJob)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	candidates, err := store.Count(ctx, catalog.KindCandidate)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d jobs, %d candidates", jobs, candidates)
	return result
}
