package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/embed"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/telemetry"
)

// embedderInitTimeout bounds provider start-up (model checks, first request).
const embedderInitTimeout = 15 * time.Second

// app holds the dependencies shared by the data commands.
type app struct {
	cfg      *config.Config
	store    *catalog.Store
	embedder embed.Embedder
	engine   *engine.Engine
	metrics  *telemetry.QueryMetrics
}

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return config.Load(cwd)
}

// openApp loads config, opens the catalog and initializes the embedder.
// There is no silent fallback: a provider that cannot start is an error.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.Data.Dir, err)
	}

	store, err := catalog.Open(ctx, cfg.CatalogPath(), cfg.Data.Driver)
	if err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedderInitTimeout)
	embedder, err := embed.New(embedCtx, embed.OptionsFromConfig(cfg.Embeddings))
	cancel()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eng, err := engine.New(store, embedder, engine.ConfigFrom(cfg))
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, err
	}

	metrics := openMetrics(store)
	eng.SetMetrics(metrics)

	slog.Debug("app_opened",
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("catalog", cfg.CatalogPath()),
		slog.String("embedder", embedder.ModelName()))
	return &app{cfg: cfg, store: store, embedder: embedder, engine: eng, metrics: metrics}, nil
}

// openMetrics keeps match metrics beside the catalog. Metrics are advisory,
// so a schema failure only downgrades to in-memory collection.
func openMetrics(store *catalog.Store) *telemetry.QueryMetrics {
	ms, err := telemetry.NewSQLiteStore(store.DB())
	if err != nil {
		slog.Warn("metrics_store_unavailable", slog.String("error", err.Error()))
		return telemetry.New(nil, telemetry.DefaultConfig())
	}
	return telemetry.New(ms, telemetry.DefaultConfig())
}

// Close flushes metrics and releases the embedder and the catalog.
func (a *app) Close() error {
	if err := a.metrics.Close(); err != nil {
		slog.Warn("metrics_flush_failed", slog.String("error", err.Error()))
	}
	embedErr := a.embedder.Close()
	if err := a.store.Close(); err != nil {
		return err
	}
	return embedErr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
