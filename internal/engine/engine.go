// Package engine is the semantic matching engine: it rebuilds per-kind
// vector indexes from the catalog, ingests single records into a live
// index, and answers match queries with oversampling and dedup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/embed"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/telemetry"
	"github.com/Aman-CERP/resumatch/internal/vector"
)

// Empty-index policies for Match.
const (
	EmptyPolicyError = "error"
	EmptyPolicyEmpty = "empty"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Catalog is the subset of catalog.Store the engine uses.
type Catalog interface {
	Insert(ctx context.Context, r catalog.Record) (int64, error)
	Get(ctx context.Context, kind catalog.Kind, id int64) (catalog.Record, error)
	List(ctx context.Context, kind catalog.Kind) ([]catalog.Record, error)
	Count(ctx context.Context, kind catalog.Kind) (int, error)
	Clear(ctx context.Context, kind catalog.Kind) (int, error)
}

var _ Catalog = (*catalog.Store)(nil)

// Config configures the engine.
type Config struct {
	// Dir holds the <kind>.vectors / <kind>.ids pairs.
	Dir string

	Backend  vector.Backend
	Metric   vector.Metric
	M        int
	EfSearch int

	BatchSize int
	Workers   int

	TopK        int
	Oversample  int
	EmptyPolicy string
	Timeout     time.Duration
}

// DefaultConfig returns engine defaults rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Backend:     vector.BackendFlat,
		Metric:      vector.MetricCosine,
		M:           16,
		EfSearch:    64,
		BatchSize:   embed.DefaultBatchSize,
		Workers:     4,
		TopK:        5,
		Oversample:  2,
		EmptyPolicy: EmptyPolicyError,
		Timeout:     30 * time.Second,
	}
}

// ConfigFrom maps the loaded application config onto engine settings.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig(cfg.Data.Dir)
	if b, err := vector.ParseBackend(cfg.Index.Backend); err == nil {
		c.Backend = b
	}
	if m, err := vector.ParseMetric(cfg.Index.Metric); err == nil {
		c.Metric = m
	}
	if cfg.Index.M > 0 {
		c.M = cfg.Index.M
	}
	if cfg.Index.EfSearch > 0 {
		c.EfSearch = cfg.Index.EfSearch
	}
	if cfg.Embeddings.BatchSize > 0 {
		c.BatchSize = cfg.Embeddings.BatchSize
	}
	if cfg.Embeddings.Workers > 0 {
		c.Workers = cfg.Embeddings.Workers
	}
	if cfg.Matching.TopK > 0 {
		c.TopK = cfg.Matching.TopK
	}
	if cfg.Matching.Oversample > 0 {
		c.Oversample = cfg.Matching.Oversample
	}
	if cfg.Matching.EmptyPolicy != "" {
		c.EmptyPolicy = cfg.Matching.EmptyPolicy
	}
	if cfg.Matching.Timeout > 0 {
		c.Timeout = cfg.Matching.Timeout
	}
	return c
}

// Engine ties the catalog, the embedder and the per-kind indexes together.
// It is safe for concurrent use.
type Engine struct {
	catalog  Catalog
	embedder embed.Embedder
	config   Config
	metrics  *telemetry.QueryMetrics

	mu      sync.Mutex
	indexes map[catalog.Kind]*vector.Index
}

// New creates an engine.
func New(cat Catalog, embedder embed.Embedder, cfg Config) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	def := DefaultConfig(cfg.Dir)
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.Metric == "" {
		cfg.Metric = def.Metric
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = def.Oversample
	}
	if cfg.EmptyPolicy == "" {
		cfg.EmptyPolicy = def.EmptyPolicy
	}
	if cfg.EmptyPolicy != EmptyPolicyError && cfg.EmptyPolicy != EmptyPolicyEmpty {
		return nil, rmerrors.Newf(rmerrors.ErrCodeConfigInvalid, "unknown empty policy %q (valid: error, empty)", cfg.EmptyPolicy)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Engine{
		catalog:  cat,
		embedder: embedder,
		config:   cfg,
		indexes:  make(map[catalog.Kind]*vector.Index),
	}, nil
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// SetMetrics records every completed match in m. Call before serving.
func (e *Engine) SetMetrics(m *telemetry.QueryMetrics) {
	e.metrics = m
}

// Metrics returns the match metrics collector, or nil.
func (e *Engine) Metrics() *telemetry.QueryMetrics {
	return e.metrics
}

// Embedder returns the engine's embedder.
func (e *Engine) Embedder() embed.Embedder {
	return e.embedder
}

// IndexName returns the file stem of the index for kind.
func IndexName(kind catalog.Kind) string {
	if kind == catalog.KindCandidate {
		return "candidates"
	}
	return "jobs"
}

func (e *Engine) indexConfig(kind catalog.Kind) vector.Config {
	return vector.Config{
		Dimensions: e.embedder.Dimensions(),
		Metric:     e.config.Metric,
		Backend:    e.config.Backend,
		Dir:        e.config.Dir,
		Name:       IndexName(kind),
		M:          e.config.M,
		EfSearch:   e.config.EfSearch,
	}
}

// loadIndex reads a persisted pair; a variable so tests can slow it down.
var loadIndex = vector.Load

// index returns the loaded index for kind, loading it or reloading it when
// another writer replaced the files. A missing or unreadable pair is
// IndexNotReady. Files are read outside e.mu so loading one kind never
// stalls matches against the other.
func (e *Engine) index(kind catalog.Kind) (*vector.Index, error) {
	e.mu.Lock()
	cached, ok := e.indexes[kind]
	e.mu.Unlock()
	if ok && !cached.Stale() {
		return cached, nil
	}

	cfg := e.indexConfig(kind)
	if !vector.Exists(cfg) {
		e.forget(kind, cached)
		return nil, rmerrors.Newf(rmerrors.ErrCodeIndexNotReady, "no %s index has been built", kind).
			WithSuggestion(fmt.Sprintf("Run 'resumatch rebuild %s'", IndexName(kind)))
	}
	idx, err := loadIndex(cfg)
	if err != nil {
		e.forget(kind, cached)
		if errors.Is(err, rmerrors.ErrIndexNotFound) {
			return nil, rmerrors.New(rmerrors.ErrCodeIndexNotReady, fmt.Sprintf("%s index is not usable", kind), err).
				WithSuggestion(fmt.Sprintf("Run 'resumatch rebuild %s'", IndexName(kind)))
		}
		return nil, err
	}

	e.mu.Lock()
	// Another loader, a rebuild or an ingest installed a newer index meanwhile.
	if cur, ok := e.indexes[kind]; ok && cur != cached {
		e.mu.Unlock()
		return cur, nil
	}
	e.indexes[kind] = idx
	e.mu.Unlock()

	slog.Debug("index_loaded",
		slog.String("kind", string(kind)),
		slog.Int("count", idx.Count()),
		slog.String("backend", string(idx.Config().Backend)))
	return idx, nil
}

// forget drops the cached index for kind if it is still old.
func (e *Engine) forget(kind catalog.Kind, old *vector.Index) {
	e.mu.Lock()
	if e.indexes[kind] == old {
		delete(e.indexes, kind)
	}
	e.mu.Unlock()
}

func (e *Engine) setIndex(kind catalog.Kind, idx *vector.Index) {
	e.mu.Lock()
	e.indexes[kind] = idx
	e.mu.Unlock()
}

// KindStatus describes the catalog and index state for one kind.
type KindStatus struct {
	Kind    catalog.Kind  `json:"kind"`
	Records int           `json:"records"`
	Index   *vector.Stats `json:"index,omitempty"`
	// Error explains why the index is not available.
	Error string `json:"error,omitempty"`
}

// Status reports catalog counts and index state for jobs and candidates.
func (e *Engine) Status(ctx context.Context) ([]KindStatus, error) {
	kinds := []catalog.Kind{catalog.KindJob, catalog.KindCandidate}
	out := make([]KindStatus, 0, len(kinds))
	for _, kind := range kinds {
		n, err := e.catalog.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		st := KindStatus{Kind: kind, Records: n}
		if idx, err := e.index(kind); err != nil {
			st.Error = err.Error()
		} else {
			stats := idx.Stats()
			st.Index = &stats
		}
		out = append(out, st)
	}
	return out, nil
}

// Record returns the catalog record of kind with id.
func (e *Engine) Record(ctx context.Context, kind catalog.Kind, id int64) (catalog.Record, error) {
	return e.catalog.Get(ctx, kind, id)
}

// IndexConfig returns the vector index configuration for kind, including
// the paths of its persisted files.
func (e *Engine) IndexConfig(kind catalog.Kind) vector.Config {
	return e.indexConfig(kind)
}
