package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/vector"
)

// Build stages reported through ProgressFunc.
const (
	StageLoading   = "loading"
	StageEmbedding = "embedding"
	StageIndexing  = "indexing"
	StageComplete  = "complete"
)

// Progress is one build progress update.
type Progress struct {
	Kind    catalog.Kind
	Stage   string
	Current int
	Total   int
}

// ProgressFunc receives build progress. It may be called from several
// goroutines.
type ProgressFunc func(Progress)

// BuildResult summarizes a rebuild.
type BuildResult struct {
	Kind          catalog.Kind   `json:"kind"`
	Records       int            `json:"records"`
	Dimensions    int            `json:"dimensions"`
	Metric        vector.Metric  `json:"metric"`
	Backend       vector.Backend `json:"backend"`
	Duration      time.Duration  `json:"duration"`
	EmbedDuration time.Duration  `json:"embed_duration"`
}

// RebuildIndex replaces the index for kind with one built from every
// catalog record of that kind. Running it twice yields the same index.
// An empty catalog is EmptyInput and leaves existing files untouched.
//
// The writer lock is held from the catalog read until the pair is
// persisted. An ingest that lands meanwhile waits and then appends to the
// rebuilt index instead of being overwritten by it.
func (e *Engine) RebuildIndex(ctx context.Context, kind catalog.Kind, progress ProgressFunc) (*BuildResult, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	start := time.Now()
	cfg := e.indexConfig(kind)

	release, err := vector.LockDir(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	progress(Progress{Kind: kind, Stage: StageLoading})
	records, err := e.catalog.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, rmerrors.Newf(rmerrors.ErrCodeEmptyInput, "catalog has no %s records to index", kind).
			WithSuggestion("Add records with 'resumatch ingest' or 'resumatch import jobs' first")
	}

	texts := make([]string, len(records))
	ids := make([]int64, len(records))
	for i, r := range records {
		texts[i] = r.EmbeddingText()
		ids[i] = r.RecordID()
	}

	embedStart := time.Now()
	vectors, err := e.embedAll(ctx, kind, texts, progress)
	if err != nil {
		return nil, err
	}
	embedDuration := time.Since(embedStart)

	progress(Progress{Kind: kind, Stage: StageIndexing, Total: len(vectors)})
	for i, v := range vectors {
		vectors[i] = vector.Prepare(cfg.Metric, v)
	}

	idx, err := vector.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(ctx, vectors, ids); err != nil {
		return nil, err
	}
	if err := idx.Persist(); err != nil {
		return nil, err
	}
	e.setIndex(kind, idx)

	progress(Progress{Kind: kind, Stage: StageComplete, Current: len(vectors), Total: len(vectors)})

	res := &BuildResult{
		Kind:          kind,
		Records:       len(records),
		Dimensions:    cfg.Dimensions,
		Metric:        cfg.Metric,
		Backend:       cfg.Backend,
		Duration:      time.Since(start),
		EmbedDuration: embedDuration,
	}
	slog.Info("index_rebuilt",
		slog.String("kind", string(kind)),
		slog.Int("records", res.Records),
		slog.Int("dimensions", res.Dimensions),
		slog.String("metric", string(res.Metric)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// embedAll embeds texts in batches on a bounded worker pool. Each batch
// writes into its own slice range, so output order matches input order.
func (e *Engine) embedAll(ctx context.Context, kind catalog.Kind, texts []string, progress ProgressFunc) ([][]float32, error) {
	out := make([][]float32, len(texts))
	total := len(texts)
	batch := e.config.BatchSize

	var done atomic.Int64
	progress(Progress{Kind: kind, Stage: StageEmbedding, Total: total})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for start := 0; start < total; start += batch {
		end := min(start+batch, total)
		g.Go(func() error {
			vecs, err := e.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return rmerrors.Newf(rmerrors.ErrCodeEmbeddingFailed,
					"embedder returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			progress(Progress{Kind: kind, Stage: StageEmbedding, Current: int(done.Add(int64(end - start))), Total: total})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed %s records: %w", kind, err)
	}
	return out, nil
}
