package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/vector"
)

// IngestResult reports storage and indexing separately. A stored record
// with Indexed false is still retrievable by id and will be indexed by the
// next rebuild.
type IngestResult struct {
	ID      int64        `json:"id"`
	Kind    catalog.Kind `json:"kind"`
	Indexed bool         `json:"indexed"`
	// IndexErr is why the record is not yet searchable.
	IndexErr error `json:"-"`
}

// IngestOne stores rec and appends it to the live index of its kind.
// The returned error covers only the catalog insert; indexing failures
// are reported through IngestResult.IndexErr.
func (e *Engine) IngestOne(ctx context.Context, rec catalog.Record) (IngestResult, error) {
	id, err := e.catalog.Insert(ctx, rec)
	if err != nil {
		return IngestResult{}, err
	}
	res := IngestResult{ID: id, Kind: rec.Kind()}

	if err := e.indexOne(ctx, rec); err != nil {
		res.IndexErr = err
		slog.Warn("ingest_index_failed",
			slog.String("kind", string(rec.Kind())),
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		return res, nil
	}
	res.Indexed = true
	slog.Info("record_ingested", slog.String("kind", string(rec.Kind())), slog.Int64("id", id))
	return res, nil
}

func (e *Engine) indexOne(ctx context.Context, rec catalog.Record) error {
	kind := rec.Kind()
	cfg := e.indexConfig(kind)
	if !vector.Exists(cfg) {
		return rmerrors.Newf(rmerrors.ErrCodeIndexNotReady, "no %s index has been built", kind).
			WithSuggestion("Run 'resumatch rebuild " + IndexName(kind) + "' to index all records")
	}

	vec, err := e.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		return err
	}
	vec = vector.Prepare(cfg.Metric, vec)

	release, err := vector.LockDir(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	// Reload under the lock so adds from other processes are kept.
	idx, err := vector.Load(cfg)
	if err != nil {
		return err
	}
	// A rebuild that read the catalog after our insert already has the row.
	if slices.Contains(idx.IDs(), rec.RecordID()) {
		e.setIndex(kind, idx)
		return nil
	}
	if _, err := idx.Add(ctx, vec, rec.RecordID()); err != nil {
		return err
	}
	if err := idx.Persist(); err != nil {
		return err
	}
	e.setIndex(kind, idx)
	return nil
}
