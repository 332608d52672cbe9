package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// Index is a similarity index paired with its identifier array.
// Searches share a read lock; Build and Add take the write lock so the
// vector rows and ids never diverge.
type Index struct {
	mu  sync.RWMutex
	cfg Config

	be  backend
	ids []int64

	// generation identifies the persisted pair this index was loaded from
	// or last written as.
	generation string
	// loadedAt is the mtime of the ids file when it was last read or written.
	loadedAt time.Time
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, rmerrors.Newf(rmerrors.ErrCodeInvalidInput, "index dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	if _, err := ParseMetric(string(cfg.Metric)); err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, err.Error(), nil)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendFlat
	}
	if _, err := ParseBackend(string(cfg.Backend)); err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, err.Error(), nil)
	}
	if cfg.Name == "" {
		cfg.Name = "index"
	}
	return &Index{cfg: cfg, be: newBackend(cfg)}, nil
}

// Config returns the index configuration.
func (x *Index) Config() Config {
	return x.cfg
}

// Dimensions returns the fixed vector dimension.
func (x *Index) Dimensions() int {
	return x.cfg.Dimensions
}

// Metric returns the index metric.
func (x *Index) Metric() Metric {
	return x.cfg.Metric
}

// Count returns the number of rows.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// IDAt returns the catalog id at position pos.
func (x *Index) IDAt(pos int) (int64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if pos < 0 || pos >= len(x.ids) {
		return 0, false
	}
	return x.ids[pos], true
}

// IDs returns a copy of the identifier array.
func (x *Index) IDs() []int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]int64, len(x.ids))
	copy(out, x.ids)
	return out
}

// Stats describes the index.
func (x *Index) Stats() Stats {
	n := x.Count()
	return Stats{
		Name:       x.cfg.Name,
		Count:      n,
		Dimensions: x.cfg.Dimensions,
		Metric:     x.cfg.Metric,
		Backend:    x.cfg.Backend,
		Ready:      n > 0,
	}
}

func (x *Index) checkDims(v []float32) error {
	if len(v) != x.cfg.Dimensions {
		return rmerrors.Newf(rmerrors.ErrCodeDimensionMismatch,
			"vector has %d dimensions, index expects %d", len(v), x.cfg.Dimensions).
			WithSuggestion("Rebuild the index after changing the embedding model")
	}
	return nil
}

// Build replaces the index content with vectors and their ids. Vectors must
// already be prepared for the index metric (see Prepare). The new structure
// is built off-lock and swapped in, so searches see either the old or the
// new content.
func (x *Index) Build(ctx context.Context, vectors [][]float32, ids []int64) error {
	if len(vectors) == 0 {
		return rmerrors.New(rmerrors.ErrCodeEmptyInput, "no vectors to index", nil)
	}
	if len(vectors) != len(ids) {
		return rmerrors.Newf(rmerrors.ErrCodeInvalidInput,
			"vectors and ids length mismatch: %d vs %d", len(vectors), len(ids))
	}
	for _, v := range vectors {
		if err := x.checkDims(v); err != nil {
			return err
		}
	}

	be := newBackend(x.cfg)
	for pos, v := range vectors {
		if pos%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		be.add(pos, v)
	}
	newIDs := make([]int64, len(ids))
	copy(newIDs, ids)

	x.mu.Lock()
	x.be = be
	x.ids = newIDs
	x.mu.Unlock()
	return nil
}

// Add appends one prepared vector and returns its position.
func (x *Index) Add(ctx context.Context, vec []float32, id int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := x.checkDims(vec); err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	pos := len(x.ids)
	x.be.add(pos, vec)
	x.ids = append(x.ids, id)
	return pos, nil
}

// Search returns up to k hits ordered best-first by the index metric.
// The query must already be prepared for the index metric.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := x.checkDims(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.ids) == 0 {
		return []Hit{}, nil
	}
	rows := x.be.search(query, k)
	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		if r.pos < 0 || r.pos >= len(x.ids) {
			continue
		}
		hits = append(hits, Hit{Position: r.pos, ID: x.ids[r.pos], Score: r.score})
	}
	return hits, nil
}

// String implements fmt.Stringer for log output.
func (x *Index) String() string {
	return fmt.Sprintf("%s(%s/%s, %d x %d)", x.cfg.Name, x.cfg.Backend, x.cfg.Metric, x.Count(), x.cfg.Dimensions)
}
