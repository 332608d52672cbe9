package vector

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"sort"

	"github.com/coder/hnsw"
)

// scored is a position with its metric value.
type scored struct {
	pos   int
	score float32
}

// backend stores vectors by position. Callers validate dimensions and hold
// the Index lock.
type backend interface {
	add(pos int, vec []float32)
	search(query []float32, k int) []scored
	len() int
	encode(w io.Writer) error
	decode(r *bufio.Reader, count int) error
}

func newBackend(cfg Config) backend {
	if cfg.Backend == BackendHNSW {
		return newHNSWBackend(cfg)
	}
	return &flatBackend{metric: cfg.Metric, dims: cfg.Dimensions}
}

// topK sorts rows best-first and truncates to k.
func topK(m Metric, rows []scored, k int) []scored {
	sort.Slice(rows, func(i, j int) bool { return better(m, rows[i], rows[j]) })
	if k < len(rows) {
		rows = rows[:k]
	}
	return rows
}

// flatBackend is an exact scan over a contiguous row-major slice.
type flatBackend struct {
	metric Metric
	dims   int
	data   []float32
}

func (f *flatBackend) add(_ int, vec []float32) {
	f.data = append(f.data, vec...)
}

func (f *flatBackend) row(pos int) []float32 {
	return f.data[pos*f.dims : (pos+1)*f.dims]
}

func (f *flatBackend) search(query []float32, k int) []scored {
	n := f.len()
	rows := make([]scored, n)
	for pos := 0; pos < n; pos++ {
		rows[pos] = scored{pos: pos, score: score(f.metric, query, f.row(pos))}
	}
	return topK(f.metric, rows, k)
}

func (f *flatBackend) len() int {
	if f.dims == 0 {
		return 0
	}
	return len(f.data) / f.dims
}

func (f *flatBackend) encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(f.data)
}

func (f *flatBackend) decode(r *bufio.Reader, count int) error {
	var data []float32
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return err
	}
	if len(data) != count*f.dims {
		return fmt.Errorf("vector payload has %d values, want %d", len(data), count*f.dims)
	}
	f.data = data
	return nil
}

// hnswBackend wraps a coder/hnsw graph keyed by position. Scores are
// recomputed exactly from the stored vectors so both backends report the
// same values for the same hit.
type hnswBackend struct {
	metric Metric
	graph  *hnsw.Graph[uint64]
}

func newHNSWBackend(cfg Config) *hnswBackend {
	g := hnsw.NewGraph[uint64]()
	if cfg.Metric == MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	if cfg.M > 0 {
		g.M = cfg.M
	}
	if cfg.EfSearch > 0 {
		g.EfSearch = cfg.EfSearch
	}
	g.Ml = 0.25
	return &hnswBackend{metric: cfg.Metric, graph: g}
}

func (h *hnswBackend) add(pos int, vec []float32) {
	h.graph.Add(hnsw.MakeNode(uint64(pos), vec))
}

func (h *hnswBackend) search(query []float32, k int) []scored {
	n := h.graph.Len()
	if n == 0 {
		return nil
	}

	// Asking for the whole index is answered exhaustively so every row is
	// returned exactly once regardless of graph connectivity.
	if k >= n {
		rows := make([]scored, 0, n)
		for pos := 0; pos < n; pos++ {
			if vec, ok := h.graph.Lookup(uint64(pos)); ok {
				rows = append(rows, scored{pos: pos, score: score(h.metric, query, vec)})
			}
		}
		return topK(h.metric, rows, k)
	}

	nodes := h.graph.Search(query, k)
	rows := make([]scored, 0, len(nodes))
	for _, node := range nodes {
		rows = append(rows, scored{pos: int(node.Key), score: score(h.metric, query, node.Value)})
	}
	return topK(h.metric, rows, k)
}

func (h *hnswBackend) len() int {
	return h.graph.Len()
}

func (h *hnswBackend) encode(w io.Writer) error {
	return h.graph.Export(w)
}

func (h *hnswBackend) decode(r *bufio.Reader, count int) error {
	if err := h.graph.Import(r); err != nil {
		return err
	}
	if h.graph.Len() != count {
		return fmt.Errorf("graph has %d nodes, want %d", h.graph.Len(), count)
	}
	return nil
}
