// Package vector implements the similarity index over catalog embeddings.
//
// An Index pairs a vector structure with an identifier array: position i in
// the vectors corresponds to catalog id ids[i]. Both halves are persisted
// together as <dir>/<name>.vectors and <dir>/<name>.ids and are only ever
// loaded as a consistent pair.
package vector

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Metric is the similarity metric of an index. It is fixed per index and
// must match the normalization applied to every inserted vector.
type Metric string

const (
	// MetricCosine ranks unit-normalized vectors by inner product.
	// Scores are cosine similarities in [-1, 1]; higher is better.
	MetricCosine Metric = "cosine"

	// MetricL2 ranks raw vectors by squared Euclidean distance.
	// Scores are distances; lower is better.
	MetricL2 Metric = "l2"
)

// ParseMetric parses a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricCosine:
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	default:
		return "", fmt.Errorf("unknown metric %q (valid: cosine, l2)", s)
	}
}

// HigherIsBetter reports the score direction of m.
func (m Metric) HigherIsBetter() bool {
	return m == MetricCosine
}

// Backend selects the search structure.
type Backend string

const (
	// BackendFlat is an exact brute-force scan.
	BackendFlat Backend = "flat"
	// BackendHNSW is an approximate HNSW graph (github.com/coder/hnsw).
	BackendHNSW Backend = "hnsw"
)

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendFlat:
		return BackendFlat, nil
	case BackendHNSW:
		return BackendHNSW, nil
	default:
		return "", fmt.Errorf("unknown index backend %q (valid: flat, hnsw)", s)
	}
}

// Config configures an Index.
type Config struct {
	// Dimensions is fixed at creation; every vector is validated against it.
	Dimensions int
	Metric     Metric
	Backend    Backend

	// Dir and Name locate the persisted pair: Dir/Name.vectors, Dir/Name.ids.
	Dir  string
	Name string

	// HNSW parameters; ignored by the flat backend.
	M        int
	EfSearch int
}

// DefaultConfig returns a flat cosine index configuration.
func DefaultConfig(dims int) Config {
	return Config{
		Dimensions: dims,
		Metric:     MetricCosine,
		Backend:    BackendFlat,
		M:          16,
		EfSearch:   64,
	}
}

// VectorsPath returns the vector structure file.
func (c Config) VectorsPath() string {
	return filepath.Join(c.Dir, c.Name+".vectors")
}

// IDsPath returns the identifier array file.
func (c Config) IDsPath() string {
	return filepath.Join(c.Dir, c.Name+".ids")
}

// LockPath returns the cross-process writer lock file.
func (c Config) LockPath() string {
	return filepath.Join(c.Dir, c.Name+".lock")
}

// Hit is one search result.
type Hit struct {
	// Position is the row in the index.
	Position int
	// ID is the catalog identifier stored at Position.
	ID int64
	// Score is the raw metric value (see Metric).
	Score float32
}

// Stats describes an index for status output.
type Stats struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Dimensions int     `json:"dimensions"`
	Metric     Metric  `json:"metric"`
	Backend    Backend `json:"backend"`
	Ready      bool    `json:"ready"`
}
