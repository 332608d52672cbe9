// Package embed turns resume and job text into fixed-length vectors.
//
// Every provider satisfies the same contract: output is deterministic for a
// given input, EmbedBatch(ts)[i] equals Embed(ts[i]), and empty or
// whitespace-only text yields the all-zero vector of the provider's
// dimension instead of an error.
package embed

import (
	"context"
	"math"
	"strings"
	"time"
)

const (
	// MaxBatchSize caps a single provider request.
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout bounds one provider request.
	DefaultTimeout = 60 * time.Second

	// DefaultDimensions matches all-MiniLM-L6-v2, the model the catalog was
	// first indexed with.
	DefaultDimensions = 384
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// isBlank reports whether text produces the degenerate zero vector.
func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// normalizeVector scales v to unit length in place. Zero vectors are left
// unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
	return v
}

// splitBatches chunks texts into groups of at most size.
func splitBatches(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}

	batches := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}

// embedNonBlank sends only non-blank texts to fn and fills blank positions
// with zero vectors, so remote providers agree with Embed on empty input.
func embedNonBlank(texts []string, dims int, fn func([]string) ([][]float32, error)) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var positions []int
	var pending []string
	for i, t := range texts {
		if isBlank(t) {
			results[i] = make([]float32, dims)
			continue
		}
		positions = append(positions, i)
		pending = append(pending, t)
	}
	if len(pending) == 0 {
		return results, nil
	}

	vecs, err := fn(pending)
	if err != nil {
		return nil, err
	}
	for j, pos := range positions {
		results[pos] = vecs[j]
	}
	return results, nil
}
