package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// StaticEmbedder is an in-process feature-hashing embedder. It needs no
// network or model download, and is the default for tests and offline use.
// Word unigrams and character trigrams of each word are hashed into a
// fixed number of buckets and the result is L2-normalized.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// englishStopWords are dropped before hashing so filler words in resumes
// and postings do not dominate the vector.
var englishStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"with": true, "we": true, "you": true, "our": true, "your": true,
	"will": true, "that": true, "this": true,
}

const (
	wordWeight    = 0.7
	trigramWeight = 0.3
)

// wordRegex keeps letters, digits and the joiners used in skill names
// (c++, c#, node.js).
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+(?:[+#.][\p{L}\p{N}+#]*)*`)

// NewStaticEmbedder creates a static embedder with dims buckets.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	vector := make([]float32, e.dims)
	if isBlank(text) {
		return vector, nil
	}

	for _, word := range words(text) {
		vector[hashToIndex("w:"+word, e.dims)] += wordWeight
		for _, tri := range trigrams(word) {
			vector[hashToIndex("t:"+tri, e.dims)] += trigramWeight
		}
	}

	return normalizeVector(vector), nil
}

// EmbedBatch embeds each text independently, so batch and single results
// are identical.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

// words lowercases text and returns its non-stop-word tokens.
func words(text string) []string {
	raw := wordRegex.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, w := range raw {
		w = strings.TrimRight(w, ".")
		if w == "" || englishStopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// trigrams returns the character trigrams of a word padded with boundary
// markers, so "go" still yields "^go" and "go$".
func trigrams(word string) []string {
	runes := []rune("^" + word + "$")
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// hashToIndex uses FNV-64 to map a feature to a bucket.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dims)
}

// Available reports whether the embedder has not been closed.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
