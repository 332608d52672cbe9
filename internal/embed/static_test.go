package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	// Given: two independent embedders
	ctx := context.Background()
	a := NewStaticEmbedder(128)
	b := NewStaticEmbedder(128)
	text := "Senior Go engineer, distributed systems, Kubernetes"

	// When: embedding the same text
	va, err := a.Embed(ctx, text)
	require.NoError(t, err)
	vb, err := b.Embed(ctx, text)
	require.NoError(t, err)

	// Then: the vectors are bit-identical and unit length
	assert.Equal(t, va, vb)
	assert.Len(t, va, 128)
	assert.InDelta(t, 1.0, norm(va), 1e-5)
}

func TestStaticEmbedder_BatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(DefaultDimensions)
	texts := []string{"build software", "  ", "data scientist, python; pytorch", "C++ and node.js"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "text %d", i)
	}
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(64)

	for _, text := range []string{"", "   ", "\n\t"} {
		v, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, v, 64)
		assert.Zero(t, norm(v))
	}
}

func TestStaticEmbedder_SimilarTextIsCloser(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(DefaultDimensions)

	query, _ := e.Embed(ctx, "python machine learning engineer")
	near, _ := e.Embed(ctx, "Machine learning engineer with Python experience")
	far, _ := e.Embed(ctx, "Pastry chef, bakery, croissants")

	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestStaticEmbedder_CaseAndSpacingInsensitive(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder(DefaultDimensions)

	a, _ := e.Embed(ctx, "Engineer\nbuild software")
	b, _ := e.Embed(ctx, "engineer \nbuild software")

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder(8)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestWords_DropsStopWordsKeepsSkillJoiners(t *testing.T) {
	got := words("The C++ and Node.js developer, with Go.")
	assert.Equal(t, []string{"c++", "node.js", "developer", "go"}, got)
}

func TestTrigrams_ShortWord(t *testing.T) {
	assert.Equal(t, []string{"^go", "go$"}, trigrams("go"))
	assert.Equal(t, []string{"^a$"}, trigrams("a"))
}

func TestSplitBatches(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}
	batches := splitBatches(texts, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"e"}, batches[2])
	assert.Empty(t, splitBatches(nil, 2))
}
