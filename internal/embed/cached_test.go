package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts texts sent to the provider.
type countingEmbedder struct {
	*StaticEmbedder
	texts atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.texts.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsProvider(t *testing.T) {
	// Given: a cached embedder over a counting provider
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: embedding the same text twice
	first, err := c.Embed(ctx, "golang developer")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "golang developer")
	require.NoError(t, err)

	// Then: the provider saw it once and the results agree
	assert.Equal(t, int64(1), inner.texts.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_BatchOnlySendsMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)

	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int64(3), inner.texts.Load())

	direct, _ := inner.StaticEmbedder.Embed(ctx, "b")
	assert.Equal(t, direct, out[1])
}

func TestCachedEmbedder_ReturnsCopies(t *testing.T) {
	c := NewCachedEmbedder(NewStaticEmbedder(16), 4)
	ctx := context.Background()

	v1, _ := c.Embed(ctx, "mutate me")
	v1[0] = 999
	v2, _ := c.Embed(ctx, "mutate me")

	assert.NotEqual(t, float32(999), v2[0])
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder(16)
	c := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 16, c.Dimensions())
	assert.Equal(t, inner.ModelName(), c.ModelName())
	assert.Same(t, inner, c.Inner())
	require.NoError(t, c.Close())
	assert.False(t, c.Available(context.Background()))
}
