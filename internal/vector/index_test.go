package vector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

func unit(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func newTestIndex(t *testing.T, backend Backend, metric Metric) *Index {
	t.Helper()
	cfg := DefaultConfig(4)
	cfg.Backend = backend
	cfg.Metric = metric
	cfg.Dir = t.TempDir()
	cfg.Name = "jobs"
	x, err := New(cfg)
	require.NoError(t, err)
	return x
}

func TestNormalize_UnitLengthAndZero(t *testing.T) {
	// Given: a non-unit vector and a zero vector
	v := Normalize([]float32{3, 4})

	// Then: the result has unit length and the input is untouched
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

func TestPrepare_L2LeavesVectorUnchanged(t *testing.T) {
	in := []float32{3, 4}
	out := Prepare(MetricL2, in)
	assert.Equal(t, in, out)
	out[0] = 9
	assert.Equal(t, float32(3), in[0], "Prepare must copy")
}

func TestIndex_Build_EmptyInput(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)

	err := x.Build(context.Background(), nil, nil)

	assert.ErrorIs(t, err, rmerrors.ErrEmptyInput)
}

func TestIndex_Build_DimensionMismatch(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)

	err := x.Build(context.Background(), [][]float32{unit(4, 0), {1, 0}}, []int64{1, 2})

	assert.ErrorIs(t, err, rmerrors.ErrDimensionMismatch)
	assert.Equal(t, 0, x.Count(), "failed build must not change content")
}

func TestIndex_Build_LengthMismatch(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)

	err := x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1, 2})

	require.Error(t, err)
	assert.Equal(t, rmerrors.ErrCodeInvalidInput, rmerrors.GetCode(err))
}

func TestIndex_Search_Empty(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)

	hits, err := x.Search(context.Background(), unit(4, 0), 5)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Search_KLargerThanCountReturnsAllOnce(t *testing.T) {
	for _, backend := range []Backend{BackendFlat, BackendHNSW} {
		t.Run(string(backend), func(t *testing.T) {
			// Given: three rows
			x := newTestIndex(t, backend, MetricCosine)
			vecs := [][]float32{unit(4, 0), unit(4, 1), Normalize([]float32{1, 1, 0, 0})}
			require.NoError(t, x.Build(context.Background(), vecs, []int64{10, 20, 30}))

			// When: asking for more than exist
			hits, err := x.Search(context.Background(), unit(4, 0), 10)

			// Then: every id appears exactly once, best first
			require.NoError(t, err)
			require.Len(t, hits, 3)
			assert.Equal(t, int64(10), hits[0].ID)
			assert.Equal(t, int64(30), hits[1].ID)
			assert.Equal(t, int64(20), hits[2].ID)
			assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
			seen := map[int64]bool{}
			for _, h := range hits {
				assert.False(t, seen[h.ID])
				seen[h.ID] = true
			}
		})
	}
}

func TestIndex_Search_L2LowerIsBetter(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricL2)
	vecs := [][]float32{{0, 0, 0, 0}, {1, 0, 0, 0}, {5, 0, 0, 0}}
	require.NoError(t, x.Build(context.Background(), vecs, []int64{1, 2, 3}))

	hits, err := x.Search(context.Background(), []float32{1, 0, 0, 0}, 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].ID)
	assert.Equal(t, float32(0), hits[0].Score)
	assert.Equal(t, int64(1), hits[1].ID)
	assert.Equal(t, float32(1), hits[1].Score)
}

func TestIndex_Search_TiesBrokenByPosition(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	vecs := [][]float32{unit(4, 1), unit(4, 0), unit(4, 0)}
	require.NoError(t, x.Build(context.Background(), vecs, []int64{7, 8, 9}))

	hits, err := x.Search(context.Background(), unit(4, 0), 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
}

func TestIndex_Search_NonPositiveK(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))

	hits, err := x.Search(context.Background(), unit(4, 0), 0)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Search_QueryDimensionMismatch(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))

	_, err := x.Search(context.Background(), []float32{1, 0}, 1)

	assert.ErrorIs(t, err, rmerrors.ErrDimensionMismatch)
}

func TestIndex_Add_AppendsInOrder(t *testing.T) {
	// Given: a built index
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{100}))

	// When: adding a row
	pos, err := x.Add(context.Background(), unit(4, 3), 200)

	// Then: it lands at the end and is searchable
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 2, x.Count())
	id, ok := x.IDAt(1)
	assert.True(t, ok)
	assert.Equal(t, int64(200), id)

	hits, err := x.Search(context.Background(), unit(4, 3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(200), hits[0].ID)
}

func TestIndex_Add_KeepsRankingOfExistingRows(t *testing.T) {
	query := Normalize([]float32{1, 2, 3, 4})
	tests := []struct {
		metric Metric
		far    []float32
	}{
		{MetricCosine, Normalize([]float32{-1, -2, -3, -4})},
		{MetricL2, []float32{100, 100, 100, 100}},
	}
	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			// Given: a flat index of twenty rows and their ranking for a query
			x := newTestIndex(t, BackendFlat, tt.metric)
			var vecs [][]float32
			var ids []int64
			for i := range 20 {
				f := float32(i)
				vecs = append(vecs, Normalize([]float32{1, f * 0.1, f * f * 0.01, -f * 0.05}))
				ids = append(ids, int64(i+1))
			}
			ctx := context.Background()
			require.NoError(t, x.Build(ctx, vecs, ids))
			before, err := x.Search(ctx, query, len(vecs))
			require.NoError(t, err)

			// When: one far-away row is added
			_, err = x.Add(ctx, tt.far, 999)
			require.NoError(t, err)

			// Then: the old rows keep their order and scores, the new row is last
			after, err := x.Search(ctx, query, len(vecs)+1)
			require.NoError(t, err)
			require.Len(t, after, len(vecs)+1)
			assert.Equal(t, int64(999), after[len(after)-1].ID)
			assert.Equal(t, before, after[:len(vecs)])
		})
	}
}

func TestIndex_Add_DimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)

	_, err := x.Add(context.Background(), []float32{1}, 1)

	assert.ErrorIs(t, err, rmerrors.ErrDimensionMismatch)
	assert.Equal(t, 0, x.Count())
}

func TestIndex_PersistLoad_RoundTrip(t *testing.T) {
	for _, backend := range []Backend{BackendFlat, BackendHNSW} {
		t.Run(string(backend), func(t *testing.T) {
			// Given: a persisted index
			x := newTestIndex(t, backend, MetricCosine)
			vecs := [][]float32{unit(4, 0), unit(4, 1), unit(4, 2)}
			require.NoError(t, x.Build(context.Background(), vecs, []int64{5, 6, 7}))
			require.NoError(t, x.Persist())
			assert.True(t, Exists(x.Config()))

			// When: loading it back
			y, err := Load(x.Config())

			// Then: ids and search results match
			require.NoError(t, err)
			assert.Equal(t, x.IDs(), y.IDs())
			assert.Equal(t, backend, y.Config().Backend)
			hits, err := y.Search(context.Background(), unit(4, 1), 1)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, int64(6), hits[0].ID)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())
	require.NoError(t, os.Remove(x.Config().VectorsPath()))

	_, err := Load(x.Config())

	assert.ErrorIs(t, err, rmerrors.ErrIndexNotFound)
}

func TestLoad_TruncatedVectors(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0), unit(4, 1)}, []int64{1, 2}))
	require.NoError(t, x.Persist())

	data, err := os.ReadFile(x.Config().VectorsPath())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(x.Config().VectorsPath(), data[:len(data)-8], 0644))

	_, err = Load(x.Config())

	assert.ErrorIs(t, err, rmerrors.ErrIndexNotFound)
}

func TestLoad_MismatchedPair(t *testing.T) {
	// Given: ids from one persist and vectors from another
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())
	oldIDs, err := os.ReadFile(x.Config().IDsPath())
	require.NoError(t, err)

	_, err = x.Add(context.Background(), unit(4, 1), 2)
	require.NoError(t, err)
	require.NoError(t, x.Persist())
	require.NoError(t, os.WriteFile(x.Config().IDsPath(), oldIDs, 0644))

	// When/Then: the pair is rejected
	_, err = Load(x.Config())
	assert.ErrorIs(t, err, rmerrors.ErrIndexNotFound)
}

func TestLoad_RereadsWhenPersistLandsMidLoad(t *testing.T) {
	// Given: a persisted index and a writer that persists again between
	// the ids read and the vectors read of the next load
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())

	calls := 0
	beforeVectorsRead = func() {
		calls++
		if calls == 1 {
			_, err := x.Add(context.Background(), unit(4, 1), 2)
			require.NoError(t, err)
			require.NoError(t, x.Persist())
		}
	}
	t.Cleanup(func() { beforeVectorsRead = nil })

	// When: loading
	got, err := Load(x.Config())

	// Then: the second read sees the new generation whole
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{1, 2}, got.IDs())
}

func TestLoad_DimensionMismatch(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())

	cfg := x.Config()
	cfg.Dimensions = 8
	_, err := Load(cfg)

	assert.ErrorIs(t, err, rmerrors.ErrDimensionMismatch)
}

func TestLoad_MetricMismatch(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())

	cfg := x.Config()
	cfg.Metric = MetricL2
	_, err := Load(cfg)

	assert.ErrorIs(t, err, rmerrors.ErrIndexNotFound)
}

func TestIndex_Stale(t *testing.T) {
	// Given: two handles on the same files
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())
	y, err := Load(x.Config())
	require.NoError(t, err)
	assert.False(t, y.Stale())

	// When: the other handle persists later
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, x.Persist())
	require.NoError(t, os.Chtimes(x.Config().IDsPath(), future, future))

	// Then: the first sees its copy as stale
	assert.True(t, y.Stale())
}

func TestIndex_Lock_Exclusive(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)

	release, err := x.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = LockDir(ctx, x.Config())
	assert.ErrorIs(t, err, &rmerrors.MatchError{Code: rmerrors.ErrCodeIndexLocked})

	release()
	again, err := x.Lock(context.Background())
	require.NoError(t, err)
	again()
}

func TestParseMetricAndBackend(t *testing.T) {
	m, err := ParseMetric(" Cosine ")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)
	_, err = ParseMetric("dot")
	assert.Error(t, err)

	b, err := ParseBackend("HNSW")
	require.NoError(t, err)
	assert.Equal(t, BackendHNSW, b)
	_, err = ParseBackend("faiss")
	assert.Error(t, err)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{Dimensions: 0})
	assert.Error(t, err)
	_, err = New(Config{Dimensions: 4, Metric: "dot"})
	assert.Error(t, err)
}

func TestRemove_DeletesPairAndToleratesMissing(t *testing.T) {
	x := newTestIndex(t, BackendFlat, MetricCosine)
	require.NoError(t, x.Build(context.Background(), [][]float32{unit(4, 0)}, []int64{1}))
	require.NoError(t, x.Persist())
	require.True(t, Exists(x.Config()))

	require.NoError(t, Remove(x.Config()))
	assert.False(t, Exists(x.Config()))
	assert.NoFileExists(t, x.Config().VectorsPath())

	assert.NoError(t, Remove(x.Config()))
}
