package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), tt.latency.String())
	}
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	buf := NewCircularBuffer[int](3)
	for i := 1; i <= 5; i++ {
		buf.Add(i)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []int{3, 4, 5}, buf.Items())

	buf.Clear()
	assert.Empty(t, buf.Items())
}

func TestExtractTerms(t *testing.T) {
	terms := ExtractTerms("Senior Go engineer, Kubernetes; senior AWS")

	assert.Equal(t, []string{"senior", "engineer", "kubernetes", "aws"}, terms)
	assert.Empty(t, ExtractTerms("a b C++"))
}

func TestQueryMetrics_Record(t *testing.T) {
	// Given: an in-memory collector
	m := New(nil, Config{})

	// When: recording matches of both kinds, one with no results
	m.Record(MatchEvent{Kind: "job", Query: "python developer", ResultCount: 3, Latency: 5 * time.Millisecond})
	m.Record(MatchEvent{Kind: "job", Query: "Python   Developer", ResultCount: 2, Latency: 20 * time.Millisecond})
	m.Record(MatchEvent{Kind: "candidate", Query: "underwater welder", ResultCount: 0, Latency: 200 * time.Millisecond})

	// Then: the snapshot reflects all three
	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalMatches)
	assert.Equal(t, int64(2), snap.KindCounts["job"])
	assert.Equal(t, int64(1), snap.KindCounts["candidate"])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.InDelta(t, 33.3, snap.ZeroResultPercentage(), 0.1)
	require.Len(t, snap.ZeroResultQueries, 1)
	assert.Equal(t, "underwater welder", snap.ZeroResultQueries[0].Query)
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
	assert.Equal(t, int64(2), snap.UniqueQueryCount)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP500])

	// And: repeated terms lead the ranking
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, int64(2), snap.TopTerms[0].Count)
}

type fakeStore struct {
	kinds     map[string]int64
	latencies map[LatencyBucket]int64
	terms     map[string]int64
	zero      []ZeroResult
	failNext  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kinds:     make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
		terms:     make(map[string]int64),
	}
}

func (f *fakeStore) SaveKindCounts(_ string, counts map[string]int64) error {
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	for k, v := range counts {
		f.kinds[k] += v
	}
	return nil
}

func (f *fakeStore) SaveLatencyCounts(_ string, counts map[LatencyBucket]int64) error {
	for k, v := range counts {
		f.latencies[k] += v
	}
	return nil
}

func (f *fakeStore) UpsertTermCounts(terms map[string]int64) error {
	for k, v := range terms {
		f.terms[k] += v
	}
	return nil
}

func (f *fakeStore) AddZeroResults(queries []ZeroResult) error {
	f.zero = append(f.zero, queries...)
	return nil
}

func TestQueryMetrics_FlushWritesIncrements(t *testing.T) {
	// Given: a collector with a store and one recorded match
	store := newFakeStore()
	m := New(store, Config{})
	m.Record(MatchEvent{Kind: "job", Query: "nurse", ResultCount: 0})

	// When: flushing twice with another match in between
	require.NoError(t, m.Flush())
	m.Record(MatchEvent{Kind: "job", Query: "nurse practitioner", ResultCount: 4})
	require.NoError(t, m.Flush())

	// Then: the store holds each match once
	assert.Equal(t, int64(2), store.kinds["job"])
	assert.Equal(t, int64(2), store.terms["nurse"])
	assert.Equal(t, int64(1), store.terms["practitioner"])
	require.Len(t, store.zero, 1)
	assert.Equal(t, "nurse", store.zero[0].Query)
}

func TestQueryMetrics_FlushRetriesAfterError(t *testing.T) {
	store := newFakeStore()
	store.failNext = true
	m := New(store, Config{})
	m.Record(MatchEvent{Kind: "candidate", Query: "welder"})

	require.Error(t, m.Flush())
	require.NoError(t, m.Flush())

	assert.Equal(t, int64(1), store.kinds["candidate"])
}

func TestQueryMetrics_CloseFlushesAndStopsRecording(t *testing.T) {
	store := newFakeStore()
	m := New(store, Config{FlushInterval: time.Hour})
	m.Record(MatchEvent{Kind: "job", Query: "chef"})

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	m.Record(MatchEvent{Kind: "job", Query: "baker"})

	assert.Equal(t, int64(1), store.kinds["job"])
	assert.Equal(t, int64(1), m.Snapshot().TotalMatches)
}
