// Package telemetry records how matching is used: queries per kind, common
// terms, queries that found nothing, and latency. Everything stays in the
// local catalog database.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyBuckets lists the buckets in ascending order.
var LatencyBuckets = []LatencyBucket{BucketP10, BucketP50, BucketP100, BucketP500, BucketP1000}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// MatchEvent is one completed match.
type MatchEvent struct {
	Kind        string
	Query       string
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// ZeroResult is a match that returned nothing.
type ZeroResult struct {
	Kind      string    `json:"kind"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, 0, b.size)
	start := (b.head - b.size + b.capacity) % b.capacity
	for i := range b.size {
		out = append(out, b.items[(start+i)%b.capacity])
	}
	return out
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear empties the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.items)
	b.head = 0
	b.size = 0
}

// ExtractTerms splits a query into lowercase words of three or more
// letters or digits, without repeats. "C++" and "Go" are too short to count.
func ExtractTerms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var terms []string
	for _, w := range words {
		if len([]rune(w)) >= 3 && !slices.Contains(terms, w) {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was matched on.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a copy of the metrics gathered since the collector started.
type Snapshot struct {
	KindCounts          map[string]int64        `json:"kind_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []ZeroResult            `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalMatches        int64                   `json:"total_matches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of matches that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalMatches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalMatches) * 100
}

// Store persists metrics. Counts passed to the Save and Upsert methods are
// increments, not totals.
type Store interface {
	SaveKindCounts(date string, counts map[string]int64) error
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	UpsertTermCounts(terms map[string]int64) error
	AddZeroResults(queries []ZeroResult) error
}

// Config configures a QueryMetrics collector.
type Config struct {
	TopTermsCapacity      int           // terms tracked in memory (default 100)
	ZeroResultsCapacity   int           // zero-result queries kept in memory (default 100)
	RecentQueriesCapacity int           // query hashes kept for repeat detection (default 500)
	FlushInterval         time.Duration // 0 disables the background flush
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// QueryMetrics collects match telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	kindCounts       map[string]int64
	topTerms         *lru.Cache[string, int64]
	zeroResults      *CircularBuffer[ZeroResult]
	latencies        map[LatencyBucket]int64
	totalMatches     int64
	zeroResultCount  int64
	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64
	startTime        time.Time

	// Increments not yet written to the store.
	pendingKinds     map[string]int64
	pendingLatencies map[LatencyBucket]int64
	pendingTerms     map[string]int64
	pendingZero      []ZeroResult

	store  Store
	config Config
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// New creates a collector. A nil store keeps metrics in memory only.
func New(store Store, cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		kindCounts:       make(map[string]int64),
		topTerms:         topTerms,
		zeroResults:      NewCircularBuffer[ZeroResult](cfg.ZeroResultsCapacity),
		latencies:        make(map[LatencyBucket]int64),
		recentQueries:    recent,
		startTime:        time.Now(),
		pendingKinds:     make(map[string]int64),
		pendingLatencies: make(map[LatencyBucket]int64),
		pendingTerms:     make(map[string]int64),
		store:            store,
		config:           cfg,
		stopCh:           make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.ticker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.ticker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record adds one completed match.
func (m *QueryMetrics) Record(event MatchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalMatches++
	m.kindCounts[event.Kind]++
	m.pendingKinds[event.Kind]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.pendingTerms[term]++
	}

	if event.ResultCount == 0 {
		zr := ZeroResult{Kind: event.Kind, Query: event.Query, Timestamp: event.Timestamp}
		m.zeroResults.Add(zr)
		m.pendingZero = append(m.pendingZero, zr)
		m.zeroResultCount++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.pendingLatencies[bucket]++

	hash := hashQuery(event.Kind, event.Query)
	if _, seen := m.recentQueries.Get(hash); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(hash, struct{}{})
}

// hashQuery normalizes case and whitespace so trivial variants repeat.
func hashQuery(kind, query string) string {
	normalized := kind + "\x00" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the metrics gathered so far.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make(map[string]int64, len(m.kindCounts))
	for k, v := range m.kindCounts {
		kinds[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var terms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortStableFunc(terms, func(a, b TermCount) int {
		if a.Count != b.Count {
			return int(b.Count - a.Count)
		}
		return strings.Compare(a.Term, b.Term)
	})

	var repeatRate float64
	if m.totalMatches > 0 {
		repeatRate = float64(m.exactRepeatCount) / float64(m.totalMatches)
	}

	return &Snapshot{
		KindCounts:          kinds,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalMatches:        m.totalMatches,
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
		Since:               m.startTime,
	}
}

// Flush writes the increments recorded since the last flush. On error the
// increments are kept for the next attempt.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	kinds, latencies, terms, zero := m.pendingKinds, m.pendingLatencies, m.pendingTerms, m.pendingZero
	m.pendingKinds = make(map[string]int64)
	m.pendingLatencies = make(map[LatencyBucket]int64)
	m.pendingTerms = make(map[string]int64)
	m.pendingZero = nil
	m.mu.Unlock()

	if len(kinds) == 0 {
		return nil
	}

	today := time.Now().Format("2006-01-02")
	err := m.store.SaveKindCounts(today, kinds)
	if err == nil {
		err = m.store.SaveLatencyCounts(today, latencies)
	}
	if err == nil {
		err = m.store.UpsertTermCounts(terms)
	}
	if err == nil {
		err = m.store.AddZeroResults(zero)
	}
	if err != nil {
		m.restore(kinds, latencies, terms, zero)
	}
	return err
}

// restore puts unwritten increments back. A partial write can count some
// of them twice; the figures are advisory.
func (m *QueryMetrics) restore(kinds map[string]int64, latencies map[LatencyBucket]int64, terms map[string]int64, zero []ZeroResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range kinds {
		m.pendingKinds[k] += v
	}
	for k, v := range latencies {
		m.pendingLatencies[k] += v
	}
	for k, v := range terms {
		m.pendingTerms[k] += v
	}
	m.pendingZero = append(zero, m.pendingZero...)
}

// Close stops the background flush and writes what is left.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
