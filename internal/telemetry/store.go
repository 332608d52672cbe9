package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// MaxZeroResults is how many zero-result matches the store keeps.
const MaxZeroResults = 100

const schema = `
CREATE TABLE IF NOT EXISTS match_kind_stats (
	date TEXT NOT NULL,
	kind TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, kind)
);

CREATE TABLE IF NOT EXISTS match_terms (
	term TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_match_terms_count ON match_terms(count DESC);

CREATE TABLE IF NOT EXISTS zero_result_matches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	query TEXT NOT NULL,
	timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS match_latency_stats (
	date TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, bucket)
);
`

// SQLiteStore persists match metrics in the catalog database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the metrics tables in db if needed. The db stays
// owned by the caller.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// upsert runs one statement per entry inside a transaction.
func upsert[K ~string](db *sql.DB, query string, entries map[K]int64, bind func(K, int64) []any) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for k, v := range entries {
		if _, err := stmt.Exec(bind(k, v)...); err != nil {
			return fmt.Errorf("upsert %q: %w", string(k), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveKindCounts adds to the match counts per kind for date.
func (s *SQLiteStore) SaveKindCounts(date string, counts map[string]int64) error {
	return upsert(s.db, `
		INSERT INTO match_kind_stats (date, kind, count) VALUES (?, ?, ?)
		ON CONFLICT(date, kind) DO UPDATE SET count = count + excluded.count
	`, counts, func(kind string, n int64) []any { return []any{date, kind, n} })
}

// SaveLatencyCounts adds to the latency histogram for date.
func (s *SQLiteStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	return upsert(s.db, `
		INSERT INTO match_latency_stats (date, bucket, count) VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, counts, func(b LatencyBucket, n int64) []any { return []any{date, string(b), n} })
}

// UpsertTermCounts adds to the term frequencies.
func (s *SQLiteStore) UpsertTermCounts(terms map[string]int64) error {
	return upsert(s.db, `
		INSERT INTO match_terms (term, count, last_seen) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`, terms, func(term string, n int64) []any { return []any{term, n} })
}

// AddZeroResults appends zero-result matches and trims the table to the
// newest MaxZeroResults rows.
func (s *SQLiteStore) AddZeroResults(queries []ZeroResult) error {
	if len(queries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range queries {
		if _, err := tx.Exec(`INSERT INTO zero_result_matches (kind, query, timestamp) VALUES (?, ?, ?)`,
			q.Kind, q.Query, q.Timestamp.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert zero-result match: %w", err)
		}
	}
	if _, err := tx.Exec(`
		DELETE FROM zero_result_matches
		WHERE id NOT IN (SELECT id FROM zero_result_matches ORDER BY id DESC LIMIT ?)
	`, MaxZeroResults); err != nil {
		return fmt.Errorf("trim zero-result matches: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// KindCounts sums match counts per kind between from and to, inclusive.
// Dates use the 2006-01-02 layout.
func (s *SQLiteStore) KindCounts(from, to string) (map[string]int64, error) {
	return s.sumByDate(`SELECT kind, SUM(count) FROM match_kind_stats
		WHERE date >= ? AND date <= ? GROUP BY kind`, from, to)
}

// LatencyCounts sums the latency histogram between from and to, inclusive.
func (s *SQLiteStore) LatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	sums, err := s.sumByDate(`SELECT bucket, SUM(count) FROM match_latency_stats
		WHERE date >= ? AND date <= ? GROUP BY bucket`, from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[LatencyBucket]int64, len(sums))
	for k, v := range sums {
		counts[LatencyBucket(k)] = v
	}
	return counts, nil
}

func (s *SQLiteStore) sumByDate(query, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// TopTerms returns the limit most frequent terms of all time.
func (s *SQLiteStore) TopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`SELECT term, count FROM match_terms ORDER BY count DESC, term LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// ZeroResults returns up to limit zero-result matches, newest first.
func (s *SQLiteStore) ZeroResults(limit int) ([]ZeroResult, error) {
	rows, err := s.db.Query(`SELECT kind, query, timestamp FROM zero_result_matches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result matches: %w", err)
	}
	defer rows.Close()

	var out []ZeroResult
	for rows.Next() {
		var zr ZeroResult
		var ts string
		if err := rows.Scan(&zr.Kind, &zr.Query, &ts); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		zr.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, zr)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
