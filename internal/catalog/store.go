package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// Driver names accepted by Open.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = rmerrors.ErrRecordNotFound

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	employment_type TEXT NOT NULL DEFAULT '',
	required_skills TEXT NOT NULL DEFAULT '[]',
	degree_requirement TEXT NOT NULL DEFAULT '',
	pay_rate REAL NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	education TEXT NOT NULL DEFAULT '[]',
	skills TEXT NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// Store is the SQLite catalog.
type Store struct {
	db   *sql.DB
	path string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open opens (creating if needed) the catalog at path. An empty driver
// selects the pure Go driver. path may be ":memory:".
func Open(ctx context.Context, path, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, rmerrors.Newf(rmerrors.ErrCodeConfigInvalid, "unknown catalog driver %q (valid: sqlite, sqlite3)", driver)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to create catalog directory", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to open catalog", err)
	}

	// Single writer; also keeps one shared :memory: database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to set pragma", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to initialize catalog schema", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the connection for tables that live beside the catalog, such
// as match metrics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert validates r, stores it and returns the assigned id. The id is
// also set on r.
func (s *Store) Insert(ctx context.Context, r Record) (int64, error) {
	return insert(ctx, s.db, r)
}

func insert(ctx context.Context, db execer, r Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	var res sql.Result
	var err error
	switch rec := r.(type) {
	case *Job:
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		res, err = db.ExecContext(ctx, `
			INSERT INTO jobs (title, description, company, location, employment_type,
				required_skills, degree_requirement, pay_rate, currency, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Title, rec.Description, rec.Company, rec.Location, rec.EmploymentType,
			encodeList(rec.RequiredSkills), rec.DegreeRequirement, rec.PayRate, rec.Currency,
			rec.CreatedAt.Format(time.RFC3339Nano))
	case *Candidate:
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		res, err = db.ExecContext(ctx, `
			INSERT INTO candidates (name, email, phone, education, skills, summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Name, rec.Email, rec.Phone, encodeList(rec.Education), encodeList(rec.Skills),
			rec.Summary, rec.CreatedAt.Format(time.RFC3339Nano))
	default:
		return 0, rmerrors.Newf(rmerrors.ErrCodeInvalidRecord, "unsupported record type %T", r)
	}
	if err != nil {
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to insert %s", r.Kind()), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, "failed to read inserted id", err)
	}
	switch rec := r.(type) {
	case *Job:
		rec.ID = id
	case *Candidate:
		rec.ID = id
	}
	return id, nil
}

const (
	jobColumns       = `id, title, description, company, location, employment_type, required_skills, degree_requirement, pay_rate, currency, created_at`
	candidateColumns = `id, name, email, phone, education, skills, summary, created_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var skills, created string
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &j.Company, &j.Location, &j.EmploymentType,
		&skills, &j.DegreeRequirement, &j.PayRate, &j.Currency, &created); err != nil {
		return nil, err
	}
	j.RequiredSkills = decodeList(skills)
	j.CreatedAt = parseTime(created)
	return &j, nil
}

func scanCandidate(row rowScanner) (*Candidate, error) {
	var c Candidate
	var education, skills, created string
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &education, &skills, &c.Summary, &created); err != nil {
		return nil, err
	}
	c.Education = decodeList(education)
	c.Skills = decodeList(skills)
	c.CreatedAt = parseTime(created)
	return &c, nil
}

func table(kind Kind) (name, columns string, err error) {
	switch kind {
	case KindJob:
		return "jobs", jobColumns, nil
	case KindCandidate:
		return "candidates", candidateColumns, nil
	default:
		return "", "", rmerrors.Newf(rmerrors.ErrCodeInvalidInput, "unknown record kind %q", kind)
	}
}

func scan(kind Kind, row rowScanner) (Record, error) {
	if kind == KindJob {
		return scanJob(row)
	}
	return scanCandidate(row)
}

// Get returns the record of kind with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, kind Kind, id int64) (Record, error) {
	name, cols, err := table(kind)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+cols+" FROM "+name+" WHERE id = ?", id)
	rec, err := scan(kind, row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, rmerrors.Newf(rmerrors.ErrCodeRecordNotFound, "%s %d not found", kind, id)
	}
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to read %s %d", kind, id), err)
	}
	return rec, nil
}

// List returns all records of kind ordered by id.
func (s *Store) List(ctx context.Context, kind Kind) ([]Record, error) {
	name, cols, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+cols+" FROM "+name+" ORDER BY id")
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to list %ss", kind), err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scan(kind, rows)
		if err != nil {
			return nil, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to read %s row", kind), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to list %ss", kind), err)
	}
	return out, nil
}

// Count returns the number of records of kind.
func (s *Store) Count(ctx context.Context, kind Kind) (int, error) {
	name, _, err := table(kind)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name).Scan(&n); err != nil {
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to count %ss", kind), err)
	}
	return n, nil
}

// Clear deletes every record of kind and restarts its id sequence. It
// returns the number of records removed.
func (s *Store) Clear(ctx context.Context, kind Kind) (int, error) {
	name, _, err := table(kind)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, "failed to begin transaction", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM "+name)
	if err != nil {
		_ = tx.Rollback()
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, fmt.Sprintf("failed to clear %ss", kind), err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", name); err != nil {
		_ = tx.Rollback()
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, "failed to reset id sequence", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, rmerrors.New(rmerrors.ErrCodeStorage, "failed to commit clear", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// InsertAll inserts records in one transaction. Either all are stored or
// none are.
func (s *Store) InsertAll(ctx context.Context, records []Record) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to begin transaction", err)
	}
	ids := make([]int64, 0, len(records))
	for i, r := range records {
		id, err := insert(ctx, tx, r)
		if err != nil {
			_ = tx.Rollback()
			if me, ok := rmerrors.As(err); ok {
				return nil, me.WithDetail("record", fmt.Sprint(i))
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to commit import", err)
	}
	return ids, nil
}

func encodeList(items []string) string {
	data, err := json.Marshal(cleanList(items))
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
