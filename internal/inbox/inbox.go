// Package inbox ingests records dropped into a watched directory: resume
// text files become candidates and JSON job files become jobs. Each record
// goes through the live ingest path, so it is searchable as soon as it is
// stored.
package inbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/extract"
	"github.com/Aman-CERP/resumatch/internal/watcher"
)

// Ingester stores a record and makes it searchable. *engine.Engine
// satisfies it.
type Ingester interface {
	IngestOne(ctx context.Context, rec catalog.Record) (engine.IngestResult, error)
}

// Result is the outcome for one record read from a file.
type Result struct {
	Path   string
	Record catalog.Record
	engine.IngestResult
	// Err is set when the file could not be read or the record not stored.
	Err error
}

// Extensions returns the file extensions accepted for kind.
func Extensions(kind catalog.Kind) []string {
	if kind == catalog.KindJob {
		return []string{".json"}
	}
	return []string{".txt", ".text", ".md"}
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Inbox turns files into ingested records. A file is processed again only
// when its size or modification time changes.
type Inbox struct {
	ingester Ingester
	kind     catalog.Kind

	mu   sync.Mutex
	done map[string]fileState
}

// New creates an inbox for records of kind.
func New(ing Ingester, kind catalog.Kind) *Inbox {
	return &Inbox{ingester: ing, kind: kind, done: make(map[string]fileState)}
}

// Kind returns the kind of records the inbox ingests.
func (b *Inbox) Kind() catalog.Kind {
	return b.kind
}

// Run processes batches from w until the channel closes or ctx ends.
// report is called once per record.
func (b *Inbox) Run(ctx context.Context, events <-chan []watcher.FileEvent, report func(Result)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			for _, r := range b.Process(ctx, batch) {
				report(r)
			}
		}
	}
}

// Process handles one batch. Deleted files are forgotten; stored records
// are kept.
func (b *Inbox) Process(ctx context.Context, batch []watcher.FileEvent) []Result {
	var results []Result
	for _, ev := range batch {
		if ev.Operation == watcher.OpDelete {
			b.forget(ev.Path)
			slog.Debug("inbox_file_removed", slog.String("path", ev.Path))
			continue
		}
		results = append(results, b.ProcessFile(ctx, ev.Path)...)
	}
	return results
}

// ProcessFile ingests every record in path. It returns nil when the file
// is unchanged since it was last processed.
func (b *Inbox) ProcessFile(ctx context.Context, path string) []Result {
	info, err := os.Stat(path)
	if err != nil {
		return []Result{{Path: path, Err: rmerrors.New(rmerrors.ErrCodeInvalidInput, fmt.Sprintf("cannot read %s", path), err)}}
	}
	state := fileState{modTime: info.ModTime(), size: info.Size()}
	if !b.claim(path, state) {
		return nil
	}

	records, err := b.read(path)
	if err != nil {
		return []Result{{Path: path, Err: err}}
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		res, err := b.ingester.IngestOne(ctx, rec)
		results = append(results, Result{Path: path, Record: rec, IngestResult: res, Err: err})
		slog.Info("inbox_record_ingested",
			slog.String("path", path),
			slog.String("kind", string(b.kind)),
			slog.Int64("id", res.ID),
			slog.Bool("indexed", res.Indexed),
			slog.Bool("failed", err != nil))
	}
	return results
}

// claim records state for path and reports whether it differs from the
// last processed state.
func (b *Inbox) claim(path string, state fileState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.done[path]; ok && prev == state {
		return false
	}
	b.done[path] = state
	return true
}

func (b *Inbox) forget(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.done, path)
}

// read parses a file into records of the inbox kind.
func (b *Inbox) read(path string) ([]catalog.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, fmt.Sprintf("cannot read %s", path), err)
	}

	if b.kind == catalog.KindJob {
		jobs, err := catalog.ParseJobs(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		records := make([]catalog.Record, len(jobs))
		for i, j := range jobs {
			records[i] = j
		}
		return records, nil
	}

	text, err := extract.Text(raw, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, rmerrors.Newf(rmerrors.ErrCodeEmptyInput, "resume %s is empty", path)
	}
	return []catalog.Record{extract.ParseResume(text)}, nil
}
