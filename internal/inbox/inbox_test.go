package inbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/embed"
	"github.com/Aman-CERP/resumatch/internal/engine"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/watcher"
)

const resumeText = `Jane Doe
jane@example.com

Skills: Go, PostgreSQL, Kubernetes

Bachelor of Science in Computer Science`

const jobsJSON = `[
  {"job_title": "Backend Engineer", "required_skills": ["go"]},
  {"job_title": "Data Engineer", "required_skills": "python, spark"}
]`

func newEngine(t *testing.T) (*engine.Engine, *catalog.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.Open(context.Background(), filepath.Join(dir, "catalog.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng, err := engine.New(store, embed.NewStaticEmbedder(32), engine.DefaultConfig(dir))
	require.NoError(t, err)
	return eng, store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".json"}, Extensions(catalog.KindJob))
	assert.Contains(t, Extensions(catalog.KindCandidate), ".md")
}

func TestProcessFile_Resume(t *testing.T) {
	// Given: a candidate inbox and a resume on disk
	eng, store := newEngine(t)
	b := New(eng, catalog.KindCandidate)
	path := writeFile(t, t.TempDir(), "jane.txt", resumeText)

	// When: processing it
	results := b.ProcessFile(context.Background(), path)

	// Then: one candidate is stored with extracted fields
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, catalog.KindCandidate, results[0].Kind)
	rec, err := store.Get(context.Background(), catalog.KindCandidate, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", rec.(*catalog.Candidate).Name)
}

func TestProcessFile_UnchangedFileSkipped(t *testing.T) {
	eng, store := newEngine(t)
	b := New(eng, catalog.KindCandidate)
	path := writeFile(t, t.TempDir(), "jane.md", resumeText)

	require.Len(t, b.ProcessFile(context.Background(), path), 1)
	assert.Nil(t, b.ProcessFile(context.Background(), path))

	// And: a rewrite is processed again
	require.NoError(t, os.WriteFile(path, []byte(resumeText+"\nPython"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	require.Len(t, b.ProcessFile(context.Background(), path), 1)

	n, err := store.Count(context.Background(), catalog.KindCandidate)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestProcessFile_JobsLiveIndexed(t *testing.T) {
	// Given: a job index that already exists
	eng, store := newEngine(t)
	_, err := store.Insert(context.Background(), &catalog.Job{Title: "Chef"})
	require.NoError(t, err)
	_, err = eng.RebuildIndex(context.Background(), catalog.KindJob, nil)
	require.NoError(t, err)
	b := New(eng, catalog.KindJob)
	path := writeFile(t, t.TempDir(), "postings.json", jobsJSON)

	// When: processing a file with two postings
	results := b.ProcessFile(context.Background(), path)

	// Then: both are stored and searchable
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.True(t, r.Indexed)
	}
	matches, err := eng.Match(context.Background(), engine.Query{Text: "data engineer python spark", Kind: catalog.KindJob, TopK: 3})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestProcessFile_Errors(t *testing.T) {
	eng, _ := newEngine(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		kind catalog.Kind
		file string
		body string
		code string
	}{
		{"empty resume", catalog.KindCandidate, "blank.txt", "  \n", rmerrors.ErrCodeEmptyInput},
		{"unsupported resume", catalog.KindCandidate, "cv.pdf", "%PDF", rmerrors.ErrCodeUnsupportedFormat},
		{"invalid job json", catalog.KindJob, "bad.json", "{", rmerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := New(eng, tt.kind).ProcessFile(context.Background(), writeFile(t, dir, tt.file, tt.body))

			require.Len(t, results, 1)
			assert.Equal(t, tt.code, rmerrors.GetCode(results[0].Err))
		})
	}

	missing := New(eng, catalog.KindCandidate).ProcessFile(context.Background(), filepath.Join(dir, "gone.txt"))
	require.Len(t, missing, 1)
	assert.Error(t, missing[0].Err)
}

func TestRun_ProcessesBatchesUntilClosed(t *testing.T) {
	// Given: a channel carrying one create and one delete
	eng, _ := newEngine(t)
	b := New(eng, catalog.KindCandidate)
	dir := t.TempDir()
	path := writeFile(t, dir, "jane.txt", resumeText)
	events := make(chan []watcher.FileEvent, 1)
	events <- []watcher.FileEvent{
		{Path: path, Operation: watcher.OpCreate},
		{Path: filepath.Join(dir, "old.txt"), Operation: watcher.OpDelete},
	}
	close(events)

	// When: running the inbox
	var reported []Result
	err := b.Run(context.Background(), events, func(r Result) { reported = append(reported, r) })

	// Then: only the created file is reported
	require.NoError(t, err)
	require.Len(t, reported, 1)
	assert.Equal(t, path, reported[0].Path)
}
