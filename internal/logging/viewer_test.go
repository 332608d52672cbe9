package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-10-18T10:00:00.000Z","level":"INFO","msg":"index_built","kind":"jobs","records":3}
{"time":"2026-10-18T10:00:01.000Z","level":"DEBUG","msg":"match_embedded","kind":"jobs"}
not json at all
{"time":"2026-10-18T10:00:02.500Z","level":"WARN","msg":"stale_reference_skipped","id":7}
{"time":"2026-10-18T10:00:03.000Z","level":"ERROR","msg":"persist_failed","error":"disk full"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resumatch.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseEntry(t *testing.T) {
	e := ParseEntry(`{"time":"2026-10-18T10:00:02.500Z","level":"WARN","msg":"stale_reference_skipped","id":7}`)

	require.True(t, e.Valid)
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "stale_reference_skipped", e.Msg)
	assert.Equal(t, 500*time.Millisecond, time.Duration(e.Time.Nanosecond()))
	assert.Equal(t, map[string]any{"id": float64(7)}, e.Attrs)

	plain := ParseEntry("not json")
	assert.False(t, plain.Valid)
	assert.Equal(t, "not json", plain.Raw)
}

func TestViewer_TailLastLines(t *testing.T) {
	// Given: a log with five lines
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	// When: asking for the last two
	entries, err := v.Tail(path, 2)

	// Then: the warn and error entries come back in file order
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "stale_reference_skipped", entries[0].Msg)
	assert.Equal(t, "persist_failed", entries[1].Msg)
}

func TestViewer_LevelFilterKeepsPlainLines(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)
	require.NoError(t, err)

	var msgs []string
	for _, e := range entries {
		if e.Valid {
			msgs = append(msgs, e.Msg)
		} else {
			msgs = append(msgs, e.Raw)
		}
	}
	assert.Equal(t, []string{"not json at all", "stale_reference_skipped", "persist_failed"}, msgs)
}

func TestViewer_PatternFilter(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`"kind":"jobs"`), NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestViewer_FormatSortsAttributes(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	v.Print([]Entry{ParseEntry(`{"time":"2026-10-18T10:00:00Z","level":"INFO","msg":"index_built","records":3,"kind":"jobs"}`)})

	assert.Equal(t, "10:00:00.000 INFO  index_built kind=jobs records=3\n", buf.String())
}

func TestViewer_TailMissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	_, err := v.Tail(filepath.Join(t.TempDir(), "absent.log"), 10)
	assert.Error(t, err)
}

func TestViewer_FollowSeesAppendedLines(t *testing.T) {
	// Given: a follower started on an existing log
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan Entry, 10)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(150 * time.Millisecond)

	// When: a line is appended
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-10-18T10:00:04Z","level":"INFO","msg":"record_ingested"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new entry is delivered
	select {
	case e := <-entries:
		assert.Equal(t, "record_ingested", e.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("appended entry not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}
