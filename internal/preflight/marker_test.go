package preflight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsCheck_NoMarker(t *testing.T) {
	assert.True(t, NeedsCheck(t.TempDir(), "static||64|sqlite"))
}

func TestNeedsCheck_WithMarker(t *testing.T) {
	// Given: a marker for the current settings
	tmpDir := t.TempDir()
	require.NoError(t, MarkPassed(tmpDir, "static||64|sqlite"))

	// Then: no check is needed for the same settings
	assert.False(t, NeedsCheck(tmpDir, "static||64|sqlite"))

	// And: a new provider needs a fresh check
	assert.True(t, NeedsCheck(tmpDir, "ollama|nomic-embed-text|768|sqlite"))
}

func TestMarkPassed_CreatesDirectory(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "new", "data")

	require.NoError(t, MarkPassed(dataDir, "fp"))

	assert.FileExists(t, filepath.Join(dataDir, MarkerFile))
}

func TestNeedsCheck_CorruptMarker(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, MarkerFile), []byte("yesterday\nfp\n"), 0o644))

	assert.True(t, NeedsCheck(tmpDir, "fp"))
	assert.Zero(t, MarkerAge(tmpDir))
}

func TestClearMarker(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, MarkPassed(tmpDir, "fp"))

	require.NoError(t, ClearMarker(tmpDir))
	assert.True(t, NeedsCheck(tmpDir, "fp"))

	// Clearing twice is fine.
	assert.NoError(t, ClearMarker(tmpDir))
}

func TestMarkerAge(t *testing.T) {
	tmpDir := t.TempDir()
	assert.Zero(t, MarkerAge(tmpDir))

	require.NoError(t, MarkPassed(tmpDir, "fp"))

	age := MarkerAge(tmpDir)
	assert.GreaterOrEqual(t, age, time.Duration(0))
	assert.Less(t, age, time.Minute)
}

func TestFingerprint(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, "static||64|sqlite", Fingerprint(cfg))

	cfg.Embeddings.Model = "all-minilm"
	assert.Equal(t, "static|all-minilm|64|sqlite", Fingerprint(cfg))
}
