package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/resumatch/internal/config"
)

// MarkerFile records that preflight passed for a data directory.
const MarkerFile = ".preflight-passed"

// Fingerprint identifies the settings a passed check is valid for. A new
// provider, model or catalog driver invalidates the marker.
func Fingerprint(cfg *config.Config) string {
	return strings.Join([]string{
		cfg.Embeddings.Provider,
		cfg.Embeddings.Model,
		fmt.Sprint(cfg.Embeddings.Dimensions),
		cfg.Data.Driver,
	}, "|")
}

// NeedsCheck reports whether the marker in dataDir is missing or was
// written for a different fingerprint.
func NeedsCheck(dataDir, fingerprint string) bool {
	_, fp, err := readMarker(dataDir)
	return err != nil || fp != fingerprint
}

// MarkPassed writes the marker for fingerprint.
func MarkPassed(dataDir, fingerprint string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := time.Now().UTC().Format(time.RFC3339) + "\n" + fingerprint + "\n"
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), []byte(content), 0o644)
}

// ClearMarker removes the marker, forcing a check on the next serve.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago preflight passed, or zero without a marker.
func MarkerAge(dataDir string) time.Duration {
	at, _, err := readMarker(dataDir)
	if err != nil {
		return 0
	}
	return time.Since(at)
}

func readMarker(dataDir string) (time.Time, string, error) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return time.Time{}, "", err
	}
	stamp, fp, _ := strings.Cut(strings.TrimSpace(string(content)), "\n")
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Time{}, "", err
	}
	return at, fp, nil
}
