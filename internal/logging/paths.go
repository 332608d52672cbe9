package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.resumatch/logs, or a temp directory when the home
// directory is unavailable. RESUMATCH_LOG_DIR overrides both.
func DefaultLogDir() string {
	if dir := os.Getenv("RESUMATCH_LOG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".resumatch", "logs")
	}
	return filepath.Join(home, ".resumatch", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "resumatch.log")
}
