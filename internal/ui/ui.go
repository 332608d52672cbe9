// Package ui renders rebuild progress and index status in the terminal.
// Interactive terminals get a bubbletea view; pipes, CI and --plain get
// one line per update.
package ui

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of an index rebuild, in the order the engine runs them.
type Stage int

const (
	StageLoading Stage = iota
	StageEmbedding
	StageIndexing
	StageComplete
)

// stages maps each Stage to the engine's stage key, its display name and
// the tag used by the plain renderer.
var stages = [...]struct{ key, name, tag string }{
	StageLoading:   {"loading", "Loading", "LOAD"},
	StageEmbedding: {"embedding", "Embedding", "EMBED"},
	StageIndexing:  {"indexing", "Indexing", "INDEX"},
	StageComplete:  {"complete", "Complete", "DONE"},
}

// ParseStage maps an engine stage key to a Stage. Unknown keys are treated
// as loading, which is where every rebuild starts.
func ParseStage(key string) Stage {
	for s, info := range stages {
		if info.key == key {
			return Stage(s)
		}
	}
	return StageLoading
}

func (s Stage) valid() bool { return s >= 0 && int(s) < len(stages) }

func (s Stage) String() string {
	if !s.valid() {
		return "Unknown"
	}
	return stages[s].name
}

// Icon is the bracketed tag printed by the plain renderer.
func (s Stage) Icon() string {
	if !s.valid() {
		return "???"
	}
	return stages[s].tag
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// EmbedderInfo contains embedder backend details.
type EmbedderInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// CompletionStats summarizes a finished rebuild.
type CompletionStats struct {
	Kind          string
	Records       int
	Dimensions    int
	Metric        string
	Backend       string
	Duration      time.Duration
	EmbedDuration time.Duration
	Embedder      EmbedderInfo
}

// Renderer draws rebuild progress. Start and Stop bracket a run; Complete
// prints the summary.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a Renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title heads the TUI, e.g. "Rebuilding jobs".
	Title string
}

// ConfigOption adjusts a Config built by NewConfig.
type ConfigOption func(*Config)

func WithForcePlain(force bool) ConfigOption { return func(c *Config) { c.ForcePlain = force } }

func WithNoColor(noColor bool) ConfigOption { return func(c *Config) { c.NoColor = noColor } }

func WithTitle(title string) ConfigOption { return func(c *Config) { c.Title = title } }

// NewConfig returns a Config writing to output, titled "resumatch" unless
// an option says otherwise.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, Title: "resumatch"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for an interactive terminal and plain lines
// everywhere else (pipes, CI, --plain).
func NewRenderer(cfg Config) Renderer {
	if !cfg.ForcePlain && IsTTY(cfg.Output) && !DetectCI() {
		if tui, err := NewTUIRenderer(cfg); err == nil {
			return tui
		}
	}
	return NewPlainRenderer(cfg)
}

// IsTTY reports whether w is a terminal file.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DetectNoColor honours https://no-color.org: presence, not value, counts.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// ciEnv lists variables set by common CI runners.
var ciEnv = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS", "BUILDKITE"}

// DetectCI reports whether a CI runner is detected.
func DetectCI() bool {
	return slices.ContainsFunc(ciEnv, func(name string) bool {
		_, set := os.LookupEnv(name)
		return set
	})
}
