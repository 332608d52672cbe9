package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/embed"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{StatusPass: "PASS", StatusWarn: "WARN", StatusFail: "FAIL"}

func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// MarshalText makes JSON reports carry "pass", "warn" or "fail".
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	// Fix is a suggested next step for a failed or warning check.
	Fix      string      `json:"fix,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose  bool
	output   io.Writer
	embedder embed.Embedder
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithEmbedder checks an embedder that is already open instead of
// starting one from the configuration.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *Checker) {
		c.embedder = e
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks against cfg and returns the results.
// Checks that depend on a valid configuration are skipped when it is not.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	results := []CheckResult{c.CheckConfig(cfg)}
	if results[0].Status == StatusFail {
		return results
	}

	writable := c.CheckWritePermissions(cfg.Data.Dir)
	results = append(results, writable)
	if writable.Status == StatusPass {
		results = append(results, c.CheckDiskSpace(cfg.Data.Dir))
		results = append(results, c.CheckCatalog(ctx, cfg))
		results = append(results, c.CheckIndexes(cfg))
	}
	results = append(results, c.CheckFileDescriptors())
	results = append(results, c.CheckEmbedder(ctx, cfg.Embeddings))

	return results
}

// HasCriticalFailures reports whether a required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	return slices.ContainsFunc(results, CheckResult.IsCritical)
}

// partition splits the non-passing results into critical failures and
// everything else worth a warning (warns and optional failures).
func partition(results []CheckResult) (critical, warnings []CheckResult) {
	for _, r := range results {
		switch {
		case r.IsCritical():
			critical = append(critical, r)
		case r.Status != StatusPass:
			warnings = append(warnings, r)
		}
	}
	return critical, warnings
}

// SummaryStatus is "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	critical, warnings := partition(results)
	switch {
	case len(critical) > 0:
		return "failed"
	case len(warnings) > 0:
		return "ready_with_warnings"
	default:
		return "ready"
	}
}

// PrintResults writes one line per check, then the overall status and a
// recap of errors and warnings.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprint(w, "resumatch system check\n======================\n\n")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "       %s\n", r.Details)
		}
		if r.Fix != "" && r.Status != StatusPass {
			_, _ = fmt.Fprintf(w, "       fix: %s\n", r.Fix)
		}
	}
	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	critical, warnings := partition(results)
	recap := func(label string, rs []CheckResult) {
		if len(rs) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "\n%d %s(s):\n", len(rs), label)
		for _, r := range rs {
			_, _ = fmt.Fprintf(w, "  - %s: %s\n", r.Name, r.Message)
		}
	}
	recap("error", critical)
	recap("warning", warnings)
}

// CheckConfig validates the merged configuration.
func (c *Checker) CheckConfig(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}
	if cfg == nil {
		result.Status = StatusFail
		result.Message = "no configuration loaded"
		return result
	}
	if err := cfg.Validate(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Run 'resumatch config show' to inspect the merged values"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("OK (%s, %s index)", cfg.Embeddings.Provider, cfg.Index.Backend)
	return result
}

// CheckWritePermissions checks that the data directory exists or can be
// created, and accepts new files.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "data_dir",
		Required: true,
		Details:  dir,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create: %v", err)
		return result
	}

	testFile := filepath.Join(dir, ".resumatch-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "writable"
	return result
}
