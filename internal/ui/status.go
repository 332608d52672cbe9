package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusInfo describes the catalog, the indexes and the embedder.
type StatusInfo struct {
	DataDir  string       `json:"data_dir"`
	Catalog  string       `json:"catalog"`
	Embedder EmbedderInfo `json:"embedder"`
	// EmbedderStatus is "ready", "offline" or "error".
	EmbedderStatus string      `json:"embedder_status"`
	Kinds          []KindInfo `json:"kinds"`
}

// KindInfo is the status of one record kind.
type KindInfo struct {
	Kind       string    `json:"kind"`
	Records    int       `json:"records"`
	Indexed    int       `json:"indexed"`
	Ready      bool      `json:"ready"`
	Backend    string    `json:"backend,omitempty"`
	Metric     string    `json:"metric,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"`
	IndexSize  int64     `json:"index_size"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// StatusRenderer displays status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("resumatch status"))
	_, _ = fmt.Fprintf(r.out, "  Data dir: %s\n", info.DataDir)
	_, _ = fmt.Fprintf(r.out, "  Catalog:  %s\n\n", info.Catalog)

	for _, k := range info.Kinds {
		state := r.styles.Success.Render("ready")
		if !k.Ready {
			state = r.styles.Warning.Render("not built")
		} else if k.Indexed != k.Records {
			state = r.styles.Warning.Render("out of date")
		}
		_, _ = fmt.Fprintf(r.out, "  %s (%s)\n", k.Kind, state)
		_, _ = fmt.Fprintf(r.out, "    Records: %d\n", k.Records)
		if k.Ready {
			_, _ = fmt.Fprintf(r.out, "    Indexed: %d\n", k.Indexed)
			_, _ = fmt.Fprintf(r.out, "    Index:   %s, %s, %d dims, %s\n", k.Backend, k.Metric, k.Dimensions, humanize.IBytes(uint64(k.IndexSize)))
			if !k.BuiltAt.IsZero() {
				_, _ = fmt.Fprintf(r.out, "    Built:   %s\n", formatTime(k.BuiltAt))
			}
		}
		if k.Error != "" {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Dim.Render(k.Error))
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Provider: %s\n", info.Embedder.Provider)
	_, _ = fmt.Fprintf(r.out, "    Model:    %s (%d dims)\n", info.Embedder.Model, info.Embedder.Dimensions)
	_, _ = fmt.Fprintf(r.out, "    Status:   %s\n", r.renderStatus(info.EmbedderStatus))
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "offline":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
