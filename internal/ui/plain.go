package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last ProgressEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, last: ProgressEvent{Stage: -1}}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. Repeated identical events are
// printed once.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event == r.last {
		return
	}
	r.last = event

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d", event.Stage.Icon(), event.Current, event.Total)
		if event.Message != "" {
			_, _ = fmt.Fprintf(r.out, " - %s", event.Message)
		}
		_, _ = fmt.Fprintln(r.out)
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	default:
		_, _ = fmt.Fprintf(r.out, "[%s]\n", event.Stage.Icon())
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d %s records indexed in %s\n",
		stats.Records, stats.Kind, stats.Duration.Round(100*time.Millisecond))
	if stats.EmbedDuration > 0 && stats.Records > 0 {
		perSec := float64(stats.Records) / stats.EmbedDuration.Seconds()
		_, _ = fmt.Fprintf(r.out, "  Embed:  %s (%.1f records/sec)\n",
			stats.EmbedDuration.Round(100*time.Millisecond), perSec)
	}
	if stats.Backend != "" {
		_, _ = fmt.Fprintf(r.out, "  Index:  %s, %s, %d dims\n", stats.Backend, stats.Metric, stats.Dimensions)
	}
	if stats.Embedder.Provider != "" {
		_, _ = fmt.Fprintf(r.out, "  Model:  %s (%s)\n", stats.Embedder.Model, stats.Embedder.Provider)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
