package lifecycle

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// ProgressBar renders a single-line progress bar.
type ProgressBar struct {
	w     io.Writer
	width int
}

// NewProgressBar creates a bar width cells wide (default 40).
func NewProgressBar(w io.Writer, width int) *ProgressBar {
	if width <= 0 {
		width = 40
	}
	return &ProgressBar{w: w, width: width}
}

// Update redraws the bar at percent with message.
func (p *ProgressBar) Update(percent float64, message string) {
	filled := min(max(int(percent/100*float64(p.width)), 0), p.width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	_, _ = fmt.Fprintf(p.w, "\r[%s] %3.0f%% %s", bar, percent, message)
}

// Finish ends the bar line.
func (p *ProgressBar) Finish() {
	_, _ = fmt.Fprintln(p.w)
}

// PullProgressPrinter returns a PullModel callback that draws a bar for
// download layers and prints other status changes on their own line.
func PullProgressPrinter(w io.Writer) func(PullProgress) {
	bar := NewProgressBar(w, 40)
	lastStatus := ""
	drawing := false

	return func(p PullProgress) {
		if p.Total > 0 {
			bar.Update(p.Percent, fmt.Sprintf("%s/%s", humanize.IBytes(uint64(p.Completed)), humanize.IBytes(uint64(p.Total))))
			drawing = true
			return
		}
		if p.Status == lastStatus {
			return
		}
		lastStatus = p.Status
		if drawing {
			bar.Finish()
			drawing = false
		}
		_, _ = fmt.Fprintln(w, p.Status)
	}
}
