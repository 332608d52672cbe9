// Package output prints CLI results: icon-prefixed status lines, aligned
// label blocks and indented JSON. Write errors are dropped; there is nothing
// useful to do when the terminal is gone.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	iconSuccess = "✅"
	iconWarning = "⚠️ "
	iconError   = "❌"
)

// Writer formats command output onto an io.Writer.
type Writer struct {
	out io.Writer
}

// New returns a Writer printing to out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after icon. An empty icon indents msg under the
// previous status line instead.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		icon = "  "
	}
	_, _ = io.WriteString(w.out, icon+" "+msg+"\n")
}

func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) { w.Status(iconSuccess, msg) }

func (w *Writer) Successf(format string, args ...any) {
	w.Statusf(iconSuccess, format, args...)
}

func (w *Writer) Warning(msg string) { w.Status(iconWarning, msg) }

func (w *Writer) Warningf(format string, args ...any) {
	w.Statusf(iconWarning, format, args...)
}

func (w *Writer) Errorf(format string, args ...any) {
	w.Statusf(iconError, format, args...)
}

// KV is one labelled value in a Fields block.
type KV struct {
	Key   string
	Value string
}

// Fields prints "Label:  value" lines with the values aligned. Entries with
// an empty value are left out and do not count toward the alignment.
func (w *Writer) Fields(indent int, fields ...KV) {
	var shown []KV
	width := 0
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		shown = append(shown, f)
		width = max(width, len(f.Key)+1)
	}

	var b strings.Builder
	for _, f := range shown {
		b.WriteString(strings.Repeat(" ", indent))
		b.WriteString(f.Key + ":")
		b.WriteString(strings.Repeat(" ", width-len(f.Key)-1+2))
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(w.out, b.String())
}

// JSON writes v indented by two spaces.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (w *Writer) Newline() {
	_, _ = io.WriteString(w.out, "\n")
}
