package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Icons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		icon  string
		text  string
	}{
		{"success", func(w *Writer) { w.Successf("Indexed %d jobs", 3) }, "✅", "Indexed 3 jobs"},
		{"warning", func(w *Writer) { w.Warning("Index not built") }, "⚠️", "Index not built"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "boom") }, "❌", "failed: boom"},
		{"status", func(w *Writer) { w.Status("🔍", "Matching...") }, "🔍", "Matching..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a writer with a buffer
			buf := &bytes.Buffer{}

			// When: writing
			tt.write(New(buf))

			// Then: icon and message are on one line
			out := buf.String()
			assert.Contains(t, out, tt.icon)
			assert.Contains(t, out, tt.text)
			assert.True(t, strings.HasSuffix(out, "\n"))
		})
	}
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")
	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Fields_AlignsAndSkipsEmpty(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Fields(2,
		KV{"Company", "Acme"},
		KV{"Location", ""},
		KV{"Pay", "20 USD"},
	)

	assert.Equal(t, "  Company:  Acme\n  Pay:      20 USD\n", buf.String())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(map[string]int{"count": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got["count"])
	assert.Contains(t, buf.String(), "\n  \"count\"")
}
