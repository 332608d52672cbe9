package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resumatch/internal/catalog"
)

func TestReadResource_Record(t *testing.T) {
	// Given: an ingested job
	srv := newTestServer(t)
	out, err := srv.CallTool(context.Background(), "ingest_job", map[string]any{"title": "Data Engineer", "company": "Acme"})
	require.NoError(t, err)
	uri := RecordURI(catalog.KindJob, out.(*IngestOutput).ID)

	// When: reading its resource
	res, err := srv.handleReadResource(context.Background(), uri)

	// Then: the record is returned as JSON
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)
	var job catalog.Job
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &job))
	assert.Equal(t, "Data Engineer", job.Title)
	assert.Equal(t, "Acme", job.Company)
}

func TestReadResource_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		uri  string
		code int
	}{
		{"resumatch://jobs/42", ErrCodeRecordNotFound},
		{"resumatch://jobs/abc", ErrCodeInvalidParams},
		{"resumatch://companies/1", ErrCodeRecordNotFound},
		{"file:///etc/passwd", ErrCodeRecordNotFound},
		{"resumatch://jobs", ErrCodeRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			_, err := srv.handleReadResource(context.Background(), tt.uri)
			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tt.code, mcpErr.Code)
		})
	}
}

func TestRecordURI(t *testing.T) {
	assert.Equal(t, "resumatch://jobs/3", RecordURI(catalog.KindJob, 3))
	assert.Equal(t, "resumatch://candidates/7", RecordURI(catalog.KindCandidate, 7))

	kind, id, err := parseRecordURI("resumatch://candidates/7")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindCandidate, kind)
	assert.Equal(t, int64(7), id)
}
