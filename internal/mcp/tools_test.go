package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/telemetry"
)

func TestMatchTool_BeforeRebuild_IndexNotReady(t *testing.T) {
	// Given: a server with no index
	srv := newTestServer(t)

	// When: matching jobs
	_, err := srv.CallTool(context.Background(), "match_jobs", map[string]any{"query": "go developer"})

	// Then: the client is told to rebuild
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexNotReady, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "resumatch rebuild jobs")
}

func TestMatchTool_RequiresQueryOrTerms(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "match_candidates", map[string]any{"query": "   "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMatchTool_InvalidArguments(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "match_jobs", map[string]any{"limit": "ten"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestIngestRebuildMatch_Jobs(t *testing.T) {
	// Given: two jobs ingested and indexed
	srv := newTestServer(t)
	ctx := context.Background()
	for _, title := range []string{"Backend Go Engineer", "Pastry Chef"} {
		out, err := srv.CallTool(ctx, "ingest_job", map[string]any{"title": title})
		require.NoError(t, err)
		ing := out.(*IngestOutput)
		assert.False(t, ing.Indexed, "no index exists yet")
		assert.NotEmpty(t, ing.IndexError)
	}
	out, err := srv.CallTool(ctx, "rebuild_index", map[string]any{"kind": "jobs"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.(*engine.BuildResult).Records)

	// When: matching with terms
	res, err := srv.CallTool(ctx, "match_jobs", map[string]any{"terms": []string{"go", "backend", "engineer"}, "limit": 1})

	// Then: markdown names the best job only
	require.NoError(t, err)
	text := res.(string)
	assert.Contains(t, text, "Backend Go Engineer")
	assert.NotContains(t, text, "Pastry Chef")
	assert.Contains(t, text, "Found 1 match")
}

func TestIngestResume_ExtractsAndIndexes(t *testing.T) {
	// Given: a candidate index built from one resume
	srv := newTestServer(t)
	ctx := context.Background()
	_, err := srv.CallTool(ctx, "ingest_resume", map[string]any{"text": "Jane Doe\nSkills: Python, SQL\n\nData analyst."})
	require.NoError(t, err)
	_, err = srv.CallTool(ctx, "rebuild_index", map[string]any{"kind": "candidates"})
	require.NoError(t, err)

	// When: ingesting another resume
	out, err := srv.CallTool(ctx, "ingest_resume", map[string]any{
		"text": "John Smith\njohn@example.com\nSkills: Go, Kubernetes\n\nPlatform engineer.",
	})

	// Then: it is stored, indexed and matchable at once
	require.NoError(t, err)
	ing := out.(*IngestOutput)
	assert.True(t, ing.Indexed)
	assert.Equal(t, "candidate", ing.Kind)

	res, err := srv.CallTool(ctx, "match_candidates", map[string]any{"query": "kubernetes platform engineer", "limit": 1})
	require.NoError(t, err)
	assert.Contains(t, res.(string), "John Smith")
	assert.Contains(t, res.(string), "john@example.com")
}

func TestIngestResume_EmptyText(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "ingest_resume", map[string]any{"text": " \n "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestIngestJob_MissingTitle(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "ingest_job", map[string]any{"company": "Acme"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "title")
}

func TestRebuildTool_BadKind(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "rebuild_index", map[string]any{"kind": "companies"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestRebuildTool_EmptyCatalog(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "rebuild_index", map[string]any{"kind": "jobs"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestIndexStatusTool(t *testing.T) {
	// Given: one indexed job and no candidate index
	srv := newTestServer(t)
	ctx := context.Background()
	_, err := srv.CallTool(ctx, "ingest_job", map[string]any{"title": "SRE"})
	require.NoError(t, err)
	_, err = srv.CallTool(ctx, "rebuild_index", map[string]any{"kind": "jobs"})
	require.NoError(t, err)

	// When: asking for status
	out, err := srv.CallTool(ctx, "index_status", nil)

	// Then: both kinds and the embedder are reported
	require.NoError(t, err)
	st := out.(*IndexStatusOutput)
	require.Len(t, st.Kinds, 2)
	require.NotNil(t, st.Kinds[0].Index)
	assert.Equal(t, 1, st.Kinds[0].Index.Count)
	assert.Nil(t, st.Kinds[1].Index)
	assert.NotEmpty(t, st.Kinds[1].Error)
	assert.Equal(t, "static-64", st.Embeddings.Model)
	assert.Equal(t, 64, st.Embeddings.Dimensions)
	assert.Equal(t, "ready", st.Embeddings.Status)
}

func TestIndexStatusTool_ReportsMatchMetrics(t *testing.T) {
	// Given: a server whose engine records metrics
	srv := newTestServer(t)
	srv.engine.SetMetrics(telemetry.New(nil, telemetry.Config{}))
	ctx := context.Background()
	_, err := srv.CallTool(ctx, "ingest_job", map[string]any{"title": "Site Reliability Engineer"})
	require.NoError(t, err)
	_, err = srv.CallTool(ctx, "rebuild_index", map[string]any{"kind": "jobs"})
	require.NoError(t, err)
	_, err = srv.CallTool(ctx, "match_jobs", map[string]any{"query": "reliability engineer"})
	require.NoError(t, err)

	// When: asking for status
	out, err := srv.CallTool(ctx, "index_status", nil)

	// Then: the match is summarized
	require.NoError(t, err)
	st := out.(*IndexStatusOutput)
	require.NotNil(t, st.Matches)
	assert.Equal(t, int64(1), st.Matches.Total)
	assert.Equal(t, int64(1), st.Matches.ByKind["job"])
	assert.Zero(t, st.Matches.ZeroResults)
}
