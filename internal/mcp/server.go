package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/resumatch/internal/async"
	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/embed"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/extract"
	"github.com/Aman-CERP/resumatch/pkg/version"
)

// Server is the MCP server for resumatch.
// It lets AI clients match resumes to jobs and feed new records in.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	config *config.Config
	logger *slog.Logger

	// rebuildMu keeps rebuild_index calls and background rebuilds from
	// overlapping.
	rebuildMu sync.Mutex

	background atomic.Pointer[async.BackgroundRebuilder]
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        "match_jobs",
		Description: "Find the job postings that best fit a resume or a list of skills. Pass resume text as query, or keywords as terms.",
	},
	{
		Name:        "match_candidates",
		Description: "Find the candidates whose resumes best fit a job description. Pass the posting text as query, or keywords as terms.",
	},
	{
		Name:        "ingest_resume",
		Description: "Add a resume to the catalog. Name, email, phone, skills and degrees are extracted from the text; the record is searchable at once when the candidate index exists.",
	},
	{
		Name:        "ingest_job",
		Description: "Add a job posting to the catalog; it is searchable at once when the job index exists.",
	},
	{
		Name:        "rebuild_index",
		Description: "Re-embed every record of a kind (jobs or candidates) and replace its index.",
	},
	{
		Name:        "index_status",
		Description: "Report record counts, index state and the active embedder. Use before matching to check the indexes are built.",
	},
}

// NewServer creates a new MCP server.
func NewServer(eng *engine.Engine, cfg *config.Config) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine: eng,
		config: cfg,
		logger: slog.Default(),
	}

	// Capabilities are inferred from registered tools and resources.
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "resumatch",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "resumatch", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func toolDescription(name string) string {
	for _, t := range toolInfos {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

// CallTool invokes a tool by name with JSON-style arguments. Match tools
// return markdown, the others their structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "match_jobs", "match_candidates":
		in, err := decodeArgs[MatchInput](args)
		if err != nil {
			return nil, err
		}
		kind := catalog.KindJob
		if name == "match_candidates" {
			kind = catalog.KindCandidate
		}
		results, err := s.match(ctx, kind, in)
		if err != nil {
			return nil, err
		}
		return FormatMatchResults(queryLabel(in), kind, results), nil
	case "ingest_resume":
		in, err := decodeArgs[IngestResumeInput](args)
		if err != nil {
			return nil, err
		}
		return s.ingestResume(ctx, in)
	case "ingest_job":
		in, err := decodeArgs[IngestJobInput](args)
		if err != nil {
			return nil, err
		}
		return s.ingestJob(ctx, in)
	case "rebuild_index":
		in, err := decodeArgs[RebuildInput](args)
		if err != nil {
			return nil, err
		}
		return s.rebuild(ctx, in)
	case "index_status":
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	if len(args) == 0 {
		return in, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return in, NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return in, nil
}

func queryLabel(in MatchInput) string {
	if strings.TrimSpace(in.Query) != "" {
		return in.Query
	}
	return strings.Join(in.Terms, ", ")
}

func (s *Server) match(ctx context.Context, kind catalog.Kind, in MatchInput) ([]engine.MatchResult, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(in.Query) == "" && strings.TrimSpace(strings.Join(in.Terms, "")) == "" {
		return nil, NewInvalidParamsError("query or terms is required")
	}
	limit := clampLimit(in.Limit, s.engine.Config().TopK, 1, maxMatchLimit)

	s.logger.Info("match started",
		slog.String("request_id", requestID),
		slog.String("kind", string(kind)),
		slog.Int("limit", limit))

	results, err := s.engine.Match(ctx, engine.Query{
		Text:  in.Query,
		Terms: in.Terms,
		Kind:  kind,
		TopK:  limit,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("match failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		if busy := s.rebuildingError(kind, err); busy != nil {
			return nil, busy
		}
		return nil, MapError(err)
	}

	s.logger.Info("match completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))
	return results, nil
}

func (s *Server) ingestResume(ctx context.Context, in IngestResumeInput) (*IngestOutput, error) {
	text, err := extract.Text([]byte(in.Text), "")
	if err != nil {
		return nil, MapError(err)
	}
	if text == "" {
		return nil, NewInvalidParamsError("text is required")
	}
	return s.ingest(ctx, extract.ParseResume(text))
}

func (s *Server) ingestJob(ctx context.Context, in IngestJobInput) (*IngestOutput, error) {
	return s.ingest(ctx, &catalog.Job{
		Title:             in.Title,
		Description:       in.Description,
		Company:           in.Company,
		Location:          in.Location,
		EmploymentType:    in.EmploymentType,
		RequiredSkills:    in.RequiredSkills,
		DegreeRequirement: in.DegreeRequirement,
		PayRate:           in.PayRate,
		Currency:          in.Currency,
	})
}

func (s *Server) ingest(ctx context.Context, rec catalog.Record) (*IngestOutput, error) {
	res, err := s.engine.IngestOne(ctx, rec)
	if err != nil {
		return nil, MapError(err)
	}
	out := &IngestOutput{ID: res.ID, Kind: string(res.Kind), Indexed: res.Indexed}
	if res.IndexErr != nil {
		out.IndexError = MapError(res.IndexErr).Message
	}
	return out, nil
}

func (s *Server) rebuild(ctx context.Context, in RebuildInput) (*engine.BuildResult, error) {
	kind, err := catalog.ParseKind(in.Kind)
	if err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	requestID := generateRequestID()
	s.logger.Info("rebuild started",
		slog.String("request_id", requestID),
		slog.String("kind", string(kind)))

	res, err := s.engine.RebuildIndex(ctx, kind, nil)
	if err != nil {
		s.logger.Error("rebuild failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	s.logger.Info("rebuild completed",
		slog.String("request_id", requestID),
		slog.Int("records", res.Records),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	kinds, err := s.engine.Status(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	info := embed.GetInfo(ctx, s.engine.Embedder())
	status := "unavailable"
	if info.Available {
		status = "ready"
	}
	var rebuilds []async.Snapshot
	if bg := s.background.Load(); bg != nil {
		rebuilds = bg.Snapshots()
	}
	var matches *MatchStats
	if m := s.engine.Metrics(); m != nil {
		matches = matchStatsFrom(m.Snapshot())
	}
	return &IndexStatusOutput{
		Kinds:    kinds,
		Rebuilds: rebuilds,
		Matches:  matches,
		Embeddings: EmbeddingInfo{
			Provider:   s.config.Embeddings.Provider,
			Model:      info.Model,
			Dimensions: info.Dimensions,
			Cached:     info.Cached,
			Status:     status,
		},
	}, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "match_jobs", Description: toolDescription("match_jobs")},
		s.matchHandler(catalog.KindJob))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "match_candidates", Description: toolDescription("match_candidates")},
		s.matchHandler(catalog.KindCandidate))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "ingest_resume", Description: toolDescription("ingest_resume")},
		s.mcpIngestResumeHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "ingest_job", Description: toolDescription("ingest_job")},
		s.mcpIngestJobHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "rebuild_index", Description: toolDescription("rebuild_index")},
		s.mcpRebuildHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "index_status", Description: toolDescription("index_status")},
		s.mcpIndexStatusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(toolInfos)))
}

// matchHandler returns the SDK handler for a match tool. The text content
// is markdown; the structured content carries the full records.
func (s *Server) matchHandler(kind catalog.Kind) mcp.ToolHandlerFor[MatchInput, MatchOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchInput) (*mcp.CallToolResult, MatchOutput, error) {
		results, err := s.match(ctx, kind, input)
		if err != nil {
			return nil, MatchOutput{}, err
		}
		out := MatchOutput{Kind: string(kind), Results: make([]MatchItem, 0, len(results))}
		for _, r := range results {
			out.Metric = string(r.Metric)
			out.Results = append(out.Results, ToMatchItem(r))
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: FormatMatchResults(queryLabel(input), kind, results)}},
		}, out, nil
	}
}

func (s *Server) mcpIngestResumeHandler(ctx context.Context, _ *mcp.CallToolRequest, input IngestResumeInput) (
	*mcp.CallToolResult,
	*IngestOutput,
	error,
) {
	out, err := s.ingestResume(ctx, input)
	return nil, out, err
}

func (s *Server) mcpIngestJobHandler(ctx context.Context, _ *mcp.CallToolRequest, input IngestJobInput) (
	*mcp.CallToolResult,
	*IngestOutput,
	error,
) {
	out, err := s.ingestJob(ctx, input)
	return nil, out, err
}

func (s *Server) mcpRebuildHandler(ctx context.Context, _ *mcp.CallToolRequest, input RebuildInput) (
	*mcp.CallToolResult,
	*engine.BuildResult,
	error,
) {
	out, err := s.rebuild(ctx, input)
	return nil, out, err
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	return nil, out, err
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))
	defer s.stopBackground()

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
