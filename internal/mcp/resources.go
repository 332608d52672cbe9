package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// recordScheme prefixes record resource URIs: resumatch://jobs/12.
const recordScheme = "resumatch://"

// registerResources exposes catalog records as resources, so a client can
// read a full posting or resume after a match.
func (s *Server) registerResources() {
	for _, kind := range []catalog.Kind{catalog.KindJob, catalog.KindCandidate} {
		plural := pluralKind(kind)
		s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
			Name:        plural,
			URITemplate: recordScheme + plural + "/{id}",
			Description: fmt.Sprintf("A %s record from the catalog, as JSON", kind),
			MIMEType:    "application/json",
		}, s.readRecordResource)
	}
}

func (s *Server) readRecordResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.handleReadResource(ctx, req.Params.URI)
}

// handleReadResource resolves a record URI and returns the record as JSON.
func (s *Server) handleReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	kind, id, err := parseRecordURI(uri)
	if err != nil {
		return nil, err
	}

	rec, err := s.engine.Record(ctx, kind, id)
	if rmerrors.GetCode(err) == rmerrors.ErrCodeRecordNotFound {
		return nil, NewResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, MapError(err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

// parseRecordURI splits resumatch://<kind>/<id>.
func parseRecordURI(uri string) (catalog.Kind, int64, error) {
	rest, ok := strings.CutPrefix(uri, recordScheme)
	if !ok {
		return "", 0, NewResourceNotFoundError(uri)
	}
	kindPart, idPart, ok := strings.Cut(rest, "/")
	if !ok {
		return "", 0, NewResourceNotFoundError(uri)
	}
	kind, err := catalog.ParseKind(kindPart)
	if err != nil {
		return "", 0, NewResourceNotFoundError(uri)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, NewInvalidParamsError(fmt.Sprintf("invalid record id in %s", uri))
	}
	return kind, id, nil
}

// RecordURI returns the resource URI of a record.
func RecordURI(kind catalog.Kind, id int64) string {
	return fmt.Sprintf("%s%s/%d", recordScheme, pluralKind(kind), id)
}

func pluralKind(kind catalog.Kind) string {
	if kind == catalog.KindCandidate {
		return "candidates"
	}
	return "jobs"
}
