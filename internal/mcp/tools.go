package mcp

import (
	"github.com/Aman-CERP/resumatch/internal/async"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/telemetry"
)

// MatchInput defines the input schema for match_jobs and match_candidates.
type MatchInput struct {
	Query string   `json:"query,omitempty" jsonschema:"free text describing the resume or the job"`
	Terms []string `json:"terms,omitempty" jsonschema:"keywords used when query is empty"`
	Limit int      `json:"limit,omitempty" jsonschema:"maximum number of matches, default from config"`
}

// MatchOutput defines the output schema for the match tools.
type MatchOutput struct {
	Kind    string      `json:"kind"`
	Metric  string      `json:"metric,omitempty"`
	Results []MatchItem `json:"results"`
}

// MatchItem is one ranked match.
type MatchItem struct {
	ID int64 `json:"id"`
	// Score is cosine similarity (higher is better) or squared L2 distance
	// (lower is better), per Metric.
	Score float32 `json:"score"`
	Label string  `json:"label" jsonschema:"job title or candidate name"`
	// Record is the full catalog record.
	Record any `json:"record"`
}

// IngestResumeInput defines the input schema for ingest_resume.
type IngestResumeInput struct {
	Text string `json:"text" jsonschema:"plain resume text; name, contact details, skills and degrees are extracted"`
}

// IngestJobInput defines the input schema for ingest_job.
type IngestJobInput struct {
	Title             string   `json:"title" jsonschema:"job title"`
	Description       string   `json:"description,omitempty"`
	Company           string   `json:"company,omitempty"`
	Location          string   `json:"location,omitempty"`
	EmploymentType    string   `json:"employment_type,omitempty"`
	RequiredSkills    []string `json:"required_skills,omitempty"`
	DegreeRequirement string   `json:"degree_requirement,omitempty"`
	PayRate           float64  `json:"pay_rate,omitempty"`
	Currency          string   `json:"currency,omitempty"`
}

// IngestOutput defines the output schema for the ingest tools.
type IngestOutput struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Indexed bool   `json:"indexed"`
	// IndexError explains why a stored record is not yet searchable.
	IndexError string `json:"index_error,omitempty"`
}

// RebuildInput defines the input schema for rebuild_index.
type RebuildInput struct {
	Kind string `json:"kind" jsonschema:"jobs or candidates"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Kinds      []engine.KindStatus `json:"kinds"`
	Embeddings EmbeddingInfo       `json:"embeddings"`
	// Rebuilds lists background rebuilds started by the server.
	Rebuilds []async.Snapshot `json:"rebuilds,omitempty"`
	// Matches summarizes matches answered since the server started.
	Matches *MatchStats `json:"matches,omitempty"`
}

// MatchStats is a summary of match telemetry.
type MatchStats struct {
	Total           int64                 `json:"total"`
	ZeroResults     int64                 `json:"zero_results"`
	ExactRepeatRate float64               `json:"exact_repeat_rate"`
	ByKind          map[string]int64      `json:"by_kind"`
	TopTerms        []telemetry.TermCount `json:"top_terms,omitempty"`
}

func matchStatsFrom(snap *telemetry.Snapshot) *MatchStats {
	terms := snap.TopTerms
	if len(terms) > 10 {
		terms = terms[:10]
	}
	return &MatchStats{
		Total:           snap.TotalMatches,
		ZeroResults:     snap.ZeroResultCount,
		ExactRepeatRate: snap.ExactRepeatRate,
		ByKind:          snap.KindCounts,
		TopTerms:        terms,
	}
}

// EmbeddingInfo contains information about the active embedder.
type EmbeddingInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Cached     bool   `json:"cached"`
	// Status is "ready" or "unavailable".
	Status string `json:"status"`
}
