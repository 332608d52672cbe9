package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
)

// maxMatchLimit caps the limit a client may request.
const maxMatchLimit = 50

// FormatMatchResults formats match results as markdown.
func FormatMatchResults(query string, kind catalog.Kind, results []engine.MatchResult) string {
	noun := "jobs"
	if kind == catalog.KindCandidate {
		noun = "candidates"
	}
	if len(results) == 0 {
		return fmt.Sprintf("No matching %s found for \"%s\"", noun, truncate(query, 80))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Matching %s for \"%s\"\n\n", noun, truncate(query, 80)))
	sb.WriteString(fmt.Sprintf("Found %d match", len(results)))
	if len(results) != 1 {
		sb.WriteString("es")
	}
	sb.WriteString(fmt.Sprintf(" (%s)\n\n", scoreLegend(results[0])))

	for i, r := range results {
		formatMatch(&sb, i+1, r)
	}
	return sb.String()
}

func scoreLegend(r engine.MatchResult) string {
	if r.Metric == "l2" {
		return "l2 distance, lower is closer"
	}
	return "cosine similarity, higher is closer"
}

func formatMatch(sb *strings.Builder, num int, r engine.MatchResult) {
	switch rec := r.Record.(type) {
	case *catalog.Job:
		sb.WriteString(fmt.Sprintf("### %d. %s (id %d, score: %.3f)\n", num, rec.Title, r.ID, r.Score))
		if at := joinNonEmpty(" · ", rec.Company, rec.Location, rec.EmploymentType); at != "" {
			sb.WriteString(at + "\n")
		}
		if len(rec.RequiredSkills) > 0 {
			sb.WriteString("**Skills:** " + strings.Join(rec.RequiredSkills, ", ") + "\n")
		}
		if rec.DegreeRequirement != "" {
			sb.WriteString("**Degree:** " + rec.DegreeRequirement + "\n")
		}
		if rec.Description != "" {
			sb.WriteString("\n" + truncate(rec.Description, 300) + "\n")
		}
	case *catalog.Candidate:
		sb.WriteString(fmt.Sprintf("### %d. %s (id %d, score: %.3f)\n", num, rec.Name, r.ID, r.Score))
		if contact := joinNonEmpty(" · ", rec.Email, rec.Phone); contact != "" {
			sb.WriteString(contact + "\n")
		}
		if len(rec.Skills) > 0 {
			sb.WriteString("**Skills:** " + strings.Join(rec.Skills, ", ") + "\n")
		}
		if len(rec.Education) > 0 {
			sb.WriteString("**Education:** " + strings.Join(rec.Education, "; ") + "\n")
		}
	default:
		sb.WriteString(fmt.Sprintf("### %d. id %d (score: %.3f)\n", num, r.ID, r.Score))
	}
	sb.WriteString("\n")
}

// ToMatchItem converts an engine result to the tool output format.
func ToMatchItem(r engine.MatchResult) MatchItem {
	item := MatchItem{ID: r.ID, Score: r.Score, Record: r.Record}
	switch rec := r.Record.(type) {
	case *catalog.Job:
		item.Label = rec.Title
	case *catalog.Candidate:
		item.Label = rec.Name
	}
	return item
}

// clampLimit returns limit bounded to [min, max], or defaultVal when unset.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// truncate shortens s to n runes, adding an ellipsis.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
