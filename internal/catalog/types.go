// Package catalog holds job postings and candidate profiles in SQLite.
//
// The catalog is the source of truth for records; vector indexes only carry
// catalog ids and are rebuilt from here.
package catalog

import (
	"fmt"
	"strings"
	"time"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// Kind tags a record type.
type Kind string

const (
	KindJob       Kind = "job"
	KindCandidate Kind = "candidate"
)

// ParseKind parses a kind name. Plural forms are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "job", "jobs":
		return KindJob, nil
	case "candidate", "candidates", "resume", "resumes":
		return KindCandidate, nil
	default:
		return "", fmt.Errorf("unknown record kind %q (valid: job, candidate)", s)
	}
}

// Other returns the kind searched when matching records of k.
func (k Kind) Other() Kind {
	if k == KindJob {
		return KindCandidate
	}
	return KindJob
}

// Record is a catalog entry that can be embedded and matched.
type Record interface {
	Kind() Kind
	RecordID() int64
	Validate() error
	// EmbeddingText is the text embedded for this record.
	EmbeddingText() string
	// DedupKey collapses near-duplicate records in match results.
	DedupKey() string
}

// Job is a job posting.
type Job struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Company           string    `json:"company,omitempty"`
	Location          string    `json:"location,omitempty"`
	EmploymentType    string    `json:"employment_type,omitempty"`
	RequiredSkills    []string  `json:"required_skills,omitempty"`
	DegreeRequirement string    `json:"degree_requirement,omitempty"`
	PayRate           float64   `json:"pay_rate,omitempty"`
	Currency          string    `json:"currency,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func (j *Job) Kind() Kind      { return KindJob }
func (j *Job) RecordID() int64 { return j.ID }

// Validate checks required fields.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return rmerrors.New(rmerrors.ErrCodeInvalidRecord, "job title is required", nil)
	}
	if j.PayRate < 0 {
		return rmerrors.Newf(rmerrors.ErrCodeInvalidRecord, "job pay rate must not be negative, got %v", j.PayRate)
	}
	return nil
}

// EmbeddingText joins title, description and skills.
func (j *Job) EmbeddingText() string {
	return joinParts(
		j.Title,
		j.Description,
		prefixed("Skills: ", j.RequiredSkills, ", "),
	)
}

// DedupKey is the normalized title, so reposts of the same role collapse.
// Untitled jobs fall back to their id and never collapse.
func (j *Job) DedupKey() string {
	key := strings.ToLower(strings.TrimSpace(j.Title))
	if key == "" {
		return fmt.Sprintf("job:%d", j.ID)
	}
	return key
}

// Candidate is a resume profile.
type Candidate struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Education []string  `json:"education,omitempty"`
	Skills    []string  `json:"skills,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Candidate) Kind() Kind      { return KindCandidate }
func (c *Candidate) RecordID() int64 { return c.ID }

// Validate checks required fields.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return rmerrors.New(rmerrors.ErrCodeInvalidRecord, "candidate name is required", nil)
	}
	return nil
}

// EmbeddingText joins summary, education and skills.
func (c *Candidate) EmbeddingText() string {
	return joinParts(
		c.Summary,
		prefixed("Education: ", c.Education, "; "),
		prefixed("Skills: ", c.Skills, ", "),
	)
}

// DedupKey is unique per candidate.
func (c *Candidate) DedupKey() string {
	return fmt.Sprintf("candidate:%d", c.ID)
}

func joinParts(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func prefixed(prefix string, items []string, sep string) string {
	clean := cleanList(items)
	if len(clean) == 0 {
		return ""
	}
	return prefix + strings.Join(clean, sep)
}

// cleanList trims items and drops empty ones.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// SplitList splits a comma separated string into trimmed items.
func SplitList(s string) []string {
	return cleanList(strings.Split(s, ","))
}
