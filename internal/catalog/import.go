package catalog

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// jobPosting is the external job JSON shape.
type jobPosting struct {
	Title             string     `json:"job_title"`
	Description       string     `json:"job_description"`
	Company           string     `json:"company_name"`
	Location          string     `json:"location"`
	EmploymentType    string     `json:"employment_type"`
	RequiredSkills    stringList `json:"required_skills"`
	DegreeRequirement string     `json:"degree_requirement"`
	PayRate           *struct {
		Base     flexNumber `json:"base"`
		Currency string     `json:"currency"`
	} `json:"pay_rate"`
}

// stringList accepts either a JSON array of strings or a comma separated
// string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = cleanList(items)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = SplitList(s)
	return nil
}

// flexNumber accepts a number or a numeric string such as "25.50".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "$"))
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return err
	}
	*n = flexNumber(f)
	return nil
}

func (p jobPosting) toJob() *Job {
	j := &Job{
		Title:             strings.TrimSpace(p.Title),
		Description:       strings.TrimSpace(p.Description),
		Company:           strings.TrimSpace(p.Company),
		Location:          strings.TrimSpace(p.Location),
		EmploymentType:    strings.TrimSpace(p.EmploymentType),
		RequiredSkills:    []string(p.RequiredSkills),
		DegreeRequirement: strings.TrimSpace(p.DegreeRequirement),
	}
	if p.PayRate != nil {
		j.PayRate = float64(p.PayRate.Base)
		j.Currency = strings.TrimSpace(p.PayRate.Currency)
	}
	return j
}

// ParseJobs decodes a JSON array of job postings.
func ParseJobs(r io.Reader) ([]*Job, error) {
	var postings []jobPosting
	if err := json.NewDecoder(r).Decode(&postings); err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, "invalid job JSON", err).
			WithSuggestion("Expected a JSON array of objects with job_title, job_description, required_skills")
	}
	jobs := make([]*Job, len(postings))
	for i, p := range postings {
		jobs[i] = p.toJob()
	}
	return jobs, nil
}

// ImportJobs reads a JSON array of job postings and inserts them in one
// transaction. It returns the assigned ids in input order.
func (s *Store) ImportJobs(ctx context.Context, r io.Reader) ([]int64, error) {
	jobs, err := ParseJobs(r)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, rmerrors.New(rmerrors.ErrCodeEmptyInput, "job file contains no postings", nil)
	}
	records := make([]Record, len(jobs))
	for i, j := range jobs {
		records[i] = j
	}
	return s.InsertAll(ctx, records)
}
