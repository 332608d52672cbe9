package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/extract"
	"github.com/Aman-CERP/resumatch/internal/output"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add one record and make it searchable",
		Long: `Store a single record in the catalog and append it to the live index
of its kind.

The record is always stored. When no index has been built yet, or the
index cannot be updated, the record is indexed by the next rebuild.`,
	}

	cmd.AddCommand(newIngestResumeCmd())
	cmd.AddCommand(newIngestJobCmd())

	return cmd
}

func newIngestResumeCmd() *cobra.Command {
	var (
		name       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "resume <file>",
		Short: "Ingest a resume from a text or markdown file",
		Long: `Read a plain-text resume, extract name, email, phone, skills and
degrees, and ingest it as a candidate.`,
		Example: `  resumatch ingest resume ./jane-doe.txt
  resumatch ingest resume ./cv.md --name "Jane Doe"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cand, err := readResume(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				cand.Name = name
			}
			return runIngest(cmd, cand, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Candidate name (overrides the extracted one)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// readResume reads and parses one resume file.
func readResume(path string) (*catalog.Candidate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, fmt.Sprintf("cannot read resume %s", path), err)
	}
	text, err := extract.Text(raw, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, rmerrors.Newf(rmerrors.ErrCodeEmptyInput, "resume %s is empty", path)
	}
	return extract.ParseResume(text), nil
}

func newIngestJobCmd() *cobra.Command {
	var (
		job        catalog.Job
		skills     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "job",
		Short: "Ingest a job posting",
		Example: `  resumatch ingest job --title "Backend Engineer" --company Acme \
    --skills "go, postgres, kubernetes" --description "Build our APIs"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j := job
			j.RequiredSkills = catalog.SplitList(skills)
			return runIngest(cmd, &j, jsonOutput)
		},
	}

	f := cmd.Flags()
	f.StringVar(&job.Title, "title", "", "Job title (required)")
	f.StringVar(&job.Description, "description", "", "Job description")
	f.StringVar(&job.Company, "company", "", "Company name")
	f.StringVar(&job.Location, "location", "", "Location")
	f.StringVar(&job.EmploymentType, "type", "", "Employment type, e.g. full-time")
	f.StringVar(&skills, "skills", "", "Required skills, comma separated")
	f.StringVar(&job.DegreeRequirement, "degree", "", "Degree requirement")
	f.Float64Var(&job.PayRate, "pay-rate", 0, "Base pay rate")
	f.StringVar(&job.Currency, "currency", "", "Pay rate currency")
	f.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

// ingestOutput is the JSON shape of an ingest result.
type ingestOutput struct {
	engine.IngestResult
	Record     catalog.Record `json:"record"`
	IndexError string         `json:"index_error,omitempty"`
}

func runIngest(cmd *cobra.Command, rec catalog.Record, jsonOutput bool) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.engine.IngestOne(ctx, rec)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		o := ingestOutput{IngestResult: res, Record: rec}
		if res.IndexErr != nil {
			o.IndexError = res.IndexErr.Error()
		}
		return out.JSON(o)
	}

	out.Successf("Stored %s %d", res.Kind, res.ID)
	out.Fields(3, recordFields(rec)...)
	if res.Indexed {
		out.Statusf("🔎", "Searchable now in the %s index", engine.IndexName(res.Kind))
		return nil
	}
	out.Warningf("Not indexed yet: %s", indexErrMessage(res.IndexErr))
	if me, ok := rmerrors.As(res.IndexErr); ok && me.Suggestion != "" {
		out.Status("💡", me.Suggestion)
	}
	return nil
}

func indexErrMessage(err error) string {
	if me, ok := rmerrors.As(err); ok {
		return me.Message
	}
	return err.Error()
}

// recordFields lists the fields shown for a record in text output.
func recordFields(rec catalog.Record) []output.KV {
	switch r := rec.(type) {
	case *catalog.Job:
		return []output.KV{
			{Key: "Title", Value: r.Title},
			{Key: "Company", Value: r.Company},
			{Key: "Location", Value: r.Location},
			{Key: "Skills", Value: strings.Join(r.RequiredSkills, ", ")},
			{Key: "Degree", Value: r.DegreeRequirement},
		}
	case *catalog.Candidate:
		return []output.KV{
			{Key: "Name", Value: r.Name},
			{Key: "Email", Value: r.Email},
			{Key: "Phone", Value: r.Phone},
			{Key: "Skills", Value: strings.Join(r.Skills, ", ")},
			{Key: "Education", Value: strings.Join(r.Education, "; ")},
		}
	default:
		return nil
	}
}
