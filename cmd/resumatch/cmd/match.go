package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/output"
)

type matchOptions struct {
	kind       string
	terms      []string
	resume     string
	topK       int
	jsonOutput bool
}

func newMatchCmd() *cobra.Command {
	var opts matchOptions

	cmd := &cobra.Command{
		Use:   "match [text...]",
		Short: "Find the closest jobs or candidates",
		Long: `Embed the query and return the closest records of a kind.

The query is the positional text, the --terms keywords, or the contents
of a resume file. Scores are cosine similarity (higher is closer) or
squared L2 distance (lower is closer), depending on index.metric.`,
		Example: `  # Jobs for a resume
  resumatch match --resume ./jane-doe.txt

  # Candidates for a role
  resumatch match --kind candidates "senior go engineer, kubernetes"

  # Keywords, JSON output
  resumatch match --terms python,sql,airflow --top-k 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "jobs", "Kind of records to return: jobs or candidates")
	cmd.Flags().StringSliceVarP(&opts.terms, "terms", "t", nil, "Keywords, used when no text is given")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "Use a resume file as the query")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Number of results (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runMatch(cmd *cobra.Command, text string, opts matchOptions) error {
	ctx := cmd.Context()

	kind, err := catalog.ParseKind(opts.kind)
	if err != nil {
		return rmerrors.Wrap(rmerrors.ErrCodeInvalidInput, err)
	}
	if opts.resume != "" {
		if text != "" {
			return rmerrors.Newf(rmerrors.ErrCodeInvalidInput, "give either query text or --resume, not both")
		}
		cand, err := readResume(opts.resume)
		if err != nil {
			return err
		}
		text = cand.EmbeddingText()
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	results, err := a.engine.Match(ctx, engine.Query{
		Text:  text,
		Terms: opts.terms,
		Kind:  kind,
		TopK:  opts.topK,
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(results)
	}
	renderMatches(out, kind, results)
	return nil
}

func renderMatches(out *output.Writer, kind catalog.Kind, results []engine.MatchResult) {
	if len(results) == 0 {
		out.Statusf("🔍", "No matching %s", engine.IndexName(kind))
		return
	}

	direction := "higher is closer"
	if !results[0].Metric.HigherIsBetter() {
		direction = "lower is closer"
	}
	out.Statusf("🔍", "%d matching %s (%s, %s)", len(results), engine.IndexName(kind), results[0].Metric, direction)
	out.Newline()

	for i, r := range results {
		out.Statusf("", "%d. %s  [id %d, score %.4f]", i+1, recordLabel(r.Record), r.ID, r.Score)
		if fields := recordFields(r.Record); len(fields) > 1 {
			out.Fields(6, fields[1:]...)
		}
	}
}

func recordLabel(rec catalog.Record) string {
	switch r := rec.(type) {
	case *catalog.Job:
		if r.Company != "" {
			return fmt.Sprintf("%s at %s", r.Title, r.Company)
		}
		return r.Title
	case *catalog.Candidate:
		return r.Name
	default:
		return fmt.Sprintf("%s %d", rec.Kind(), rec.RecordID())
	}
}
