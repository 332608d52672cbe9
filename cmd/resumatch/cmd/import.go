package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/output"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load records into the catalog",
		Long: `Bulk-load records into the catalog in a single transaction.

Imported records are not indexed; run 'resumatch rebuild' afterwards.`,
	}

	cmd.AddCommand(newImportJobsCmd())
	cmd.AddCommand(newImportResumesCmd())

	return cmd
}

func newImportJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs <file.json>",
		Short: "Import a JSON array of job postings",
		Long: `Import a JSON array of job postings. Each posting uses the keys
job_title, job_description, company_name, location, employment_type,
required_skills (array or comma separated string), degree_requirement and
pay_rate {base, currency}.

Either every posting is stored or none is.`,
		Example: `  resumatch import jobs ./jobs.json && resumatch rebuild jobs`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportJobs(cmd, args[0])
		},
	}
}

func runImportJobs(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	f, err := os.Open(path)
	if err != nil {
		return rmerrors.New(rmerrors.ErrCodeInvalidInput, fmt.Sprintf("cannot open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ids, err := a.store.ImportJobs(ctx, f)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Imported %d jobs from %s", len(ids), filepath.Base(path))
	out.Status("💡", "Run 'resumatch rebuild jobs' to make them searchable")
	return nil
}

func newImportResumesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resumes <file|dir>...",
		Short: "Import resume text files",
		Long: `Import resumes from .txt and .md files. Directories are read one level
deep; files of other types in a directory are skipped.

Either every resume is stored or none is.`,
		Example: `  resumatch import resumes ./resumes/ && resumatch rebuild candidates`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportResumes(cmd, args)
		},
	}
}

func runImportResumes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	paths, err := resumePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return rmerrors.New(rmerrors.ErrCodeEmptyInput, "no resume files found", nil)
	}

	records := make([]catalog.Record, 0, len(paths))
	for _, p := range paths {
		cand, err := readResume(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		records = append(records, cand)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.store.InsertAll(ctx, records); err != nil {
		return err
	}

	out.Successf("Imported %d resumes", len(records))
	out.Status("💡", "Run 'resumatch rebuild candidates' to make them searchable")
	return nil
}

// resumePaths expands directories into their .txt and .md files.
func resumePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, fmt.Sprintf("cannot read %s", arg), err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, rmerrors.New(rmerrors.ErrCodeInvalidInput, fmt.Sprintf("cannot read %s", arg), err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".txt", ".text", ".md":
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
