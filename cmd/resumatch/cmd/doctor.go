package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/embed"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/lifecycle"
	"github.com/Aman-CERP/resumatch/internal/output"
	"github.com/Aman-CERP/resumatch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		fix        bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that resumatch can run",
		Long: `Validate the configuration, the data directory, the catalog and the
embedding provider. Exits non-zero when a required check fails.

A passing run also records the check for 'resumatch serve'.

With --fix, a missing Ollama model is pulled before the checks run.`,
		Example: `  resumatch doctor
  resumatch doctor --verbose
  resumatch doctor --fix
  resumatch doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput, fix)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&fix, "fix", false, "Pull a missing Ollama model first")

	return cmd
}

// doctorReport is the JSON shape of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput, fix bool) error {
	ctx := cmd.Context()

	checker := preflight.New(
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithVerbose(verbose),
	)

	cfg, loadErr := loadConfig()
	var results []preflight.CheckResult
	if loadErr != nil {
		results = []preflight.CheckResult{{
			Name:     "config",
			Status:   preflight.StatusFail,
			Message:  loadErr.Error(),
			Required: true,
		}}
	} else {
		if fix {
			// Progress goes to stderr so --json output stays parseable.
			if err := pullMissingModel(ctx, cmd.ErrOrStderr(), cfg.Embeddings); err != nil {
				return err
			}
		}
		results = checker.RunAll(ctx, cfg)
	}

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(doctorReport{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return rmerrors.New(rmerrors.ErrCodeConfigInvalid, "system check failed", nil).
			WithSuggestion("Fix the failed checks above and run 'resumatch doctor' again")
	}
	return markPreflight(cfg)
}

// markPreflight records a passing check so serve can skip it.
func markPreflight(cfg *config.Config) error {
	if err := preflight.MarkPassed(cfg.Data.Dir, preflight.Fingerprint(cfg)); err != nil {
		return fmt.Errorf("failed to record check: %w", err)
	}
	return nil
}

// pullMissingModel pulls the configured Ollama model when the server is
// up and lacks it. Other providers need nothing.
func pullMissingModel(ctx context.Context, w io.Writer, cfg config.EmbeddingsConfig) error {
	if embed.ParseProvider(cfg.Provider) != embed.ProviderOllama {
		_, _ = fmt.Fprintf(w, "Nothing to fix for the %s provider\n", cfg.Provider)
		return nil
	}

	mgr := lifecycle.NewOllamaManager(cfg.OllamaHost)
	status, err := mgr.Status(ctx, cfg.Model)
	if err != nil {
		return err
	}
	if !status.Running {
		return rmerrors.Newf(rmerrors.ErrCodeEmbeddingFailed, "Ollama is not answering at %s", mgr.Host()).
			WithSuggestion(status.Hint())
	}
	if status.HasModel {
		_, _ = fmt.Fprintf(w, "Model %s is already available\n", cfg.Model)
		return nil
	}

	_, _ = fmt.Fprintf(w, "Pulling %s from %s\n", cfg.Model, mgr.Host())
	if err := mgr.PullModel(ctx, cfg.Model, lifecycle.PullProgressPrinter(w)); err != nil {
		return rmerrors.New(rmerrors.ErrCodeEmbeddingFailed, fmt.Sprintf("failed to pull %s", cfg.Model), err)
	}
	_, _ = fmt.Fprintf(w, "\nPulled %s\n", cfg.Model)
	return nil
}
