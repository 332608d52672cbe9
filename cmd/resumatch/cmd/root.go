// Package cmd provides the CLI commands for resumatch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/logging"
	"github.com/Aman-CERP/resumatch/internal/profiling"
	"github.com/Aman-CERP/resumatch/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()

	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the resumatch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resumatch",
		Short: "Semantic resume and job matching",
		Long: `resumatch matches resumes to job postings, and job postings to
candidates, by meaning rather than keywords.

Records live in a local SQLite catalog. Each kind has its own vector
index, built with 'resumatch rebuild' and kept current by 'resumatch ingest'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("resumatch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.resumatch/logs/")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startLoggingAndProfiling
	cmd.PersistentPostRunE = stopLoggingAndProfiling

	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLoggingAndProfiling installs the default logger and starts any
// requested profiles. Without --debug only warnings reach stderr; serve
// replaces this with file-only logging.
func startLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profileSession = s
	}

	if !debugMode {
		slog.SetLogLoggerLevel(slog.LevelWarn)
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	if profileSession != nil {
		err := profileSession.Stop()
		profileSession = nil
		if err != nil {
			return fmt.Errorf("failed to write profiles: %w", err)
		}
	}
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints a failure in the structured
// error format.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, rmerrors.FormatForCLI(err))
	}
	return err
}
