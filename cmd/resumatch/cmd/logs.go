package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/logging"
	"github.com/Aman-CERP/resumatch/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View resumatch logs",
		Long: `Show the JSON log written by 'resumatch serve' and by any command run
with --debug, one readable line per entry.

By default the last 50 lines of ~/.resumatch/logs/resumatch.log are shown.`,
		Example: `  resumatch logs -n 100
  resumatch logs -f --level warn
  resumatch logs --filter stale_reference`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.noColor = opts.noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout())
			return runLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.follow, "follow", "f", false, "Follow new entries (like tail -f)")
	f.IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	f.StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn or error")
	f.StringVar(&opts.filter, "filter", "", "Only show lines matching this regular expression")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	f.StringVar(&opts.file, "file", "", "Log file to read (default: ~/.resumatch/logs/resumatch.log)")

	return cmd
}

func runLogs(ctx context.Context, stdout, stderr io.Writer, opts logsOptions) error {
	path := opts.file
	if path == "" {
		path = logging.DefaultLogPath()
	}
	if !fileExists(path) {
		return fmt.Errorf("no log file at %s\nRun 'resumatch serve' or any command with --debug to create one", path)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, stdout)

	_, _ = fmt.Fprintf(stderr, "Log file: %s\n---\n", path)

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	return followLogs(ctx, viewer, path, stderr)
}

func followLogs(ctx context.Context, viewer *logging.Viewer, path string, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.Entry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case e := <-entries:
			viewer.Print([]logging.Entry{e})
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "\n---\nStopped.")
			return nil
		}
	}
}
