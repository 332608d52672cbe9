package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/inbox"
	"github.com/Aman-CERP/resumatch/internal/output"
	"github.com/Aman-CERP/resumatch/internal/watcher"
)

type watchOptions struct {
	kind     string
	existing bool
	once     bool
	poll     bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest records dropped into a directory",
		Long: `Watch a directory and ingest every file that appears in it.

For candidates, .txt, .text and .md resumes are read. For jobs, .json files
holding an array of postings are read. Each record is stored and appended
to the live index, so it is searchable as soon as it is reported.

Files already in the directory are left alone unless --existing is given.
Removing a file does not remove its records.`,
		Example: `  resumatch watch ./inbox/resumes
  resumatch watch ./inbox/jobs --kind jobs
  resumatch watch ./inbox/resumes --once   # ingest what is there and exit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.kind, "kind", "candidates", "Record kind: candidates or jobs")
	f.BoolVar(&opts.existing, "existing", false, "Also ingest files already in the directory")
	f.BoolVar(&opts.once, "once", false, "Ingest the files already in the directory and exit")
	f.BoolVar(&opts.poll, "poll", false, "Poll instead of using file system notifications")

	return cmd
}

func runWatch(ctx context.Context, w io.Writer, dir string, opts watchOptions) error {
	kind, err := catalog.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(w)
	box := inbox.New(a.engine, kind)
	report := func(r inbox.Result) { reportInbox(out, r) }

	if opts.existing || opts.once {
		files, err := existingFiles(dir, inbox.Extensions(kind))
		if err != nil {
			return err
		}
		for _, f := range files {
			for _, r := range box.ProcessFile(ctx, f) {
				report(r)
			}
		}
		if opts.once {
			out.Successf("Processed %d files", len(files))
			return nil
		}
	}

	wt, err := watcher.New(watcher.Options{Extensions: inbox.Extensions(kind), ForcePolling: opts.poll})
	if err != nil {
		return err
	}
	defer func() { _ = wt.Stop() }()

	watchErr := make(chan error, 1)
	go func() { watchErr <- wt.Start(ctx, dir) }()
	select {
	case <-wt.Ready():
	case err := <-watchErr:
		return err
	}

	abs, _ := filepath.Abs(dir)
	out.Statusf("👀", "Watching %s for %s (%s). Press Ctrl+C to stop.", abs, engine.IndexName(kind), wt.Mode())

	runErr := box.Run(ctx, wt.Events(), report)
	_ = wt.Stop()
	if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func reportInbox(out *output.Writer, r inbox.Result) {
	name := filepath.Base(r.Path)
	switch {
	case r.Err != nil:
		out.Errorf("%s: %s", name, indexErrMessage(r.Err))
	case r.Indexed:
		out.Successf("%s: stored %s %d, searchable now", name, r.Kind, r.ID)
	default:
		out.Warningf("%s: stored %s %d, not indexed yet: %s", name, r.Kind, r.ID, indexErrMessage(r.IndexErr))
	}
}

// existingFiles lists regular files in dir with one of exts, sorted.
func existingFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
