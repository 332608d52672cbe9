package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/embed"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/ui"
)

func newRebuildCmd() *cobra.Command {
	var (
		plain   bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild <jobs|candidates|all>",
		Short: "Re-embed the catalog and replace an index",
		Long: `Embed every catalog record of a kind and atomically replace its index.

Run it after importing records in bulk, after changing the embedding
model, or after changing index.metric. Rebuilding twice gives the same
index. An empty catalog is an error and leaves existing index files alone.`,
		Example: `  # Rebuild the job index
  resumatch rebuild jobs

  # Rebuild both indexes with plain progress output
  resumatch rebuild all --plain`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"jobs", "candidates", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args[0])
			if err != nil {
				return err
			}
			return runRebuild(cmd, kinds, plain, noColor)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

// parseKinds accepts a kind name or "all".
func parseKinds(s string) ([]catalog.Kind, error) {
	if s == "all" {
		return []catalog.Kind{catalog.KindJob, catalog.KindCandidate}, nil
	}
	kind, err := catalog.ParseKind(s)
	if err != nil {
		return nil, err
	}
	return []catalog.Kind{kind}, nil
}

func runRebuild(cmd *cobra.Command, kinds []catalog.Kind, plain, noColor bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	for _, kind := range kinds {
		if err := rebuildKind(ctx, cmd, a, kind, plain, noColor); err != nil {
			return err
		}
	}
	return nil
}

func rebuildKind(ctx context.Context, cmd *cobra.Command, a *app, kind catalog.Kind, plain, noColor bool) error {
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor),
		ui.WithTitle("Rebuilding "+engine.IndexName(kind)),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	res, err := a.engine.RebuildIndex(ctx, kind, func(p engine.Progress) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.ParseStage(p.Stage),
			Current: p.Current,
			Total:   p.Total,
		})
	})
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", engine.IndexName(kind), err)
	}

	info := embed.GetInfo(ctx, a.embedder)
	renderer.Complete(ui.CompletionStats{
		Kind:          engine.IndexName(kind),
		Records:       res.Records,
		Dimensions:    res.Dimensions,
		Metric:        string(res.Metric),
		Backend:       string(res.Backend),
		Duration:      res.Duration,
		EmbedDuration: res.EmbedDuration,
		Embedder: ui.EmbedderInfo{
			Provider:   a.cfg.Embeddings.Provider,
			Model:      info.Model,
			Dimensions: info.Dimensions,
		},
	})
	return nil
}
