package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/embed"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog and index status",
		Long: `Display, for jobs and candidates:
  - Number of catalog records and indexed vectors
  - Index backend, metric, dimensions and size on disk
  - When the index was last written
  - Embedder provider, model and availability`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info, err := collectStatus(ctx, a)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, a *app) (ui.StatusInfo, error) {
	embedInfo := embed.GetInfo(ctx, a.embedder)
	info := ui.StatusInfo{
		DataDir: a.cfg.Data.Dir,
		Catalog: a.cfg.CatalogPath(),
		Embedder: ui.EmbedderInfo{
			Provider:   a.cfg.Embeddings.Provider,
			Model:      embedInfo.Model,
			Dimensions: embedInfo.Dimensions,
		},
		EmbedderStatus: "offline",
	}
	if embedInfo.Available {
		info.EmbedderStatus = "ready"
	}

	kinds, err := a.engine.Status(ctx)
	if err != nil {
		return info, err
	}
	for _, k := range kinds {
		ki := ui.KindInfo{
			Kind:    engine.IndexName(k.Kind),
			Records: k.Records,
			Error:   k.Error,
		}
		if k.Index != nil {
			ki.Ready = true
			ki.Indexed = k.Index.Count
			ki.Backend = string(k.Index.Backend)
			ki.Metric = string(k.Index.Metric)
			ki.Dimensions = k.Index.Dimensions

			cfg := a.engine.IndexConfig(k.Kind)
			for _, p := range []string{cfg.VectorsPath(), cfg.IDsPath()} {
				if st, err := os.Stat(p); err == nil {
					ki.IndexSize += st.Size()
					if st.ModTime().After(ki.BuiltAt) {
						ki.BuiltAt = st.ModTime()
					}
				}
			}
		}
		info.Kinds = append(info.Kinds, ki)
	}
	return info, nil
}
