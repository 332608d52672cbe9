package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/async"
	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/config"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/logging"
	"github.com/Aman-CERP/resumatch/internal/mcp"
	"github.com/Aman-CERP/resumatch/internal/preflight"
)

func newServeCmd() *cobra.Command {
	var (
		transport   string
		autoRebuild bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server so AI clients can match,
ingest and rebuild.

stdout carries JSON-RPC only; logs go to ~/.resumatch/logs/server.log.

With --auto-rebuild (the default) indexes that are missing or behind the
catalog are rebuilt in the background; index_status reports progress.`,
		Example: `  # Register with an MCP client
  {"command": "resumatch", "args": ["serve"]}`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, autoRebuild)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio)")
	cmd.Flags().BoolVar(&autoRebuild, "auto-rebuild", true, "Rebuild stale indexes in the background")

	return cmd
}

func runServe(ctx context.Context, transport string, autoRebuild bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Nothing may reach stdout before the MCP handshake.
	cleanup, err := logging.ServeMode(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := servePreflight(ctx, cfg); err != nil {
		slog.Error("serve_preflight_failed", slog.String("error", err.Error()))
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		slog.Error("serve_init_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a.engine, a.cfg)
	if err != nil {
		return err
	}
	if autoRebuild {
		startStaleRebuild(ctx, srv, a.cfg.Data.Dir)
	}
	return srv.Serve(ctx, transport)
}

// servePreflight runs the system checks once per data directory and
// settings fingerprint. Results go to the log since stdout is reserved.
func servePreflight(ctx context.Context, cfg *config.Config) error {
	if !preflight.NeedsCheck(cfg.Data.Dir, preflight.Fingerprint(cfg)) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	results := checker.RunAll(ctx, cfg)
	for _, r := range results {
		slog.Info("preflight_check",
			slog.String("name", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message))
	}
	if checker.HasCriticalFailures(results) {
		return rmerrors.New(rmerrors.ErrCodeConfigInvalid, "system check failed", nil).
			WithSuggestion("Run 'resumatch doctor' for details")
	}
	if err := markPreflight(cfg); err != nil {
		slog.Warn("preflight_mark_failed", slog.String("error", err.Error()))
	}
	return nil
}

// startStaleRebuild rebuilds indexes that lag the catalog. After an
// interrupted background rebuild every kind with records is rebuilt.
func startStaleRebuild(ctx context.Context, srv *mcp.Server, dataDir string) {
	kinds, err := srv.StaleKinds(ctx)
	if err != nil {
		slog.Warn("stale_check_failed", slog.String("error", err.Error()))
		return
	}
	if async.HasIncompleteLock(dataDir) {
		slog.Warn("previous_rebuild_interrupted", slog.String("data_dir", dataDir))
		kinds = []catalog.Kind{catalog.KindJob, catalog.KindCandidate}
	}
	if len(kinds) == 0 {
		return
	}
	slog.Info("background_rebuild_started", slog.Any("kinds", kinds))
	srv.StartBackgroundRebuild(ctx, kinds)
}
