package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/resumatch/internal/async"
	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// StaleKinds returns the kinds whose index is missing or does not cover
// every catalog record. Kinds without records are never stale.
func (s *Server) StaleKinds(ctx context.Context) ([]catalog.Kind, error) {
	kinds, err := s.engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	var stale []catalog.Kind
	for _, k := range kinds {
		if k.Records == 0 {
			continue
		}
		if k.Index == nil || k.Index.Count != k.Records {
			stale = append(stale, k.Kind)
		}
	}
	return stale, nil
}

// StartBackgroundRebuild rebuilds kinds in a goroutine while the server
// answers requests. Progress shows up in index_status. Calls while a
// background rebuild is running return the running one.
func (s *Server) StartBackgroundRebuild(ctx context.Context, kinds []catalog.Kind) *async.BackgroundRebuilder {
	if bg := s.background.Load(); bg != nil && bg.IsRunning() {
		return bg
	}

	bg := async.NewBackgroundRebuilder(async.Config{DataDir: s.config.Data.Dir, Kinds: kinds})
	bg.RebuildFunc = func(ctx context.Context, kind catalog.Kind, p *async.Progress) error {
		s.rebuildMu.Lock()
		defer s.rebuildMu.Unlock()

		res, err := s.engine.RebuildIndex(ctx, kind, func(pr engine.Progress) {
			p.SetStage(pr.Stage, pr.Current, pr.Total)
		})
		if err != nil {
			s.logger.Error("background rebuild failed",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("background rebuild completed",
			slog.String("kind", string(kind)),
			slog.Int("records", res.Records),
			slog.Duration("duration", res.Duration))
		return nil
	}

	s.background.Store(bg)
	bg.Start(ctx)
	return bg
}

func (s *Server) stopBackground() {
	if bg := s.background.Load(); bg != nil {
		bg.Stop()
	}
}

// rebuildingError explains an unready index whose rebuild is under way.
func (s *Server) rebuildingError(kind catalog.Kind, err error) *MCPError {
	bg := s.background.Load()
	if bg == nil || !bg.IsRebuilding(kind) || rmerrors.GetCode(err) != rmerrors.ErrCodeIndexNotReady {
		return nil
	}
	snap := bg.Progress(kind).Snapshot()
	return &MCPError{
		Code: ErrCodeIndexNotReady,
		Message: fmt.Sprintf("The %s index is being built (%s, %.0f%%). Try again shortly.",
			engine.IndexName(kind), snap.Status, snap.ProgressPct),
	}
}
