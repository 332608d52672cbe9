package engine

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/vector"
)

// Clear removes the index of kind and then every catalog record of kind,
// holding the writer lock throughout. The index goes first because ids
// restart after a clear: an index left behind would point at new records.
func (e *Engine) Clear(ctx context.Context, kind catalog.Kind) (int, error) {
	cfg := e.indexConfig(kind)
	release, err := vector.LockDir(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer release()

	e.mu.Lock()
	delete(e.indexes, kind)
	e.mu.Unlock()

	if err := vector.Remove(cfg); err != nil {
		return 0, err
	}
	n, err := e.catalog.Clear(ctx, kind)
	if err != nil {
		return 0, err
	}

	slog.Info("kind_cleared",
		slog.String("kind", string(kind)),
		slog.Int("records", n))
	return n, nil
}
