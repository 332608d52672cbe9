package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
	"github.com/Aman-CERP/resumatch/internal/telemetry"
	"github.com/Aman-CERP/resumatch/internal/vector"
)

// Query is a match request.
type Query struct {
	// Text is the query text. When empty, Terms are joined with a space.
	Text  string
	Terms []string
	// Kind is the kind of records to return: KindJob finds jobs for a
	// resume, KindCandidate finds candidates for a job.
	Kind catalog.Kind
	// TopK <= 0 uses the configured default.
	TopK int
}

func (q Query) text() string {
	if strings.TrimSpace(q.Text) != "" {
		return q.Text
	}
	return strings.Join(q.Terms, " ")
}

// MatchResult is one ranked match. Score is the raw metric value: cosine
// similarity (higher is better) or squared L2 distance (lower is better).
type MatchResult struct {
	ID     int64          `json:"id"`
	Kind   catalog.Kind   `json:"kind"`
	Score  float32        `json:"score"`
	Metric vector.Metric  `json:"metric"`
	Record catalog.Record `json:"record"`
}

// Match embeds the query, searches the index of q.Kind with oversampling,
// resolves hits against the catalog and drops duplicates by dedup key.
// Results keep the index order.
func (e *Engine) Match(ctx context.Context, q Query) ([]MatchResult, error) {
	text := q.text()
	if strings.TrimSpace(text) == "" {
		return nil, rmerrors.New(rmerrors.ErrCodeEmptyInput, "match query is empty", nil)
	}
	if q.Kind == "" {
		q.Kind = catalog.KindJob
	}
	topK := q.TopK
	if topK <= 0 {
		topK = e.config.TopK
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()
	start := time.Now()

	idx, err := e.index(q.Kind)
	if err != nil {
		return e.notReady(q.Kind, err)
	}
	count := idx.Count()
	if count == 0 {
		return e.notReady(q.Kind, rmerrors.Newf(rmerrors.ErrCodeIndexNotReady, "%s index is empty", q.Kind))
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, timeoutErr(ctx, err)
	}
	query := vector.Prepare(idx.Metric(), vec)

	k := min(topK*e.config.Oversample, count)
	hits, err := idx.Search(ctx, query, k)
	if err != nil {
		return nil, timeoutErr(ctx, err)
	}

	results := make([]MatchResult, 0, topK)
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		rec, err := e.catalog.Get(ctx, q.Kind, h.ID)
		if errors.Is(err, rmerrors.ErrRecordNotFound) {
			slog.Warn("stale_reference_skipped",
				slog.String("kind", string(q.Kind)),
				slog.Int64("id", h.ID),
				slog.Int("position", h.Position))
			continue
		}
		if err != nil {
			return nil, timeoutErr(ctx, err)
		}

		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		results = append(results, MatchResult{
			ID:     h.ID,
			Kind:   q.Kind,
			Score:  h.Score,
			Metric: idx.Metric(),
			Record: rec,
		})
		if len(results) == topK {
			break
		}
	}

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.Record(telemetry.MatchEvent{
			Kind:        string(q.Kind),
			Query:       text,
			ResultCount: len(results),
			Latency:     elapsed,
		})
	}

	slog.Debug("match_completed",
		slog.String("kind", string(q.Kind)),
		slog.Int("top_k", topK),
		slog.Int("searched", k),
		slog.Int("hits", len(hits)),
		slog.Int("results", len(results)),
		slog.Duration("duration", elapsed))
	return results, nil
}

// notReady applies the empty-index policy.
func (e *Engine) notReady(kind catalog.Kind, err error) ([]MatchResult, error) {
	if e.config.EmptyPolicy == EmptyPolicyEmpty && errors.Is(err, rmerrors.ErrIndexNotReady) {
		slog.Debug("match_index_not_ready", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		return []MatchResult{}, nil
	}
	return nil, err
}

// timeoutErr reports a deadline hit inside Match as a Timeout error.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return rmerrors.New(rmerrors.ErrCodeTimeout, "match timed out", err)
	}
	return err
}
