package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/output"
	"github.com/Aman-CERP/resumatch/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show match usage statistics",
		Long: `Display what matching has been used for:
  - Matches per kind (jobs, candidates)
  - Top query terms
  - Recent matches that found nothing
  - Latency distribution

Statistics are recorded locally in the catalog database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd.OutOrStdout(), jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

// statsOutput is the JSON form of 'resumatch stats'.
type statsOutput struct {
	Days                int                    `json:"days"`
	TotalMatches        int64                  `json:"total_matches"`
	ZeroResultPct       float64                `json:"zero_result_pct"`
	KindCounts          map[string]int64       `json:"kind_counts"`
	TopTerms            []telemetry.TermCount  `json:"top_terms"`
	ZeroResultQueries   []telemetry.ZeroResult `json:"zero_result_queries"`
	LatencyDistribution map[string]int64       `json:"latency_distribution"`
}

var latencyLabels = map[telemetry.LatencyBucket]string{
	telemetry.BucketP10:   "<10ms",
	telemetry.BucketP50:   "10-50ms",
	telemetry.BucketP100:  "50-100ms",
	telemetry.BucketP500:  "100-500ms",
	telemetry.BucketP1000: ">500ms",
}

func runStats(ctx context.Context, w io.Writer, jsonOutput bool, days int) error {
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !fileExists(cfg.CatalogPath()) {
		return fmt.Errorf("no catalog found in %s\nRun 'resumatch import' to create one", cfg.Data.Dir)
	}

	store, err := catalog.Open(ctx, cfg.CatalogPath(), cfg.Data.Driver)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ms, err := telemetry.NewSQLiteStore(store.DB())
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}

	out, err := collectStats(ms, days, time.Now())
	if err != nil {
		return fmt.Errorf("failed to read match statistics: %w", err)
	}

	if jsonOutput {
		return output.New(w).JSON(out)
	}
	printStats(w, out)
	return nil
}

func collectStats(ms *telemetry.SQLiteStore, days int, now time.Time) (*statsOutput, error) {
	since := now.AddDate(0, 0, -(days - 1))
	from, to := since.Format("2006-01-02"), now.Format("2006-01-02")

	kinds, err := ms.KindCounts(from, to)
	if err != nil {
		return nil, err
	}
	latencies, err := ms.LatencyCounts(from, to)
	if err != nil {
		return nil, err
	}
	terms, err := ms.TopTerms(10)
	if err != nil {
		return nil, err
	}
	recent, err := ms.ZeroResults(telemetry.MaxZeroResults)
	if err != nil {
		return nil, err
	}

	out := &statsOutput{
		Days:                days,
		KindCounts:          kinds,
		TopTerms:            terms,
		ZeroResultQueries:   []telemetry.ZeroResult{},
		LatencyDistribution: make(map[string]int64, len(latencies)),
	}
	for _, n := range kinds {
		out.TotalMatches += n
	}
	for b, n := range latencies {
		out.LatencyDistribution[string(b)] = n
	}

	// Zero results are kept individually, so the share is only exact while
	// the window holds fewer than MaxZeroResults of them.
	dayStart := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, since.Location())
	var zero int64
	for _, zr := range recent {
		if zr.Timestamp.Before(dayStart) {
			continue
		}
		zero++
		if len(out.ZeroResultQueries) < 10 {
			out.ZeroResultQueries = append(out.ZeroResultQueries, zr)
		}
	}
	if out.TotalMatches > 0 {
		out.ZeroResultPct = float64(min(zero, out.TotalMatches)) / float64(out.TotalMatches) * 100
	}
	return out, nil
}

func printStats(w io.Writer, s *statsOutput) {
	_, _ = fmt.Fprintf(w, "Match Statistics (last %d days)\n", s.Days)
	_, _ = fmt.Fprintln(w, "================================")
	_, _ = fmt.Fprintln(w)

	out := output.New(w)
	out.Fields(0,
		output.KV{Key: "Total Matches", Value: fmt.Sprint(s.TotalMatches)},
		output.KV{Key: "Zero Results", Value: fmt.Sprintf("%.1f%%", s.ZeroResultPct)},
	)
	_, _ = fmt.Fprintln(w)

	if len(s.KindCounts) > 0 {
		_, _ = fmt.Fprintln(w, "By Kind:")
		kinds := make([]string, 0, len(s.KindCounts))
		for k := range s.KindCounts {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		for _, k := range kinds {
			_, _ = fmt.Fprintf(w, "  %s: %d\n", k, s.KindCounts[k])
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(s.TopTerms) > 0 {
		_, _ = fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range s.TopTerms {
			_, _ = fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
	} else {
		_, _ = fmt.Fprintln(w, "Top Query Terms: (none recorded yet)")
	}
	_, _ = fmt.Fprintln(w)

	if len(s.ZeroResultQueries) > 0 {
		_, _ = fmt.Fprintln(w, "Recent Zero-Result Matches:")
		for _, zr := range s.ZeroResultQueries {
			_, _ = fmt.Fprintf(w, "  - [%s] %q\n", zr.Kind, zr.Query)
		}
	} else {
		_, _ = fmt.Fprintln(w, "Recent Zero-Result Matches: (none)")
	}

	if len(s.LatencyDistribution) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Latency Distribution:")
		for _, b := range telemetry.LatencyBuckets {
			if n, ok := s.LatencyDistribution[string(b)]; ok {
				_, _ = fmt.Fprintf(w, "  %s: %d\n", latencyLabels[b], n)
			}
		}
	}
}
