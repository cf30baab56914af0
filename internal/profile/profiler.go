// File path: internal/profile/profiler.go
package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
)

const (
	topValueLimit      = 10
	columnConcurrency  = 4
	likelyIDUniquePct  = 90.0
	likelyIDMissingPct = 5.0
	likelyIDMinCount   = 20
)

// Profiler computes table and column summaries.
type Profiler struct{}

// NewProfiler returns a ready profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Profile summarizes the table in a single pass per column. Columns are
// profiled concurrently with a bounded worker group; cancellation is honored
// between columns.
func (p *Profiler) Profile(ctx context.Context, table *dataset.Table) (*TableProfile, error) {
	if table == nil {
		return nil, fmt.Errorf("profile: table required")
	}
	logger := common.Logger()
	ctx, end := telemetry.StartSpan(ctx, "profile")
	defer end("columns", len(table.Columns))

	result := &TableProfile{
		Dataset:         table.Name,
		Rows:            table.Rows,
		Columns:         len(table.Columns),
		MissingByColumn: make(map[string]int, len(table.Columns)),
		ColumnProfiles:  make([]ColumnProfile, len(table.Columns)),
		Fingerprint:     dataset.Fingerprint(table),
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(columnConcurrency)
	for i := range table.Columns {
		i := i
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.ColumnProfiles[i] = profileColumn(&table.Columns[i], table.Rows)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("profile columns: %w", err)
	}

	totalCells := table.Rows * len(table.Columns)
	for _, cp := range result.ColumnProfiles {
		result.MissingCells += cp.Missing
		if cp.Missing > 0 {
			result.MissingByColumn[cp.Name] = cp.Missing
		}
	}
	if totalCells > 0 {
		result.MissingPct = pct(result.MissingCells, totalCells)
	}
	result.DuplicateRows = countDuplicateRows(table)
	if table.Rows > 0 {
		result.DuplicatePct = pct(result.DuplicateRows, table.Rows)
	}

	logger.Debug("profile: table summarized",
		"dataset", table.Name,
		"rows", table.Rows,
		"missing_pct", result.MissingPct,
		"duplicates", result.DuplicateRows,
	)
	return result, nil
}

func profileColumn(col *dataset.Column, rows int) ColumnProfile {
	present := col.NonMissing()
	missing := rows - len(present)
	cp := ColumnProfile{
		Name:    col.Name,
		Type:    col.Type,
		Count:   len(present),
		Missing: missing,
		Unique:  col.DistinctCount(),
	}
	if rows > 0 {
		cp.MissingPct = pct(missing, rows)
	}
	if len(present) > 0 {
		cp.UniquePct = pct(cp.Unique, len(present))
	}

	switch col.Type {
	case dataset.TypeNumeric, dataset.TypeIdentifier:
		cp.Numeric = numericStats(col, cp.UniquePct, cp.MissingPct)
	case dataset.TypeDatetime:
		cp.Datetime = datetimeStats(col)
	default:
		cp.String = stringStats(col, present, cp.Unique)
	}
	return cp
}

func numericStats(col *dataset.Column, uniquePct, missingPct float64) *NumericStats {
	values := dataset.FloatValues(col)
	if len(values) == 0 {
		return &NumericStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	// Below the sample size every column looks unique, so the ID flag
	// stays off for small tables.
	likelyID := len(values) >= likelyIDMinCount &&
		uniquePct > likelyIDUniquePct && missingPct < likelyIDMissingPct
	stats := &NumericStats{
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		Median:   Quantile(sorted, 0.5),
		Q1:       Quantile(sorted, 0.25),
		Q3:       Quantile(sorted, 0.75),
		LikelyID: likelyID,
	}
	for _, v := range values {
		stats.Sum += v
	}
	stats.Mean = stats.Sum / float64(len(values))
	stats.StdDev = StdDev(values, stats.Mean)

	iqr := stats.Q3 - stats.Q1
	stats.Outliers.Lower = stats.Q1 - 1.5*iqr
	stats.Outliers.Upper = stats.Q3 + 1.5*iqr
	for _, v := range values {
		if v < stats.Outliers.Lower || v > stats.Outliers.Upper {
			stats.Outliers.Count++
		}
	}
	return stats
}

func stringStats(col *dataset.Column, present []string, unique int) *StringStats {
	stats := &StringStats{}
	if len(present) == 0 {
		return stats
	}
	counts := make(map[string]int, len(present))
	totalLen := 0
	stats.MinLen = len(present[0])
	for _, v := range present {
		length := len(v)
		totalLen += length
		if length < stats.MinLen {
			stats.MinLen = length
		}
		if length > stats.MaxLen {
			stats.MaxLen = length
		}
		counts[v]++
	}
	stats.AvgLen = float64(totalLen) / float64(len(present))
	uniqueRatio := float64(unique) / float64(len(present))
	stats.Categorical = uniqueRatio < 0.15 || unique < 20
	stats.TopValues = topValues(counts, topValueLimit)
	return stats
}

func datetimeStats(col *dataset.Column) *DatetimeStats {
	times := dataset.TimeValues(col)
	if len(times) == 0 {
		return &DatetimeStats{}
	}
	stats := &DatetimeStats{MinTime: times[0], MaxTime: times[0]}
	for _, ts := range times[1:] {
		if ts.Before(stats.MinTime) {
			stats.MinTime = ts
		}
		if ts.After(stats.MaxTime) {
			stats.MaxTime = ts
		}
	}
	stats.RangeDays = int(stats.MaxTime.Sub(stats.MinTime).Hours() / 24)
	return stats
}

func topValues(counts map[string]int, limit int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, ValueCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func countDuplicateRows(table *dataset.Table) int {
	if table == nil || table.Rows == 0 {
		return 0
	}
	seen := make(map[string]struct{}, table.Rows)
	duplicates := 0
	for i := 0; i < table.Rows; i++ {
		key := strings.Join(table.Row(i), "\x1f")
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}
	return duplicates
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
