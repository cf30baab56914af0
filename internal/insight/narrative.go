// File path: internal/insight/narrative.go
package insight

import (
	"fmt"
	"math"

	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	severityInfo    = "info"
	severityWarning = "warning"

	missingWarnPct     = 5.0
	duplicateWarnPct   = 5.0
	correlationCallout = 0.8
	trendStatementCap  = 3
)

// BuildNarratives turns the profile and report into human-readable
// findings, most significant first.
func BuildNarratives(prof *profile.TableProfile, detection domain.Detection, report *eda.Report) []Insight {
	insights := []Insight{{
		Kind:     "overview",
		Title:    "Dataset overview",
		Detail:   fmt.Sprintf("%d rows and %d columns detected as %s data (confidence %.0f%%).", prof.Rows, prof.Columns, detection.Domain, detection.Confidence*100),
		Severity: severityInfo,
	}}

	if prof.MissingPct > missingWarnPct {
		insights = append(insights, Insight{
			Kind:     "missing_data",
			Title:    "Missing data",
			Detail:   fmt.Sprintf("%.1f%% of cells are empty (%d cells). Imputation or column drops may be needed before modeling.", prof.MissingPct, prof.MissingCells),
			Severity: severityWarning,
		})
	}
	if prof.DuplicatePct > duplicateWarnPct {
		insights = append(insights, Insight{
			Kind:     "duplicates",
			Title:    "Duplicate rows",
			Detail:   fmt.Sprintf("%d duplicate rows (%.1f%%) inflate counts and averages.", prof.DuplicateRows, prof.DuplicatePct),
			Severity: severityWarning,
		})
	}

	if pair, ok := strongestPair(report); ok {
		insights = append(insights, Insight{
			Kind:     "correlation",
			Title:    "Strong relationship",
			Detail:   fmt.Sprintf("%s and %s move together (r = %.2f, %s).", pair.A, pair.B, pair.R, pair.Direction),
			Severity: severityInfo,
		})
	}

	if total, columns := outlierTotals(report); total > 0 {
		insights = append(insights, Insight{
			Kind:     "outliers",
			Title:    "Outliers present",
			Detail:   fmt.Sprintf("%d values across %d columns fall outside the interquartile fences.", total, columns),
			Severity: severityInfo,
		})
	}

	statements := 0
	for _, trend := range report.Trends {
		if trend.Strength != "strong" || trend.Direction == "stable" {
			continue
		}
		insights = append(insights, Insight{
			Kind:     "trend",
			Title:    fmt.Sprintf("%s is %s", trend.Column, trend.Direction),
			Detail:   fmt.Sprintf("%s shows a strong %s trend over the dataset (r² = %.2f).", trend.Column, trend.Direction, trend.R2),
			Severity: severityInfo,
		})
		statements++
		if statements >= trendStatementCap {
			break
		}
	}
	return insights
}

// strongestPair picks the highest-magnitude correlation above the
// callout threshold.
func strongestPair(report *eda.Report) (eda.StrongPair, bool) {
	var best eda.StrongPair
	found := false
	if report.Correlations == nil {
		return best, false
	}
	for _, pair := range report.Correlations.Strong {
		if math.Abs(pair.R) <= correlationCallout {
			continue
		}
		if !found || math.Abs(pair.R) > math.Abs(best.R) {
			best = pair
			found = true
		}
	}
	return best, found
}

func outlierTotals(report *eda.Report) (total, columns int) {
	for _, entry := range report.Outliers {
		if entry.IQR.Count == 0 {
			continue
		}
		total += entry.IQR.Count
		columns++
	}
	return total, columns
}
