// File path: internal/cleaning/executor.go
package cleaning

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/profile"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
)

const iqrCapFactor = 1.5

// Execute applies a plan to a copy of the table and records an audit
// entry per step. The input table is never mutated. Steps that name a
// missing column are skipped, not fatal, so a refined plan can carry a
// stale reference without aborting the run.
func Execute(ctx context.Context, table *dataset.Table, plan *Plan) (*Result, error) {
	ctx, end := telemetry.StartSpan(ctx, "cleaning.execute")
	defer end()
	logger := common.Logger()

	t := table.Clone()
	result := &Result{
		Summary: Summary{
			RowsBefore:         t.Rows,
			ColumnsBefore:      len(t.Columns),
			CompletenessBefore: completenessPct(t),
			ConsistencyBefore:  consistencyScore(t),
		},
	}

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cleaning: execute %s: %w", step.Operation, err)
		}
		rowsBefore := t.Rows
		details := applyStep(t, step)
		result.Audit = append(result.Audit, AuditEntry{
			At:         time.Now().UTC(),
			Operation:  step.Operation,
			Column:     step.Column,
			Details:    details,
			RowsBefore: rowsBefore,
			RowsAfter:  t.Rows,
		})
		result.Summary.StepsApplied++
	}

	result.Table = t
	result.Summary.RowsAfter = t.Rows
	result.Summary.ColumnsAfter = len(t.Columns)
	result.Summary.RowsRemoved = result.Summary.RowsBefore - t.Rows
	result.Summary.ColumnsRemoved = result.Summary.ColumnsBefore - len(t.Columns)
	result.Summary.CompletenessAfter = completenessPct(t)
	result.Summary.ConsistencyAfter = consistencyScore(t)

	logger.Info("cleaning: plan executed",
		"dataset", t.Name,
		"steps", result.Summary.StepsApplied,
		"rows_removed", result.Summary.RowsRemoved,
		"columns_removed", result.Summary.ColumnsRemoved,
	)
	return result, nil
}

func applyStep(t *dataset.Table, step Step) string {
	switch step.Operation {
	case OpDropDuplicates:
		return dropDuplicates(t)
	case OpFlagColumn:
		return "flagged for review, no data changed"
	}

	col, ok := t.Column(step.Column)
	if !ok {
		return "column not found, step skipped"
	}

	switch step.Operation {
	case OpDropColumn:
		return dropColumn(t, step.Column)
	case OpImputeMean:
		return imputeNumeric(col, false)
	case OpImputeMedian:
		return imputeNumeric(col, true)
	case OpImputeMode:
		return imputeMode(col)
	case OpFillForward:
		return fillForward(col)
	case OpCoerceNumeric:
		return coerceNumeric(col)
	case OpCoerceDatetime:
		return coerceDatetime(col)
	case OpCoerceCategorical:
		col.Type = dataset.TypeCategorical
		return "column retyped as categorical"
	case OpCapOutliers:
		if step.Params["method"] == "remove" {
			return removeOutlierRows(t, col)
		}
		return winsorize(col)
	case OpNormalizeText:
		return normalizeText(col)
	case OpStandardizeValues:
		return standardizeValues(col, step.Params["set"])
	case OpSwapDates:
		return swapDates(t, col, step.Params["other"])
	case OpEnforceRange:
		return enforceRange(col, step.Params)
	case OpFormatPhone:
		return formatPhone(col)
	case OpFormatEmail:
		return formatEmail(col)
	default:
		return "unknown operation, step skipped"
	}
}

func dropColumn(t *dataset.Table, name string) string {
	kept := t.Columns[:0]
	for _, col := range t.Columns {
		if !strings.EqualFold(col.Name, name) {
			kept = append(kept, col)
		}
	}
	t.Columns = kept
	return "column removed"
}

func imputeNumeric(col *dataset.Column, median bool) string {
	values := dataset.FloatValues(col)
	if len(values) == 0 {
		return "no numeric values to impute from"
	}
	var fill float64
	label := "mean"
	if median {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		fill = profile.Quantile(sorted, 0.5)
		label = "median"
	} else {
		fill = profile.Mean(values)
	}
	text := formatFloat(fill)
	filled := 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			col.Values[i] = text
			filled++
		}
	}
	return fmt.Sprintf("filled %d cells with the %s %s", filled, label, text)
}

func imputeMode(col *dataset.Column) string {
	counts := map[string]int{}
	for _, v := range col.Values {
		if !dataset.IsMissing(v) {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "no observed values to impute from"
	}
	mode, best := "", -1
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}
	filled := 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			col.Values[i] = mode
			filled++
		}
	}
	return fmt.Sprintf("filled %d cells with the mode %q", filled, mode)
}

// fillForward carries the previous observation into gaps, then runs a
// backward pass so leading gaps take the first observed value.
func fillForward(col *dataset.Column) string {
	filled := 0
	last := ""
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			if last != "" {
				col.Values[i] = last
				filled++
			}
			continue
		}
		last = v
	}
	next := ""
	for i := len(col.Values) - 1; i >= 0; i-- {
		if dataset.IsMissing(col.Values[i]) {
			if next != "" {
				col.Values[i] = next
				filled++
			}
			continue
		}
		next = col.Values[i]
	}
	return fmt.Sprintf("filled %d cells from neighboring rows", filled)
}

func coerceNumeric(col *dataset.Column) string {
	coerced, blanked := 0, 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		if parsed, ok := dataset.ParseFloat(StripCurrency(v)); ok {
			col.Values[i] = formatFloat(parsed)
			coerced++
			continue
		}
		col.Values[i] = ""
		blanked++
	}
	col.Type = dataset.TypeNumeric
	return fmt.Sprintf("parsed %d values as numbers, blanked %d unparseable", coerced, blanked)
}

func coerceDatetime(col *dataset.Column) string {
	coerced, blanked := 0, 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		if parsed, ok := dataset.ParseDate(v); ok {
			col.Values[i] = parsed.Format("2006-01-02")
			coerced++
			continue
		}
		col.Values[i] = ""
		blanked++
	}
	col.Type = dataset.TypeDatetime
	return fmt.Sprintf("normalized %d dates, blanked %d unparseable", coerced, blanked)
}

func dropDuplicates(t *dataset.Table) string {
	seen := map[string]bool{}
	var keep []int
	for row := 0; row < t.Rows; row++ {
		parts := make([]string, len(t.Columns))
		for c := range t.Columns {
			if row < len(t.Columns[c].Values) {
				parts[c] = t.Columns[c].Values[row]
			}
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, row)
	}
	removed := t.Rows - len(keep)
	if removed > 0 {
		keepRows(t, keep)
	}
	return fmt.Sprintf("removed %d duplicate rows", removed)
}

func winsorize(col *dataset.Column) string {
	lower, upper, ok := iqrFences(col)
	if !ok {
		return "not enough numeric values to compute fences"
	}
	capped := 0
	for i, v := range col.Values {
		parsed, okv := dataset.ParseFloat(v)
		if !okv {
			continue
		}
		switch {
		case parsed < lower:
			col.Values[i] = formatFloat(lower)
			capped++
		case parsed > upper:
			col.Values[i] = formatFloat(upper)
			capped++
		}
	}
	return fmt.Sprintf("capped %d values to [%s, %s]", capped, formatFloat(lower), formatFloat(upper))
}

func removeOutlierRows(t *dataset.Table, col *dataset.Column) string {
	lower, upper, ok := iqrFences(col)
	if !ok {
		return "not enough numeric values to compute fences"
	}
	var keep []int
	for i, v := range col.Values {
		if parsed, okv := dataset.ParseFloat(v); okv && (parsed < lower || parsed > upper) {
			continue
		}
		keep = append(keep, i)
	}
	removed := t.Rows - len(keep)
	if removed > 0 {
		keepRows(t, keep)
	}
	return fmt.Sprintf("removed %d rows outside [%s, %s]", removed, formatFloat(lower), formatFloat(upper))
}

func normalizeText(col *dataset.Column) string {
	changed := 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		folded := strings.ToLower(strings.Join(strings.Fields(v), " "))
		if folded != v {
			col.Values[i] = folded
			changed++
		}
	}
	return fmt.Sprintf("normalized %d values", changed)
}

func standardizeValues(col *dataset.Column, set string) string {
	var vocab map[string]string
	switch set {
	case "boolean":
		vocab = booleanVocab
	case "gender":
		vocab = genderVocab
	default:
		return fmt.Sprintf("unknown vocabulary %q, step skipped", set)
	}
	changed := 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		canonical, ok := vocab[strings.ToLower(strings.TrimSpace(v))]
		if ok && canonical != v {
			col.Values[i] = canonical
			changed++
		}
	}
	return fmt.Sprintf("standardized %d values against the %s vocabulary", changed, set)
}

func swapDates(t *dataset.Table, start *dataset.Column, otherName string) string {
	end, ok := t.Column(otherName)
	if !ok {
		return "paired column not found, step skipped"
	}
	n := len(start.Values)
	if len(end.Values) < n {
		n = len(end.Values)
	}
	swapped := 0
	for i := 0; i < n; i++ {
		at, okA := dataset.ParseDate(start.Values[i])
		bt, okB := dataset.ParseDate(end.Values[i])
		if okA && okB && at.After(bt) {
			start.Values[i], end.Values[i] = end.Values[i], start.Values[i]
			swapped++
		}
	}
	return fmt.Sprintf("swapped %d reversed pairs with %s", swapped, end.Name)
}

func enforceRange(col *dataset.Column, params map[string]string) string {
	min, hasMin := parseParamFloat(params, "min")
	max, hasMax := parseParamFloat(params, "max")
	if !hasMin && !hasMax {
		return "no bounds given, step skipped"
	}
	blanked := 0
	for i, v := range col.Values {
		parsed, ok := dataset.ParseFloat(v)
		if !ok {
			continue
		}
		if (hasMin && parsed < min) || (hasMax && parsed > max) {
			col.Values[i] = ""
			blanked++
		}
	}
	return fmt.Sprintf("blanked %d out-of-range values", blanked)
}

func formatPhone(col *dataset.Column) string {
	changed := 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		var b strings.Builder
		for j, r := range strings.TrimSpace(v) {
			if r >= '0' && r <= '9' || (j == 0 && r == '+') {
				b.WriteRune(r)
			}
		}
		formatted := b.String()
		if formatted != v {
			col.Values[i] = formatted
			changed++
		}
	}
	return fmt.Sprintf("reformatted %d phone numbers", changed)
}

func formatEmail(col *dataset.Column) string {
	changed := 0
	for i, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		folded := strings.ToLower(strings.TrimSpace(v))
		if folded != v {
			col.Values[i] = folded
			changed++
		}
	}
	return fmt.Sprintf("reformatted %d addresses", changed)
}

// keepRows rebuilds every column keeping only the given row indexes,
// in order.
func keepRows(t *dataset.Table, keep []int) {
	for c := range t.Columns {
		values := make([]string, 0, len(keep))
		for _, row := range keep {
			if row < len(t.Columns[c].Values) {
				values = append(values, t.Columns[c].Values[row])
			}
		}
		t.Columns[c].Values = values
	}
	t.Rows = len(keep)
}

func iqrFences(col *dataset.Column) (float64, float64, bool) {
	values := dataset.FloatValues(col)
	if len(values) < 4 {
		return 0, 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := profile.Quantile(sorted, 0.25)
	q3 := profile.Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - iqrCapFactor*iqr, q3 + iqrCapFactor*iqr, true
}

func completenessPct(t *dataset.Table) float64 {
	total, present := 0, 0
	for _, col := range t.Columns {
		for _, v := range col.Values {
			total++
			if !dataset.IsMissing(v) {
				present++
			}
		}
	}
	if total == 0 {
		return 100
	}
	return float64(present) / float64(total) * 100
}

// consistencyScore averages a per-column score in [0, 1]: numeric
// columns use 1/(1+cv) so low variation scores high, string columns use
// 1-uniqueRatio so repeated values score high.
func consistencyScore(t *dataset.Table) float64 {
	var sum float64
	scored := 0
	for i := range t.Columns {
		col := &t.Columns[i]
		switch col.Type {
		case dataset.TypeNumeric, dataset.TypeIdentifier:
			values := dataset.FloatValues(col)
			if len(values) < 2 {
				continue
			}
			mean := profile.Mean(values)
			std := profile.StdDev(values, mean)
			if mean == 0 {
				if std == 0 {
					sum++
					scored++
				}
				continue
			}
			sum += 1 / (1 + std/absFloat(mean))
			scored++
		default:
			present := col.NonMissing()
			if len(present) == 0 {
				continue
			}
			distinct := map[string]bool{}
			for _, v := range present {
				distinct[v] = true
			}
			sum += 1 - float64(len(distinct))/float64(len(present))
			scored++
		}
	}
	if scored == 0 {
		return 1
	}
	return sum / float64(scored)
}

func parseParamFloat(params map[string]string, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
