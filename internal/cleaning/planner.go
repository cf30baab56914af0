// File path: internal/cleaning/planner.go
package cleaning

import (
	"fmt"
	"math"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	dropColumnPct    = 50.0
	reviewColumnPct  = 30.0
	skewForMedian    = 1.0
	numericCoercePct = 0.8
	datetimeCoerce   = 0.5
	categoricalRatio = 0.1
	categoricalMax   = 20
)

var (
	startNameHints = []string{"start", "begin", "from"}
	endNameHints   = []string{"end", "finish", "to"}

	booleanVocab = map[string]string{
		"yes": "yes", "y": "yes", "true": "yes", "1": "yes",
		"no": "no", "n": "no", "false": "no", "0": "no",
	}
	genderVocab = map[string]string{
		"m": "male", "male": "male",
		"f": "female", "female": "female",
	}
)

// BuildPlan derives the ordered cleaning steps for a profiled table.
// Steps group into phases: structural drops, dedupe, type fixes,
// imputation, outliers, text hygiene, then integrity checks.
func BuildPlan(table *dataset.Table, prof *profile.TableProfile) *Plan {
	logger := common.Logger()
	plan := &Plan{Dataset: table.Name}
	dropped := map[string]bool{}

	for _, cp := range prof.ColumnProfiles {
		if cp.MissingPct > dropColumnPct {
			dropped[cp.Name] = true
			plan.Steps = append(plan.Steps, Step{
				Operation: OpDropColumn,
				Column:    cp.Name,
				Rationale: fmt.Sprintf("%.1f%% missing exceeds the %.0f%% drop threshold", cp.MissingPct, dropColumnPct),
			})
			continue
		}
		if cp.MissingPct > reviewColumnPct {
			plan.Steps = append(plan.Steps, Step{
				Operation: OpFlagColumn,
				Column:    cp.Name,
				Rationale: fmt.Sprintf("%.1f%% missing needs review before modeling", cp.MissingPct),
			})
		}
	}

	if prof.DuplicateRows > 0 {
		plan.Steps = append(plan.Steps, Step{
			Operation: OpDropDuplicates,
			Rationale: fmt.Sprintf("%d exact duplicate rows", prof.DuplicateRows),
		})
	}

	coerced := map[string]string{}
	for _, cp := range prof.ColumnProfiles {
		if dropped[cp.Name] {
			continue
		}
		col, ok := table.Column(cp.Name)
		if !ok {
			continue
		}
		if step, ok := coercionStep(col, cp); ok {
			coerced[cp.Name] = step.Operation
			plan.Steps = append(plan.Steps, step)
		}
	}

	for _, cp := range prof.ColumnProfiles {
		if dropped[cp.Name] || cp.Missing == 0 {
			continue
		}
		col, ok := table.Column(cp.Name)
		if !ok {
			continue
		}
		plan.Steps = append(plan.Steps, imputationStep(col, cp, coerced[cp.Name]))
	}

	for _, cp := range prof.ColumnProfiles {
		if dropped[cp.Name] || cp.Numeric == nil || cp.Numeric.LikelyID {
			continue
		}
		if cp.Numeric.Outliers.Count == 0 {
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			Operation: OpCapOutliers,
			Column:    cp.Name,
			Rationale: fmt.Sprintf("%d values outside the interquartile fences", cp.Numeric.Outliers.Count),
			Params:    map[string]string{"method": "winsorize"},
		})
	}

	for _, cp := range prof.ColumnProfiles {
		if dropped[cp.Name] || cp.String == nil || coercionChangesKind(coerced[cp.Name]) {
			continue
		}
		col, ok := table.Column(cp.Name)
		if !ok {
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			Operation: OpNormalizeText,
			Column:    cp.Name,
			Rationale: "trim, collapse whitespace and fold case",
		})
		if set, ok := standardizableSet(col); ok {
			plan.Steps = append(plan.Steps, Step{
				Operation: OpStandardizeValues,
				Column:    cp.Name,
				Rationale: "values map onto a standard " + set + " vocabulary",
				Params:    map[string]string{"set": set},
			})
		}
		folded := strings.ToLower(cp.Name)
		if strings.Contains(folded, "phone") {
			plan.Steps = append(plan.Steps, Step{
				Operation: OpFormatPhone,
				Column:    cp.Name,
				Rationale: "keep digits only for phone numbers",
			})
		}
		if strings.Contains(folded, "email") {
			plan.Steps = append(plan.Steps, Step{
				Operation: OpFormatEmail,
				Column:    cp.Name,
				Rationale: "lowercase and trim addresses",
			})
		}
	}

	plan.Steps = append(plan.Steps, integritySteps(table, prof, dropped)...)

	logger.Debug("cleaning: plan built", "dataset", table.Name, "steps", len(plan.Steps))
	return plan
}

// coercionStep proposes a type fix for string columns whose values
// mostly parse as something stronger.
func coercionStep(col *dataset.Column, cp profile.ColumnProfile) (Step, bool) {
	if col.Type != dataset.TypeText && col.Type != dataset.TypeCategorical {
		return Step{}, false
	}
	present := col.NonMissing()
	if len(present) == 0 {
		return Step{}, false
	}
	numeric := 0
	dates := 0
	for _, v := range present {
		if _, ok := dataset.ParseFloat(StripCurrency(v)); ok {
			numeric++
		}
		if dataset.IsDateString(v) {
			dates++
		}
	}
	total := float64(len(present))
	if float64(numeric)/total > numericCoercePct {
		return Step{
			Operation: OpCoerceNumeric,
			Column:    col.Name,
			Rationale: fmt.Sprintf("%d of %d values parse as numbers once currency marks are stripped", numeric, len(present)),
		}, true
	}
	if float64(dates)/total > datetimeCoerce {
		return Step{
			Operation: OpCoerceDatetime,
			Column:    col.Name,
			Rationale: fmt.Sprintf("%d of %d values parse as dates", dates, len(present)),
		}, true
	}
	uniqueRatio := float64(cp.Unique) / total
	if col.Type == dataset.TypeText && (uniqueRatio < categoricalRatio || cp.Unique < categoricalMax) {
		return Step{
			Operation: OpCoerceCategorical,
			Column:    col.Name,
			Rationale: fmt.Sprintf("%d distinct values behave like categories", cp.Unique),
		}, true
	}
	return Step{}, false
}

// coercionChangesKind reports whether the op moves a column out of the
// string family, which makes text hygiene steps pointless.
func coercionChangesKind(op string) bool {
	return op == OpCoerceNumeric || op == OpCoerceDatetime
}

func imputationStep(col *dataset.Column, cp profile.ColumnProfile, coercion string) Step {
	rationale := fmt.Sprintf("%d missing values (%.1f%%)", cp.Missing, cp.MissingPct)
	effective := col.Type
	switch coercion {
	case OpCoerceNumeric:
		effective = dataset.TypeNumeric
	case OpCoerceDatetime:
		effective = dataset.TypeDatetime
	}
	switch effective {
	case dataset.TypeNumeric, dataset.TypeIdentifier:
		skew := eda.Skewness(dataset.FloatValues(col))
		if math.Abs(skew) > skewForMedian {
			return Step{
				Operation: OpImputeMedian,
				Column:    col.Name,
				Rationale: rationale + fmt.Sprintf(", skew %.2f calls for the median", skew),
			}
		}
		return Step{Operation: OpImputeMean, Column: col.Name, Rationale: rationale}
	case dataset.TypeDatetime:
		return Step{Operation: OpFillForward, Column: col.Name, Rationale: rationale}
	default:
		return Step{Operation: OpImputeMode, Column: col.Name, Rationale: rationale}
	}
}

// standardizableSet reports whether every distinct value belongs to one
// of the known vocabularies.
func standardizableSet(col *dataset.Column) (string, bool) {
	distinct := map[string]bool{}
	for _, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		distinct[strings.ToLower(strings.TrimSpace(v))] = true
	}
	if len(distinct) == 0 {
		return "", false
	}
	inBoolean, inGender := true, true
	for v := range distinct {
		if _, ok := booleanVocab[v]; !ok {
			inBoolean = false
		}
		if _, ok := genderVocab[v]; !ok {
			inGender = false
		}
	}
	switch {
	case inBoolean:
		return "boolean", true
	case inGender:
		return "gender", true
	default:
		return "", false
	}
}

// integritySteps covers cross-column and domain-range checks: reversed
// date pairs, ages outside 0-120 and negative money columns.
func integritySteps(table *dataset.Table, prof *profile.TableProfile, dropped map[string]bool) []Step {
	var steps []Step

	dtCols := table.ColumnsOfType(dataset.TypeDatetime)
	for i := 0; i < len(dtCols); i++ {
		for j := 0; j < len(dtCols); j++ {
			if i == j || dropped[dtCols[i].Name] || dropped[dtCols[j].Name] {
				continue
			}
			a, b := dtCols[i], dtCols[j]
			if !nameContainsAny(a.Name, startNameHints) || !nameContainsAny(b.Name, endNameHints) {
				continue
			}
			if violations := reversedDatePairs(a, b); violations > 0 {
				steps = append(steps, Step{
					Operation: OpSwapDates,
					Column:    a.Name,
					Rationale: fmt.Sprintf("%d rows where %s is after %s", violations, a.Name, b.Name),
					Params:    map[string]string{"other": b.Name},
				})
			}
		}
	}

	for _, cp := range prof.ColumnProfiles {
		if dropped[cp.Name] || cp.Numeric == nil {
			continue
		}
		folded := strings.ToLower(cp.Name)
		switch {
		case strings.Contains(folded, "age"):
			if cp.Numeric.Min < 0 || cp.Numeric.Max > 120 {
				steps = append(steps, Step{
					Operation: OpEnforceRange,
					Column:    cp.Name,
					Rationale: "ages must lie within 0-120",
					Params:    map[string]string{"min": "0", "max": "120"},
				})
			}
		case strings.Contains(folded, "price") || strings.Contains(folded, "cost") || strings.Contains(folded, "amount"):
			if cp.Numeric.Min < 0 {
				steps = append(steps, Step{
					Operation: OpEnforceRange,
					Column:    cp.Name,
					Rationale: "monetary values cannot be negative",
					Params:    map[string]string{"min": "0"},
				})
			}
		}
	}
	return steps
}

func nameContainsAny(name string, hints []string) bool {
	folded := strings.ToLower(name)
	for _, hint := range hints {
		if strings.Contains(folded, hint) {
			return true
		}
	}
	return false
}

func reversedDatePairs(a, b dataset.Column) int {
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	violations := 0
	for i := 0; i < n; i++ {
		at, okA := dataset.ParseDate(a.Values[i])
		bt, okB := dataset.ParseDate(b.Values[i])
		if okA && okB && at.After(bt) {
			violations++
		}
	}
	return violations
}

// StripCurrency removes money and grouping marks before numeric parsing.
func StripCurrency(v string) string {
	v = strings.TrimSpace(v)
	for _, mark := range []string{"$", "€", "£", "%"} {
		v = strings.ReplaceAll(v, mark, "")
	}
	return strings.TrimSpace(v)
}
