// File path: internal/cleaning/cleaning.go
package cleaning

import (
	"time"

	"github.com/datalysis-ai/datalysis/internal/dataset"
)

// Cleaning operations. Planner emits them, executor applies them.
const (
	OpDropColumn        = "drop_column"
	OpFlagColumn        = "flag_column"
	OpImputeMean        = "impute_mean"
	OpImputeMedian      = "impute_median"
	OpImputeMode        = "impute_mode"
	OpFillForward       = "fill_forward"
	OpCoerceNumeric     = "coerce_numeric"
	OpCoerceDatetime    = "coerce_datetime"
	OpCoerceCategorical = "coerce_categorical"
	OpDropDuplicates    = "drop_duplicates"
	OpCapOutliers       = "cap_outliers"
	OpNormalizeText     = "normalize_text"
	OpStandardizeValues = "standardize_values"
	OpSwapDates         = "swap_dates"
	OpEnforceRange      = "enforce_range"
	OpFormatPhone       = "format_phone"
	OpFormatEmail       = "format_email"
)

// Step is one planned operation. Params carry operation-specific knobs
// such as fence bounds or the standardization vocabulary.
type Step struct {
	Operation string            `json:"operation"`
	Column    string            `json:"column,omitempty"`
	Rationale string            `json:"rationale"`
	Params    map[string]string `json:"params,omitempty"`
}

// Plan is the ordered list of steps for one dataset.
type Plan struct {
	Dataset string `json:"dataset"`
	Steps   []Step `json:"steps"`
}

// AuditEntry records one applied step with its row counts.
type AuditEntry struct {
	At         time.Time `json:"at"`
	Operation  string    `json:"operation"`
	Column     string    `json:"column,omitempty"`
	Details    string    `json:"details"`
	RowsBefore int       `json:"rows_before"`
	RowsAfter  int       `json:"rows_after"`
}

// Summary compares the table before and after execution.
type Summary struct {
	RowsBefore         int     `json:"rows_before"`
	RowsAfter          int     `json:"rows_after"`
	ColumnsBefore      int     `json:"columns_before"`
	ColumnsAfter       int     `json:"columns_after"`
	RowsRemoved        int     `json:"rows_removed"`
	ColumnsRemoved     int     `json:"columns_removed"`
	CompletenessBefore float64 `json:"completeness_before"`
	CompletenessAfter  float64 `json:"completeness_after"`
	ConsistencyBefore  float64 `json:"consistency_before"`
	ConsistencyAfter   float64 `json:"consistency_after"`
	StepsApplied       int     `json:"steps_applied"`
}

// Result is the cleaned table with its audit trail.
type Result struct {
	Table   *dataset.Table `json:"-"`
	Audit   []AuditEntry   `json:"audit"`
	Summary Summary        `json:"summary"`
}

// knownOperations validates plans coming back from model refinement.
var knownOperations = map[string]bool{
	OpDropColumn:        true,
	OpFlagColumn:        true,
	OpImputeMean:        true,
	OpImputeMedian:      true,
	OpImputeMode:        true,
	OpFillForward:       true,
	OpCoerceNumeric:     true,
	OpCoerceDatetime:    true,
	OpCoerceCategorical: true,
	OpDropDuplicates:    true,
	OpCapOutliers:       true,
	OpNormalizeText:     true,
	OpStandardizeValues: true,
	OpSwapDates:         true,
	OpEnforceRange:      true,
	OpFormatPhone:       true,
	OpFormatEmail:       true,
}
