// File path: internal/profile/types.go
package profile

import (
	"time"

	"github.com/datalysis-ai/datalysis/internal/dataset"
)

// ValueCount pairs a categorical value with its occurrence count.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// OutlierBounds carries the IQR fences for a numeric column and how many
// values fall outside them.
type OutlierBounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// NumericStats summarizes a numeric column in one pass.
type NumericStats struct {
	Min      float64       `json:"min"`
	Max      float64       `json:"max"`
	Mean     float64       `json:"mean"`
	Median   float64       `json:"median"`
	StdDev   float64       `json:"std_dev"`
	Sum      float64       `json:"sum"`
	Q1       float64       `json:"q1"`
	Q3       float64       `json:"q3"`
	Outliers OutlierBounds `json:"outliers"`
	LikelyID bool          `json:"is_likely_id"`
}

// StringStats summarizes a text or categorical column.
type StringStats struct {
	MinLen      int          `json:"min_length"`
	MaxLen      int          `json:"max_length"`
	AvgLen      float64      `json:"avg_length"`
	Categorical bool         `json:"is_categorical"`
	TopValues   []ValueCount `json:"top_values,omitempty"`
}

// DatetimeStats summarizes a datetime column.
type DatetimeStats struct {
	MinTime   time.Time `json:"min_time"`
	MaxTime   time.Time `json:"max_time"`
	RangeDays int       `json:"range_days"`
}

// ColumnProfile is the per-column summary served to clients and persisted to
// the catalog.
type ColumnProfile struct {
	Name       string             `json:"name"`
	Type       dataset.ColumnType `json:"type"`
	Count      int                `json:"count"`
	Missing    int                `json:"missing"`
	MissingPct float64            `json:"missing_pct"`
	Unique     int                `json:"unique"`
	UniquePct  float64            `json:"unique_pct"`

	Numeric  *NumericStats  `json:"numeric,omitempty"`
	String   *StringStats   `json:"string,omitempty"`
	Datetime *DatetimeStats `json:"datetime,omitempty"`
}

// TableProfile aggregates the dataset-level counters with every column
// profile.
type TableProfile struct {
	Dataset         string          `json:"dataset"`
	Rows            int             `json:"rows"`
	Columns         int             `json:"columns"`
	DuplicateRows   int             `json:"duplicate_rows"`
	DuplicatePct    float64         `json:"duplicate_pct"`
	MissingCells    int             `json:"missing_cells"`
	MissingPct      float64         `json:"missing_pct"`
	MissingByColumn map[string]int  `json:"missing_by_column,omitempty"`
	ColumnProfiles  []ColumnProfile `json:"column_profiles"`
	Fingerprint     string          `json:"fingerprint"`
}

// Column returns the profile for the named column, matched loosely.
func (p *TableProfile) Column(name string) (*ColumnProfile, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.ColumnProfiles {
		if equalFold(p.ColumnProfiles[i].Name, name) {
			return &p.ColumnProfiles[i], true
		}
	}
	return nil, false
}
