// File path: internal/eda/types.go
package eda

import (
	"time"

	"github.com/datalysis-ai/datalysis/internal/profile"
)

// Report is the assembled exploratory analysis for one dataset. Sections are
// nil or empty when the analysis plan or the data did not call for them.
type Report struct {
	Dataset      string `json:"dataset"`
	AnalysisType string `json:"analysis_type"`

	Descriptive   []ColumnDescriptive `json:"descriptive,omitempty"`
	Categories    []CategorySummary   `json:"categories,omitempty"`
	Quality       *QualitySummary     `json:"quality,omitempty"`
	Distributions []Distribution      `json:"distributions,omitempty"`
	Correlations  *CorrelationSummary `json:"correlations,omitempty"`
	Outliers      []ColumnOutliers    `json:"outliers,omitempty"`
	Trends        []Trend             `json:"trends,omitempty"`
	Temporal      *TemporalSummary    `json:"temporal,omitempty"`
	Text          []TextSummary       `json:"text,omitempty"`
	Geo           *GeoSummary         `json:"geo,omitempty"`
	Associations  *AssociationSummary `json:"associations,omitempty"`
	Clusters      *ClusterSummary     `json:"clusters,omitempty"`
}

// ColumnDescriptive carries the standard numeric summary for one column.
type ColumnDescriptive struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// CategorySummary carries the categorical counterpart.
type CategorySummary struct {
	Column string               `json:"column"`
	Unique int                  `json:"unique"`
	Top    []profile.ValueCount `json:"top,omitempty"`
}

// QualitySummary aggregates dataset-level quality counters.
type QualitySummary struct {
	MissingCells  int     `json:"missing_cells"`
	MissingPct    float64 `json:"missing_pct"`
	DuplicateRows int     `json:"duplicate_rows"`
	DuplicatePct  float64 `json:"duplicate_pct"`
	ApproxBytes   int64   `json:"approx_bytes"`
}

// Distribution classifies the shape of a numeric column.
type Distribution struct {
	Column   string  `json:"column"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	Class    string  `json:"class"`
}

// StrongPair is a correlation above the strong threshold.
type StrongPair struct {
	A         string  `json:"a"`
	B         string  `json:"b"`
	R         float64 `json:"r"`
	Direction string  `json:"direction"`
}

// CorrelationSummary carries the Pearson matrix over numeric columns.
type CorrelationSummary struct {
	Columns []string     `json:"columns"`
	Matrix  [][]float64  `json:"matrix"`
	Strong  []StrongPair `json:"strong,omitempty"`
	AvgAbs  float64      `json:"avg_abs"`
}

// OutlierSet lists rows flagged by one method.
type OutlierSet struct {
	Count   int     `json:"count"`
	Lower   float64 `json:"lower,omitempty"`
	Upper   float64 `json:"upper,omitempty"`
	Indexes []int   `json:"indexes,omitempty"`
}

// ColumnOutliers reports both detection methods for a numeric column.
type ColumnOutliers struct {
	Column string     `json:"column"`
	IQR    OutlierSet `json:"iqr"`
	ZScore OutlierSet `json:"z_score"`
}

// Trend is a least-squares fit of a numeric column against row order.
type Trend struct {
	Column    string    `json:"column"`
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	R2        float64   `json:"r2"`
	Direction string    `json:"direction"`
	Strength  string    `json:"strength"`
	MovingAvg []float64 `json:"moving_avg,omitempty"`
}

// LagCorrelation is one autocorrelation measurement.
type LagCorrelation struct {
	Lag         int     `json:"lag"`
	Value       float64 `json:"value"`
	Significant bool    `json:"significant"`
}

// TemporalSummary describes the time structure of a dataset.
type TemporalSummary struct {
	DatetimeColumn  string             `json:"datetime_column"`
	ValueColumn     string             `json:"value_column,omitempty"`
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	SpanDays        int                `json:"span_days"`
	Frequency       string             `json:"frequency"`
	CountsByYear    map[string]int     `json:"counts_by_year,omitempty"`
	CountsByMonth   map[string]int     `json:"counts_by_month,omitempty"`
	CountsByWeekday map[string]int     `json:"counts_by_weekday,omitempty"`
	IntervalMean    float64            `json:"interval_mean_hours"`
	IntervalMedian  float64            `json:"interval_median_hours"`
	MonthlyMeans    map[string]float64 `json:"monthly_means,omitempty"`
	WeekdayMeans    map[string]float64 `json:"weekday_means,omitempty"`
	SeasonalityCV   float64            `json:"seasonality_cv"`
	Trend           *Trend             `json:"trend,omitempty"`
	Autocorrelation []LagCorrelation   `json:"autocorrelation,omitempty"`
}

// TextSummary describes a free-text column.
type TextSummary struct {
	Column             string               `json:"column"`
	AvgLength          float64              `json:"avg_length"`
	MinLength          int                  `json:"min_length"`
	MaxLength          int                  `json:"max_length"`
	AvgWords           float64              `json:"avg_words"`
	EmailCount         int                  `json:"email_count"`
	URLCount           int                  `json:"url_count"`
	PhoneCount         int                  `json:"phone_count"`
	UppercasePct       float64              `json:"uppercase_pct"`
	TopWords           []profile.ValueCount `json:"top_words,omitempty"`
	VocabularyRichness float64              `json:"vocabulary_richness"`
	QualityScore       float64              `json:"quality_score"`
}

// GridCell is a coarse density bucket over the bounding box.
type GridCell struct {
	LatBucket int `json:"lat_bucket"`
	LonBucket int `json:"lon_bucket"`
	Count     int `json:"count"`
}

// GeoSummary validates and describes coordinate columns.
type GeoSummary struct {
	LatColumn     string     `json:"lat_column"`
	LonColumn     string     `json:"lon_column"`
	ValidPoints   int        `json:"valid_points"`
	InvalidPoints int        `json:"invalid_points"`
	MinLat        float64    `json:"min_lat"`
	MaxLat        float64    `json:"max_lat"`
	MinLon        float64    `json:"min_lon"`
	MaxLon        float64    `json:"max_lon"`
	LatSpanKm     float64    `json:"lat_span_km"`
	LonSpanKm     float64    `json:"lon_span_km"`
	Density       []GridCell `json:"density,omitempty"`
}

// AssociationPair carries the nonlinear dependency measures for two columns.
type AssociationPair struct {
	A                   string  `json:"a"`
	B                   string  `json:"b"`
	MutualInformation   float64 `json:"mutual_information"`
	DistanceCorrelation float64 `json:"distance_correlation"`
}

// VIFEntry is the variance-inflation proxy for one column.
type VIFEntry struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// AssociationSummary is the complex-analysis dependency section.
type AssociationSummary struct {
	Pairs []AssociationPair `json:"pairs,omitempty"`
	VIF   []VIFEntry        `json:"vif,omitempty"`
}

// ClusterSummary reports the k-means elbow scan.
type ClusterSummary struct {
	Columns  []string  `json:"columns"`
	BestK    int       `json:"best_k"`
	Inertias []float64 `json:"inertias"`
	Sizes    []int     `json:"sizes,omitempty"`
}
