// File path: internal/domain/characteristics.go
package domain

import (
	"strings"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// Analysis plan types, ordered from least to most involved.
const (
	AnalysisBasic      = "basic"
	AnalysisComplex    = "complex"
	AnalysisTimeseries = "timeseries"
	AnalysisGeospatial = "geospatial"
	AnalysisTextual    = "textual"
)

// Characteristics captures the dataset traits that drive analysis planning
// and model recommendation.
type Characteristics struct {
	Rows                int     `json:"rows"`
	Cols                int     `json:"cols"`
	NumericCols         int     `json:"numeric_cols"`
	CategoricalCols     int     `json:"categorical_cols"`
	TextCols            int     `json:"text_cols"`
	DatetimeCols        int     `json:"datetime_cols"`
	GeoCols             int     `json:"geo_cols"`
	HighCardinalityCols int     `json:"high_cardinality_cols"`
	MissingPct          float64 `json:"missing_pct"`
	DuplicatePct        float64 `json:"duplicate_pct"`
	TimeSeries          bool    `json:"is_time_series"`
	HighDimensional     bool    `json:"is_high_dimensional"`
	Imbalanced          bool    `json:"is_imbalanced"`
	HasTarget           bool    `json:"has_target"`
	TargetColumn        string  `json:"target_column,omitempty"`
	Complexity          int     `json:"complexity"`
}

var geoNameKeywords = []string{"lat", "lon", "lng", "latitude", "longitude", "coord", "geo"}

var temporalNameKeywords = []string{"time", "date"}

// BuildCharacteristics derives the dataset traits from the table and its
// profile.
func BuildCharacteristics(table *dataset.Table, prof *profile.TableProfile) Characteristics {
	c := Characteristics{}
	if table == nil || prof == nil {
		return c
	}
	c.Rows = prof.Rows
	c.Cols = prof.Columns
	c.MissingPct = prof.MissingPct
	c.DuplicatePct = prof.DuplicatePct

	for _, cp := range prof.ColumnProfiles {
		folded := strings.ToLower(cp.Name)
		if containsAny(folded, geoNameKeywords) {
			c.GeoCols++
		}
		switch cp.Type {
		case dataset.TypeNumeric, dataset.TypeIdentifier:
			c.NumericCols++
		case dataset.TypeDatetime:
			c.DatetimeCols++
		case dataset.TypeCategorical, dataset.TypeBoolean:
			c.CategoricalCols++
			if isTextLike(cp) {
				c.TextCols++
			}
		case dataset.TypeText:
			if isTextLike(cp) {
				c.TextCols++
			} else {
				c.CategoricalCols++
			}
		}
		if cp.Unique > 50 {
			c.HighCardinalityCols++
		}
		if !c.TimeSeries && (cp.Type == dataset.TypeDatetime || containsAny(folded, temporalNameKeywords)) {
			c.TimeSeries = true
		}
	}

	c.HighDimensional = c.Cols > 20 || c.NumericCols > 15
	c.TargetColumn, c.Imbalanced = findTarget(prof)
	c.HasTarget = c.TargetColumn != ""
	c.Complexity = complexityScore(c)
	return c
}

// AnalysisType picks the analysis plan the characteristics call for.
func (c Characteristics) AnalysisType() string {
	if c.GeoCols >= 2 {
		return AnalysisGeospatial
	}
	textRatio := 0.0
	if c.Cols > 0 {
		textRatio = float64(c.TextCols) / float64(c.Cols)
	}
	if c.TextCols >= 2 || textRatio > 0.3 {
		return AnalysisTextual
	}
	if c.TimeSeries && c.DatetimeCols > 0 {
		return AnalysisTimeseries
	}
	complexSignals := 0
	if c.HighDimensional {
		complexSignals++
	}
	if c.Complexity > 60 {
		complexSignals++
	}
	if c.HighCardinalityCols > 3 {
		complexSignals++
	}
	if c.Imbalanced && c.HasTarget {
		complexSignals++
	}
	if c.MissingPct > 15 {
		complexSignals++
	}
	if c.Cols > 15 {
		complexSignals++
	}
	if complexSignals >= 2 {
		return AnalysisComplex
	}
	return AnalysisBasic
}

func isTextLike(cp profile.ColumnProfile) bool {
	if cp.String == nil {
		return false
	}
	return cp.String.AvgLen > 50 || cp.UniquePct > 80
}

// findTarget treats the last categorical column with 2-19 classes as the
// candidate prediction target and reports class imbalance from its top-value
// distribution.
func findTarget(prof *profile.TableProfile) (string, bool) {
	for i := len(prof.ColumnProfiles) - 1; i >= 0; i-- {
		cp := prof.ColumnProfiles[i]
		if cp.Type != dataset.TypeCategorical && cp.Type != dataset.TypeBoolean {
			continue
		}
		if cp.Unique < 2 || cp.Unique >= 20 {
			continue
		}
		imbalanced := false
		if cp.String != nil && len(cp.String.TopValues) > 0 && cp.Count > 0 {
			top := cp.String.TopValues[0]
			bottom := cp.String.TopValues[len(cp.String.TopValues)-1]
			topShare := float64(top.Count) / float64(cp.Count)
			bottomShare := float64(bottom.Count) / float64(cp.Count)
			imbalanced = topShare > 0.8 || bottomShare < 0.1
		}
		return cp.Name, imbalanced
	}
	return "", false
}

func complexityScore(c Characteristics) int {
	score := 0
	switch {
	case c.Rows > 10000:
		score += 15
	case c.Rows > 1000:
		score += 10
	default:
		score += 5
	}
	switch {
	case c.Cols > 50:
		score += 20
	case c.Cols > 20:
		score += 15
	case c.Cols > 10:
		score += 10
	default:
		score += 5
	}
	score += minInt(c.NumericCols*2, 20)
	score += minInt(int(float64(c.CategoricalCols)*1.5), 15)
	score += minInt(c.TextCols*3, 15)
	score += minInt(c.HighCardinalityCols*2, 10)
	if c.TimeSeries {
		score += 10
	}
	if c.GeoCols > 0 {
		score += 10
	}
	switch {
	case c.MissingPct > 20:
		score += 10
	case c.MissingPct > 10:
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
