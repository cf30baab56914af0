// File path: internal/eda/outliers.go
package eda

import (
	"context"
	"math"
	"sort"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	zScoreThreshold = 3.0
	iqrFenceFactor  = 1.5
	outlierIndexCap = 50
)

// outlierSection flags rows by both the IQR fence and the z-score rule
// so downstream consumers can compare the two.
type outlierSection struct{}

func (s *outlierSection) Name() string { return "outliers" }

func (s *outlierSection) Applies(input Input) bool {
	return len(measureColumns(input.Table, input.Profile)) > 0
}

func (s *outlierSection) Run(_ context.Context, input Input, report *Report) error {
	for _, col := range measureColumns(input.Table, input.Profile) {
		indexed := indexedFloats(col.Values)
		if len(indexed) < 4 {
			continue
		}
		entry := ColumnOutliers{
			Column: col.Name,
			IQR:    iqrOutliers(indexed),
			ZScore: zScoreOutliers(indexed),
		}
		if entry.IQR.Count == 0 && entry.ZScore.Count == 0 {
			continue
		}
		report.Outliers = append(report.Outliers, entry)
	}
	return nil
}

type indexedValue struct {
	row   int
	value float64
}

func indexedFloats(raw []string) []indexedValue {
	out := make([]indexedValue, 0, len(raw))
	for i, v := range raw {
		f, ok := dataset.ParseFloat(v)
		if !ok {
			continue
		}
		out = append(out, indexedValue{row: i, value: f})
	}
	return out
}

func iqrOutliers(indexed []indexedValue) OutlierSet {
	values := make([]float64, len(indexed))
	for i, iv := range indexed {
		values[i] = iv.value
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := profile.Quantile(sorted, 0.25)
	q3 := profile.Quantile(sorted, 0.75)
	iqr := q3 - q1
	set := OutlierSet{
		Lower: q1 - iqrFenceFactor*iqr,
		Upper: q3 + iqrFenceFactor*iqr,
	}
	for _, iv := range indexed {
		if iv.value < set.Lower || iv.value > set.Upper {
			set.Count++
			if len(set.Indexes) < outlierIndexCap {
				set.Indexes = append(set.Indexes, iv.row)
			}
		}
	}
	return set
}

func zScoreOutliers(indexed []indexedValue) OutlierSet {
	values := make([]float64, len(indexed))
	for i, iv := range indexed {
		values[i] = iv.value
	}
	mean := profile.Mean(values)
	std := profile.StdDev(values, mean)
	var set OutlierSet
	if std == 0 {
		return set
	}
	for _, iv := range indexed {
		if math.Abs((iv.value-mean)/std) > zScoreThreshold {
			set.Count++
			if len(set.Indexes) < outlierIndexCap {
				set.Indexes = append(set.Indexes, iv.row)
			}
		}
	}
	return set
}
