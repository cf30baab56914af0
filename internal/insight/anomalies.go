// File path: internal/insight/anomalies.go
package insight

import (
	"math"
	"sort"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	anomalyZThreshold = 3.0
	anomalyColumnCap  = 50
)

// DetectAnomalies flags cells by both the z-score rule and the
// interquartile fences and merges the hits per cell. This replaces a
// placeholder that returned random scores in the original service.
func DetectAnomalies(table *dataset.Table, prof *profile.TableProfile) []AnomalyRecord {
	var records []AnomalyRecord
	for _, col := range measureColumns(table, prof) {
		records = append(records, columnAnomalies(col)...)
	}
	return records
}

func columnAnomalies(col dataset.Column) []AnomalyRecord {
	values := dataset.FloatValues(&col)
	if len(values) < 4 {
		return nil
	}
	mean := profile.Mean(values)
	std := profile.StdDev(values, mean)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := profile.Quantile(sorted, 0.25)
	q3 := profile.Quantile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var records []AnomalyRecord
	for row, raw := range col.Values {
		v, ok := dataset.ParseFloat(raw)
		if !ok {
			continue
		}
		var methods []string
		var z float64
		if std > 0 {
			z = (v - mean) / std
			if math.Abs(z) > anomalyZThreshold {
				methods = append(methods, "z_score")
			}
		}
		if v < lower || v > upper {
			methods = append(methods, "iqr")
		}
		if len(methods) == 0 {
			continue
		}
		records = append(records, AnomalyRecord{
			Column:   col.Name,
			Row:      row,
			Value:    v,
			Methods:  methods,
			ZScore:   z,
			Severity: anomalySeverity(math.Abs(z)),
		})
		if len(records) >= anomalyColumnCap {
			break
		}
	}
	return records
}

func anomalySeverity(absZ float64) string {
	switch {
	case absZ > 5:
		return "high"
	case absZ > 4:
		return "medium"
	default:
		return "low"
	}
}
