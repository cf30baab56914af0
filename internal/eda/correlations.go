// File path: internal/eda/correlations.go
package eda

import (
	"context"
	"math"

	"github.com/datalysis-ai/datalysis/internal/dataset"
)

const strongCorrelation = 0.7

// correlationSection computes the pairwise Pearson matrix over measure
// columns, using only rows where both values parse.
type correlationSection struct{}

func (s *correlationSection) Name() string { return "correlations" }

func (s *correlationSection) Applies(input Input) bool {
	return len(measureColumns(input.Table, input.Profile)) >= 2
}

func (s *correlationSection) Run(_ context.Context, input Input, report *Report) error {
	cols := measureColumns(input.Table, input.Profile)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}

	matrix := make([][]float64, len(cols))
	summary := &CorrelationSummary{Columns: names, Matrix: matrix}
	var absSum float64
	var absCount int
	for i := range cols {
		matrix[i] = make([]float64, len(cols))
		matrix[i][i] = 1
	}
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			xs, ys := pairedValues(cols[i].Values, cols[j].Values)
			r := Pearson(xs, ys)
			matrix[i][j] = r
			matrix[j][i] = r
			absSum += math.Abs(r)
			absCount++
			if math.Abs(r) > strongCorrelation {
				direction := "positive"
				if r < 0 {
					direction = "negative"
				}
				summary.Strong = append(summary.Strong, StrongPair{
					A:         names[i],
					B:         names[j],
					R:         r,
					Direction: direction,
				})
			}
		}
	}
	if absCount > 0 {
		summary.AvgAbs = absSum / float64(absCount)
	}
	report.Correlations = summary
	return nil
}

// pairedValues returns the parallel float slices for rows where both raw
// values parse as numbers.
func pairedValues(a, b []string) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		x, okX := dataset.ParseFloat(a[i])
		y, okY := dataset.ParseFloat(b[i])
		if !okX || !okY {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// Pearson returns the correlation coefficient of the paired slices, or
// zero when either side has no variance.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
