// File path: internal/eda/trend.go
package eda

import (
	"context"
	"math"

	"github.com/datalysis-ai/datalysis/internal/dataset"
)

const (
	trendStrongR2   = 0.7
	trendModerateR2 = 0.3
	movingAvgMaxWin = 7
)

// trendSection fits each measure column against row order. Row order is
// the ingestion order, which for most exports tracks time.
type trendSection struct{}

func (s *trendSection) Name() string { return "trends" }

func (s *trendSection) Applies(input Input) bool {
	return input.Table.Rows >= 3 && len(measureColumns(input.Table, input.Profile)) > 0
}

func (s *trendSection) Run(_ context.Context, input Input, report *Report) error {
	for _, col := range measureColumns(input.Table, input.Profile) {
		values := dataset.FloatValues(&col)
		if len(values) < 3 {
			continue
		}
		trend := FitTrend(col.Name, values)
		trend.MovingAvg = MovingAverage(values, movingAvgWindow(len(values)))
		report.Trends = append(report.Trends, trend)
	}
	return nil
}

// FitTrend runs an ordinary least-squares fit of values against their
// positions and classifies the result.
func FitTrend(column string, values []float64) Trend {
	slope, intercept, r2 := linearFit(values)
	return Trend{
		Column:    column,
		Slope:     slope,
		Intercept: intercept,
		R2:        r2,
		Direction: trendDirection(slope, values),
		Strength:  trendStrength(r2),
	}
}

// linearFit returns slope, intercept and r-squared for values indexed
// 0..n-1.
func linearFit(values []float64) (slope, intercept, r2 float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, v := range values {
		fit := slope*float64(i) + intercept
		ssTot += (v - meanY) * (v - meanY)
		ssRes += (v - fit) * (v - fit)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	return slope, intercept, 1 - ssRes/ssTot
}

// trendDirection calls a slope stable when the fitted change over the
// whole series is under one percent of the value range.
func trendDirection(slope float64, values []float64) string {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	change := math.Abs(slope) * float64(len(values)-1)
	if span == 0 || change < 0.01*span {
		return "stable"
	}
	if slope > 0 {
		return "increasing"
	}
	return "decreasing"
}

func trendStrength(r2 float64) string {
	switch {
	case r2 > trendStrongR2:
		return "strong"
	case r2 > trendModerateR2:
		return "moderate"
	default:
		return "weak"
	}
}

func movingAvgWindow(n int) int {
	win := n / 3
	if win > movingAvgMaxWin {
		win = movingAvgMaxWin
	}
	if win < 2 {
		win = 2
	}
	return win
}

// MovingAverage returns the trailing mean over the window, one output
// point per input point from the first full window onward.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 || len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}
