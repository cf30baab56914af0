// File path: internal/eda/distributions.go
package eda

import (
	"context"
	"math"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// distributionSection classifies the shape of every measure column from
// its third and fourth moments.
type distributionSection struct{}

func (s *distributionSection) Name() string { return "distributions" }

func (s *distributionSection) Applies(input Input) bool {
	return len(measureColumns(input.Table, input.Profile)) > 0
}

func (s *distributionSection) Run(_ context.Context, input Input, report *Report) error {
	for _, col := range measureColumns(input.Table, input.Profile) {
		values := dataset.FloatValues(&col)
		if len(values) < 3 {
			continue
		}
		skew := Skewness(values)
		kurt := Kurtosis(values)
		report.Distributions = append(report.Distributions, Distribution{
			Column:   col.Name,
			Skewness: skew,
			Kurtosis: kurt,
			Class:    classifyDistribution(skew, kurt),
		})
	}
	return nil
}

// Skewness returns the moment-based skewness of values. Zero variance
// yields zero.
func Skewness(values []float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return 0
	}
	mean := profile.Mean(values)
	var m2, m3 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// Kurtosis returns the excess kurtosis of values. Zero variance yields
// zero.
func Kurtosis(values []float64) float64 {
	n := float64(len(values))
	if n < 4 {
		return 0
	}
	mean := profile.Mean(values)
	var m2, m4 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}

func classifyDistribution(skew, kurt float64) string {
	switch {
	case math.Abs(skew) < 0.5 && math.Abs(kurt) < 0.5:
		return "approximately_normal"
	case skew > 1:
		return "right_skewed"
	case skew < -1:
		return "left_skewed"
	case kurt > 1:
		return "heavy_tailed"
	case kurt < -1:
		return "light_tailed"
	default:
		return "moderately_skewed"
	}
}
