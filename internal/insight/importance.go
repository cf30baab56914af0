// File path: internal/insight/importance.go
package insight

import (
	"math"
	"sort"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// RankFeatures scores every measure column against the target and
// normalizes the scores to sum one. A categorical target uses the
// correlation ratio, a numeric one the Pearson coefficient magnitude.
// Without an inferred target the last measure column stands in.
func RankFeatures(table *dataset.Table, prof *profile.TableProfile, chars domain.Characteristics) ([]FeatureImportance, string) {
	measures := measureColumns(table, prof)

	if chars.TargetColumn != "" {
		if target, ok := table.Column(chars.TargetColumn); ok {
			scores := categoricalScores(measures, target)
			return normalizeScores(scores), target.Name
		}
	}
	if len(measures) < 2 {
		return nil, ""
	}
	target := measures[len(measures)-1]
	features := measures[:len(measures)-1]
	scores := make([]FeatureImportance, 0, len(features))
	for _, col := range features {
		xs, ys := pairedFloats(col.Values, target.Values)
		scores = append(scores, FeatureImportance{
			Feature: col.Name,
			Score:   math.Abs(eda.Pearson(xs, ys)),
		})
	}
	return normalizeScores(scores), target.Name
}

// categoricalScores computes the correlation ratio of each measure
// grouped by the target classes.
func categoricalScores(measures []dataset.Column, target *dataset.Column) []FeatureImportance {
	scores := make([]FeatureImportance, 0, len(measures))
	for _, col := range measures {
		if col.Name == target.Name {
			continue
		}
		scores = append(scores, FeatureImportance{
			Feature: col.Name,
			Score:   correlationRatio(col.Values, target.Values),
		})
	}
	return scores
}

// correlationRatio is eta: the share of a measure's variance explained
// by group membership.
func correlationRatio(values, classes []string) float64 {
	n := len(values)
	if len(classes) < n {
		n = len(classes)
	}
	groups := map[string][]float64{}
	var all []float64
	for i := 0; i < n; i++ {
		v, ok := dataset.ParseFloat(values[i])
		if !ok || dataset.IsMissing(classes[i]) {
			continue
		}
		groups[classes[i]] = append(groups[classes[i]], v)
		all = append(all, v)
	}
	if len(all) < 2 || len(groups) < 2 {
		return 0
	}
	grand := profile.Mean(all)
	var ssBetween, ssTotal float64
	for _, group := range groups {
		mean := profile.Mean(group)
		ssBetween += float64(len(group)) * (mean - grand) * (mean - grand)
	}
	for _, v := range all {
		ssTotal += (v - grand) * (v - grand)
	}
	if ssTotal == 0 {
		return 0
	}
	return math.Sqrt(ssBetween / ssTotal)
}

func normalizeScores(scores []FeatureImportance) []FeatureImportance {
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	if sum > 0 {
		for i := range scores {
			scores[i].Score /= sum
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Feature < scores[j].Feature
	})
	return scores
}

func pairedFloats(a, b []string) ([]float64, []float64) {
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
