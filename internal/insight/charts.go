// File path: internal/insight/charts.go
package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	topSliceLimit   = 7
	histogramBins   = 10
	scatterSample   = 100
	lineSeriesLimit = 500
)

var nutrientKeywords = []string{"calorie", "protein", "fat", "carb", "sugar", "fiber", "sodium"}

// SuggestCharts prepares the chart set for the detected domain. Domains
// without a specialized set fall back to the generic bar, histogram and
// scatter trio.
func SuggestCharts(table *dataset.Table, prof *profile.TableProfile, domainName string) []ChartSuggestion {
	var charts []ChartSuggestion
	switch domainName {
	case domain.FoodNutrition:
		charts = nutritionCharts(table, prof)
	case domain.Finance, domain.RetailSales:
		charts = salesCharts(table, prof)
	case domain.Healthcare:
		charts = healthCharts(table, prof)
	}
	if len(charts) == 0 {
		charts = genericCharts(table, prof)
	}
	return charts
}

func nutritionCharts(table *dataset.Table, prof *profile.TableProfile) []ChartSuggestion {
	var points []ChartPoint
	for _, col := range measureColumns(table, prof) {
		folded := strings.ToLower(col.Name)
		matched := false
		for _, keyword := range nutrientKeywords {
			if strings.Contains(folded, keyword) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		points = append(points, ChartPoint{Label: col.Name, Y: columnMean(&col)})
	}
	if len(points) == 0 {
		return nil
	}
	return []ChartSuggestion{
		{
			Type:   "bar",
			Title:  "Average nutrient values",
			Points: points,
			Reason: "nutrient columns detected",
		},
		{
			Type:   "radar",
			Title:  "Nutrient balance",
			Points: points,
			Reason: "nutrient columns detected",
		},
	}
}

func salesCharts(table *dataset.Table, prof *profile.TableProfile) []ChartSuggestion {
	var charts []ChartSuggestion
	measures := measureColumns(table, prof)
	if dtCols := table.ColumnsOfType(dataset.TypeDatetime); len(dtCols) > 0 && len(measures) > 0 {
		if points := TimeLine(dtCols[0], measures[0]); len(points) > 0 {
			charts = append(charts, ChartSuggestion{
				Type:    "line",
				Title:   fmt.Sprintf("%s over time", measures[0].Name),
				XColumn: dtCols[0].Name,
				YColumn: measures[0].Name,
				Points:  points,
				Reason:  "datetime axis present",
			})
		}
	}
	if cat := firstCategorical(table, prof); cat != nil {
		counts := CategoryShares(cat)
		charts = append(charts,
			ChartSuggestion{
				Type:    "bar",
				Title:   fmt.Sprintf("Count by %s", cat.Name),
				XColumn: cat.Name,
				Points:  counts,
				Reason:  "leading categorical column",
			},
			ChartSuggestion{
				Type:    "pie",
				Title:   fmt.Sprintf("%s share", cat.Name),
				XColumn: cat.Name,
				Points:  counts,
				Reason:  "leading categorical column",
			})
	}
	return charts
}

func healthCharts(table *dataset.Table, prof *profile.TableProfile) []ChartSuggestion {
	var charts []ChartSuggestion
	measures := measureColumns(table, prof)
	if len(measures) >= 2 {
		charts = append(charts, ChartSuggestion{
			Type:    "scatter",
			Title:   fmt.Sprintf("%s vs %s", measures[0].Name, measures[1].Name),
			XColumn: measures[0].Name,
			YColumn: measures[1].Name,
			Points:  scatterPoints(measures[0], measures[1]),
			Reason:  "paired health metrics",
		})
	}
	if len(measures) > 0 {
		charts = append(charts, ChartSuggestion{
			Type:    "histogram",
			Title:   fmt.Sprintf("%s distribution", measures[0].Name),
			XColumn: measures[0].Name,
			Points:  HistogramPoints(dataset.FloatValues(&measures[0])),
			Reason:  "leading measure column",
		})
	}
	return charts
}

func genericCharts(table *dataset.Table, prof *profile.TableProfile) []ChartSuggestion {
	var charts []ChartSuggestion
	if cat := firstCategorical(table, prof); cat != nil {
		charts = append(charts, ChartSuggestion{
			Type:    "bar",
			Title:   fmt.Sprintf("Count by %s", cat.Name),
			XColumn: cat.Name,
			Points:  CategoryShares(cat),
			Reason:  "leading categorical column",
		})
	}
	measures := measureColumns(table, prof)
	if len(measures) > 0 {
		charts = append(charts, ChartSuggestion{
			Type:    "histogram",
			Title:   fmt.Sprintf("%s distribution", measures[0].Name),
			XColumn: measures[0].Name,
			Points:  HistogramPoints(dataset.FloatValues(&measures[0])),
			Reason:  "leading measure column",
		})
	}
	if len(measures) >= 2 {
		charts = append(charts, ChartSuggestion{
			Type:    "scatter",
			Title:   fmt.Sprintf("%s vs %s", measures[0].Name, measures[1].Name),
			XColumn: measures[0].Name,
			YColumn: measures[1].Name,
			Points:  scatterPoints(measures[0], measures[1]),
			Reason:  "paired measure columns",
		})
	}
	return charts
}

// measureColumns lists numeric columns that carry analytic signal,
// skipping likely identifiers.
func measureColumns(table *dataset.Table, prof *profile.TableProfile) []dataset.Column {
	var cols []dataset.Column
	for i := range table.Columns {
		col := table.Columns[i]
		if col.Type != dataset.TypeNumeric && col.Type != dataset.TypeIdentifier {
			continue
		}
		if p, ok := prof.Column(col.Name); ok && p.Numeric != nil && p.Numeric.LikelyID {
			continue
		}
		if len(dataset.FloatValues(&col)) == 0 {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

func firstCategorical(table *dataset.Table, prof *profile.TableProfile) *dataset.Column {
	for i := range table.Columns {
		col := &table.Columns[i]
		switch col.Type {
		case dataset.TypeCategorical, dataset.TypeBoolean:
			return col
		case dataset.TypeText:
			if p, ok := prof.Column(col.Name); ok && p.String != nil && p.String.Categorical {
				return col
			}
		}
	}
	return nil
}

// CategoryShares counts the top values and rolls the tail into "Other".
func CategoryShares(col *dataset.Column) []ChartPoint {
	counts := map[string]int{}
	for _, v := range col.Values {
		if dataset.IsMissing(v) {
			continue
		}
		counts[strings.TrimSpace(v)]++
	}
	type pair struct {
		value string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for v, c := range counts {
		pairs = append(pairs, pair{value: v, count: c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].value < pairs[j].value
	})

	var points []ChartPoint
	var other int
	for i, p := range pairs {
		if i < topSliceLimit {
			points = append(points, ChartPoint{Label: p.value, Y: float64(p.count)})
			continue
		}
		other += p.count
	}
	if other > 0 {
		points = append(points, ChartPoint{Label: "Other", Y: float64(other)})
	}
	return points
}

func HistogramPoints(values []float64) []ChartPoint {
	if len(values) == 0 {
		return nil
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		return []ChartPoint{{Label: fmt.Sprintf("%.4g", min), Y: float64(len(values))}}
	}
	width := (max - min) / histogramBins
	counts := make([]int, histogramBins)
	for _, v := range values {
		bin := int((v - min) / width)
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		counts[bin]++
	}
	points := make([]ChartPoint, histogramBins)
	for i, c := range counts {
		lo := min + float64(i)*width
		points[i] = ChartPoint{
			Label: fmt.Sprintf("%.4g..%.4g", lo, lo+width),
			X:     lo,
			Y:     float64(c),
		}
	}
	return points
}

// scatterPoints pairs the two columns row-wise and samples evenly so the
// payload stays bounded.
func scatterPoints(xCol, yCol dataset.Column) []ChartPoint {
	n := len(xCol.Values)
	if len(yCol.Values) < n {
		n = len(yCol.Values)
	}
	var points []ChartPoint
	for i := 0; i < n; i++ {
		x, okX := dataset.ParseFloat(xCol.Values[i])
		y, okY := dataset.ParseFloat(yCol.Values[i])
		if !okX || !okY {
			continue
		}
		points = append(points, ChartPoint{X: x, Y: y})
	}
	return samplePoints(points, scatterSample)
}

// TimeLine orders the value series by its timestamps.
func TimeLine(dtCol, valueCol dataset.Column) []ChartPoint {
	n := len(dtCol.Values)
	if len(valueCol.Values) < n {
		n = len(valueCol.Values)
	}
	type stamped struct {
		at    int64
		label string
		value float64
	}
	var series []stamped
	for i := 0; i < n; i++ {
		at, okT := dataset.ParseDate(dtCol.Values[i])
		v, okV := dataset.ParseFloat(valueCol.Values[i])
		if !okT || !okV {
			continue
		}
		series = append(series, stamped{at: at.Unix(), label: at.Format("2006-01-02"), value: v})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].at < series[j].at })
	points := make([]ChartPoint, len(series))
	for i, s := range series {
		points[i] = ChartPoint{Label: s.label, Y: s.value}
	}
	return samplePoints(points, lineSeriesLimit)
}

func samplePoints(points []ChartPoint, limit int) []ChartPoint {
	if len(points) <= limit {
		return points
	}
	out := make([]ChartPoint, 0, limit)
	step := float64(len(points)) / float64(limit)
	for i := 0; i < limit; i++ {
		out = append(out, points[int(float64(i)*step)])
	}
	return out
}

func columnMean(col *dataset.Column) float64 {
	return profile.Mean(dataset.FloatValues(col))
}
