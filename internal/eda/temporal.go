// File path: internal/eda/temporal.go
package eda

import (
	"context"
	"sort"
	"time"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	autocorrMaxLag      = 20
	autocorrSignificant = 0.3
)

// temporalSection characterizes the time axis: observation frequency,
// calendar distribution, seasonality and autocorrelation of the first
// measure column over time.
type temporalSection struct{}

func (s *temporalSection) Name() string { return "temporal" }

func (s *temporalSection) Applies(input Input) bool {
	if input.AnalysisType != domain.AnalysisTimeseries {
		return false
	}
	return len(input.Table.ColumnsOfType(dataset.TypeDatetime)) > 0
}

func (s *temporalSection) Run(_ context.Context, input Input, report *Report) error {
	dtCols := input.Table.ColumnsOfType(dataset.TypeDatetime)
	if len(dtCols) == 0 {
		return nil
	}
	dtCol := dtCols[0]
	points := timePoints(dtCol)
	if len(points) < 2 {
		return nil
	}
	sort.Slice(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	summary := &TemporalSummary{
		DatetimeColumn:  dtCol.Name,
		Start:           points[0].at,
		End:             points[len(points)-1].at,
		CountsByYear:    map[string]int{},
		CountsByMonth:   map[string]int{},
		CountsByWeekday: map[string]int{},
	}
	summary.SpanDays = int(summary.End.Sub(summary.Start).Hours() / 24)
	for _, p := range points {
		summary.CountsByYear[p.at.Format("2006")]++
		summary.CountsByMonth[p.at.Month().String()]++
		summary.CountsByWeekday[p.at.Weekday().String()]++
	}

	intervals := intervalHours(points)
	if len(intervals) > 0 {
		summary.IntervalMean = profile.Mean(intervals)
		sorted := append([]float64(nil), intervals...)
		sort.Float64s(sorted)
		summary.IntervalMedian = profile.Quantile(sorted, 0.5)
		summary.Frequency = classifyFrequency(summary.IntervalMedian / 24)
	}

	if measures := measureColumns(input.Table, input.Profile); len(measures) > 0 {
		valueCol := measures[0]
		summary.ValueColumn = valueCol.Name
		series := timeSeries(dtCol, valueCol)
		if len(series) >= 3 {
			values := make([]float64, len(series))
			for i, p := range series {
				values[i] = p.value
			}
			trend := FitTrend(valueCol.Name, values)
			summary.Trend = &trend
			summary.MonthlyMeans, summary.WeekdayMeans, summary.SeasonalityCV = seasonalMeans(series)
			summary.Autocorrelation = Autocorrelation(values)
		}
	}
	report.Temporal = summary
	return nil
}

type timePoint struct {
	at    time.Time
	value float64
}

func timePoints(dtCol dataset.Column) []timePoint {
	points := make([]timePoint, 0, len(dtCol.Values))
	for _, raw := range dtCol.Values {
		at, ok := dataset.ParseDate(raw)
		if !ok {
			continue
		}
		points = append(points, timePoint{at: at})
	}
	return points
}

// timeSeries pairs parsed timestamps with parsed values row by row and
// returns them in time order.
func timeSeries(dtCol, valueCol dataset.Column) []timePoint {
	n := len(dtCol.Values)
	if len(valueCol.Values) < n {
		n = len(valueCol.Values)
	}
	series := make([]timePoint, 0, n)
	for i := 0; i < n; i++ {
		at, okT := dataset.ParseDate(dtCol.Values[i])
		v, okV := dataset.ParseFloat(valueCol.Values[i])
		if !okT || !okV {
			continue
		}
		series = append(series, timePoint{at: at, value: v})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].at.Before(series[j].at) })
	return series
}

func intervalHours(points []timePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		out = append(out, points[i].at.Sub(points[i-1].at).Hours())
	}
	return out
}

func classifyFrequency(medianDays float64) string {
	switch {
	case medianDays < 1:
		return "sub_daily"
	case medianDays <= 1.5:
		return "daily"
	case medianDays <= 8:
		return "weekly"
	case medianDays <= 32:
		return "monthly"
	case medianDays <= 95:
		return "quarterly"
	case medianDays <= 370:
		return "yearly"
	default:
		return "irregular"
	}
}

// seasonalMeans returns per-month and per-weekday value means plus the
// coefficient of variation across the monthly means.
func seasonalMeans(series []timePoint) (map[string]float64, map[string]float64, float64) {
	monthSums := map[string]float64{}
	monthCounts := map[string]int{}
	daySums := map[string]float64{}
	dayCounts := map[string]int{}
	for _, p := range series {
		m := p.at.Month().String()
		d := p.at.Weekday().String()
		monthSums[m] += p.value
		monthCounts[m]++
		daySums[d] += p.value
		dayCounts[d]++
	}
	monthly := make(map[string]float64, len(monthSums))
	for m, sum := range monthSums {
		monthly[m] = sum / float64(monthCounts[m])
	}
	weekday := make(map[string]float64, len(daySums))
	for d, sum := range daySums {
		weekday[d] = sum / float64(dayCounts[d])
	}

	var cv float64
	if len(monthly) > 1 {
		means := make([]float64, 0, len(monthly))
		for _, v := range monthly {
			means = append(means, v)
		}
		mean := profile.Mean(means)
		if mean != 0 {
			cv = profile.StdDev(means, mean) / mean
		}
	}
	return monthly, weekday, cv
}

// Autocorrelation computes lag correlations up to min(20, n/4) and marks
// the ones above the significance threshold.
func Autocorrelation(values []float64) []LagCorrelation {
	n := len(values)
	maxLag := n / 4
	if maxLag > autocorrMaxLag {
		maxLag = autocorrMaxLag
	}
	if maxLag < 1 {
		return nil
	}
	mean := profile.Mean(values)
	var denom float64
	for _, v := range values {
		denom += (v - mean) * (v - mean)
	}
	if denom == 0 {
		return nil
	}
	out := make([]LagCorrelation, 0, maxLag)
	for lag := 1; lag <= maxLag; lag++ {
		var num float64
		for i := 0; i < n-lag; i++ {
			num += (values[i] - mean) * (values[i+lag] - mean)
		}
		ac := num / denom
		out = append(out, LagCorrelation{
			Lag:         lag,
			Value:       ac,
			Significant: ac > autocorrSignificant || ac < -autocorrSignificant,
		})
	}
	return out
}
