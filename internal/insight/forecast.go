// File path: internal/insight/forecast.go
package insight

import (
	"math"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	forecastHorizon = 5
	forecastMinR2   = 0.3
	confidenceZ     = 1.96
)

// BuildForecasts extrapolates every column whose fitted trend explains
// enough variance. The band widens with the horizon as the residual
// spread compounds.
func BuildForecasts(table *dataset.Table, prof *profile.TableProfile, report *eda.Report) []Forecast {
	var forecasts []Forecast
	for _, trend := range report.Trends {
		if trend.R2 <= forecastMinR2 {
			continue
		}
		col, ok := table.Column(trend.Column)
		if !ok {
			continue
		}
		values := dataset.FloatValues(col)
		if len(values) < 3 {
			continue
		}
		forecasts = append(forecasts, extrapolate(trend, values))
	}
	return forecasts
}

func extrapolate(trend eda.Trend, values []float64) Forecast {
	n := len(values)
	residStd := residualStdDev(trend, values)
	forecast := Forecast{
		Column: trend.Column,
		Slope:  trend.Slope,
		R2:     trend.R2,
		Points: make([]ForecastPoint, 0, forecastHorizon),
	}
	for h := 1; h <= forecastHorizon; h++ {
		value := trend.Intercept + trend.Slope*float64(n-1+h)
		band := confidenceZ * residStd * math.Sqrt(1+float64(h)/float64(n))
		forecast.Points = append(forecast.Points, ForecastPoint{
			Step:  h,
			Value: value,
			Lower: value - band,
			Upper: value + band,
		})
	}
	return forecast
}

func residualStdDev(trend eda.Trend, values []float64) float64 {
	residuals := make([]float64, len(values))
	for i, v := range values {
		residuals[i] = v - (trend.Intercept + trend.Slope*float64(i))
	}
	return profile.StdDev(residuals, profile.Mean(residuals))
}
