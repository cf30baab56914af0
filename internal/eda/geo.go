// File path: internal/eda/geo.go
package eda

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
)

const (
	kmPerDegree  = 111.32
	gridBuckets  = 10
	densityLimit = 10
)

// geoSection validates coordinate pairs, reports the bounding box and a
// coarse density grid over it.
type geoSection struct{}

func (s *geoSection) Name() string { return "geo" }

func (s *geoSection) Applies(input Input) bool {
	if input.AnalysisType != domain.AnalysisGeospatial {
		return false
	}
	lat, lon := findCoordinateColumns(input.Table)
	return lat != nil && lon != nil
}

func (s *geoSection) Run(_ context.Context, input Input, report *Report) error {
	latCol, lonCol := findCoordinateColumns(input.Table)
	if latCol == nil || lonCol == nil {
		return nil
	}
	summary := &GeoSummary{
		LatColumn: latCol.Name,
		LonColumn: lonCol.Name,
		MinLat:    math.MaxFloat64,
		MaxLat:    -math.MaxFloat64,
		MinLon:    math.MaxFloat64,
		MaxLon:    -math.MaxFloat64,
	}

	n := len(latCol.Values)
	if len(lonCol.Values) < n {
		n = len(lonCol.Values)
	}
	type point struct{ lat, lon float64 }
	var points []point
	for i := 0; i < n; i++ {
		lat, okLat := dataset.ParseFloat(latCol.Values[i])
		lon, okLon := dataset.ParseFloat(lonCol.Values[i])
		if !okLat || !okLon {
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			summary.InvalidPoints++
			continue
		}
		summary.ValidPoints++
		points = append(points, point{lat: lat, lon: lon})
		summary.MinLat = math.Min(summary.MinLat, lat)
		summary.MaxLat = math.Max(summary.MaxLat, lat)
		summary.MinLon = math.Min(summary.MinLon, lon)
		summary.MaxLon = math.Max(summary.MaxLon, lon)
	}
	if summary.ValidPoints == 0 {
		summary.MinLat, summary.MaxLat, summary.MinLon, summary.MaxLon = 0, 0, 0, 0
		report.Geo = summary
		return nil
	}

	latSpan := summary.MaxLat - summary.MinLat
	lonSpan := summary.MaxLon - summary.MinLon
	midLat := (summary.MinLat + summary.MaxLat) / 2
	summary.LatSpanKm = latSpan * kmPerDegree
	summary.LonSpanKm = lonSpan * kmPerDegree * math.Cos(midLat*math.Pi/180)

	cellCounts := map[[2]int]int{}
	for _, p := range points {
		cellCounts[[2]int{
			gridBucket(p.lat, summary.MinLat, latSpan),
			gridBucket(p.lon, summary.MinLon, lonSpan),
		}]++
	}
	for cell, count := range cellCounts {
		summary.Density = append(summary.Density, GridCell{
			LatBucket: cell[0],
			LonBucket: cell[1],
			Count:     count,
		})
	}
	sort.Slice(summary.Density, func(i, j int) bool {
		if summary.Density[i].Count != summary.Density[j].Count {
			return summary.Density[i].Count > summary.Density[j].Count
		}
		if summary.Density[i].LatBucket != summary.Density[j].LatBucket {
			return summary.Density[i].LatBucket < summary.Density[j].LatBucket
		}
		return summary.Density[i].LonBucket < summary.Density[j].LonBucket
	})
	if len(summary.Density) > densityLimit {
		summary.Density = summary.Density[:densityLimit]
	}
	report.Geo = summary
	return nil
}

func gridBucket(v, min, span float64) int {
	if span == 0 {
		return 0
	}
	bucket := int((v - min) / span * gridBuckets)
	if bucket >= gridBuckets {
		bucket = gridBuckets - 1
	}
	return bucket
}

// findCoordinateColumns matches columns by name. Longitude keywords are
// checked first so "longitude" never matches as latitude via "lat".
func findCoordinateColumns(table *dataset.Table) (lat, lon *dataset.Column) {
	for i := range table.Columns {
		col := &table.Columns[i]
		name := strings.ToLower(col.Name)
		switch {
		case strings.Contains(name, "lon") || strings.Contains(name, "lng"):
			if lon == nil {
				lon = col
			}
		case strings.Contains(name, "lat"):
			if lat == nil {
				lat = col
			}
		}
	}
	return lat, lon
}
