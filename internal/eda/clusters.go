// File path: internal/eda/clusters.go
package eda

import (
	"context"
	"math"
	"math/rand"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	clusterMinRows    = 20
	clusterMaxK       = 6
	clusterMaxColumns = 6
	clusterIterations = 25
	clusterSeed       = 1
)

// clusterSection scans k-means inertia over a small range of k to expose
// grouping structure. The seed is fixed so repeated runs agree.
type clusterSection struct{}

func (s *clusterSection) Name() string { return "clusters" }

func (s *clusterSection) Applies(input Input) bool {
	if input.AnalysisType != domain.AnalysisComplex {
		return false
	}
	if len(measureColumns(input.Table, input.Profile)) < 2 {
		return false
	}
	return input.Table.Rows >= clusterMinRows
}

func (s *clusterSection) Run(_ context.Context, input Input, report *Report) error {
	cols := measureColumns(input.Table, input.Profile)
	if len(cols) > clusterMaxColumns {
		cols = cols[:clusterMaxColumns]
	}
	matrix, names := completeRows(cols)
	if len(matrix) < clusterMinRows {
		return nil
	}
	standardize(matrix)

	maxK := clusterMaxK
	if limit := len(matrix) / 4; limit < maxK {
		maxK = limit
	}
	if maxK < 2 {
		return nil
	}

	summary := &ClusterSummary{Columns: names}
	sizesByK := make(map[int][]int, maxK-1)
	for k := 2; k <= maxK; k++ {
		inertia, sizes := kmeans(matrix, k)
		summary.Inertias = append(summary.Inertias, inertia)
		sizesByK[k] = sizes
	}
	summary.BestK = elbowK(summary.Inertias)
	summary.Sizes = sizesByK[summary.BestK]
	report.Clusters = summary
	return nil
}

// completeRows builds the row-major matrix of rows where every selected
// column parses.
func completeRows(cols []dataset.Column) ([][]float64, []string) {
	names := make([]string, len(cols))
	rows := len(cols[0].Values)
	for i, col := range cols {
		names[i] = col.Name
		if len(col.Values) < rows {
			rows = len(col.Values)
		}
	}
	var matrix [][]float64
	for r := 0; r < rows; r++ {
		row := make([]float64, len(cols))
		ok := true
		for c, col := range cols {
			v, parsed := dataset.ParseFloat(col.Values[r])
			if !parsed {
				ok = false
				break
			}
			row[c] = v
		}
		if ok {
			matrix = append(matrix, row)
		}
	}
	return matrix, names
}

// standardize scales each column to zero mean and unit variance in place
// so no single column dominates the distances.
func standardize(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	dims := len(matrix[0])
	for d := 0; d < dims; d++ {
		col := make([]float64, len(matrix))
		for r := range matrix {
			col[r] = matrix[r][d]
		}
		mean := profile.Mean(col)
		std := profile.StdDev(col, mean)
		if std == 0 {
			std = 1
		}
		for r := range matrix {
			matrix[r][d] = (matrix[r][d] - mean) / std
		}
	}
}

// kmeans runs Lloyd's algorithm with k-means++ seeding and returns the
// final inertia and cluster sizes.
func kmeans(matrix [][]float64, k int) (float64, []int) {
	rng := rand.New(rand.NewSource(clusterSeed))
	centroids := seedCentroids(matrix, k, rng)
	assign := make([]int, len(matrix))
	for iter := 0; iter < clusterIterations; iter++ {
		changed := false
		for i, row := range matrix {
			best := nearestCentroid(row, centroids)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		recomputeCentroids(matrix, assign, centroids)
		if !changed && iter > 0 {
			break
		}
	}

	sizes := make([]int, k)
	var inertia float64
	for i, row := range matrix {
		sizes[assign[i]]++
		inertia += squaredDistance(row, centroids[assign[i]])
	}
	return inertia, sizes
}

// seedCentroids implements k-means++: each next centroid is drawn with
// probability proportional to squared distance from the chosen set.
func seedCentroids(matrix [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := rng.Intn(len(matrix))
	centroids = append(centroids, append([]float64(nil), matrix[first]...))
	for len(centroids) < k {
		dists := make([]float64, len(matrix))
		var total float64
		for i, row := range matrix {
			best := math.MaxFloat64
			for _, c := range centroids {
				if d := squaredDistance(row, c); d < best {
					best = d
				}
			}
			dists[i] = best
			total += best
		}
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), matrix[rng.Intn(len(matrix))]...))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		pick := len(matrix) - 1
		for i, d := range dists {
			cum += d
			if cum >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), matrix[pick]...))
	}
	return centroids
}

func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		if d := squaredDistance(row, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func recomputeCentroids(matrix [][]float64, assign []int, centroids [][]float64) {
	dims := len(matrix[0])
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dims)
	}
	for i, row := range matrix {
		counts[assign[i]]++
		for d, v := range row {
			sums[assign[i]][d] += v
		}
	}
	for i := range centroids {
		if counts[i] == 0 {
			continue
		}
		for d := 0; d < dims; d++ {
			centroids[i][d] = sums[i][d] / float64(counts[i])
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// elbowK picks the k after which the inertia drop flattens most, using
// the second difference of the scan. Inertias start at k=2.
func elbowK(inertias []float64) int {
	if len(inertias) == 0 {
		return 0
	}
	if len(inertias) < 3 {
		return 2
	}
	bestK := 2
	var bestGain float64
	for i := 1; i < len(inertias)-1; i++ {
		drop := inertias[i-1] - inertias[i]
		next := inertias[i] - inertias[i+1]
		if gain := drop - next; gain > bestGain {
			bestGain = gain
			bestK = i + 2
		}
	}
	return bestK
}
