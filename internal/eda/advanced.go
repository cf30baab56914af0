// File path: internal/eda/advanced.go
package eda

import (
	"context"
	"math"

	"github.com/datalysis-ai/datalysis/internal/domain"
)

const (
	assocColumnCap = 8
	assocBins      = 10
	dcorSampleCap  = 200
	vifCap         = 100.0
)

// associationSection computes nonlinear dependency measures between
// measure columns plus a variance-inflation proxy for redundancy.
type associationSection struct{}

func (s *associationSection) Name() string { return "associations" }

func (s *associationSection) Applies(input Input) bool {
	if input.AnalysisType != domain.AnalysisComplex {
		return false
	}
	return len(measureColumns(input.Table, input.Profile)) >= 2
}

func (s *associationSection) Run(_ context.Context, input Input, report *Report) error {
	cols := measureColumns(input.Table, input.Profile)
	if len(cols) > assocColumnCap {
		cols = cols[:assocColumnCap]
	}
	summary := &AssociationSummary{}
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			xs, ys := pairedValues(cols[i].Values, cols[j].Values)
			if len(xs) < 5 {
				continue
			}
			summary.Pairs = append(summary.Pairs, AssociationPair{
				A:                   cols[i].Name,
				B:                   cols[j].Name,
				MutualInformation:   MutualInformation(xs, ys),
				DistanceCorrelation: DistanceCorrelation(sampleFloats(xs, dcorSampleCap), sampleFloats(ys, dcorSampleCap)),
			})
		}
	}
	for i, col := range cols {
		var maxR2 float64
		for j := range cols {
			if i == j {
				continue
			}
			xs, ys := pairedValues(cols[i].Values, cols[j].Values)
			r := Pearson(xs, ys)
			if r*r > maxR2 {
				maxR2 = r * r
			}
		}
		vif := vifCap
		if maxR2 < 1 {
			vif = math.Min(1/(1-maxR2), vifCap)
		}
		summary.VIF = append(summary.VIF, VIFEntry{Column: col.Name, Value: vif})
	}
	report.Associations = summary
	return nil
}

// MutualInformation estimates the normalized mutual information of two
// continuous series by discretizing both into equal-width bins. The
// result lies in [0,1] with 1 meaning one series determines the other.
func MutualInformation(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0
	}
	bx := discretize(xs, assocBins)
	by := discretize(ys, assocBins)

	joint := map[[2]int]float64{}
	px := map[int]float64{}
	py := map[int]float64{}
	for i := 0; i < n; i++ {
		joint[[2]int{bx[i], by[i]}]++
		px[bx[i]]++
		py[by[i]]++
	}
	total := float64(n)
	var mi float64
	for cell, count := range joint {
		pxy := count / total
		pMarg := (px[cell[0]] / total) * (py[cell[1]] / total)
		if pxy > 0 && pMarg > 0 {
			mi += pxy * math.Log2(pxy/pMarg)
		}
	}

	hx := entropy(px, total)
	hy := entropy(py, total)
	minH := math.Min(hx, hy)
	if minH == 0 {
		return 0
	}
	mi /= minH
	if mi > 1 {
		mi = 1
	}
	if mi < 0 {
		mi = 0
	}
	return mi
}

// DistanceCorrelation measures arbitrary dependence between two series.
// Zero means independent, one means a deterministic relationship. The
// distance matrices are quadratic in n, so callers should sample first.
func DistanceCorrelation(xs, ys []float64) float64 {
	n := len(xs)
	if n < 5 || len(ys) != n {
		return 0
	}
	a := doubleCenteredDistances(xs)
	b := doubleCenteredDistances(ys)

	var dcov2, dvarX, dvarY float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dcov2 += a[i][j] * b[i][j]
			dvarX += a[i][j] * a[i][j]
			dvarY += b[i][j] * b[i][j]
		}
	}
	n2 := float64(n * n)
	dcov2 /= n2
	dvarX /= n2
	dvarY /= n2
	if dvarX <= 0 || dvarY <= 0 {
		return 0
	}
	return math.Sqrt(math.Max(dcov2, 0)) / math.Sqrt(math.Sqrt(dvarX*dvarY))
}

// discretize maps values onto equal-width bin indexes. Constant series
// collapse into bin zero.
func discretize(values []float64, bins int) []int {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]int, len(values))
	width := (max - min) / float64(bins)
	if width == 0 {
		return out
	}
	for i, v := range values {
		bin := int((v - min) / width)
		if bin >= bins {
			bin = bins - 1
		}
		out[i] = bin
	}
	return out
}

func entropy(counts map[int]float64, total float64) float64 {
	var h float64
	for _, c := range counts {
		p := c / total
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// doubleCenteredDistances builds the pairwise distance matrix and removes
// row, column and grand means.
func doubleCenteredDistances(values []float64) [][]float64 {
	n := len(values)
	m := make([][]float64, n)
	rowMeans := make([]float64, n)
	colMeans := make([]float64, n)
	var grand float64
	for i := 0; i < n; i++ {
		m[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			d := math.Abs(values[i] - values[j])
			m[i][j] = d
			rowMeans[i] += d
			colMeans[j] += d
			grand += d
		}
	}
	for i := range rowMeans {
		rowMeans[i] /= float64(n)
		colMeans[i] /= float64(n)
	}
	grand /= float64(n * n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i][j] = m[i][j] - rowMeans[i] - colMeans[j] + grand
		}
	}
	return m
}

// sampleFloats takes an evenly strided sample so repeated runs see the
// same rows.
func sampleFloats(values []float64, limit int) []float64 {
	if len(values) <= limit {
		return values
	}
	out := make([]float64, 0, limit)
	step := float64(len(values)) / float64(limit)
	for i := 0; i < limit; i++ {
		out = append(out, values[int(float64(i)*step)])
	}
	return out
}
