// File path: internal/eda/descriptive.go
package eda

import (
	"context"

	"github.com/datalysis-ai/datalysis/internal/dataset"
)

const topCategoryLimit = 5

// descriptiveSection lifts the numeric and categorical summaries out of
// the column profiles so the report is self-contained.
type descriptiveSection struct{}

func (s *descriptiveSection) Name() string { return "descriptive" }

func (s *descriptiveSection) Applies(Input) bool { return true }

func (s *descriptiveSection) Run(_ context.Context, input Input, report *Report) error {
	for _, col := range input.Table.Columns {
		prof, ok := input.Profile.Column(col.Name)
		if !ok {
			continue
		}
		switch {
		case prof.Numeric != nil:
			n := prof.Numeric
			report.Descriptive = append(report.Descriptive, ColumnDescriptive{
				Column: col.Name,
				Count:  prof.Count,
				Mean:   n.Mean,
				StdDev: n.StdDev,
				Min:    n.Min,
				Q25:    n.Q1,
				Median: n.Median,
				Q75:    n.Q3,
				Max:    n.Max,
			})
		case prof.String != nil:
			top := prof.String.TopValues
			if len(top) > topCategoryLimit {
				top = top[:topCategoryLimit]
			}
			report.Categories = append(report.Categories, CategorySummary{
				Column: col.Name,
				Unique: prof.Unique,
				Top:    top,
			})
		}
	}
	return nil
}

// qualitySection aggregates the dataset-level quality counters.
type qualitySection struct{}

func (s *qualitySection) Name() string { return "quality" }

func (s *qualitySection) Applies(Input) bool { return true }

func (s *qualitySection) Run(_ context.Context, input Input, report *Report) error {
	report.Quality = &QualitySummary{
		MissingCells:  input.Profile.MissingCells,
		MissingPct:    input.Profile.MissingPct,
		DuplicateRows: input.Profile.DuplicateRows,
		DuplicatePct:  input.Profile.DuplicatePct,
		ApproxBytes:   approxTableBytes(input.Table),
	}
	return nil
}

func approxTableBytes(table *dataset.Table) int64 {
	var total int64
	for _, col := range table.Columns {
		total += int64(len(col.Name))
		for _, v := range col.Values {
			total += int64(len(v))
		}
	}
	return total
}
