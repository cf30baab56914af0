// File path: internal/eda/engine.go
package eda

import (
	"context"
	"fmt"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// Input bundles everything a section needs to decide whether it applies
// and to compute its part of the report.
type Input struct {
	Table           *dataset.Table
	Profile         *profile.TableProfile
	Characteristics domain.Characteristics
	AnalysisType    string
}

// section computes one part of the report. Sections run in registration
// order and each one appends to the shared report.
type section interface {
	Name() string
	Applies(input Input) bool
	Run(ctx context.Context, input Input, report *Report) error
}

func defaultSections() []section {
	return []section{
		&descriptiveSection{},
		&qualitySection{},
		&distributionSection{},
		&correlationSection{},
		&outlierSection{},
		&trendSection{},
		&temporalSection{},
		&textSection{},
		&geoSection{},
		&associationSection{},
		&clusterSection{},
	}
}

// Engine runs the registered sections over a profiled table.
type Engine struct {
	sections []section
}

func NewEngine() *Engine {
	return &Engine{sections: defaultSections()}
}

// Run assembles the report for the table. The analysis type from the
// dataset characteristics decides which optional sections run.
func (e *Engine) Run(ctx context.Context, table *dataset.Table, prof *profile.TableProfile, chars domain.Characteristics) (*Report, error) {
	logger := common.Logger()
	if table == nil || prof == nil {
		return nil, fmt.Errorf("eda: table and profile are required")
	}
	ctx, end := telemetry.StartSpan(ctx, "eda.run")
	defer end()

	input := Input{
		Table:           table,
		Profile:         prof,
		Characteristics: chars,
		AnalysisType:    chars.AnalysisType(),
	}
	report := &Report{
		Dataset:      table.Name,
		AnalysisType: input.AnalysisType,
	}
	for _, sec := range e.sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !sec.Applies(input) {
			continue
		}
		if err := sec.Run(ctx, input, report); err != nil {
			return nil, fmt.Errorf("eda: %s section: %w", sec.Name(), err)
		}
	}
	logger.Debug("eda: report assembled",
		"dataset", table.Name,
		"analysis_type", input.AnalysisType,
		"descriptive", len(report.Descriptive),
		"distributions", len(report.Distributions),
		"outlier_columns", len(report.Outliers))
	return report, nil
}

// numericColumns returns the numeric and identifier-typed columns that
// actually carry parseable values, preserving table order.
func numericColumns(table *dataset.Table) []dataset.Column {
	var cols []dataset.Column
	for i := range table.Columns {
		col := table.Columns[i]
		if col.Type != dataset.TypeNumeric && col.Type != dataset.TypeIdentifier {
			continue
		}
		if len(dataset.FloatValues(&col)) == 0 {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// measureColumns is numericColumns minus likely identifiers, which carry
// no analytic signal.
func measureColumns(table *dataset.Table, prof *profile.TableProfile) []dataset.Column {
	var cols []dataset.Column
	for _, col := range numericColumns(table) {
		if p, ok := prof.Column(col.Name); ok && p.Numeric != nil && p.Numeric.LikelyID {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}
