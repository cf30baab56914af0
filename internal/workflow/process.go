// File path: internal/workflow/process.go
package workflow

import (
	"context"
	"fmt"

	"github.com/datalysis-ai/datalysis/internal/cleaning"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/profile"
	"github.com/datalysis-ai/datalysis/internal/recommend"
)

// Outcome bundles the full synchronous pipeline output for one table.
type Outcome struct {
	Profile         *profile.TableProfile  `json:"profile"`
	Detection       domain.Detection       `json:"domain"`
	Characteristics domain.Characteristics `json:"characteristics"`
	Report          *eda.Report            `json:"eda"`
	Insights        *insight.Result        `json:"insights"`
	Recommendation  Recommendation         `json:"recommendation"`
	CleaningPlan    *cleaning.Plan         `json:"cleaning_plan"`
	CleaningAudit   []cleaning.AuditEntry  `json:"cleaning_audit,omitempty"`
	CleaningSummary cleaning.Summary       `json:"cleaning_summary"`

	Cleaned *dataset.Table `json:"-"`
}

// Process runs the whole pipeline in the calling goroutine without session
// bookkeeping or persistence. The API uses it for small synchronous requests;
// large tables belong in Start.
func (m *Manager) Process(ctx context.Context, table *dataset.Table) (*Outcome, error) {
	if table == nil || table.Rows == 0 {
		return nil, fmt.Errorf("dataset rows required")
	}
	if err := telemetry.CheckMemoryBudget("process"); err != nil {
		return nil, err
	}
	ctx, end := telemetry.StartSpan(ctx, "workflow.process")
	defer end()

	prof, err := m.profiler.Profile(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("profile dataset: %w", err)
	}
	detection := m.detector.Detect(ctx, table)
	chars := domain.BuildCharacteristics(table, prof)
	report, err := m.explorer.Run(ctx, table, prof, chars)
	if err != nil {
		return nil, fmt.Errorf("explore dataset: %w", err)
	}
	findings, err := m.insights.Generate(ctx, table, prof, detection, chars, report)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	plan := cleaning.BuildPlan(table, prof)
	cleaned, err := cleaning.Execute(ctx, table, plan)
	if err != nil {
		return nil, fmt.Errorf("execute cleaning plan: %w", err)
	}
	return &Outcome{
		Profile:         prof,
		Detection:       detection,
		Characteristics: chars,
		Report:          report,
		Insights:        findings,
		Recommendation: Recommendation{
			Task:   recommend.InferTask(chars),
			Models: recommend.Recommend(chars),
		},
		CleaningPlan:    plan,
		CleaningAudit:   cleaned.Audit,
		CleaningSummary: cleaned.Summary,
		Cleaned:         cleaned.Table,
	}, nil
}
