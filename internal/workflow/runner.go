// File path: internal/workflow/runner.go
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datalysis-ai/datalysis/internal/cleaning"
	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/profile"
	"github.com/datalysis-ai/datalysis/internal/recommend"
)

// Recommendation is the payload persisted by the recommend step.
type Recommendation struct {
	Task   string                          `json:"task"`
	Models []recommend.ModelRecommendation `json:"models"`
}

// CleaningArtifact is the payload persisted by the cleaning-plan step.
type CleaningArtifact struct {
	Plan    *cleaning.Plan        `json:"plan"`
	Audit   []cleaning.AuditEntry `json:"audit,omitempty"`
	Summary cleaning.Summary      `json:"summary"`
}

func (m *Manager) runWorkflow(ctx context.Context, datasetID string, req Request) {
	started := time.Now()
	telemetry.RecordRunStart(string(req.kind))
	runID := m.recordRunStart(datasetID, req)
	failed := false
	defer func() {
		telemetry.RecordRunEnd(string(req.kind), failed, time.Since(started))
	}()

	if m.workflowCanceled(ctx, datasetID) {
		m.finishRun(runID, context.Canceled)
		return
	}
	table, err := m.LoadTable(datasetID)
	if err != nil {
		failed = true
		m.failWorkflow(datasetID, 0, err)
		m.finishRun(runID, err)
		return
	}
	run := &analysisRun{m: m, datasetID: datasetID, runID: runID, table: table}
	for idx, step := range run.steps(req.kind) {
		if m.workflowCanceled(ctx, datasetID) {
			m.finishRun(runID, context.Canceled)
			return
		}
		m.setWorkflowStep(datasetID, idx, StepRunning, step.start)
		message, err := step.run(ctx)
		if err != nil {
			if isCanceledErr(err) {
				m.markWorkflowCanceled(datasetID, err)
			} else {
				failed = true
				m.failWorkflow(datasetID, idx, err)
			}
			m.finishRun(runID, err)
			return
		}
		if m.workflowCanceled(ctx, datasetID) {
			m.finishRun(runID, context.Canceled)
			return
		}
		m.setWorkflowStep(datasetID, idx, StepCompleted, message)
	}
	m.completeWorkflow(datasetID)
	m.finishRun(runID, nil)
}

// analysisRun threads intermediate results between pipeline steps.
type analysisRun struct {
	m         *Manager
	datasetID string
	runID     int64

	table     *dataset.Table
	prof      *profile.TableProfile
	detection domain.Detection
	chars     domain.Characteristics
	report    *eda.Report
}

type runStep struct {
	name  string
	start string
	run   func(ctx context.Context) (string, error)
}

func (r *analysisRun) steps(kind Kind) []runStep {
	steps := []runStep{
		{name: StepNameProfile, start: "Profiling dataset", run: r.profileStep},
		{name: StepNameDomain, start: "Inferring dataset domain", run: r.domainStep},
	}
	if kind == KindQuick {
		return steps
	}
	return append(steps,
		runStep{name: StepNameEDA, start: "Running exploratory analysis", run: r.edaStep},
		runStep{name: StepNameInsights, start: "Generating insights", run: r.insightStep},
		runStep{name: StepNameRecommend, start: "Scoring model candidates", run: r.recommendStep},
		runStep{name: StepNameCleaning, start: "Planning data cleaning", run: r.cleaningStep},
	)
}

func (r *analysisRun) profileStep(ctx context.Context) (string, error) {
	prof, err := r.m.profiler.Profile(ctx, r.table)
	if err != nil {
		return "", fmt.Errorf("profile dataset: %w", err)
	}
	r.prof = prof
	if err := r.persist(ctx, memory.KindProfile, prof); err != nil {
		return "", err
	}
	return fmt.Sprintf("Profiled %d rows across %d columns", prof.Rows, prof.Columns), nil
}

func (r *analysisRun) domainStep(ctx context.Context) (string, error) {
	r.detection = r.m.detector.Detect(ctx, r.table)
	r.chars = domain.BuildCharacteristics(r.table, r.prof)
	if r.m.catalog != nil {
		if err := r.m.catalog.PersistProfile(ctx, r.datasetID, r.prof, &r.detection); err != nil {
			r.m.AppendLog("warn", "Catalog profile persist failed for dataset %s: %v", r.datasetID, err)
		}
	}
	if err := r.persist(ctx, memory.KindDomain, r.detection); err != nil {
		return "", err
	}
	return fmt.Sprintf("Detected %s domain (confidence %.2f)", r.detection.Domain, r.detection.Confidence), nil
}

func (r *analysisRun) edaStep(ctx context.Context) (string, error) {
	report, err := r.m.explorer.Run(ctx, r.table, r.prof, r.chars)
	if err != nil {
		return "", fmt.Errorf("explore dataset: %w", err)
	}
	r.report = report
	if err := r.persist(ctx, memory.KindEDA, report); err != nil {
		return "", err
	}
	strong := 0
	if report.Correlations != nil {
		strong = len(report.Correlations.Strong)
	}
	return fmt.Sprintf("Completed %s analysis (%d strong correlations, %d outlier columns)",
		report.AnalysisType, strong, len(report.Outliers)), nil
}

func (r *analysisRun) insightStep(ctx context.Context) (string, error) {
	findings, err := r.m.insights.Generate(ctx, r.table, r.prof, r.detection, r.chars, r.report)
	if err != nil {
		return "", fmt.Errorf("generate insights: %w", err)
	}
	if err := r.persist(ctx, memory.KindInsights, findings); err != nil {
		return "", err
	}
	return fmt.Sprintf("Generated %d insights and %d chart suggestions", len(findings.Insights), len(findings.Charts)), nil
}

func (r *analysisRun) recommendStep(ctx context.Context) (string, error) {
	payload := Recommendation{
		Task:   recommend.InferTask(r.chars),
		Models: recommend.Recommend(r.chars),
	}
	if err := r.persist(ctx, memory.KindRecommendation, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("Recommended %d models for %s", len(payload.Models), payload.Task), nil
}

func (r *analysisRun) cleaningStep(ctx context.Context) (string, error) {
	plan := cleaning.BuildPlan(r.table, r.prof)
	if r.m.provider != nil {
		plan = cleaning.RefinePlan(ctx, r.m.provider, plan, r.prof)
	}
	result, err := cleaning.Execute(ctx, r.table, plan)
	if err != nil {
		return "", fmt.Errorf("execute cleaning plan: %w", err)
	}
	payload := CleaningArtifact{Plan: plan, Audit: result.Audit, Summary: result.Summary}
	if err := r.persist(ctx, memory.KindCleaning, payload); err != nil {
		return "", err
	}
	if path, err := r.m.exportCleanedCSV(r.datasetID, result.Table); err != nil {
		r.m.AppendLog("warn", "Cleaned CSV export failed for dataset %s: %v", r.datasetID, err)
	} else {
		r.m.setStateArtifact(r.datasetID, ArtifactCleanedCSV, path)
	}
	return fmt.Sprintf("Planned %d cleaning steps, %d rows retained", len(plan.Steps), result.Summary.RowsAfter), nil
}

// persist stores the step output in the memory store and mirrors it to the
// catalog run record. Catalog failures degrade to warnings; the memory store
// is the source of truth.
func (r *analysisRun) persist(ctx context.Context, kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", kind, err)
	}
	if r.m.store != nil {
		artifact := memory.Artifact{
			ID:        uuid.NewString(),
			DatasetID: r.datasetID,
			Kind:      kind,
			CreatedAt: time.Now().UTC(),
			Payload:   data,
		}
		if err := r.m.store.AppendArtifacts(ctx, r.datasetID, []memory.Artifact{artifact}); err != nil {
			return fmt.Errorf("append %s artifact: %w", kind, err)
		}
	}
	if r.m.catalog != nil && r.runID > 0 {
		record := metadata.RunArtifact{RunID: r.runID, Kind: kind, Payload: string(data)}
		if r.prof != nil {
			record.Fingerprint = r.prof.Fingerprint
		}
		if err := r.m.catalog.RecordArtifact(ctx, record); err != nil {
			r.m.AppendLog("warn", "Catalog artifact record failed for dataset %s: %v", r.datasetID, err)
		}
	}
	return nil
}

func (m *Manager) recordRunStart(datasetID string, req Request) int64 {
	if m.catalog == nil {
		return 0
	}
	runID, err := m.catalog.RecordRun(context.Background(), datasetID, string(req.kind))
	if err != nil {
		m.AppendLog("warn", "Catalog run record failed for dataset %s: %v", datasetID, err)
		return 0
	}
	return runID
}

// finishRun closes the catalog run row. It runs on a background context so a
// canceled workflow still records its terminal status.
func (m *Manager) finishRun(runID int64, runErr error) {
	if m.catalog == nil || runID <= 0 {
		return
	}
	if err := m.catalog.CompleteRun(context.Background(), runID, "", runErr); err != nil {
		common.Logger().Warn("workflow: complete run failed", "run", runID, "error", err)
	}
}

func (m *Manager) exportCleanedCSV(datasetID string, table *dataset.Table) (string, error) {
	if table == nil {
		return "", fmt.Errorf("cleaned table missing")
	}
	root, err := m.ensureArtifactRoot()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-cleaned-%s.csv", safeFileComponent(datasetID), time.Now().UTC().Format("20060102T150405Z"))
	finalPath := filepath.Join(root, name)
	if err := writeTableCSV(finalPath, table); err != nil {
		return "", fmt.Errorf("write cleaned csv: %w", err)
	}
	absPath, err := filepath.Abs(finalPath)
	if err != nil {
		_ = os.Remove(finalPath)
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	m.AppendLog("info", "Exported cleaned dataset for %s: %s", datasetID, filepath.Base(absPath))
	return absPath, nil
}

func (m *Manager) ensureArtifactRoot() (string, error) {
	root := strings.TrimSpace(m.artifactRoot)
	if root == "" {
		root = filepath.Join(os.TempDir(), "datalysis_artifacts")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	if strings.TrimSpace(m.artifactRoot) == "" {
		m.workflowMu.Lock()
		if m.artifactRoot == "" {
			m.artifactRoot = root
		}
		m.workflowMu.Unlock()
	}
	return root, nil
}

func safeFileComponent(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "dataset"
	}
	var builder strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(r + 32)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	sanitized := strings.Trim(builder.String(), "-")
	if sanitized == "" {
		return "dataset"
	}
	return sanitized
}

func (m *Manager) setStateArtifact(datasetID, name, path string) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()
	session, ok := m.workflows[datasetID]
	if !ok {
		return
	}
	if session.state.Artifacts == nil {
		session.state.Artifacts = make(map[string]string)
	}
	session.state.Artifacts[name] = path
}

func (m *Manager) setWorkflowStep(datasetID string, index int, status StepStatus, message string) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()
	session, ok := m.workflows[datasetID]
	if !ok {
		return
	}
	if session.state.Status == "canceled" {
		return
	}
	if index < 0 || index >= len(session.state.Steps) {
		return
	}
	now := time.Now().UTC()
	step := &session.state.Steps[index]
	switch status {
	case StepRunning:
		step.StartedAt = &now
	case StepCompleted, StepFailed, StepCanceled:
		if step.StartedAt == nil {
			step.StartedAt = &now
		}
		step.CompletedAt = &now
	}
	step.Status = status
	if message != "" {
		step.Message = message
	}
}

func (m *Manager) failWorkflow(datasetID string, index int, err error) {
	m.AppendLog("error", "Workflow failed for dataset %s: %v", datasetID, err)
	m.setWorkflowStep(datasetID, index, StepFailed, err.Error())
	m.workflowMu.Lock()
	session, ok := m.workflows[datasetID]
	if !ok {
		m.workflowMu.Unlock()
		return
	}
	if session.state.Status == "canceled" {
		m.workflowMu.Unlock()
		return
	}
	now := time.Now().UTC()
	session.state.Status = "failed"
	session.state.Running = false
	session.state.FinishedAt = &now
	if err != nil {
		session.state.Error = err.Error()
	} else {
		session.state.Error = ""
	}
	session.cancel = nil
	snapshot := cloneState(session.state)
	m.workflowMu.Unlock()
	m.persistDatasetState(datasetID, snapshot)
}

func (m *Manager) completeWorkflow(datasetID string) {
	m.AppendLog("info", "Workflow completed successfully for dataset %s", datasetID)
	m.workflowMu.Lock()
	session, ok := m.workflows[datasetID]
	if !ok {
		m.workflowMu.Unlock()
		return
	}
	if session.state.Status == "canceled" {
		m.workflowMu.Unlock()
		return
	}
	now := time.Now().UTC()
	session.state.Status = "completed"
	session.state.Running = false
	session.state.FinishedAt = &now
	session.state.Error = ""
	session.cancel = nil
	snapshot := cloneState(session.state)
	m.workflowMu.Unlock()
	m.persistDatasetState(datasetID, snapshot)
}

func (m *Manager) workflowCanceled(ctx context.Context, datasetID string) bool {
	select {
	case <-ctx.Done():
		m.markWorkflowCanceled(datasetID, ctx.Err())
		return true
	default:
		return false
	}
}

func (m *Manager) markWorkflowCanceled(datasetID string, cause error) {
	m.workflowMu.Lock()
	session, ok := m.workflows[datasetID]
	if !ok {
		m.workflowMu.Unlock()
		return
	}
	if session.state.Status == "canceled" {
		m.workflowMu.Unlock()
		return
	}
	now := time.Now().UTC()
	session.state.Status = "canceled"
	session.state.Running = false
	session.state.FinishedAt = &now
	if cause != nil && !isCanceledErr(cause) {
		session.state.Error = cause.Error()
	} else {
		session.state.Error = ""
	}
	for i := range session.state.Steps {
		step := &session.state.Steps[i]
		if step.Status == StepRunning {
			if step.StartedAt == nil {
				step.StartedAt = &now
			}
			step.CompletedAt = &now
			step.Status = StepCanceled
			if step.Message == "" {
				step.Message = "Canceled"
			}
			break
		}
	}
	cancel := session.cancel
	session.cancel = nil
	snapshot := cloneState(session.state)
	m.workflowMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if cause != nil && !isCanceledErr(cause) {
		m.AppendLog("error", "Workflow canceled for dataset %s: %v", datasetID, cause)
	} else {
		m.AppendLog("info", "Workflow canceled for dataset %s", datasetID)
	}
	m.persistDatasetState(datasetID, snapshot)
}

func isCanceledErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
