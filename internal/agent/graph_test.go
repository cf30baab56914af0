// File path: internal/agent/graph_test.go
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

type mockProvider struct {
	reply     string
	err       error
	chatCalls int
	messages  []llm.Message
}

func (m *mockProvider) Chat(_ context.Context, messages []llm.Message) (string, error) {
	m.chatCalls++
	m.messages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockProvider) Name() string { return "mock" }

func mustArtifact(t *testing.T, id, datasetID, kind string, payload any) memory.Artifact {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return memory.Artifact{ID: id, DatasetID: datasetID, Kind: kind, CreatedAt: time.Now().UTC(), Payload: data}
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	prof := profile.TableProfile{
		Dataset: "orders.csv", Rows: 12, Columns: 4, MissingPct: 2.1, DuplicateRows: 1,
		ColumnProfiles: []profile.ColumnProfile{
			{Name: "amount", Type: dataset.TypeNumeric},
			{Name: "region", Type: dataset.TypeCategorical},
		},
	}
	stale := domain.Detection{Domain: domain.Generic, Confidence: 0.2}
	detection := domain.Detection{
		Domain: domain.RetailSales, Confidence: 0.7,
		Features: []string{"amount", "region"},
		Reason:   "column names match retail signals",
	}
	report := eda.Report{
		Dataset: "orders.csv",
		Trends:  []eda.Trend{{Column: "amount", Direction: "increasing", Strength: "strong", R2: 0.95}},
		Correlations: &eda.CorrelationSummary{
			Strong: []eda.StrongPair{{A: "amount", B: "qty", R: 0.91}},
		},
	}
	result := insight.Result{
		Domain:    domain.RetailSales,
		Insights:  []insight.Insight{{Kind: "trend", Title: "Revenue concentrates in west", Severity: "info"}},
		Anomalies: []insight.AnomalyRecord{{Column: "amount", Row: 7, Value: 900, Methods: []string{"iqr"}}},
	}
	artifacts := []memory.Artifact{
		mustArtifact(t, "1", "orders.csv", memory.KindProfile, prof),
		mustArtifact(t, "2", "orders.csv", memory.KindDomain, stale),
		mustArtifact(t, "3", "orders.csv", memory.KindDomain, detection),
		mustArtifact(t, "4", "orders.csv", memory.KindEDA, report),
		mustArtifact(t, "5", "orders.csv", memory.KindInsights, result),
	}
	if err := store.AppendArtifacts(context.Background(), "orders.csv", artifacts); err != nil {
		t.Fatalf("append artifacts: %v", err)
	}
	return store
}

func TestRunReportOfflineNarration(t *testing.T) {
	runner := NewRunner(nil, seedStore(t))
	report, err := runner.RunReport(context.Background(), ReportRequest{DatasetID: "orders.csv"})
	if err != nil {
		t.Fatalf("run report: %v", err)
	}
	for _, want := range []string{
		"orders.csv has 12 rows and 4 columns",
		"retail_sales",
		"amount is increasing",
		"Revenue concentrates in west",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report: %q", want, report)
		}
	}
	if strings.Contains(report, domain.Generic) {
		t.Fatalf("expected latest domain artifact to win, got %q", report)
	}
}

func TestRunReportWithProvider(t *testing.T) {
	provider := &mockProvider{reply: "Sales are trending upward across regions."}
	runner := NewRunner(provider, seedStore(t))
	report, err := runner.RunReport(context.Background(), ReportRequest{DatasetID: "orders.csv"})
	if err != nil {
		t.Fatalf("run report: %v", err)
	}
	if report != provider.reply {
		t.Fatalf("expected provider reply, got %q", report)
	}
	if provider.chatCalls != 1 {
		t.Fatalf("expected 1 chat call, got %d", provider.chatCalls)
	}
	if len(provider.messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(provider.messages))
	}
	first := provider.messages[0]
	if first.Role != "system" || !strings.Contains(first.Content, "data analyst") {
		t.Fatalf("unexpected persona message: %+v", first)
	}
	if !strings.Contains(provider.messages[1].Content, "Profile summary") {
		t.Fatalf("expected profile summary message: %+v", provider.messages[1])
	}
	last := provider.messages[len(provider.messages)-1]
	if last.Role != "user" || !strings.Contains(last.Content, "orders.csv") {
		t.Fatalf("unexpected instruction message: %+v", last)
	}
}

func TestRunReportFocusReachesInstruction(t *testing.T) {
	provider := &mockProvider{reply: "Focused report."}
	runner := NewRunner(provider, seedStore(t))
	_, err := runner.RunReport(context.Background(), ReportRequest{DatasetID: "orders.csv", Focus: "revenue trends"})
	if err != nil {
		t.Fatalf("run report: %v", err)
	}
	if !strings.Contains(provider.messages[0].Content, "Report focus: revenue trends.") {
		t.Fatalf("expected focus in persona message: %q", provider.messages[0].Content)
	}
	last := provider.messages[len(provider.messages)-1]
	if !strings.Contains(last.Content, "Give extra attention to revenue trends.") {
		t.Fatalf("expected focus in instruction: %q", last.Content)
	}
}

func TestRunReportProviderErrorSurfaces(t *testing.T) {
	provider := &mockProvider{err: errors.New("chat unavailable")}
	runner := NewRunner(provider, seedStore(t))
	_, err := runner.RunReport(context.Background(), ReportRequest{DatasetID: "orders.csv"})
	if err == nil {
		t.Fatal("expected error from provider failure")
	}
	if !strings.Contains(err.Error(), "narrate") || !strings.Contains(err.Error(), "chat unavailable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunReportUnknownDataset(t *testing.T) {
	runner := NewRunner(nil, seedStore(t))
	_, err := runner.RunReport(context.Background(), ReportRequest{DatasetID: "missing.csv"})
	if err == nil {
		t.Fatal("expected error for unknown dataset")
	}
	if !strings.Contains(err.Error(), "no artifacts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunReportRequiresDatasetID(t *testing.T) {
	runner := NewRunner(nil, seedStore(t))
	if _, err := runner.RunReport(context.Background(), ReportRequest{}); err == nil {
		t.Fatal("expected error for empty dataset id")
	}
}

func TestBuildSystemPromptIncludesFocus(t *testing.T) {
	prompt := buildSystemPrompt(ReportRequest{DatasetID: "orders.csv", Focus: "revenue trends"})
	if !strings.Contains(prompt, "You are a data analyst") {
		t.Fatalf("expected base system prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "Dataset: orders.csv.") || !strings.Contains(prompt, "Report focus: revenue trends.") {
		t.Fatalf("expected dataset and focus in prompt: %q", prompt)
	}
}

func TestProfileSummaryTruncatesColumns(t *testing.T) {
	prof := profile.TableProfile{Dataset: "wide.csv", Rows: 5, Columns: 10}
	for i := 0; i < 10; i++ {
		prof.ColumnProfiles = append(prof.ColumnProfiles, profile.ColumnProfile{
			Name: "c" + string(rune('0'+i)), Type: dataset.TypeNumeric,
		})
	}
	summary := profileSummary(&prof)
	if !strings.Contains(summary, "+2 more") {
		t.Fatalf("expected truncation marker: %q", summary)
	}
	if strings.Contains(summary, "c9") {
		t.Fatalf("expected trailing columns to be dropped: %q", summary)
	}
}

func TestInsightSummaryEmptyInputs(t *testing.T) {
	if got := insightSummary(nil, nil); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}
