// File path: internal/workflow/process_test.go
package workflow

import (
	"context"
	"testing"
)

func TestProcessProducesFullOutcome(t *testing.T) {
	mgr := newTestManager(t)
	outcome, err := mgr.Process(context.Background(), sampleTable(t))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Profile == nil || outcome.Profile.Rows != 5 {
		t.Fatalf("unexpected profile: %+v", outcome.Profile)
	}
	if outcome.Detection.Domain == "" {
		t.Fatal("expected domain detection")
	}
	if outcome.Report == nil {
		t.Fatal("expected eda report")
	}
	if outcome.Insights == nil {
		t.Fatal("expected insight result")
	}
	if outcome.Recommendation.Task == "" || len(outcome.Recommendation.Models) == 0 {
		t.Fatalf("unexpected recommendation: %+v", outcome.Recommendation)
	}
	if outcome.CleaningPlan == nil {
		t.Fatal("expected cleaning plan")
	}
	if outcome.CleaningSummary.RowsBefore != 5 {
		t.Fatalf("unexpected cleaning summary: %+v", outcome.CleaningSummary)
	}
	if outcome.Cleaned == nil {
		t.Fatal("expected cleaned table")
	}
}

func TestProcessRejectsNilTable(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.Process(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil table")
	}
}
