// File path: internal/domain/domain_test.go
package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

type mockProvider struct {
	reply     string
	err       error
	chatCalls int
}

func (m *mockProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	m.chatCalls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockProvider) Name() string { return "mock" }

func tableFromCSV(t *testing.T, raw string) *dataset.Table {
	t.Helper()
	table, err := dataset.ParseCSV(strings.NewReader(raw), "test")
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return table
}

func TestDetectHeuristicNutrition(t *testing.T) {
	table := tableFromCSV(t, "food,calories,protein_g,fat_g,sugar_g\napple,52,0.3,0.2,10\n")
	detection := DetectHeuristic(table)
	if detection.Domain != FoodNutrition {
		t.Fatalf("expected food_nutrition, got %s", detection.Domain)
	}
	if detection.Confidence <= 0.5 {
		t.Fatalf("expected confidence above baseline, got %f", detection.Confidence)
	}
	if len(detection.Features) == 0 {
		t.Fatal("expected matched columns as features")
	}
}

func TestDetectHeuristicFinance(t *testing.T) {
	table := tableFromCSV(t, "transaction_id,amount,balance,payment_type\n1,100,500,card\n")
	detection := DetectHeuristic(table)
	if detection.Domain != Finance {
		t.Fatalf("expected finance, got %s", detection.Domain)
	}
}

func TestDetectHeuristicGenericFallback(t *testing.T) {
	table := tableFromCSV(t, "alpha,beta,gamma\n1,2,3\n")
	detection := DetectHeuristic(table)
	if detection.Domain != Generic {
		t.Fatalf("expected generic, got %s", detection.Domain)
	}
	if detection.Confidence != 0.5 {
		t.Fatalf("expected baseline confidence, got %f", detection.Confidence)
	}
}

func TestDetectRefinesWithProvider(t *testing.T) {
	provider := &mockProvider{reply: `The dataset looks medical. {"domain": "Healthcare", "confidence": 0.92, "reason": "patient vitals"}`}
	detector := NewDetector(provider)
	table := tableFromCSV(t, "patient_id,blood_pressure,heart_rate\n1,120,72\n")
	detection := detector.Detect(context.Background(), table)
	if provider.chatCalls != 1 {
		t.Fatalf("expected one chat call, got %d", provider.chatCalls)
	}
	if detection.Domain != Healthcare {
		t.Fatalf("expected healthcare, got %s", detection.Domain)
	}
	if detection.Confidence != 0.92 {
		t.Fatalf("expected refined confidence, got %f", detection.Confidence)
	}
}

func TestDetectFallsBackOnProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("boom")}
	detector := NewDetector(provider)
	table := tableFromCSV(t, "campaign,clicks,impressions,conversion_rate\nspring,10,100,0.1\n")
	detection := detector.Detect(context.Background(), table)
	if detection.Domain != Marketing {
		t.Fatalf("expected heuristic marketing fallback, got %s", detection.Domain)
	}
}

func TestNormalizeAliases(t *testing.T) {
	cases := map[string]string{
		"Financial":    Finance,
		"food":         FoodNutrition,
		"Retail":       RetailSales,
		"medical":      Healthcare,
		"hr":           HRPeople,
		"Advertising":  Marketing,
		"demographics": Generic,
		"bogus":        Generic,
		"finance":      Finance,
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Fatalf("normalize %q: expected %s, got %s", input, want, got)
		}
	}
}

func TestCharacteristicsComplexity(t *testing.T) {
	table := tableFromCSV(t, "amount,category,notes\n1,a,hello\n2,b,world\n3,a,hello\n")
	prof, err := profile.NewProfiler().Profile(context.Background(), table)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	c := BuildCharacteristics(table, prof)
	if c.Rows != 3 || c.Cols != 3 {
		t.Fatalf("unexpected shape: %d x %d", c.Rows, c.Cols)
	}
	if c.NumericCols != 1 {
		t.Fatalf("expected 1 numeric column, got %d", c.NumericCols)
	}
	if c.Complexity <= 0 || c.Complexity > 100 {
		t.Fatalf("complexity out of range: %d", c.Complexity)
	}
	if got := c.AnalysisType(); got != AnalysisBasic {
		t.Fatalf("expected basic analysis, got %s", got)
	}
}

func TestAnalysisTypeGeospatial(t *testing.T) {
	c := Characteristics{GeoCols: 2}
	if got := c.AnalysisType(); got != AnalysisGeospatial {
		t.Fatalf("expected geospatial, got %s", got)
	}
}

func TestAnalysisTypeTimeseries(t *testing.T) {
	c := Characteristics{TimeSeries: true, DatetimeCols: 1}
	if got := c.AnalysisType(); got != AnalysisTimeseries {
		t.Fatalf("expected timeseries, got %s", got)
	}
}

func TestAnalysisTypeComplex(t *testing.T) {
	c := Characteristics{Cols: 30, HighDimensional: true, MissingPct: 20}
	if got := c.AnalysisType(); got != AnalysisComplex {
		t.Fatalf("expected complex, got %s", got)
	}
}
