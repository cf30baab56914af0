// File path: internal/insight/insight_test.go
package insight

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const ledgerCSV = `date,amount,qty,spike,region
2024-01-01,10,1,10,north
2024-01-02,20,2,10,south
2024-01-03,30,3,10,east
2024-01-04,40,4,10,west
2024-01-05,50,5,10,north
2024-01-06,60,6,1000,south
2024-01-07,70,7,10,east
2024-01-08,80,8,10,west
2024-01-09,90,9,10,north
2024-01-10,100,10,10,south
2024-01-11,110,11,10,east
2024-01-12,120,12,10,west
`

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

func prepare(t *testing.T, csv string) (*dataset.Table, *profile.TableProfile, domain.Characteristics, *eda.Report) {
	t.Helper()
	table, err := dataset.ParseCSV(strings.NewReader(csv), "ledger")
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	prof, err := profile.NewProfiler().Profile(context.Background(), table)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	chars := domain.BuildCharacteristics(table, prof)
	report, err := eda.NewEngine().Run(context.Background(), table, prof, chars)
	if err != nil {
		t.Fatalf("run engine: %v", err)
	}
	return table, prof, chars, report
}

func TestGenerateBundle(t *testing.T) {
	table, prof, chars, report := prepare(t, ledgerCSV)
	detection := domain.Detection{Domain: domain.Finance, Confidence: 0.9}

	result, err := NewGenerator(nil).Generate(context.Background(), table, prof, detection, chars, report)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Domain != domain.Finance {
		t.Fatalf("domain = %q, want finance", result.Domain)
	}
	if result.LLMInsight != nil {
		t.Fatalf("expected no llm insight without a provider")
	}

	types := map[string]bool{}
	for _, chart := range result.Charts {
		types[chart.Type] = true
	}
	for _, want := range []string{"line", "bar", "pie"} {
		if !types[want] {
			t.Fatalf("missing %s chart in %v", want, types)
		}
	}

	kinds := map[string]bool{}
	for _, ins := range result.Insights {
		kinds[ins.Kind] = true
	}
	if !kinds["overview"] || !kinds["correlation"] || !kinds["outliers"] {
		t.Fatalf("narrative kinds = %v", kinds)
	}
}

func TestGenerateForecasts(t *testing.T) {
	table, prof, chars, report := prepare(t, ledgerCSV)
	detection := domain.Detection{Domain: domain.Generic, Confidence: 0.5}

	result, err := NewGenerator(nil).Generate(context.Background(), table, prof, detection, chars, report)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var amount *Forecast
	for i := range result.Forecasts {
		if result.Forecasts[i].Column == "amount" {
			amount = &result.Forecasts[i]
		}
	}
	if amount == nil {
		t.Fatalf("missing amount forecast in %+v", result.Forecasts)
	}
	if len(amount.Points) != forecastHorizon {
		t.Fatalf("forecast points = %d, want %d", len(amount.Points), forecastHorizon)
	}
	first := amount.Points[0]
	if math.Abs(first.Value-130) > 1e-6 {
		t.Fatalf("first forecast value = %f, want 130", first.Value)
	}
	if math.Abs(first.Upper-first.Lower) > 1e-6 {
		t.Fatalf("perfect fit should carry a zero band, got [%f, %f]", first.Lower, first.Upper)
	}
}

func TestGenerateAnomalies(t *testing.T) {
	table, prof, chars, report := prepare(t, ledgerCSV)
	detection := domain.Detection{Domain: domain.Generic, Confidence: 0.5}

	result, err := NewGenerator(nil).Generate(context.Background(), table, prof, detection, chars, report)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Anomalies) != 1 {
		t.Fatalf("anomalies = %+v, want the single spike", result.Anomalies)
	}
	spike := result.Anomalies[0]
	if spike.Column != "spike" || spike.Row != 5 {
		t.Fatalf("anomaly location = %s row %d", spike.Column, spike.Row)
	}
	if len(spike.Methods) != 2 {
		t.Fatalf("anomaly methods = %v, want both detectors", spike.Methods)
	}
}

func TestGenerateTargetsRegion(t *testing.T) {
	table, prof, chars, report := prepare(t, ledgerCSV)
	detection := domain.Detection{Domain: domain.Generic, Confidence: 0.5}

	result, err := NewGenerator(nil).Generate(context.Background(), table, prof, detection, chars, report)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Target != "region" {
		t.Fatalf("target = %q, want region", result.Target)
	}
	if len(result.Importance) != 3 {
		t.Fatalf("importance entries = %+v, want amount, qty and spike", result.Importance)
	}
	var sum float64
	for _, fi := range result.Importance {
		sum += fi.Score
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("importance sum = %f, want 1", sum)
	}
}

func TestGenerateWithProvider(t *testing.T) {
	table, prof, chars, report := prepare(t, ledgerCSV)
	detection := domain.Detection{Domain: domain.Finance, Confidence: 0.9}
	provider := &mockProvider{reply: "Here you go: {\"title\": \"Spending ramp\", \"description\": \"Amounts rise steadily.\", \"recommendation\": \"Check the spike row.\"}"}

	result, err := NewGenerator(provider).Generate(context.Background(), table, prof, detection, chars, report)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if provider.chatCalls != 1 {
		t.Fatalf("chat calls = %d, want 1", provider.chatCalls)
	}
	if result.LLMInsight == nil || result.LLMInsight.Title != "Spending ramp" {
		t.Fatalf("llm insight = %+v", result.LLMInsight)
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	table, prof, chars, report := prepare(t, ledgerCSV)
	detection := domain.Detection{Domain: domain.Finance, Confidence: 0.9}
	provider := &mockProvider{err: errors.New("model offline")}

	result, err := NewGenerator(provider).Generate(context.Background(), table, prof, detection, chars, report)
	if err != nil {
		t.Fatalf("generate should absorb provider errors, got %v", err)
	}
	if result.LLMInsight != nil {
		t.Fatalf("llm insight should be empty after a provider failure")
	}
}

func TestSuggestChartsNutrition(t *testing.T) {
	csv := `food,calories,protein
apple,52,0.3
egg,155,13
rice,130,2.7
steak,271,25
`
	table, prof, _, _ := prepare(t, csv)
	charts := SuggestCharts(table, prof, domain.FoodNutrition)
	if len(charts) != 2 {
		t.Fatalf("nutrition charts = %+v, want bar and radar", charts)
	}
	if charts[0].Type != "bar" || charts[1].Type != "radar" {
		t.Fatalf("chart types = %s, %s", charts[0].Type, charts[1].Type)
	}
	if len(charts[0].Points) != 2 {
		t.Fatalf("bar points = %+v, want calories and protein", charts[0].Points)
	}
}

func TestCategorySharesRollsUpTail(t *testing.T) {
	values := []string{"a", "a", "a", "b", "b", "c", "d", "e", "f", "g", "h", "i"}
	col := dataset.Column{Name: "cat", Type: dataset.TypeCategorical, Values: values}
	points := CategoryShares(&col)
	if len(points) != topSliceLimit+1 {
		t.Fatalf("points = %+v, want %d plus Other", points, topSliceLimit)
	}
	if points[0].Label != "a" || points[0].Y != 3 {
		t.Fatalf("top slice = %+v", points[0])
	}
	last := points[len(points)-1]
	if last.Label != "Other" || last.Y != 2 {
		t.Fatalf("other slice = %+v", last)
	}
}

func TestHistogramPoints(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	points := HistogramPoints(values)
	if len(points) != histogramBins {
		t.Fatalf("bins = %d, want %d", len(points), histogramBins)
	}
	var total float64
	for _, p := range points {
		total += p.Y
	}
	if total != 100 {
		t.Fatalf("binned count = %f, want 100", total)
	}

	flat := HistogramPoints([]float64{4, 4, 4})
	if len(flat) != 1 || flat[0].Y != 3 {
		t.Fatalf("constant histogram = %+v", flat)
	}
}

func TestCorrelationRatioSeparatedGroups(t *testing.T) {
	values := []string{"1", "2", "1", "10", "11", "12"}
	classes := []string{"a", "a", "a", "b", "b", "b"}
	eta := correlationRatio(values, classes)
	if eta < 0.9 {
		t.Fatalf("eta = %f, want near 1 for separated groups", eta)
	}
	if eta := correlationRatio([]string{"1", "2"}, []string{"a", "a"}); eta != 0 {
		t.Fatalf("single group eta = %f, want 0", eta)
	}
}

func TestAnomalySeverity(t *testing.T) {
	if s := anomalySeverity(5.5); s != "high" {
		t.Fatalf("severity = %q, want high", s)
	}
	if s := anomalySeverity(4.5); s != "medium" {
		t.Fatalf("severity = %q, want medium", s)
	}
	if s := anomalySeverity(3.2); s != "low" {
		t.Fatalf("severity = %q, want low", s)
	}
}
