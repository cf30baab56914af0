// File path: internal/query/query_test.go
package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const ordersCSV = `date,amount,qty,region
2024-01-01,10,1,north
2024-01-02,20,2,south
2024-01-03,30,3,east
2024-01-04,40,4,west
2024-01-05,50,5,north
2024-01-06,60,6,south
2024-01-07,70,7,east
2024-01-08,80,8,west
2024-01-09,90,9,north
2024-01-10,100,10,south
2024-01-11,110,11,east
2024-01-12,120,12,west
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

func prepare(t *testing.T) (*dataset.Table, *profile.TableProfile) {
	t.Helper()
	table, err := dataset.ParseCSV(strings.NewReader(ordersCSV), "orders")
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	prof, err := profile.NewProfiler().Profile(context.Background(), table)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	return table, prof
}

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		question string
		intent   string
		matched  bool
	}{
		{"Summarize this dataset", IntentSummary, true},
		{"Give me an overview of the data", IntentSummary, true},
		{"What is the average amount?", IntentAggregate, true},
		{"What is the total qty?", IntentAggregate, true},
		{"Compare amount between regions", IntentCompare, true},
		{"How has amount changed over time?", IntentTrend, true},
		{"hello there", IntentSummary, false},
	}
	for _, tc := range cases {
		intent, matched := detectIntent(tc.question)
		if intent != tc.intent || matched != tc.matched {
			t.Errorf("detectIntent(%q) = %s/%v, want %s/%v", tc.question, intent, matched, tc.intent, tc.matched)
		}
	}
}

func TestDetectStatistic(t *testing.T) {
	cases := map[string]string{
		"What is the average amount?": statMean,
		"total revenue please":        statSum,
		"What is the maximum qty?":    statMax,
		"minimum amount":              statMin,
		"count of region":             statCount,
		"tell me about amount":        statMean,
	}
	for question, want := range cases {
		if got := detectStatistic(question); got != want {
			t.Errorf("detectStatistic(%q) = %s, want %s", question, got, want)
		}
	}
}

func TestAnswerSummary(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	answer, err := engine.Answer(context.Background(), "Give me an overview", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Intent != IntentSummary {
		t.Fatalf("intent = %s, want summary", answer.Intent)
	}
	if !strings.Contains(answer.Text, "12 rows") || !strings.Contains(answer.Text, "4 columns") {
		t.Fatalf("summary text missing shape: %q", answer.Text)
	}
	if answer.SQL != "SELECT * FROM orders LIMIT 10;" {
		t.Fatalf("sql = %q", answer.SQL)
	}
	if answer.Visualization != nil {
		t.Fatalf("no missing values, expected nil visualization")
	}
}

func TestAnswerAggregate(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	answer, err := engine.Answer(context.Background(), "What is the average amount?", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Intent != IntentAggregate {
		t.Fatalf("intent = %s, want aggregate", answer.Intent)
	}
	if !strings.Contains(answer.Text, "65") {
		t.Fatalf("text = %q, want the mean 65", answer.Text)
	}
	if answer.SQL != "SELECT AVG(amount) FROM orders;" {
		t.Fatalf("sql = %q", answer.SQL)
	}
	if answer.Visualization == nil || answer.Visualization.Type != "histogram" {
		t.Fatalf("expected a histogram visualization, got %+v", answer.Visualization)
	}

	answer, err = engine.Answer(context.Background(), "What is the total qty?", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(answer.Text, "78") || answer.SQL != "SELECT SUM(qty) FROM orders;" {
		t.Fatalf("sum answer = %q / %q", answer.Text, answer.SQL)
	}
}

func TestAnswerAggregateUnknownColumn(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	answer, err := engine.Answer(context.Background(), "What is the average price?", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(answer.Text, "could not find") {
		t.Fatalf("text = %q, want a missing-column note", answer.Text)
	}
	if !strings.Contains(answer.Text, "amount") {
		t.Fatalf("text = %q, want available columns listed", answer.Text)
	}
}

func TestAnswerCompare(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	answer, err := engine.Answer(context.Background(), "Compare amount between regions", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Intent != IntentCompare {
		t.Fatalf("intent = %s, want compare", answer.Intent)
	}
	if !strings.Contains(answer.Text, "west has the highest average amount (80)") {
		t.Fatalf("text = %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "north the lowest (50)") {
		t.Fatalf("text = %q", answer.Text)
	}
	if answer.SQL != "SELECT region, AVG(amount) FROM orders GROUP BY region ORDER BY 2 DESC;" {
		t.Fatalf("sql = %q", answer.SQL)
	}
	viz := answer.Visualization
	if viz == nil || viz.Type != "bar" || len(viz.Data) != 4 {
		t.Fatalf("visualization = %+v, want a 4-point bar", viz)
	}
	if viz.Data[0].Label != "west" || viz.Data[0].Y != 80 {
		t.Fatalf("top group = %+v, want west 80", viz.Data[0])
	}
}

func TestAnswerTrend(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	answer, err := engine.Answer(context.Background(), "What is the trend of amount over time?", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Intent != IntentTrend {
		t.Fatalf("intent = %s, want trend", answer.Intent)
	}
	if !strings.Contains(answer.Text, "increasing") || !strings.Contains(answer.Text, "strong") {
		t.Fatalf("text = %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "between 2024-01-01 and 2024-01-12") {
		t.Fatalf("text = %q, want the observed span", answer.Text)
	}
	if answer.SQL != "SELECT date, SUM(amount) FROM orders GROUP BY date ORDER BY date;" {
		t.Fatalf("sql = %q", answer.SQL)
	}
	if answer.Visualization == nil || answer.Visualization.Type != "line" || len(answer.Visualization.Data) != 12 {
		t.Fatalf("visualization = %+v, want a 12-point line", answer.Visualization)
	}
}

func TestAnswerUnmatchedQuestion(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	answer, err := engine.Answer(context.Background(), "hello there", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Intent != IntentSummary {
		t.Fatalf("intent = %s, want summary fallback", answer.Intent)
	}
	if !strings.HasPrefix(answer.Text, "I could not match the question") {
		t.Fatalf("text = %q, want the unmatched note prefix", answer.Text)
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)
	if _, err := engine.Answer(context.Background(), "   ", table, prof, nil); err == nil {
		t.Fatalf("expected an error for an empty question")
	}
}

func TestAnswerWithProvider(t *testing.T) {
	table, prof := prepare(t)
	provider := &mockProvider{reply: `Sure, here is the analysis:
{"answer": "West leads with an average amount of 80.", "sql": "SELECT region, AVG(amount) FROM orders GROUP BY region;", "visualization": {"type": "bar", "title": "Average amount", "xAxisLabel": "region", "yAxisLabel": "amount", "insights": "West leads.", "data": [{"label": "west", "value": 80}]}}`}
	engine := NewEngine(provider)

	answer, err := engine.Answer(context.Background(), "Compare amount between regions", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if provider.chatCalls != 1 {
		t.Fatalf("chat calls = %d, want 1", provider.chatCalls)
	}
	if answer.Text != "West leads with an average amount of 80." {
		t.Fatalf("text = %q", answer.Text)
	}
	if answer.Intent != IntentCompare {
		t.Fatalf("intent = %s, want the routed compare", answer.Intent)
	}
	viz := answer.Visualization
	if viz == nil || viz.Type != "bar" || len(viz.Data) != 1 || viz.Data[0].Label != "west" {
		t.Fatalf("visualization = %+v", viz)
	}
}

func TestAnswerProviderFailureFallsBack(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(&mockProvider{err: errors.New("boom")})

	answer, err := engine.Answer(context.Background(), "Compare amount between regions", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(answer.Text, "west has the highest average amount") {
		t.Fatalf("text = %q, want the template fallback", answer.Text)
	}
}

func TestAnswerProviderMissingViz(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(&mockProvider{reply: `{"answer": "West leads.", "sql": ""}`})

	answer, err := engine.Answer(context.Background(), "Compare amount between regions", table, prof, nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.SQL != "-- no sql generated" {
		t.Fatalf("sql = %q", answer.SQL)
	}
	if answer.Visualization == nil || answer.Visualization.Type != "bar" {
		t.Fatalf("visualization = %+v, want the template bar chart", answer.Visualization)
	}
}

func TestExamplesHeuristicFinance(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(nil)

	examples := engine.Examples(context.Background(), table, prof, domain.Detection{Domain: domain.Finance})
	if len(examples) != 4 {
		t.Fatalf("examples = %v, want 4", examples)
	}
	joined := strings.Join(examples, " | ")
	for _, want := range []string{"total amount", "Which region has the highest amount", "trend of amount over time based on date"} {
		if !strings.Contains(joined, want) {
			t.Errorf("examples missing %q: %v", want, examples)
		}
	}
}

func TestExamplesProviderReplacesHeuristics(t *testing.T) {
	table, prof := prepare(t)
	provider := &mockProvider{reply: `{"queries": ["Which region grew fastest?", "What drives amount?", "Any seasonal pattern?", "which region grew fastest?", "  "]}`}
	engine := NewEngine(provider)

	examples := engine.Examples(context.Background(), table, prof, domain.Detection{Domain: domain.Finance})
	if len(examples) != 3 {
		t.Fatalf("examples = %v, want 3 deduplicated", examples)
	}
	if examples[0] != "Which region grew fastest?" {
		t.Fatalf("examples[0] = %q", examples[0])
	}
}

func TestExamplesProviderTooFewFallsBack(t *testing.T) {
	table, prof := prepare(t)
	engine := NewEngine(&mockProvider{reply: `{"queries": ["only one"]}`})

	examples := engine.Examples(context.Background(), table, prof, domain.Detection{Domain: domain.Finance})
	if len(examples) != 4 {
		t.Fatalf("examples = %v, want the 4 heuristics", examples)
	}
}

func TestMatchColumnPrefersLongest(t *testing.T) {
	cols := []dataset.Column{{Name: "price"}, {Name: "total_price"}}
	name, ok := matchColumn("what is the total_price here", cols)
	if !ok || name != "total_price" {
		t.Fatalf("matchColumn = %q/%v, want total_price", name, ok)
	}
	name, ok = matchColumn("what is the total price here", cols)
	if !ok || name != "total_price" {
		t.Fatalf("matchColumn with spaces = %q/%v, want total_price", name, ok)
	}
	if _, ok = matchColumn("nothing relevant", cols); ok {
		t.Fatalf("matchColumn matched nothing relevant")
	}
}

func TestSQLTableName(t *testing.T) {
	cases := map[string]string{
		"Orders 2024.csv": "orders_2024",
		"sales.data.csv":  "sales_data",
		"":                "dataset",
		"..":              "dataset",
	}
	for in, want := range cases {
		if got := sqlTableName(in); got != want {
			t.Errorf("sqlTableName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoercePoints(t *testing.T) {
	data := []map[string]any{
		{"label": "a", "value": float64(1)},
		{"name": "b", "y": "2.5"},
		{"value": float64(3)},
		{"label": "d"},
	}
	points := coercePoints(data)
	if len(points) != 2 {
		t.Fatalf("points = %+v, want 2", points)
	}
	if points[0].Label != "a" || points[0].Y != 1 {
		t.Fatalf("points[0] = %+v", points[0])
	}
	if points[1].Label != "b" || points[1].Y != 2.5 {
		t.Fatalf("points[1] = %+v", points[1])
	}
}

func TestColumnInfoJSON(t *testing.T) {
	_, prof := prepare(t)
	var info map[string]columnInfo
	if err := json.Unmarshal([]byte(columnInfoJSON(prof)), &info); err != nil {
		t.Fatalf("unmarshal column info: %v", err)
	}
	amount, ok := info["amount"]
	if !ok || amount.Type != "numeric" || amount.Mean == nil || *amount.Mean != 65 {
		t.Fatalf("amount info = %+v", amount)
	}
	region, ok := info["region"]
	if !ok || region.Type != "categorical" || region.UniqueValues != 4 {
		t.Fatalf("region info = %+v", region)
	}
	if len(region.Examples) == 0 || len(region.Examples) > exampleValueLimit {
		t.Fatalf("region examples = %v", region.Examples)
	}
	date, ok := info["date"]
	if !ok || date.Type != "datetime" || date.MinTime == "" {
		t.Fatalf("date info = %+v", date)
	}
}
