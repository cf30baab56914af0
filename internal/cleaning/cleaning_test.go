// File path: internal/cleaning/cleaning_test.go
package cleaning

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const dirtyCSV = `price,age,joined,status,phone,email,junk,nickname
$10.00,25,2024-01-01,YES,(415) 555-0101,Alice@Example.COM,a,Al
$20.00,30,2024-01-02,no,(415) 555-0102,bob@example.com,,Bo
$30.00,,2024-01-03,Y,(415) 555-0103,carol@example.com,,
$40.00,45,,true,(415) 555-0104,dan@example.com,,Da
$50.00,150,2024-01-05,N,(415) 555-0105,eve@example.com,,Ev
$60.00,28,2024-01-06,no,(415) 555-0106,frank@example.com,b,
$70.00,33,2024-01-07,yes,(415) 555-0107,grace@example.com,,Gr
$80.00,41,2024-01-08,no,(415) 555-0108,hank@example.com,,
$90.00,,2024-01-09,false,(415) 555-0109,iris@example.com,,Ir
$100.00,38,2024-01-10,yes,(415) 555-0110,jay@example.com,c,
$110.00,29,2024-01-11,no,(415) 555-0111,kate@example.com,,Ka
$120.00,52,2024-01-12,yes,(415) 555-0112,lena@example.com,d,
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

func mustTable(t *testing.T, csv, name string) *dataset.Table {
	t.Helper()
	table, err := dataset.ParseCSV(strings.NewReader(csv), name)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return table
}

func mustProfile(t *testing.T, table *dataset.Table) *profile.TableProfile {
	t.Helper()
	prof, err := profile.NewProfiler().Profile(context.Background(), table)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	return prof
}

func findStep(plan *Plan, op, column string) (Step, bool) {
	for _, step := range plan.Steps {
		if step.Operation == op && strings.EqualFold(step.Column, column) {
			return step, true
		}
	}
	return Step{}, false
}

func TestBuildPlanDirtyTable(t *testing.T) {
	table := mustTable(t, dirtyCSV, "dirty")
	prof := mustProfile(t, table)
	plan := BuildPlan(table, prof)

	if plan.Dataset != "dirty" {
		t.Fatalf("dataset = %q, want dirty", plan.Dataset)
	}
	want := []struct {
		op     string
		column string
	}{
		{OpDropColumn, "junk"},
		{OpFlagColumn, "nickname"},
		{OpCoerceNumeric, "price"},
		{OpImputeMedian, "age"},
		{OpFillForward, "joined"},
		{OpImputeMode, "nickname"},
		{OpCapOutliers, "age"},
		{OpNormalizeText, "status"},
		{OpStandardizeValues, "status"},
		{OpNormalizeText, "phone"},
		{OpFormatPhone, "phone"},
		{OpNormalizeText, "email"},
		{OpFormatEmail, "email"},
		{OpEnforceRange, "age"},
	}
	for _, w := range want {
		if _, ok := findStep(plan, w.op, w.column); !ok {
			t.Errorf("plan missing %s on %s", w.op, w.column)
		}
	}

	if _, ok := findStep(plan, OpNormalizeText, "price"); ok {
		t.Fatalf("price is being coerced numeric and must not get text steps")
	}
	if _, ok := findStep(plan, OpDropDuplicates, ""); ok {
		t.Fatalf("no duplicate rows, drop_duplicates must be absent")
	}
	if step, _ := findStep(plan, OpStandardizeValues, "status"); step.Params["set"] != "boolean" {
		t.Fatalf("status standardization set = %q, want boolean", step.Params["set"])
	}
	if step, _ := findStep(plan, OpEnforceRange, "age"); step.Params["min"] != "0" || step.Params["max"] != "120" {
		t.Fatalf("age range params = %v, want min 0 max 120", step.Params)
	}
}

func TestBuildPlanDuplicatesAndDates(t *testing.T) {
	csv := `start_date,end_date,amount
2024-05-01,2024-05-03,10
2024-05-10,2024-05-02,20
2024-05-04,2024-05-06,30
2024-05-01,2024-05-03,10
`
	table := mustTable(t, csv, "trips")
	prof := mustProfile(t, table)
	plan := BuildPlan(table, prof)

	if _, ok := findStep(plan, OpDropDuplicates, ""); !ok {
		t.Fatalf("plan missing drop_duplicates for an exact duplicate row")
	}
	step, ok := findStep(plan, OpSwapDates, "start_date")
	if !ok {
		t.Fatalf("plan missing swap_dates for the reversed pair")
	}
	if step.Params["other"] != "end_date" {
		t.Fatalf("swap_dates other = %q, want end_date", step.Params["other"])
	}
}

func TestExecuteCleansTable(t *testing.T) {
	table := mustTable(t, dirtyCSV, "dirty")
	prof := mustProfile(t, table)
	plan := BuildPlan(table, prof)

	result, err := Execute(context.Background(), table, plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Audit) != len(plan.Steps) {
		t.Fatalf("audit entries = %d, want %d", len(result.Audit), len(plan.Steps))
	}
	if result.Summary.StepsApplied != len(plan.Steps) {
		t.Fatalf("steps applied = %d, want %d", result.Summary.StepsApplied, len(plan.Steps))
	}

	s := result.Summary
	if s.ColumnsBefore != 8 || s.ColumnsAfter != 7 || s.ColumnsRemoved != 1 {
		t.Fatalf("column summary = %d/%d/%d, want 8/7/1", s.ColumnsBefore, s.ColumnsAfter, s.ColumnsRemoved)
	}
	if s.RowsBefore != 12 || s.RowsAfter != 12 {
		t.Fatalf("row summary = %d/%d, want 12/12", s.RowsBefore, s.RowsAfter)
	}
	if s.CompletenessAfter != 100 {
		t.Fatalf("completeness after = %.2f, want 100", s.CompletenessAfter)
	}
	if s.CompletenessAfter <= s.CompletenessBefore {
		t.Fatalf("completeness did not improve: %.2f -> %.2f", s.CompletenessBefore, s.CompletenessAfter)
	}

	cleaned := result.Table
	if _, ok := cleaned.Column("junk"); ok {
		t.Fatalf("junk column survived drop_column")
	}
	if _, ok := table.Column("junk"); !ok {
		t.Fatalf("input table was mutated")
	}

	price, _ := cleaned.Column("price")
	if price.Type != dataset.TypeNumeric {
		t.Fatalf("price type = %s, want numeric", price.Type)
	}
	if price.Values[0] != "10" {
		t.Fatalf("price[0] = %q, want 10", price.Values[0])
	}

	age, _ := cleaned.Column("age")
	if age.Values[2] != "35.5" {
		t.Fatalf("age[2] = %q, want the median 35.5", age.Values[2])
	}
	if age.Values[4] != "60.375" {
		t.Fatalf("age[4] = %q, want the winsorized fence 60.375", age.Values[4])
	}

	joined, _ := cleaned.Column("joined")
	if joined.Values[3] != "2024-01-03" {
		t.Fatalf("joined[3] = %q, want the carried forward 2024-01-03", joined.Values[3])
	}

	status, _ := cleaned.Column("status")
	for i, v := range status.Values {
		if v != "yes" && v != "no" {
			t.Fatalf("status[%d] = %q after standardization", i, v)
		}
	}

	phone, _ := cleaned.Column("phone")
	if phone.Values[0] != "4155550101" {
		t.Fatalf("phone[0] = %q, want 4155550101", phone.Values[0])
	}

	email, _ := cleaned.Column("email")
	if email.Values[0] != "alice@example.com" {
		t.Fatalf("email[0] = %q, want alice@example.com", email.Values[0])
	}

	nickname, _ := cleaned.Column("nickname")
	if nickname.Values[2] != "al" {
		t.Fatalf("nickname[2] = %q, want the normalized mode al", nickname.Values[2])
	}
}

func TestExecuteDropDuplicates(t *testing.T) {
	csv := `city,sales
austin,10
boston,20
austin,10
chicago,30
denver,40
`
	table := mustTable(t, csv, "sales")
	plan := &Plan{Dataset: "sales", Steps: []Step{{Operation: OpDropDuplicates, Rationale: "test"}}}

	result, err := Execute(context.Background(), table, plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Summary.RowsAfter != 4 || result.Summary.RowsRemoved != 1 {
		t.Fatalf("rows after/removed = %d/%d, want 4/1", result.Summary.RowsAfter, result.Summary.RowsRemoved)
	}
	entry := result.Audit[0]
	if entry.RowsBefore != 5 || entry.RowsAfter != 4 {
		t.Fatalf("audit rows = %d -> %d, want 5 -> 4", entry.RowsBefore, entry.RowsAfter)
	}
	city, _ := result.Table.Column("city")
	if len(city.Values) != 4 {
		t.Fatalf("city values = %d, want 4", len(city.Values))
	}
}

func TestExecuteSwapDates(t *testing.T) {
	csv := `start_date,end_date
2024-05-01,2024-05-03
2024-05-10,2024-05-02
`
	table := mustTable(t, csv, "trips")
	plan := &Plan{Dataset: "trips", Steps: []Step{{
		Operation: OpSwapDates,
		Column:    "start_date",
		Rationale: "test",
		Params:    map[string]string{"other": "end_date"},
	}}}

	result, err := Execute(context.Background(), table, plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	start, _ := result.Table.Column("start_date")
	end, _ := result.Table.Column("end_date")
	if start.Values[1] != "2024-05-02" || end.Values[1] != "2024-05-10" {
		t.Fatalf("reversed pair not swapped: %q / %q", start.Values[1], end.Values[1])
	}
	if start.Values[0] != "2024-05-01" {
		t.Fatalf("ordered pair was touched: %q", start.Values[0])
	}
}

func TestExecuteRemoveOutlierRows(t *testing.T) {
	csv := `amount
10
11
12
13
500
`
	table := mustTable(t, csv, "ledger")
	plan := &Plan{Dataset: "ledger", Steps: []Step{{
		Operation: OpCapOutliers,
		Column:    "amount",
		Rationale: "test",
		Params:    map[string]string{"method": "remove"},
	}}}

	result, err := Execute(context.Background(), table, plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Summary.RowsAfter != 4 {
		t.Fatalf("rows after = %d, want 4", result.Summary.RowsAfter)
	}
	amount, _ := result.Table.Column("amount")
	for i, v := range amount.Values {
		if v == "500" {
			t.Fatalf("outlier row %d survived removal", i)
		}
	}
}

func TestExecuteSkipsMissingColumn(t *testing.T) {
	table := mustTable(t, "a\n1\n2\n", "tiny")
	plan := &Plan{Dataset: "tiny", Steps: []Step{{Operation: OpImputeMean, Column: "ghost", Rationale: "test"}}}

	result, err := Execute(context.Background(), table, plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Audit[0].Details, "skipped") {
		t.Fatalf("audit details = %q, want a skip note", result.Audit[0].Details)
	}
}

func TestExecuteRespectsCancel(t *testing.T) {
	table := mustTable(t, dirtyCSV, "dirty")
	prof := mustProfile(t, table)
	plan := BuildPlan(table, prof)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Execute(ctx, table, plan); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestConsistencyScore(t *testing.T) {
	table := mustTable(t, "grade\nA\nA\nA\nB\n", "grades")
	score := consistencyScore(table)
	if math.Abs(score-0.5) > 1e-9 {
		t.Fatalf("consistency = %.4f, want 0.5 for 2 distinct over 4 values", score)
	}
}

func TestRefinePlanAcceptsValidReply(t *testing.T) {
	table := mustTable(t, dirtyCSV, "dirty")
	prof := mustProfile(t, table)
	plan := BuildPlan(table, prof)

	provider := &mockProvider{reply: `Here you go:
{"steps": [{"operation": "impute_median", "column": "age", "rationale": "robust to the outlier"}]}`}
	refined := RefinePlan(context.Background(), provider, plan, prof)

	if provider.chatCalls != 1 {
		t.Fatalf("chat calls = %d, want 1", provider.chatCalls)
	}
	if len(refined.Steps) != 1 || refined.Steps[0].Operation != OpImputeMedian {
		t.Fatalf("refined steps = %+v, want the single proposed step", refined.Steps)
	}
	if refined.Dataset != "dirty" {
		t.Fatalf("refined dataset = %q, want dirty", refined.Dataset)
	}
}

func TestRefinePlanKeepsOriginalOnFailure(t *testing.T) {
	table := mustTable(t, dirtyCSV, "dirty")
	prof := mustProfile(t, table)
	plan := BuildPlan(table, prof)

	cases := []struct {
		name     string
		provider *mockProvider
	}{
		{"chat error", &mockProvider{err: errors.New("boom")}},
		{"no json", &mockProvider{reply: "I cannot help with that."}},
		{"empty steps", &mockProvider{reply: `{"steps": []}`}},
		{"unknown operation", &mockProvider{reply: `{"steps": [{"operation": "delete_everything", "column": "age"}]}`}},
		{"unknown column", &mockProvider{reply: `{"steps": [{"operation": "impute_mean", "column": "ghost"}]}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			refined := RefinePlan(context.Background(), tc.provider, plan, prof)
			if refined != plan {
				t.Fatalf("plan was replaced, want the deterministic plan kept")
			}
		})
	}
}

func TestRefinePlanNilProvider(t *testing.T) {
	plan := &Plan{Dataset: "d", Steps: []Step{{Operation: OpImputeMean, Column: "a"}}}
	if refined := RefinePlan(context.Background(), nil, plan, &profile.TableProfile{}); refined != plan {
		t.Fatalf("nil provider must return the plan unchanged")
	}
}

func TestStripCurrency(t *testing.T) {
	cases := map[string]string{
		" $1,200.50 ": "1,200.50",
		"€99":         "99",
		"15%":         "15",
		"plain":       "plain",
	}
	for in, want := range cases {
		if got := StripCurrency(in); got != want {
			t.Errorf("StripCurrency(%q) = %q, want %q", in, got, want)
		}
	}
}
