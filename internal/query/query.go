// File path: internal/query/query.go
package query

import (
	"context"
	"errors"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// Intents the router can resolve a question to.
const (
	IntentSummary   = "summary"
	IntentAggregate = "aggregate"
	IntentCompare   = "compare"
	IntentTrend     = "trend"
)

// VizSpec describes the chart a client should render for an answer.
type VizSpec struct {
	Type       string               `json:"type"`
	Title      string               `json:"title"`
	XAxisLabel string               `json:"x_axis_label,omitempty"`
	YAxisLabel string               `json:"y_axis_label,omitempty"`
	Insights   string               `json:"insights,omitempty"`
	Data       []insight.ChartPoint `json:"data,omitempty"`
}

// Answer is the response to one natural-language question. SQL is
// illustrative only and never executed.
type Answer struct {
	Text          string   `json:"answer"`
	Intent        string   `json:"intent"`
	SQL           string   `json:"sql"`
	Visualization *VizSpec `json:"visualization,omitempty"`
}

// Engine answers questions about a profiled table. With a provider it
// asks the model first and falls back to the intent-routed templates;
// without one the templates answer directly.
type Engine struct {
	provider llm.Provider
}

func NewEngine(provider llm.Provider) *Engine {
	return &Engine{provider: provider}
}

// Answer resolves one question against the table. The EDA report is
// optional; trend answers degrade to a fresh fit without it.
func (e *Engine) Answer(ctx context.Context, question string, table *dataset.Table, prof *profile.TableProfile, report *eda.Report) (*Answer, error) {
	ctx, end := telemetry.StartSpan(ctx, "query.answer")
	defer end()
	logger := common.Logger()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("query: question required")
	}

	templated := routeQuestion(question, table, prof, report)
	if e.provider == nil {
		logger.Debug("query: template answer", "intent", templated.Intent)
		return templated, nil
	}

	answered, err := e.providerAnswer(ctx, question, table, prof)
	if err != nil {
		logger.Warn("query: provider answer failed, using template", "error", err)
		return templated, nil
	}
	answered.Intent = templated.Intent
	if answered.Visualization == nil {
		answered.Visualization = templated.Visualization
	}
	logger.Debug("query: provider answer", "intent", answered.Intent, "provider", e.provider.Name())
	return answered, nil
}

// routeQuestion picks the canned template for the detected intent.
// Unmatched questions get the summary template behind a short note.
func routeQuestion(question string, table *dataset.Table, prof *profile.TableProfile, report *eda.Report) *Answer {
	intent, matched := detectIntent(question)
	var answer *Answer
	switch intent {
	case IntentAggregate:
		answer = aggregateAnswer(question, table, prof)
	case IntentCompare:
		answer = compareAnswer(question, table, prof)
	case IntentTrend:
		answer = trendAnswer(question, table, prof, report)
	default:
		answer = summaryAnswer(table, prof)
	}
	if !matched {
		answer.Text = "I could not match the question to a specific analysis, so here is an overview. " + answer.Text
	}
	return answer
}
