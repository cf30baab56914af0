// File path: internal/query/context.go
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	answerSampleRows      = 50
	categoricalExampleMax = 15
	exampleValueLimit     = 5

	answerSystemPrompt = "You are a data analyst. Answer only from the provided data and reply with a single JSON object."
)

// columnInfo is the per-column context block sent alongside the sample.
// Field presence follows the column kind: numeric columns carry bounds
// and the mean, categorical ones carry cardinality and examples,
// datetime ones carry the observed range.
type columnInfo struct {
	Type         string   `json:"type"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Mean         *float64 `json:"mean,omitempty"`
	UniqueValues int      `json:"unique_values,omitempty"`
	Examples     []string `json:"examples,omitempty"`
	MinTime      string   `json:"min_time,omitempty"`
	MaxTime      string   `json:"max_time,omitempty"`
}

func (e *Engine) providerAnswer(ctx context.Context, question string, table *dataset.Table, prof *profile.TableProfile) (*Answer, error) {
	prompt := fmt.Sprintf(`Answer the question from this data sample and column information.

Data (first %d rows):
%s
Column information:
%s

Question: %s

Rules: use only columns and values that appear in the data, give exact numbers, and say so plainly when the data cannot answer the question.

Reply with JSON: {"answer": "...", "sql": "SELECT ...", "visualization": {"type": "bar|line|pie|scatter|histogram", "title": "...", "xAxisLabel": "...", "yAxisLabel": "...", "insights": "...", "data": [{"label": "...", "value": 0}]}}`,
		answerSampleRows, table.HeadCSV(answerSampleRows), columnInfoJSON(prof), question)

	reply, err := e.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: prompt},
	})
	telemetry.RecordLLMCall(err != nil)
	if err != nil {
		return nil, fmt.Errorf("query: provider chat: %w", err)
	}
	return parseAnswerReply(reply)
}

func columnInfoJSON(prof *profile.TableProfile) string {
	info := make(map[string]columnInfo, len(prof.ColumnProfiles))
	for _, cp := range prof.ColumnProfiles {
		switch {
		case cp.Numeric != nil:
			lo, hi, mean := cp.Numeric.Min, cp.Numeric.Max, cp.Numeric.Mean
			info[cp.Name] = columnInfo{Type: "numeric", Min: &lo, Max: &hi, Mean: &mean}
		case cp.Datetime != nil:
			info[cp.Name] = columnInfo{
				Type:    "datetime",
				MinTime: cp.Datetime.MinTime.Format(time.RFC3339),
				MaxTime: cp.Datetime.MaxTime.Format(time.RFC3339),
			}
		case cp.String != nil && cp.Unique < categoricalExampleMax:
			examples := make([]string, 0, exampleValueLimit)
			for _, vc := range cp.String.TopValues {
				examples = append(examples, vc.Value)
				if len(examples) == exampleValueLimit {
					break
				}
			}
			info[cp.Name] = columnInfo{Type: "categorical", UniqueValues: cp.Unique, Examples: examples}
		case cp.String != nil:
			info[cp.Name] = columnInfo{Type: "text", UniqueValues: cp.Unique}
		default:
			info[cp.Name] = columnInfo{Type: "other"}
		}
	}
	blob, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(blob)
}

func parseAnswerReply(reply string) (*Answer, error) {
	blob := llm.ExtractJSON(reply)
	if blob == "" {
		return nil, fmt.Errorf("query: reply contained no JSON object")
	}
	var payload struct {
		Answer        string `json:"answer"`
		SQL           string `json:"sql"`
		Visualization *struct {
			Type       string           `json:"type"`
			Title      string           `json:"title"`
			XAxisLabel string           `json:"xAxisLabel"`
			YAxisLabel string           `json:"yAxisLabel"`
			Insights   string           `json:"insights"`
			Data       []map[string]any `json:"data"`
		} `json:"visualization"`
	}
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, fmt.Errorf("query: decode reply: %w", err)
	}
	if strings.TrimSpace(payload.Answer) == "" {
		return nil, fmt.Errorf("query: reply missing answer")
	}
	answer := &Answer{Text: strings.TrimSpace(payload.Answer), SQL: strings.TrimSpace(payload.SQL)}
	if answer.SQL == "" {
		answer.SQL = "-- no sql generated"
	}
	if v := payload.Visualization; v != nil && v.Type != "" {
		answer.Visualization = &VizSpec{
			Type:       v.Type,
			Title:      v.Title,
			XAxisLabel: v.XAxisLabel,
			YAxisLabel: v.YAxisLabel,
			Insights:   v.Insights,
			Data:       coercePoints(v.Data),
		}
	}
	return answer, nil
}

// coercePoints maps loosely structured reply data onto chart points,
// keeping entries that carry both a label-like and a value-like field.
func coercePoints(data []map[string]any) []insight.ChartPoint {
	var points []insight.ChartPoint
	for _, entry := range data {
		label, okLabel := pickString(entry, "label", "name", "category", "x")
		value, okValue := pickFloat(entry, "value", "y", "count", "total")
		if !okLabel || !okValue {
			continue
		}
		points = append(points, insight.ChartPoint{Label: label, Y: value})
	}
	return points
}

func pickString(entry map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := entry[key]; ok {
			if s, oks := raw.(string); oks && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

func pickFloat(entry map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := entry[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case string:
			if parsed, okp := dataset.ParseFloat(v); okp {
				return parsed, true
			}
		}
	}
	return 0, false
}
