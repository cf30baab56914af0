// File path: internal/insight/insight.go
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const sampleRowLimit = 50

// ChartPoint is one prepared data point. Label carries categorical or
// time axis values, X and Y the numeric ones.
type ChartPoint struct {
	Label string  `json:"label,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y"`
}

// ChartSuggestion is a renderable chart with its data already prepared.
type ChartSuggestion struct {
	Type    string       `json:"type"`
	Title   string       `json:"title"`
	XColumn string       `json:"x_column,omitempty"`
	YColumn string       `json:"y_column,omitempty"`
	Points  []ChartPoint `json:"points"`
	Reason  string       `json:"reason,omitempty"`
}

// Insight is one narrative finding.
type Insight struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Severity string `json:"severity"`
}

// ForecastPoint is one extrapolated step with its confidence band.
type ForecastPoint struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Forecast extends a column's fitted trend beyond the observed rows.
type Forecast struct {
	Column string          `json:"column"`
	Slope  float64         `json:"slope"`
	R2     float64         `json:"r2"`
	Points []ForecastPoint `json:"points"`
}

// FeatureImportance scores one column's relationship to the target.
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// AnomalyRecord is one flagged cell with every method that caught it.
type AnomalyRecord struct {
	Column   string   `json:"column"`
	Row      int      `json:"row"`
	Value    float64  `json:"value"`
	Methods  []string `json:"methods"`
	ZScore   float64  `json:"z_score"`
	Severity string   `json:"severity"`
}

// LLMInsight is the model-written complement to the deterministic
// narratives.
type LLMInsight struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// Result bundles everything the insight stage produces.
type Result struct {
	Domain     string              `json:"domain"`
	Charts     []ChartSuggestion   `json:"charts"`
	Insights   []Insight           `json:"insights"`
	Forecasts  []Forecast          `json:"forecasts,omitempty"`
	Importance []FeatureImportance `json:"feature_importance,omitempty"`
	Anomalies  []AnomalyRecord     `json:"anomalies,omitempty"`
	LLMInsight *LLMInsight         `json:"llm_insight,omitempty"`
	Target     string              `json:"target,omitempty"`
}

// Generator assembles charts, narratives and the derived analytics for a
// profiled dataset. The provider is optional; without it the
// deterministic output stands alone.
type Generator struct {
	provider llm.Provider
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate builds the full insight bundle.
func (g *Generator) Generate(ctx context.Context, table *dataset.Table, prof *profile.TableProfile, detection domain.Detection, chars domain.Characteristics, report *eda.Report) (*Result, error) {
	logger := common.Logger()
	if table == nil || prof == nil || report == nil {
		return nil, fmt.Errorf("insight: table, profile and report are required")
	}
	ctx, end := telemetry.StartSpan(ctx, "insight.generate")
	defer end()

	result := &Result{Domain: detection.Domain}
	result.Charts = SuggestCharts(table, prof, detection.Domain)
	result.Insights = BuildNarratives(prof, detection, report)
	result.Forecasts = BuildForecasts(table, prof, report)
	result.Importance, result.Target = RankFeatures(table, prof, chars)
	result.Anomalies = DetectAnomalies(table, prof)

	if g.provider != nil {
		if extra, err := g.llmInsight(ctx, table, detection); err != nil {
			logger.Warn("insight: llm refinement skipped", "error", err)
		} else {
			result.LLMInsight = extra
		}
	}
	logger.Debug("insight: bundle generated",
		"dataset", table.Name,
		"charts", len(result.Charts),
		"insights", len(result.Insights),
		"anomalies", len(result.Anomalies))
	return result, nil
}

func (g *Generator) llmInsight(ctx context.Context, table *dataset.Table, detection domain.Detection) (*LLMInsight, error) {
	prompt := fmt.Sprintf(
		"Dataset domain: %s\n\nSample (first %d rows):\n%s\nRespond with JSON only: {\"title\": ..., \"description\": ..., \"recommendation\": ...}",
		detection.Domain, sampleRowLimit, table.HeadCSV(sampleRowLimit))
	reply, err := g.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You are a data analyst. Reply with a single JSON object and nothing else."},
		{Role: "user", Content: prompt},
	})
	telemetry.RecordLLMCall(err != nil)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	blob := llm.ExtractJSON(reply)
	if blob == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var parsed LLMInsight
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		return nil, fmt.Errorf("decode insight: %w", err)
	}
	if strings.TrimSpace(parsed.Title) == "" && strings.TrimSpace(parsed.Description) == "" {
		return nil, fmt.Errorf("empty insight object")
	}
	return &parsed, nil
}
