// File path: internal/agent/graph.go
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langgraphgo/graph"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	summaryColumnLimit = 8
	summaryListLimit   = 3
)

// Runner narrates a dataset's recorded analysis artifacts as a prose report.
// The narration runs as a message graph so each pipeline stage contributes
// its own context message before the provider is asked to write.
type Runner struct {
	provider llm.Provider
	store    *memory.Store
}

func NewRunner(provider llm.Provider, store *memory.Store) *Runner {
	return &Runner{provider: provider, store: store}
}

type ReportRequest struct {
	DatasetID string `json:"dataset_id"`
	Focus     string `json:"focus,omitempty"`
}

// reportContext holds the latest decoded artifact of each kind. Fields stay
// nil when the artifact is absent or fails to decode.
type reportContext struct {
	profile   *profile.TableProfile
	detection *domain.Detection
	eda       *eda.Report
	insights  *insight.Result
}

// RunReport assembles the narration graph for one dataset and runs it. The
// graph is rebuilt per call so concurrent reports never share state.
func (r *Runner) RunReport(ctx context.Context, req ReportRequest) (string, error) {
	ctx, end := telemetry.StartSpan(ctx, "agent.report")
	defer end("dataset", req.DatasetID)
	datasetID := strings.TrimSpace(req.DatasetID)
	if datasetID == "" {
		return "", errors.New("agent: dataset id required")
	}
	req.DatasetID = datasetID
	rc, err := r.loadContext(ctx, datasetID)
	if err != nil {
		return "", err
	}
	g := r.buildGraph(req, rc)
	runnable, err := g.Compile()
	if err != nil {
		return "", fmt.Errorf("agent: compile graph: %w", err)
	}
	initial := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSystemPrompt(req)),
	}
	state, err := runnable.Invoke(ctx, initial)
	if err != nil {
		return "", fmt.Errorf("agent: run graph: %w", err)
	}
	if len(state) == 0 {
		return "", errors.New("agent: graph produced no messages")
	}
	report := strings.TrimSpace(messageText(state[len(state)-1]))
	if report == "" {
		return "", errors.New("agent: graph produced an empty report")
	}
	return report, nil
}

func (r *Runner) loadContext(ctx context.Context, datasetID string) (*reportContext, error) {
	if r.store == nil {
		return nil, errors.New("agent: artifact store not configured")
	}
	artifacts, err := r.store.AllArtifacts(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("agent: load artifacts: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("agent: no artifacts recorded for dataset %q", datasetID)
	}
	// Artifacts are appended in run order, so the last of each kind wins.
	latest := make(map[string]memory.Artifact, len(artifacts))
	for _, artifact := range artifacts {
		latest[artifact.Kind] = artifact
	}
	logger := common.Logger()
	rc := &reportContext{}
	if artifact, ok := latest[memory.KindProfile]; ok {
		var prof profile.TableProfile
		if err := json.Unmarshal(artifact.Payload, &prof); err != nil {
			logger.Warn("agent: decode profile artifact failed", "dataset", datasetID, "error", err)
		} else {
			rc.profile = &prof
		}
	}
	if artifact, ok := latest[memory.KindDomain]; ok {
		var detection domain.Detection
		if err := json.Unmarshal(artifact.Payload, &detection); err != nil {
			logger.Warn("agent: decode domain artifact failed", "dataset", datasetID, "error", err)
		} else {
			rc.detection = &detection
		}
	}
	if artifact, ok := latest[memory.KindEDA]; ok {
		var report eda.Report
		if err := json.Unmarshal(artifact.Payload, &report); err != nil {
			logger.Warn("agent: decode eda artifact failed", "dataset", datasetID, "error", err)
		} else {
			rc.eda = &report
		}
	}
	if artifact, ok := latest[memory.KindInsights]; ok {
		var result insight.Result
		if err := json.Unmarshal(artifact.Payload, &result); err != nil {
			logger.Warn("agent: decode insights artifact failed", "dataset", datasetID, "error", err)
		} else {
			rc.insights = &result
		}
	}
	return rc, nil
}

func (r *Runner) buildGraph(req ReportRequest, rc *reportContext) *graph.MessageGraph {
	g := graph.NewMessageGraph()
	g.AddNode("profile-summary", func(_ context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		if rc.profile == nil {
			return state, nil
		}
		text := "Profile summary:\n" + profileSummary(rc.profile)
		return append(state, llms.TextParts(llms.ChatMessageTypeSystem, text)), nil
	})
	g.AddNode("domain-summary", func(_ context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		if rc.detection == nil {
			return state, nil
		}
		text := "Domain summary:\n" + domainSummary(rc.detection)
		return append(state, llms.TextParts(llms.ChatMessageTypeSystem, text)), nil
	})
	g.AddNode("insight-summary", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		if text := insightSummary(rc.eda, rc.insights); text != "" {
			state = append(state, llms.TextParts(llms.ChatMessageTypeSystem, "Findings:\n"+text))
		}
		return r.narrate(ctx, req, state)
	})
	g.AddEdge("profile-summary", "domain-summary")
	g.AddEdge("domain-summary", "insight-summary")
	g.AddEdge("insight-summary", graph.END)
	g.SetEntryPoint("profile-summary")
	return g
}

// narrate appends the written report as the final AI message. Without a
// provider the accumulated summaries become the report themselves.
func (r *Runner) narrate(ctx context.Context, req ReportRequest, state []llms.MessageContent) ([]llms.MessageContent, error) {
	if r.provider == nil {
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, offlineReport(state))), nil
	}
	messages := make([]llm.Message, 0, len(state)+1)
	for _, msg := range state {
		messages = append(messages, llm.Message{Role: chatRole(msg.Role), Content: messageText(msg)})
	}
	messages = append(messages, llm.Message{Role: "user", Content: narrateInstruction(req)})
	reply, err := r.provider.Chat(ctx, messages)
	telemetry.RecordLLMCall(err != nil)
	if err != nil {
		return nil, fmt.Errorf("narrate: %w", err)
	}
	common.Logger().Debug("agent: narrative generated", "provider", r.provider.Name(), "chars", len(reply))
	return append(state, llms.TextParts(llms.ChatMessageTypeAI, reply)), nil
}

func buildSystemPrompt(req ReportRequest) string {
	systemPrompt := "You are a data analyst narrating findings for one dataset."
	var contextParts []string
	if id := strings.TrimSpace(req.DatasetID); id != "" {
		contextParts = append(contextParts, fmt.Sprintf("Dataset: %s.", id))
	}
	if focus := strings.TrimSpace(req.Focus); focus != "" {
		contextParts = append(contextParts, fmt.Sprintf("Report focus: %s.", focus))
	}
	if len(contextParts) > 0 {
		systemPrompt = fmt.Sprintf("%s %s", systemPrompt, strings.Join(contextParts, " "))
	}
	return systemPrompt
}

func narrateInstruction(req ReportRequest) string {
	instruction := fmt.Sprintf(
		"Write a short analyst report for dataset %s using only the summaries above. Cover data quality, the detected domain, and the main findings, then close with one recommended next step. Reply in plain prose.",
		req.DatasetID)
	if focus := strings.TrimSpace(req.Focus); focus != "" {
		instruction = fmt.Sprintf("%s Give extra attention to %s.", instruction, focus)
	}
	return instruction
}

func profileSummary(prof *profile.TableProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset %s has %d rows and %d columns.", prof.Dataset, prof.Rows, prof.Columns)
	fmt.Fprintf(&b, " %.1f%% of cells are missing and %d rows are duplicates.", prof.MissingPct, prof.DuplicateRows)
	if len(prof.ColumnProfiles) == 0 {
		return b.String()
	}
	max := summaryColumnLimit
	if max > len(prof.ColumnProfiles) {
		max = len(prof.ColumnProfiles)
	}
	names := make([]string, 0, max+1)
	for i := 0; i < max; i++ {
		cp := prof.ColumnProfiles[i]
		names = append(names, fmt.Sprintf("%s (%s, %.1f%% missing)", cp.Name, cp.Type, cp.MissingPct))
	}
	if extra := len(prof.ColumnProfiles) - max; extra > 0 {
		names = append(names, fmt.Sprintf("+%d more", extra))
	}
	fmt.Fprintf(&b, " Columns: %s.", strings.Join(names, "; "))
	return b.String()
}

func domainSummary(detection *domain.Detection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Detected domain: %s (confidence %.2f).", detection.Domain, detection.Confidence)
	if reason := strings.TrimSpace(detection.Reason); reason != "" {
		fmt.Fprintf(&b, " Basis: %s.", strings.TrimSuffix(reason, "."))
	}
	if len(detection.Features) > 0 {
		features := detection.Features
		if len(features) > summaryColumnLimit {
			features = features[:summaryColumnLimit]
		}
		fmt.Fprintf(&b, " Matched signals: %s.", strings.Join(features, ", "))
	}
	return b.String()
}

func insightSummary(report *eda.Report, result *insight.Result) string {
	var lines []string
	if report != nil {
		if report.Correlations != nil && len(report.Correlations.Strong) > 0 {
			pairs := report.Correlations.Strong
			if len(pairs) > summaryListLimit {
				pairs = pairs[:summaryListLimit]
			}
			described := make([]string, 0, len(pairs))
			for _, pair := range pairs {
				described = append(described, fmt.Sprintf("%s and %s move together (r %.2f)", pair.A, pair.B, pair.R))
			}
			lines = append(lines, "Strong correlations: "+strings.Join(described, "; ")+".")
		}
		trends := report.Trends
		if len(trends) > summaryListLimit {
			trends = trends[:summaryListLimit]
		}
		for _, trend := range trends {
			lines = append(lines, fmt.Sprintf("%s is %s (%s trend, r2 %.2f).", trend.Column, trend.Direction, trend.Strength, trend.R2))
		}
		flagged := 0
		for _, set := range report.Outliers {
			if set.IQR.Count > 0 || set.ZScore.Count > 0 {
				flagged++
			}
		}
		if flagged > 0 {
			lines = append(lines, fmt.Sprintf("Outliers flagged in %d columns.", flagged))
		}
	}
	if result != nil {
		if len(result.Insights) > 0 {
			titles := make([]string, 0, summaryListLimit)
			for _, finding := range result.Insights {
				titles = append(titles, finding.Title)
				if len(titles) == summaryListLimit {
					break
				}
			}
			lines = append(lines, "Key findings: "+strings.Join(titles, "; ")+".")
		}
		if len(result.Anomalies) > 0 {
			lines = append(lines, fmt.Sprintf("%d anomalous cells detected.", len(result.Anomalies)))
		}
		if len(result.Forecasts) > 0 {
			columns := make([]string, 0, len(result.Forecasts))
			for _, forecast := range result.Forecasts {
				columns = append(columns, forecast.Column)
			}
			lines = append(lines, "Forecasts available for: "+strings.Join(columns, ", ")+".")
		}
	}
	return strings.Join(lines, "\n")
}

// offlineReport joins the accumulated summary messages, skipping the persona
// message at index zero.
func offlineReport(state []llms.MessageContent) string {
	var sections []string
	for i, msg := range state {
		if i == 0 || msg.Role != llms.ChatMessageTypeSystem {
			continue
		}
		if text := strings.TrimSpace(messageText(msg)); text != "" {
			sections = append(sections, text)
		}
	}
	if len(sections) == 0 {
		return "No analysis artifacts are available for this dataset yet."
	}
	return strings.Join(sections, "\n\n")
}

func messageText(msg llms.MessageContent) string {
	parts := make([]string, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func chatRole(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return "system"
	case llms.ChatMessageTypeHuman:
		return "user"
	case llms.ChatMessageTypeAI:
		return "assistant"
	default:
		return string(role)
	}
}
