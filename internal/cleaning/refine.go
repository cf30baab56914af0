// File path: internal/cleaning/refine.go
package cleaning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
)

const refineSystemPrompt = "You review data cleaning plans. Reply with a single JSON object and nothing else."

// RefinePlan asks the provider to reorder, drop or reword the planned
// steps. The reply must be a JSON object with a steps array; anything
// malformed, unknown operations or references to absent columns leave
// the deterministic plan untouched.
func RefinePlan(ctx context.Context, provider llm.Provider, plan *Plan, prof *profile.TableProfile) *Plan {
	if provider == nil || len(plan.Steps) == 0 {
		return plan
	}
	logger := common.Logger()

	planJSON, err := json.Marshal(plan)
	if err != nil {
		logger.Warn("cleaning: refine skipped, plan not serializable", "error", err)
		return plan
	}
	prompt := fmt.Sprintf(
		"Review this cleaning plan for dataset %q and return an improved version.\n\nColumns:\n%s\nPlan:\n%s\n\nReply with JSON: {\"steps\": [{\"operation\": \"...\", \"column\": \"...\", \"rationale\": \"...\"}]}. Keep only operations from the original plan's vocabulary.",
		plan.Dataset, columnSummary(prof), planJSON,
	)

	reply, err := provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: refineSystemPrompt},
		{Role: "user", Content: prompt},
	})
	telemetry.RecordLLMCall(err != nil)
	if err != nil {
		logger.Warn("cleaning: refine call failed, keeping deterministic plan", "error", err)
		return plan
	}

	blob := llm.ExtractJSON(reply)
	if blob == "" {
		logger.Warn("cleaning: refine reply had no JSON, keeping deterministic plan")
		return plan
	}
	var refined struct {
		Steps []Step `json:"steps"`
	}
	if err := json.Unmarshal([]byte(blob), &refined); err != nil {
		logger.Warn("cleaning: refine reply unparseable, keeping deterministic plan", "error", err)
		return plan
	}
	if len(refined.Steps) == 0 {
		logger.Warn("cleaning: refine reply empty, keeping deterministic plan")
		return plan
	}
	for _, step := range refined.Steps {
		if !knownOperations[step.Operation] {
			logger.Warn("cleaning: refine proposed unknown operation, keeping deterministic plan", "operation", step.Operation)
			return plan
		}
		if step.Column != "" {
			if _, ok := prof.Column(step.Column); !ok {
				logger.Warn("cleaning: refine referenced unknown column, keeping deterministic plan", "column", step.Column)
				return plan
			}
		}
	}

	logger.Info("cleaning: plan refined", "provider", provider.Name(), "steps_before", len(plan.Steps), "steps_after", len(refined.Steps))
	return &Plan{Dataset: plan.Dataset, Steps: refined.Steps}
}

func columnSummary(prof *profile.TableProfile) string {
	var b strings.Builder
	for _, cp := range prof.ColumnProfiles {
		fmt.Fprintf(&b, "- %s (%s, %.1f%% missing)\n", cp.Name, cp.Type, cp.MissingPct)
	}
	return b.String()
}
