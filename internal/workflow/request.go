// File path: internal/workflow/request.go
package workflow

import (
	"fmt"
	"strings"
)

// Request asks for one pipeline run over a stored dataset. Kind accepts
// "full" (default) or "quick" and a few spelling variants.
type Request struct {
	DatasetID string `json:"dataset_id"`
	Kind      string `json:"kind,omitempty"`

	kind Kind
}

func normalizeRequest(req Request) (Request, error) {
	req.DatasetID = strings.TrimSpace(req.DatasetID)
	if req.DatasetID == "" {
		return Request{}, fmt.Errorf("dataset id required")
	}
	kind := resolveWorkflowKind(req.Kind)
	req.Kind = string(kind)
	req.kind = kind
	return req, nil
}

func NormalizeRequest(req Request) (Request, error) {
	return normalizeRequest(req)
}

func resolveWorkflowKind(kind string) Kind {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case string(KindQuick), "fast", "preview":
		return KindQuick
	case string(KindFull), "complete", "analysis":
		return KindFull
	default:
		return KindFull
	}
}

func buildWorkflowSteps(kind Kind) []Step {
	steps := []Step{
		{Name: StepNameProfile, Status: StepPending},
		{Name: StepNameDomain, Status: StepPending},
	}
	if kind == KindQuick {
		return steps
	}
	return append(steps,
		Step{Name: StepNameEDA, Status: StepPending},
		Step{Name: StepNameInsights, Status: StepPending},
		Step{Name: StepNameRecommend, Status: StepPending},
		Step{Name: StepNameCleaning, Status: StepPending},
	)
}
