// File path: internal/api/types.go
package api

import (
	"github.com/datalysis-ai/datalysis/internal/cleaning"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
	"github.com/datalysis-ai/datalysis/internal/recommend"
	"github.com/datalysis-ai/datalysis/internal/workflow"
)

// uploadRequest is the JSON body variant of POST /v1/datasets. Records and
// CSV are alternatives; Records wins when both are set.
type uploadRequest struct {
	Name    string     `json:"name"`
	CSV     string     `json:"csv"`
	Records [][]string `json:"records"`
}

type previewPayload struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type uploadResponse struct {
	DatasetID   string                `json:"dataset_id"`
	Name        string                `json:"name"`
	Rows        int                   `json:"rows"`
	Columns     int                   `json:"columns"`
	Fingerprint string                `json:"fingerprint"`
	Reused      bool                  `json:"reused"`
	Preview     previewPayload        `json:"preview"`
	Profile     *profile.TableProfile `json:"profile,omitempty"`
	Domain      domain.Detection      `json:"domain"`
}

// datasetRequest addresses either a stored dataset by ID or an inline table
// for one-shot analysis calls.
type datasetRequest struct {
	DatasetID string     `json:"dataset_id"`
	Name      string     `json:"name,omitempty"`
	CSV       string     `json:"csv,omitempty"`
	Records   [][]string `json:"records,omitempty"`
}

type queryRequest struct {
	DatasetID string `json:"dataset_id"`
	Question  string `json:"question"`
}

type cleanRequest struct {
	datasetRequest
	Execute bool `json:"execute"`
	Refine  bool `json:"refine"`
}

type processResponse struct {
	*workflow.Outcome
	Preview previewPayload `json:"preview"`
}

type recommendResponse struct {
	Task            string                          `json:"task"`
	Models          []recommend.ModelRecommendation `json:"models"`
	Characteristics domain.Characteristics          `json:"characteristics"`
}

type cleanResponse struct {
	Plan    *cleaning.Plan        `json:"plan"`
	Audit   []cleaning.AuditEntry `json:"audit,omitempty"`
	Summary *cleaning.Summary     `json:"summary,omitempty"`
	Preview *previewPayload       `json:"preview,omitempty"`
}
