// File path: internal/api/dataset_context.go
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// datasetContext bundles a stored table with the latest recorded artifacts.
// Profile and detection are recomputed when no artifact exists yet; the EDA
// report stays nil until a full run has produced one.
type datasetContext struct {
	table     *dataset.Table
	prof      *profile.TableProfile
	detection domain.Detection
	report    *eda.Report
}

func (s *Server) datasetContext(ctx context.Context, datasetID string) (*datasetContext, error) {
	logger := common.Logger()
	table, err := s.workflow.LoadTable(datasetID)
	if err != nil {
		return nil, err
	}
	dc := &datasetContext{table: table}
	artifacts, err := s.store.AllArtifacts(ctx, datasetID)
	if err != nil {
		logger.Warn("api: load artifacts failed", "dataset", datasetID, "error", err)
		artifacts = nil
	}
	// Artifacts are appended in run order, so the last of each kind wins.
	latest := make(map[string]memory.Artifact, len(artifacts))
	for _, artifact := range artifacts {
		latest[artifact.Kind] = artifact
	}
	if artifact, ok := latest[memory.KindProfile]; ok {
		var prof profile.TableProfile
		if err := json.Unmarshal(artifact.Payload, &prof); err != nil {
			logger.Warn("api: decode profile artifact failed", "dataset", datasetID, "error", err)
		} else {
			dc.prof = &prof
		}
	}
	if artifact, ok := latest[memory.KindDomain]; ok {
		var detection domain.Detection
		if err := json.Unmarshal(artifact.Payload, &detection); err != nil {
			logger.Warn("api: decode domain artifact failed", "dataset", datasetID, "error", err)
		} else {
			dc.detection = detection
		}
	}
	if artifact, ok := latest[memory.KindEDA]; ok {
		var report eda.Report
		if err := json.Unmarshal(artifact.Payload, &report); err != nil {
			logger.Warn("api: decode eda artifact failed", "dataset", datasetID, "error", err)
		} else {
			dc.report = &report
		}
	}
	if dc.prof == nil {
		prof, err := s.profiler.Profile(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("profile dataset: %w", err)
		}
		dc.prof = prof
	}
	if dc.detection.Domain == "" {
		dc.detection = domain.DetectHeuristic(table)
	}
	return dc, nil
}
