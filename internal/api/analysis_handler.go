// File path: internal/api/analysis_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/datalysis-ai/datalysis/internal/cleaning"
	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/recommend"
)

func (s *Server) handleDetectDomain(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: detect-domain decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	table, err := s.resolveTable(req)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	detection := s.detector.Detect(r.Context(), table)
	logger.Info("api: domain detected", "dataset", req.DatasetID, "domain", detection.Domain, "confidence", detection.Confidence)
	writeJSON(w, http.StatusOK, detection)
}

func (s *Server) handleProcessData(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: process-data decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	table, err := s.resolveTable(req)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	if limit := s.cfg.SyncProcessRowLimit; limit > 0 && table.Rows > limit {
		err := fmt.Errorf("dataset has %d rows; synchronous processing is limited to %d, start a workflow instead", table.Rows, limit)
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	outcome, err := s.workflow.Process(ctx, table)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	logger.Info("api: synchronous processing complete", "dataset", req.DatasetID, "rows", table.Rows, "domain", outcome.Detection.Domain)
	writeJSON(w, http.StatusOK, processResponse{
		Outcome: outcome,
		Preview: tablePreview(outcome.Cleaned, previewRows),
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: recommend decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	table, err := s.resolveTable(req)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	prof, err := s.profiler.Profile(r.Context(), table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("profile dataset: %w", err))
		return
	}
	chars := domain.BuildCharacteristics(table, prof)
	resp := recommendResponse{
		Task:            recommend.InferTask(chars),
		Models:          recommend.Recommend(chars),
		Characteristics: chars,
	}
	logger.Info("api: models recommended", "dataset", req.DatasetID, "task", resp.Task, "candidates", len(resp.Models))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req cleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: clean decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	table, err := s.resolveTable(req.datasetRequest)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	prof, err := s.profiler.Profile(ctx, table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("profile dataset: %w", err))
		return
	}
	plan := cleaning.BuildPlan(table, prof)
	if req.Refine && s.provider != nil {
		plan = cleaning.RefinePlan(ctx, s.provider, plan, prof)
	}
	resp := cleanResponse{Plan: plan}
	if req.Execute {
		result, err := cleaning.Execute(ctx, table, plan)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("execute cleaning plan: %w", err))
			return
		}
		preview := tablePreview(result.Table, previewRows)
		resp.Audit = result.Audit
		resp.Summary = &result.Summary
		resp.Preview = &preview
	}
	logger.Info("api: cleaning plan built", "dataset", req.DatasetID, "steps", len(plan.Steps), "executed", req.Execute)
	writeJSON(w, http.StatusOK, resp)
}
