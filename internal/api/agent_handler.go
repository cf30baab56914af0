// File path: internal/api/agent_handler.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/agent"
	"github.com/datalysis-ai/datalysis/internal/common"
)

func (s *Server) handleAgentReport(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	datasetID := strings.TrimSpace(r.URL.Query().Get("dataset_id"))
	if datasetID == "" {
		logger.Warn("api: agent report dataset missing")
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset_id query parameter required"))
		return
	}
	focus := strings.TrimSpace(r.URL.Query().Get("focus"))
	logger.Info("api: agent report requested", "dataset", datasetID, "focus", focus)
	report, err := s.agent.RunReport(r.Context(), agent.ReportRequest{DatasetID: datasetID, Focus: focus})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case strings.Contains(err.Error(), "required"):
			status = http.StatusBadRequest
		case strings.Contains(err.Error(), "no artifacts"):
			status = http.StatusNotFound
		}
		logger.Error("api: agent report failed", "dataset", datasetID, "error", err)
		writeError(w, status, err)
		return
	}
	logger.Info("api: agent report completed", "dataset", datasetID)
	writeJSON(w, http.StatusOK, map[string]string{"dataset_id": datasetID, "report": report})
}
