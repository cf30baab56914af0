// File path: internal/api/query_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/query"
)

func (s *Server) handleAnalyzeQuery(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: analyze-query decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	datasetID := strings.TrimSpace(req.DatasetID)
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset_id required"))
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question required"))
		return
	}
	dc, err := s.datasetContext(ctx, datasetID)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	answer, err := s.queries.Answer(ctx, question, dc.table, dc.prof, dc.report)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	telemetry.RecordQueryAnswer(answer.Intent)
	s.recordQueryArtifact(r, datasetID, question, answer)
	logger.Info("api: query answered", "dataset", datasetID, "intent", answer.Intent)
	writeJSON(w, http.StatusOK, answer)
}

// recordQueryArtifact appends the answered question to the dataset's artifact
// log. Failures only warn; the answer has already been produced.
func (s *Server) recordQueryArtifact(r *http.Request, datasetID, question string, answer *query.Answer) {
	payload, err := json.Marshal(map[string]interface{}{
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		common.Logger().Warn("api: encode query artifact failed", "dataset", datasetID, "error", err)
		return
	}
	artifact := memory.Artifact{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		Kind:      memory.KindQuery,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.store.AppendArtifacts(r.Context(), datasetID, []memory.Artifact{artifact}); err != nil {
		common.Logger().Warn("api: record query artifact failed", "dataset", datasetID, "error", err)
	}
}

func (s *Server) handleExampleQueries(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.URL.Query().Get("dataset_id"))
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset_id query parameter required"))
		return
	}
	dc, err := s.datasetContext(r.Context(), datasetID)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	examples := s.queries.Examples(r.Context(), dc.table, dc.prof, dc.detection)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"domain":     dc.detection.Domain,
		"queries":    examples,
	})
}

func (s *Server) handleDomainVisualizations(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.URL.Query().Get("dataset_id"))
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset_id query parameter required"))
		return
	}
	dc, err := s.datasetContext(r.Context(), datasetID)
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	domainName := dc.detection.Domain
	if requested := strings.TrimSpace(r.URL.Query().Get("domain")); requested != "" {
		domainName = domain.Normalize(requested)
	}
	charts := insight.SuggestCharts(dc.table, dc.prof, domainName)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"domain":     domainName,
		"charts":     charts,
	})
}
