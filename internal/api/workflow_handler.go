// File path: internal/api/workflow_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/workflow"
)

func (s *Server) handleWorkflowStart(w http.ResponseWriter, r *http.Request) {
	var req workflow.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.workflow.Start(req); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, workflow.ErrWorkflowRunning):
			status = http.StatusConflict
		case errors.Is(err, workflow.ErrDatasetNotFound):
			status = http.StatusNotFound
		case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
			status = http.StatusBadRequest
		default:
			if strings.Contains(err.Error(), "required") {
				status = http.StatusBadRequest
			} else {
				status = http.StatusInternalServerError
			}
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleWorkflowStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatasetID string `json:"dataset_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	datasetID := strings.TrimSpace(req.DatasetID)
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset_id is required"))
		return
	}
	if err := s.workflow.Stop(datasetID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workflow.ErrWorkflowNotFound):
			status = http.StatusNotFound
		case errors.Is(err, workflow.ErrWorkflowNotRunning):
			status = http.StatusConflict
		default:
			if strings.Contains(err.Error(), "required") {
				status = http.StatusBadRequest
			}
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.URL.Query().Get("dataset_id"))
	if datasetID == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": s.workflow.DatasetStates()})
		return
	}
	state := s.workflow.Status(datasetID)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleWorkflowDownload(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.URL.Query().Get("dataset_id"))
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset_id query parameter required"))
		return
	}
	artifactKind := strings.TrimSpace(r.URL.Query().Get("artifact"))
	if artifactKind == "" {
		artifactKind = workflow.ArtifactCleanedCSV
	}
	artifactPath, err := s.workflow.ArtifactPath(datasetID, artifactKind)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workflow.ErrArtifactNotFound):
			status = http.StatusNotFound
		case errors.Is(err, workflow.ErrArtifactInvalid):
			status = http.StatusForbidden
		default:
			if errors.Is(err, os.ErrNotExist) {
				status = http.StatusNotFound
			}
		}
		writeError(w, status, err)
		return
	}
	file, err := os.Open(artifactPath)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	name := filepath.Base(artifactPath)
	w.Header().Set("Content-Type", detectContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func detectContentType(name string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".csv":
		return "text/csv"
	case ".json", ".jsonl":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	combined := append([]common.LogEntry(nil), common.LogEntries()...)
	existing := make(map[string]struct{}, len(combined))
	for _, entry := range combined {
		existing[logEntryKey(entry.Time, entry.Level, entry.Message, entry.Component)] = struct{}{}
	}

	workflowEntries := s.workflow.Logs()
	for _, entry := range workflowEntries {
		converted := common.LogEntry{
			Time:      entry.Time,
			Level:     strings.ToLower(entry.Level),
			Message:   entry.Message,
			Component: "workflow",
		}
		key := logEntryKey(converted.Time, converted.Level, converted.Message, converted.Component)
		if _, ok := existing[key]; ok {
			continue
		}
		combined = append(combined, converted)
		existing[key] = struct{}{}
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Time.Equal(combined[j].Time) {
			if combined[i].Component == combined[j].Component {
				if combined[i].Level == combined[j].Level {
					return combined[i].Message < combined[j].Message
				}
				return combined[i].Level < combined[j].Level
			}
			return combined[i].Component < combined[j].Component
		}
		return combined[i].Time.Before(combined[j].Time)
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": combined})
}

func logEntryKey(ts time.Time, level, message, component string) string {
	stamp := ts.UTC().Format(time.RFC3339Nano)
	return strings.Join([]string{stamp, strings.ToLower(strings.TrimSpace(level)), strings.TrimSpace(component), message}, "|")
}
