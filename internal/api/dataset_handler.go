// File path: internal/api/dataset_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/workflow"
)

const previewRows = 5

func (s *Server) handleDatasetUpload(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	table, err := s.readUploadedTable(r)
	if err != nil {
		writeError(w, uploadErrStatus(err), err)
		return
	}
	resp, err := s.workflow.Ingest(ctx, workflow.IngestRequest{Name: table.Name, Table: table})
	if err != nil {
		writeError(w, datasetErrStatus(err), err)
		return
	}
	logger.Info("api: dataset uploaded", "dataset", resp.DatasetID, "rows", resp.Rows, "reused", resp.Reused)
	writeJSON(w, http.StatusOK, uploadResponse{
		DatasetID:   resp.DatasetID,
		Name:        resp.Name,
		Rows:        resp.Rows,
		Columns:     resp.Columns,
		Fingerprint: resp.Fingerprint,
		Reused:      resp.Reused,
		Preview:     tablePreview(table, previewRows),
		Profile:     resp.Profile,
		Domain:      resp.Detection,
	})
}

// readUploadedTable accepts the three upload shapes: a multipart form with a
// "file" part, a JSON body with records or embedded CSV text, or a raw CSV
// body. Multipart and raw bodies are spooled under the upload root before
// parsing, the way uploads have always been staged on disk first.
func (s *Server) readUploadedTable(r *http.Request) (*dataset.Table, error) {
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		const maxMemory = 16 << 20
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, fmt.Errorf("parse upload form: %w", err)
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("file part required: %w", err)
		}
		defer file.Close()
		name := strings.TrimSpace(r.FormValue("name"))
		if name == "" {
			name = strings.TrimSpace(header.Filename)
		}
		return s.spoolAndParse(file, name)
	case strings.HasPrefix(contentType, "application/json"):
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("decode upload: %w", err)
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = "dataset.csv"
		}
		if len(req.Records) > 0 {
			return dataset.ParseRecords(req.Records, name)
		}
		if strings.TrimSpace(req.CSV) != "" {
			return dataset.ParseCSV(strings.NewReader(req.CSV), name)
		}
		return nil, fmt.Errorf("records or csv required")
	default:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			name = "upload.csv"
		}
		return s.spoolAndParse(r.Body, name)
	}
}

// spoolAndParse stages the upload in the upload root and parses it from disk.
// The spool file is removed once parsing finishes.
func (s *Server) spoolAndParse(src io.Reader, name string) (*dataset.Table, error) {
	logger := common.Logger()
	spool, err := os.CreateTemp(s.cfg.UploadRoot, "upload-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create upload spool: %w", err)
	}
	spoolPath := spool.Name()
	defer func() {
		if err := os.Remove(spoolPath); err != nil {
			logger.Warn("api: cleanup upload spool failed", "path", spoolPath, "error", err)
		}
	}()
	written, err := io.Copy(spool, src)
	if err != nil {
		_ = spool.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := spool.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}
	file, err := os.Open(spoolPath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	logger.Debug("api: upload spooled", "bytes", written, "name", name)
	return dataset.ParseCSV(file, name)
}

func (s *Server) handleDatasetList(w http.ResponseWriter, r *http.Request) {
	opts, err := queryOptionsFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := s.metadata.QueryDatasets(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list datasets: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleDatasetExport streams the catalog as NDJSON, one dataset record per
// line, so large catalogs never buffer in memory.
func (s *Server) handleDatasetExport(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	opts, err := queryOptionsFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	count := 0
	err = s.metadata.StreamDatasets(r.Context(), opts, func(record metadata.DatasetRecord) error {
		if err := enc.Encode(record); err != nil {
			return err
		}
		count++
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are gone; the truncated stream is all we can signal.
		logger.Error("api: dataset export aborted", "records", count, "error", err)
		return
	}
	logger.Debug("api: dataset export complete", "records", count)
}

func (s *Server) handleDatasetRuns(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(chi.URLParam(r, "datasetID"))
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset id required"))
		return
	}
	limit := intQueryParam(r, "limit", 20)
	runs, err := s.metadata.RunHistory(r.Context(), datasetID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("run history: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dataset_id": datasetID, "runs": runs})
}

func (s *Server) handleDatasetAudit(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(chi.URLParam(r, "datasetID"))
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataset id required"))
		return
	}
	limit := intQueryParam(r, "limit", 50)
	events, err := s.metadata.AuditTrail(r.Context(), datasetID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("audit trail: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dataset_id": datasetID, "events": events})
}

func (s *Server) handleDomainUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.metadata.DomainUsage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("domain usage: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"domains": usage})
}

func queryOptionsFromURL(r *http.Request) (metadata.QueryOptions, error) {
	opts := metadata.QueryOptions{
		NamePattern: strings.TrimSpace(r.URL.Query().Get("name")),
		Domain:      strings.TrimSpace(r.URL.Query().Get("domain")),
		Limit:       intQueryParam(r, "limit", 0),
		Offset:      intQueryParam(r, "offset", 0),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("updated_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return metadata.QueryOptions{}, fmt.Errorf("parse updated_after: %w", err)
		}
		opts.UpdatedAfter = &ts
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("updated_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return metadata.QueryOptions{}, fmt.Errorf("parse updated_before: %w", err)
		}
		opts.UpdatedBefore = &ts
	}
	return opts, nil
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func tablePreview(table *dataset.Table, limit int) previewPayload {
	preview := previewPayload{Headers: table.Headers(), Rows: [][]string{}}
	for i := 0; i < table.Rows && i < limit; i++ {
		preview.Rows = append(preview.Rows, table.Row(i))
	}
	return preview
}

// resolveTable loads the referenced dataset or parses the inline table
// carried in the request body.
func (s *Server) resolveTable(req datasetRequest) (*dataset.Table, error) {
	if id := strings.TrimSpace(req.DatasetID); id != "" {
		return s.workflow.LoadTable(id)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "dataset.csv"
	}
	if len(req.Records) > 0 {
		return dataset.ParseRecords(req.Records, name)
	}
	if strings.TrimSpace(req.CSV) != "" {
		return dataset.ParseCSV(strings.NewReader(req.CSV), name)
	}
	return nil, fmt.Errorf("dataset_id or inline records required")
}

func datasetErrStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrEmptyInput), errors.Is(err, dataset.ErrDuplicateColumn):
		return http.StatusBadRequest
	case strings.Contains(err.Error(), "required"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func uploadErrStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return datasetErrStatus(err)
}
