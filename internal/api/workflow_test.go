// File path: internal/api/workflow_test.go
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// workflowStateView mirrors the JSON the status endpoint returns.
type workflowStateView struct {
	DatasetID string `json:"dataset_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Running   bool   `json:"running"`
	Steps     []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"steps"`
	Error     string            `json:"error"`
	Artifacts map[string]string `json:"artifacts"`
}

func startWorkflow(t *testing.T, srv *Server, datasetID, kind string) {
	t.Helper()
	body := `{"dataset_id":"` + datasetID + `","kind":"` + kind + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/workflow/start", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.handleWorkflowStart(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start status: %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if resp["status"] != "started" {
		t.Fatalf("unexpected start response: %v", resp)
	}
}

func waitForWorkflowDone(t *testing.T, srv *Server, datasetID string) workflowStateView {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/v1/workflow/status?dataset_id="+datasetID, nil)
		rr := httptest.NewRecorder()
		srv.handleWorkflowStatus(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status code: %d body=%s", rr.Code, rr.Body.String())
		}
		var state workflowStateView
		if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if !state.Running && state.Status != "idle" {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("workflow did not finish: %+v", state)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestWorkflowRoutesQuickRun(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, nil)
	uploaded := uploadSalesDataset(t, srv)

	startWorkflow(t, srv, uploaded.DatasetID, "quick")
	state := waitForWorkflowDone(t, srv, uploaded.DatasetID)
	if state.Status != "completed" {
		t.Fatalf("expected completed workflow, got %q (error=%q)", state.Status, state.Error)
	}
	if state.Kind != "quick" {
		t.Fatalf("expected quick kind, got %q", state.Kind)
	}
	if len(state.Steps) != 2 {
		t.Fatalf("expected 2 quick steps, got %d", len(state.Steps))
	}
	for _, step := range state.Steps {
		if step.Status != "completed" {
			t.Fatalf("step %s not completed: %s", step.Name, step.Status)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/workflow/status", nil)
	rr := httptest.NewRecorder()
	srv.handleWorkflowStatus(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code: %d", rr.Code)
	}
	var all struct {
		Datasets map[string]workflowStateView `json:"datasets"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&all); err != nil {
		t.Fatalf("decode datasets: %v", err)
	}
	if _, ok := all.Datasets[uploaded.DatasetID]; !ok {
		t.Fatalf("expected dataset %s in status map", uploaded.DatasetID)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/datasets/"+uploaded.DatasetID+"/runs", nil)
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("runs status: %d body=%s", rr.Code, rr.Body.String())
	}
	var runsResp struct {
		DatasetID string `json:"dataset_id"`
		Runs      []struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
		} `json:"runs"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&runsResp); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runsResp.Runs) == 0 {
		t.Fatalf("expected recorded run")
	}
	if runsResp.Runs[0].Kind != "quick" || runsResp.Runs[0].Status != "completed" {
		t.Fatalf("unexpected run record: %+v", runsResp.Runs[0])
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/datasets/"+uploaded.DatasetID+"/audit", nil)
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit status: %d body=%s", rr.Code, rr.Body.String())
	}
	var auditResp struct {
		DatasetID string            `json:"dataset_id"`
		Events    []json.RawMessage `json:"events"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&auditResp); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if auditResp.DatasetID != uploaded.DatasetID {
		t.Fatalf("unexpected audit dataset: %s", auditResp.DatasetID)
	}
}

func TestWorkflowRoutesFullRunAndDownload(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, nil)
	uploaded := uploadSalesDataset(t, srv)

	startWorkflow(t, srv, uploaded.DatasetID, "full")
	state := waitForWorkflowDone(t, srv, uploaded.DatasetID)
	if state.Status != "completed" {
		t.Fatalf("expected completed workflow, got %q (error=%q)", state.Status, state.Error)
	}
	if len(state.Steps) != 6 {
		t.Fatalf("expected 6 full steps, got %d", len(state.Steps))
	}
	if _, ok := state.Artifacts["cleaned_csv"]; !ok {
		t.Fatalf("expected cleaned_csv artifact, got %v", state.Artifacts)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/workflow/download?dataset_id="+uploaded.DatasetID, nil)
	rr := httptest.NewRecorder()
	srv.handleWorkflowDownload(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("download status: %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
	if !strings.Contains(rr.Body.String(), "product") {
		t.Fatalf("expected cleaned CSV header in body")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/workflow/download?dataset_id="+uploaded.DatasetID+"&artifact=bogus", nil)
	rr = httptest.NewRecorder()
	srv.handleWorkflowDownload(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown artifact, got %d", rr.Code)
	}
}

func TestHandleWorkflowStartValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/workflow/start", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	srv.handleWorkflowStart(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty request, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/workflow/start", strings.NewReader(`{"dataset_id":"missing"}`))
	rr = httptest.NewRecorder()
	srv.handleWorkflowStart(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown dataset, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/workflow/start", strings.NewReader(`{"dataset_id"`))
	rr = httptest.NewRecorder()
	srv.handleWorkflowStart(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}
}

func TestHandleWorkflowStopValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/workflow/stop", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	srv.handleWorkflowStop(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing dataset, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/workflow/stop", strings.NewReader(`{"dataset_id":"absent"}`))
	rr = httptest.NewRecorder()
	srv.handleWorkflowStop(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown workflow, got %d", rr.Code)
	}
}

func TestHandleWorkflowStopAfterCompletion(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, nil)
	uploaded := uploadSalesDataset(t, srv)
	startWorkflow(t, srv, uploaded.DatasetID, "quick")
	waitForWorkflowDone(t, srv, uploaded.DatasetID)

	req := httptest.NewRequest(http.MethodPost, "/v1/workflow/stop", strings.NewReader(`{"dataset_id":"`+uploaded.DatasetID+`"}`))
	rr := httptest.NewRecorder()
	srv.handleWorkflowStop(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 stopping a finished workflow, got %d", rr.Code)
	}
}

func TestHandleLogsIncludesWorkflowEntries(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, nil)
	uploadSalesDataset(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/v1/logs", nil)
	rr := httptest.NewRecorder()
	srv.handleLogs(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var resp struct {
		Entries []struct {
			Time      time.Time `json:"time"`
			Level     string    `json:"level"`
			Message   string    `json:"message"`
			Component string    `json:"component"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) == 0 {
		t.Fatalf("expected log entries")
	}
	var sawWorkflow bool
	for i, entry := range resp.Entries {
		if entry.Component == "workflow" && strings.Contains(entry.Message, "ingested") {
			sawWorkflow = true
		}
		if i > 0 && entry.Time.Before(resp.Entries[i-1].Time) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
	if !sawWorkflow {
		t.Fatalf("expected workflow ingest entry in combined logs")
	}
}
