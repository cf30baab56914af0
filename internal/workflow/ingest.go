// File path: internal/workflow/ingest.go
package workflow

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// IngestRequest registers a parsed table under a new dataset ID.
type IngestRequest struct {
	Name  string
	Table *dataset.Table
}

// IngestResponse reports the stored dataset with its quick profile and
// heuristic domain. Reused marks a fingerprint match against an earlier
// upload.
type IngestResponse struct {
	DatasetID   string                `json:"dataset_id"`
	Name        string                `json:"name"`
	Rows        int                   `json:"rows"`
	Columns     int                   `json:"columns"`
	Fingerprint string                `json:"fingerprint"`
	Reused      bool                  `json:"reused,omitempty"`
	Profile     *profile.TableProfile `json:"profile,omitempty"`
	Detection   domain.Detection      `json:"domain"`
}

// datasetManifest is the sidecar written next to each stored CSV.
type datasetManifest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ingest stores the table on disk, registers it in the catalog and seeds the
// memory store with the quick profile and heuristic domain artifacts.
// Identical content (by fingerprint) reuses the existing dataset ID.
func (m *Manager) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	ctx, end := telemetry.StartSpan(ctx, "workflow.ingest")
	defer end()
	logger := common.Logger()

	if req.Table == nil || req.Table.Rows == 0 {
		return nil, fmt.Errorf("dataset rows required")
	}
	if err := telemetry.CheckMemoryBudget("ingest"); err != nil {
		return nil, err
	}

	table := req.Table
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(table.Name)
	}
	if name == "" {
		name = "dataset"
	}
	table.Name = name

	fingerprint := dataset.Fingerprint(table)
	resp := &IngestResponse{
		Name:        name,
		Rows:        table.Rows,
		Columns:     len(table.Columns),
		Fingerprint: fingerprint,
	}

	if existing, ok := m.findByFingerprint(fingerprint); ok {
		resp.DatasetID = existing.ID
		resp.Name = existing.Name
		resp.Reused = true
	} else {
		id := uuid.NewString()
		if err := writeTableCSV(m.tablePath(id), table); err != nil {
			return nil, fmt.Errorf("store dataset: %w", err)
		}
		manifest := datasetManifest{
			ID:          id,
			Name:        name,
			Fingerprint: fingerprint,
			Rows:        table.Rows,
			Columns:     len(table.Columns),
			CreatedAt:   time.Now().UTC(),
		}
		if err := m.writeManifest(manifest); err != nil {
			_ = os.Remove(m.tablePath(id))
			return nil, fmt.Errorf("store manifest: %w", err)
		}
		resp.DatasetID = id
	}

	prof, err := m.profiler.Profile(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("profile dataset: %w", err)
	}
	detection := domain.DetectHeuristic(table)
	resp.Profile = prof
	resp.Detection = detection

	if !resp.Reused {
		if err := m.seedArtifacts(ctx, resp.DatasetID, prof, detection); err != nil {
			logger.Warn("workflow: seed artifacts failed", "dataset", resp.DatasetID, "error", err)
		}
		if m.catalog != nil {
			if err := m.catalog.PersistProfile(ctx, resp.DatasetID, prof, &detection); err != nil {
				logger.Warn("workflow: catalog profile persist failed", "dataset", resp.DatasetID, "error", err)
			}
		}
		telemetry.RecordIngest(table.Rows)
		m.AppendLog("info", "Dataset %s ingested as %s (%d rows, %d columns)", name, resp.DatasetID, table.Rows, len(table.Columns))
	} else {
		m.AppendLog("info", "Dataset %s matched existing %s by fingerprint", name, resp.DatasetID)
	}
	return resp, nil
}

func (m *Manager) seedArtifacts(ctx context.Context, datasetID string, prof *profile.TableProfile, detection domain.Detection) error {
	if m.store == nil {
		return nil
	}
	now := time.Now().UTC()
	profPayload, err := json.Marshal(prof)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	domainPayload, err := json.Marshal(detection)
	if err != nil {
		return fmt.Errorf("encode domain: %w", err)
	}
	artifacts := []memory.Artifact{
		{ID: uuid.NewString(), DatasetID: datasetID, Kind: memory.KindProfile, CreatedAt: now, Payload: profPayload},
		{ID: uuid.NewString(), DatasetID: datasetID, Kind: memory.KindDomain, CreatedAt: now, Payload: domainPayload},
	}
	return m.store.AppendArtifacts(ctx, datasetID, artifacts)
}

// LoadTable re-parses the stored CSV for a dataset.
func (m *Manager) LoadTable(datasetID string) (*dataset.Table, error) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id required")
	}
	manifest, err := m.readManifest(datasetID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
		}
		return nil, err
	}
	file, err := os.Open(m.tablePath(datasetID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()
	table, err := dataset.ParseCSV(file, manifest.Name)
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return table, nil
}

// Dataset file names encode the ID so arbitrary IDs never escape the root.
func datasetFileBase(datasetID string) string {
	return "table_" + base64.RawURLEncoding.EncodeToString([]byte(datasetID))
}

func (m *Manager) tablePath(datasetID string) string {
	return filepath.Join(m.datasetRoot, datasetFileBase(datasetID)+".csv")
}

func (m *Manager) manifestPath(datasetID string) string {
	return filepath.Join(m.datasetRoot, datasetFileBase(datasetID)+".json")
}

func (m *Manager) readManifest(datasetID string) (datasetManifest, error) {
	var manifest datasetManifest
	data, err := os.ReadFile(m.manifestPath(datasetID))
	if err != nil {
		return manifest, err
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

func (m *Manager) writeManifest(manifest datasetManifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := m.manifestPath(manifest.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (m *Manager) findByFingerprint(fingerprint string) (datasetManifest, bool) {
	if strings.TrimSpace(fingerprint) == "" {
		return datasetManifest{}, false
	}
	entries, err := os.ReadDir(m.datasetRoot)
	if err != nil {
		return datasetManifest{}, false
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "table_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.datasetRoot, name))
		if err != nil {
			continue
		}
		var manifest datasetManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			continue
		}
		if manifest.Fingerprint == fingerprint && manifest.ID != "" {
			return manifest, true
		}
	}
	return datasetManifest{}, false
}

func writeTableCSV(path string, table *dataset.Table) error {
	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	for _, record := range table.Records() {
		if err := writer.Write(record); err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
