// File path: internal/sqlite/queries.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ListDatasets returns every dataset row ordered by name.
func (s *Store) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	err := s.db.SelectContext(ctx, &datasets,
		`SELECT id, name, fingerprint, rows, cols, domain, confidence, created_at, updated_at
                FROM datasets ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return datasets, nil
}

// DatasetByID fetches a single dataset row, or nil when it does not exist.
func (s *Store) DatasetByID(ctx context.Context, id string) (*Dataset, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, errors.New("dataset id required")
	}
	var dataset Dataset
	err := s.db.GetContext(ctx, &dataset,
		`SELECT id, name, fingerprint, rows, cols, domain, confidence, created_at, updated_at
                FROM datasets WHERE id = ?`, trimmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", trimmed, err)
	}
	return &dataset, nil
}

// ColumnsForDataset lists a dataset's column rows in source order.
func (s *Store) ColumnsForDataset(ctx context.Context, datasetID string) ([]Column, error) {
	trimmed := strings.TrimSpace(datasetID)
	if trimmed == "" {
		return nil, errors.New("dataset id required")
	}
	var columns []Column
	err := s.db.SelectContext(ctx, &columns,
		`SELECT id, dataset_id, name, type, ordinal, missing_pct, unique_pct, profile, created_at, updated_at
                FROM columns WHERE dataset_id = ? ORDER BY ordinal, id`, trimmed)
	if err != nil {
		return nil, fmt.Errorf("load columns for %s: %w", trimmed, err)
	}
	return columns, nil
}

// ArtifactsForRun lists artifacts attached to a run, optionally filtered to
// specific kinds.
func (s *Store) ArtifactsForRun(ctx context.Context, runID int64, kinds ...string) ([]Artifact, error) {
	if runID <= 0 {
		return nil, errors.New("run id required")
	}
	filtered := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		if trimmed := strings.TrimSpace(kind); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}

	var artifacts []Artifact
	if len(filtered) == 0 {
		err := s.db.SelectContext(ctx, &artifacts,
			`SELECT id, run_id, kind, payload, fingerprint, created_at
                        FROM artifacts WHERE run_id = ? ORDER BY id`, runID)
		if err != nil {
			return nil, fmt.Errorf("load artifacts for run %d: %w", runID, err)
		}
		return artifacts, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, run_id, kind, payload, fingerprint, created_at
                FROM artifacts WHERE run_id = ? AND kind IN (?) ORDER BY id`, runID, filtered)
	if err != nil {
		return nil, fmt.Errorf("build artifact query: %w", err)
	}
	if err := s.db.SelectContext(ctx, &artifacts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load artifacts for run %d: %w", runID, err)
	}
	return artifacts, nil
}
