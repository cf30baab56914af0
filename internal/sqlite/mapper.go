// File path: internal/sqlite/mapper.go
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// PersistProfile maps one profiling result onto the catalog tables inside a
// single transaction: the dataset row, one row per column, and removal of
// columns that disappeared from the source file.
func (s *Store) PersistProfile(ctx context.Context, datasetID string, prof *profile.TableProfile, detection *domain.Detection) error {
	id := strings.TrimSpace(datasetID)
	if id == "" {
		return errors.New("dataset id required")
	}
	if prof == nil {
		return errors.New("profile required")
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		upsert := metadata.DatasetUpsert{
			ID:          id,
			Name:        strings.TrimSpace(prof.Dataset),
			Fingerprint: prof.Fingerprint,
			Rows:        prof.Rows,
			Cols:        prof.Columns,
		}
		if upsert.Name == "" {
			upsert.Name = id
		}
		if detection != nil {
			upsert.Domain = string(detection.Domain)
			upsert.Confidence = detection.Confidence
		}
		if _, err := upsertDatasetTx(ctx, tx, upsert); err != nil {
			return err
		}

		names := make([]string, 0, len(prof.ColumnProfiles))
		for i, col := range prof.ColumnProfiles {
			blob, err := json.Marshal(col)
			if err != nil {
				return fmt.Errorf("encode column profile %s: %w", col.Name, err)
			}
			colUpsert := metadata.ColumnUpsert{
				DatasetID:  id,
				Name:       col.Name,
				Type:       string(col.Type),
				Ordinal:    i,
				MissingPct: col.MissingPct,
				UniquePct:  col.UniquePct,
				Profile:    string(blob),
			}
			if err := upsertColumnTx(ctx, tx, colUpsert); err != nil {
				return err
			}
			names = append(names, col.Name)
		}
		if err := pruneColumnsTx(ctx, tx, id, names); err != nil {
			return err
		}
		return recordAudit(ctx, tx, id, "profile_persisted", fmt.Sprintf("%d columns", len(names)))
	})
	if err != nil {
		return err
	}

	logger := common.Logger()
	logger.Debug("sqlite: persisted dataset profile", "dataset", id, "columns", len(prof.ColumnProfiles))
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// upsertDatasetTx writes one dataset row. Empty fingerprint, domain, or
// confidence never clobber values already in the catalog. A fingerprint
// change on an existing row leaves an audit entry and is reported back.
func upsertDatasetTx(ctx context.Context, tx *sqlx.Tx, upsert metadata.DatasetUpsert) (bool, error) {
	id := strings.TrimSpace(upsert.ID)
	if id == "" {
		return false, errors.New("dataset id required")
	}
	name := strings.TrimSpace(upsert.Name)
	if name == "" {
		name = id
	}

	var existing string
	err := tx.GetContext(ctx, &existing, `SELECT fingerprint FROM datasets WHERE id = ?`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("read dataset fingerprint: %w", err)
	}

	domainValue := strings.ToLower(strings.TrimSpace(upsert.Domain))
	_, err = tx.ExecContext(ctx, `INSERT INTO datasets(id, name, fingerprint, rows, cols, domain, confidence)
                VALUES (?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(id) DO UPDATE SET
                        name = excluded.name,
                        fingerprint = CASE WHEN excluded.fingerprint != '' THEN excluded.fingerprint ELSE datasets.fingerprint END,
                        rows = excluded.rows,
                        cols = excluded.cols,
                        domain = CASE WHEN excluded.domain != '' THEN excluded.domain ELSE datasets.domain END,
                        confidence = CASE WHEN excluded.domain != '' THEN excluded.confidence ELSE datasets.confidence END,
                        updated_at = CURRENT_TIMESTAMP`,
		id, name, upsert.Fingerprint, upsert.Rows, upsert.Cols, domainValue, upsert.Confidence)
	if err != nil {
		return false, fmt.Errorf("upsert dataset %s: %w", id, err)
	}

	changed := existing != "" && upsert.Fingerprint != "" && existing != upsert.Fingerprint
	if changed {
		detail := fmt.Sprintf("%s -> %s", existing, upsert.Fingerprint)
		if err := recordAudit(ctx, tx, id, "fingerprint_changed", detail); err != nil {
			return false, err
		}
	}
	return changed, nil
}

func upsertColumnTx(ctx context.Context, tx *sqlx.Tx, upsert metadata.ColumnUpsert) error {
	datasetID := strings.TrimSpace(upsert.DatasetID)
	name := strings.TrimSpace(upsert.Name)
	if datasetID == "" || name == "" {
		return errors.New("dataset id and column name required")
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO columns(dataset_id, name, type, ordinal, missing_pct, unique_pct, profile)
                VALUES (?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(dataset_id, name) DO UPDATE SET
                        type = excluded.type,
                        ordinal = excluded.ordinal,
                        missing_pct = excluded.missing_pct,
                        unique_pct = excluded.unique_pct,
                        profile = CASE WHEN excluded.profile != '' THEN excluded.profile ELSE columns.profile END,
                        updated_at = CURRENT_TIMESTAMP`,
		datasetID, name, upsert.Type, upsert.Ordinal, upsert.MissingPct, upsert.UniquePct, upsert.Profile)
	if err != nil {
		return fmt.Errorf("upsert column %s.%s: %w", datasetID, name, err)
	}
	return nil
}

// pruneColumnsTx drops catalog columns no longer present in the profile.
func pruneColumnsTx(ctx context.Context, tx *sqlx.Tx, datasetID string, keep []string) error {
	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM columns WHERE dataset_id = ?`, datasetID); err != nil {
			return fmt.Errorf("prune columns: %w", err)
		}
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM columns WHERE dataset_id = ? AND name NOT IN (?)`, datasetID, keep)
	if err != nil {
		return fmt.Errorf("build prune query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("prune columns: %w", err)
	}
	return nil
}

func recordAudit(ctx context.Context, tx *sqlx.Tx, datasetID, action, detail string) error {
	var ds interface{}
	if trimmed := strings.TrimSpace(datasetID); trimmed != "" {
		ds = trimmed
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO audit_log(dataset_id, action, detail) VALUES (?, ?, ?)`, ds, action, detail); err != nil {
		return fmt.Errorf("record audit %s: %w", action, err)
	}
	return nil
}
