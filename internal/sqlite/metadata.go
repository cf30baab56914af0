// File path: internal/sqlite/metadata.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datalysis-ai/datalysis/internal/metadata"
)

var _ metadata.Store = (*Store)(nil)

const (
	defaultQueryLimit   = 100
	defaultHistoryLimit = 50
	streamPageSize      = 256

	sqliteTimeLayout = "2006-01-02 15:04:05"
)

type datasetRow struct {
	Dataset
	ColumnCount int64          `db:"column_count"`
	RunCount    int64          `db:"run_count"`
	LastRunAt   sql.NullString `db:"last_run_at"`
	TotalRows   int64          `db:"total_rows"`
}

func (r datasetRow) record() metadata.DatasetRecord {
	rec := metadata.DatasetRecord{
		ID:          r.ID,
		Name:        r.Name,
		Fingerprint: r.Fingerprint,
		Rows:        r.Rows,
		Cols:        r.Cols,
		Domain:      r.Domain,
		Confidence:  r.Confidence,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ColumnCount: int(r.ColumnCount),
		RunCount:    int(r.RunCount),
	}
	if r.LastRunAt.Valid {
		rec.LastRunAt = parseCatalogTime(r.LastRunAt.String)
	}
	return rec
}

// QueryDatasets returns a filtered page of catalog datasets together with the
// total match count so callers can paginate.
func (s *Store) QueryDatasets(ctx context.Context, opts metadata.QueryOptions) (metadata.DatasetsPage, error) {
	if s == nil || s.db == nil {
		return metadata.DatasetsPage{}, errors.New("sqlite store not initialised")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	if pattern := strings.TrimSpace(opts.NamePattern); pattern != "" {
		if !strings.Contains(pattern, "%") {
			pattern = "%" + pattern + "%"
		}
		conditions = append(conditions, "d.name LIKE ?")
		args = append(args, pattern)
	}
	if dom := strings.ToLower(strings.TrimSpace(opts.Domain)); dom != "" {
		conditions = append(conditions, "d.domain = ?")
		args = append(args, dom)
	}
	if opts.UpdatedAfter != nil {
		conditions = append(conditions, "d.updated_at >= ?")
		args = append(args, opts.UpdatedAfter.UTC().Format(sqliteTimeLayout))
	}
	if opts.UpdatedBefore != nil {
		conditions = append(conditions, "d.updated_at <= ?")
		args = append(args, opts.UpdatedBefore.UTC().Format(sqliteTimeLayout))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`WITH filtered AS (
                SELECT
                        d.id,
                        d.name,
                        d.fingerprint,
                        d.rows,
                        d.cols,
                        d.domain,
                        d.confidence,
                        d.created_at,
                        d.updated_at,
                        COALESCE(o.column_count, 0) AS column_count,
                        COALESCE(o.run_count, 0) AS run_count,
                        o.last_run_at
                FROM datasets d
                LEFT JOIN dataset_overview o ON o.dataset_id = d.id
                %s
        )
        SELECT *, COUNT(*) OVER() AS total_rows FROM filtered ORDER BY name, id LIMIT ? OFFSET ?`, where)
	args = append(args, limit, offset)

	var rows []datasetRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return metadata.DatasetsPage{}, fmt.Errorf("query datasets: %w", err)
	}
	page := metadata.DatasetsPage{
		Datasets: make([]metadata.DatasetRecord, 0, len(rows)),
		Offset:   offset,
		Limit:    limit,
	}
	for _, row := range rows {
		page.Total = int(row.TotalRows)
		page.Datasets = append(page.Datasets, row.record())
	}
	return page, nil
}

// StreamDatasets walks every dataset matching the options in stable pages and
// hands each record to fn. Iteration stops at the first callback error.
func (s *Store) StreamDatasets(ctx context.Context, opts metadata.QueryOptions, fn func(metadata.DatasetRecord) error) error {
	if fn == nil {
		return errors.New("stream callback required")
	}
	pageSize := opts.Limit
	if pageSize <= 0 {
		pageSize = streamPageSize
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pageOpts := opts
		pageOpts.Limit = pageSize
		pageOpts.Offset = offset
		page, err := s.QueryDatasets(ctx, pageOpts)
		if err != nil {
			return err
		}
		for _, record := range page.Datasets {
			if err := fn(record); err != nil {
				return err
			}
		}
		if len(page.Datasets) < pageSize {
			return nil
		}
		offset += pageSize
	}
}

// RecordRun opens a run row in the running state and returns its identifier.
// The dataset must already exist in the catalog.
func (s *Store) RecordRun(ctx context.Context, datasetID, kind string) (int64, error) {
	id := strings.TrimSpace(datasetID)
	runKind := strings.TrimSpace(kind)
	if id == "" || runKind == "" {
		return 0, errors.New("dataset id and run kind required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(dataset_id, kind, status) VALUES (?, ?, ?)`,
		id, runKind, metadata.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve run id: %w", err)
	}
	return runID, nil
}

// CompleteRun closes a run with the given status. An empty status is derived
// from runErr: failed when set, completed otherwise.
func (s *Store) CompleteRun(ctx context.Context, runID int64, status string, runErr error) error {
	if runID <= 0 {
		return errors.New("run id required")
	}
	normalized := strings.TrimSpace(status)
	if normalized == "" {
		normalized = metadata.RunStatusCompleted
		if runErr != nil {
			normalized = metadata.RunStatusFailed
		}
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP, error = ? WHERE id = ?`,
		normalized, message, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve run update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// RunHistory lists the most recent runs for a dataset, newest first.
func (s *Store) RunHistory(ctx context.Context, datasetID string, limit int) ([]metadata.RunRecord, error) {
	id := strings.TrimSpace(datasetID)
	if id == "" {
		return nil, errors.New("dataset id required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []Run
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, dataset_id, kind, status, started_at, finished_at, error
                FROM runs WHERE dataset_id = ?
                ORDER BY started_at DESC, id DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}
	records := make([]metadata.RunRecord, 0, len(rows))
	for _, row := range rows {
		record := metadata.RunRecord{
			ID:        row.ID,
			DatasetID: row.DatasetID,
			Kind:      row.Kind,
			Status:    row.Status,
			StartedAt: row.StartedAt,
			Error:     row.Error,
		}
		if row.FinishedAt.Valid {
			finished := row.FinishedAt.Time
			record.FinishedAt = &finished
		}
		records = append(records, record)
	}
	return records, nil
}

// RecordArtifact attaches a produced artifact payload to a run.
func (s *Store) RecordArtifact(ctx context.Context, artifact metadata.RunArtifact) error {
	if artifact.RunID <= 0 {
		return errors.New("run id required")
	}
	kind := strings.TrimSpace(artifact.Kind)
	if kind == "" {
		return errors.New("artifact kind required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts(run_id, kind, payload, fingerprint) VALUES (?, ?, ?, ?)`,
		artifact.RunID, kind, artifact.Payload, artifact.Fingerprint)
	if err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	return nil
}

// BatchUpsertDatasets inserts or refreshes dataset rows in one transaction.
func (s *Store) BatchUpsertDatasets(ctx context.Context, upserts []metadata.DatasetUpsert) error {
	if len(upserts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin dataset upsert: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	for _, upsert := range upserts {
		if _, err := upsertDatasetTx(ctx, tx, upsert); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset upsert: %w", err)
	}
	committed = true
	return nil
}

// BatchUpsertColumns inserts or refreshes column rows in one transaction.
// Parent datasets must exist before their columns are written.
func (s *Store) BatchUpsertColumns(ctx context.Context, upserts []metadata.ColumnUpsert) error {
	if len(upserts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin column upsert: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	for _, upsert := range upserts {
		if err := upsertColumnTx(ctx, tx, upsert); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit column upsert: %w", err)
	}
	committed = true
	return nil
}

// DomainUsage aggregates how many datasets landed in each detected domain.
func (s *Store) DomainUsage(ctx context.Context) ([]metadata.DomainUsage, error) {
	var rows []struct {
		Domain        string  `db:"domain"`
		DatasetCount  int64   `db:"dataset_count"`
		AvgConfidence float64 `db:"avg_confidence"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT domain, dataset_count, avg_confidence FROM domain_usage_view
                ORDER BY dataset_count DESC, domain`)
	if err != nil {
		return nil, fmt.Errorf("load domain usage: %w", err)
	}
	usage := make([]metadata.DomainUsage, 0, len(rows))
	for _, row := range rows {
		usage = append(usage, metadata.DomainUsage{
			Domain:        row.Domain,
			Datasets:      int(row.DatasetCount),
			AvgConfidence: row.AvgConfidence,
		})
	}
	return usage, nil
}

// AuditTrail lists recorded catalog events, optionally scoped to one dataset.
func (s *Store) AuditTrail(ctx context.Context, datasetID string, limit int) ([]metadata.AuditEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := `SELECT id, dataset_id, action, detail, created_at FROM audit_log`
	args := make([]interface{}, 0, 2)
	if id := strings.TrimSpace(datasetID); id != "" {
		query += ` WHERE dataset_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []AuditRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}
	events := make([]metadata.AuditEvent, 0, len(rows))
	for _, row := range rows {
		event := metadata.AuditEvent{
			Action:    row.Action,
			Detail:    row.Detail,
			CreatedAt: row.CreatedAt,
		}
		if row.DatasetID.Valid {
			event.DatasetID = row.DatasetID.String
		}
		events = append(events, event)
	}
	return events, nil
}

// parseCatalogTime decodes timestamps coming back from computed columns where
// the driver cannot infer a declared type and returns them as raw text.
func parseCatalogTime(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	layouts := []string{sqliteTimeLayout, time.RFC3339Nano, time.RFC3339}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return &ts
		}
	}
	return nil
}
