// File path: internal/metadata/store.go
package metadata

import (
	"context"
	"time"

	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// Run lifecycle states recorded in the catalog.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// QueryOptions control how dataset metadata is filtered when listing from the
// catalog. All fields are optional.
type QueryOptions struct {
	NamePattern string
	Domain      string

	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time

	Limit  int
	Offset int
}

// DatasetRecord represents a single dataset row returned from the catalog with
// aggregated statistics derived from related tables.
type DatasetRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Domain      string    `json:"domain"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	ColumnCount int        `json:"column_count"`
	RunCount    int        `json:"run_count"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// DatasetsPage represents a paginated response from the catalog.
type DatasetsPage struct {
	Datasets []DatasetRecord `json:"datasets"`
	Total    int             `json:"total"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
}

// RunRecord captures one pipeline run for a dataset.
type RunRecord struct {
	ID         int64      `json:"id"`
	DatasetID  string     `json:"dataset_id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunArtifact represents an analysis output attached to a run. Payload holds
// the producing package's JSON encoding.
type RunArtifact struct {
	RunID       int64
	Kind        string
	Payload     string
	Fingerprint string
}

// DomainUsage aggregates dataset counts per detected domain.
type DomainUsage struct {
	Domain        string  `json:"domain"`
	Datasets      int     `json:"datasets"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// AuditEvent is one appended entry from the catalog audit log.
type AuditEvent struct {
	DatasetID string    `json:"dataset_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DatasetUpsert represents a batch upsert payload for dataset rows.
type DatasetUpsert struct {
	ID          string
	Name        string
	Fingerprint string
	Rows        int
	Cols        int
	Domain      string
	Confidence  float64
}

// ColumnUpsert represents a batch upsert payload for column rows. Profile
// carries the full column profile as JSON.
type ColumnUpsert struct {
	DatasetID  string
	Name       string
	Type       string
	Ordinal    int
	MissingPct float64
	UniquePct  float64
	Profile    string
}

// Store exposes dataset catalog operations backed by a persistent data store.
type Store interface {
	QueryDatasets(ctx context.Context, opts QueryOptions) (DatasetsPage, error)
	StreamDatasets(ctx context.Context, opts QueryOptions, fn func(DatasetRecord) error) error

	RecordRun(ctx context.Context, datasetID, kind string) (int64, error)
	CompleteRun(ctx context.Context, runID int64, status string, runErr error) error
	RunHistory(ctx context.Context, datasetID string, limit int) ([]RunRecord, error)
	RecordArtifact(ctx context.Context, artifact RunArtifact) error

	BatchUpsertDatasets(ctx context.Context, datasets []DatasetUpsert) error
	BatchUpsertColumns(ctx context.Context, columns []ColumnUpsert) error
	PersistProfile(ctx context.Context, datasetID string, prof *profile.TableProfile, detection *domain.Detection) error

	DomainUsage(ctx context.Context) ([]DomainUsage, error)
	AuditTrail(ctx context.Context, datasetID string, limit int) ([]AuditEvent, error)
}
