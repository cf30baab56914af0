// File path: internal/sqlite/types.go
package sqlite

import (
	"database/sql"
	"time"
)

// Dataset represents a catalog dataset row.
type Dataset struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Fingerprint string    `db:"fingerprint"`
	Rows        int       `db:"rows"`
	Cols        int       `db:"cols"`
	Domain      string    `db:"domain"`
	Confidence  float64   `db:"confidence"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Column represents a stored column profile row. Profile carries the full
// per-column statistics as JSON.
type Column struct {
	ID         int64     `db:"id"`
	DatasetID  string    `db:"dataset_id"`
	Name       string    `db:"name"`
	Type       string    `db:"type"`
	Ordinal    int       `db:"ordinal"`
	MissingPct float64   `db:"missing_pct"`
	UniquePct  float64   `db:"unique_pct"`
	Profile    string    `db:"profile"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Run represents one pipeline run row.
type Run struct {
	ID         int64        `db:"id"`
	DatasetID  string       `db:"dataset_id"`
	Kind       string       `db:"kind"`
	Status     string       `db:"status"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
	Error      string       `db:"error"`
}

// Artifact represents an analysis output row attached to a run.
type Artifact struct {
	ID          int64     `db:"id"`
	RunID       int64     `db:"run_id"`
	Kind        string    `db:"kind"`
	Payload     string    `db:"payload"`
	Fingerprint string    `db:"fingerprint"`
	CreatedAt   time.Time `db:"created_at"`
}

// AuditRow represents an audit log entry.
type AuditRow struct {
	ID        int64          `db:"id"`
	DatasetID sql.NullString `db:"dataset_id"`
	Action    string         `db:"action"`
	Detail    string         `db:"detail"`
	CreatedAt time.Time      `db:"created_at"`
}
