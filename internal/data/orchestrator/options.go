// File path: internal/data/orchestrator/options.go
package orchestrator

import (
	"github.com/datalysis-ai/datalysis/internal/metadata"
)

type Option func(*options)

type options struct {
	disableSync bool
	catalog     metadata.Store
}

// WithSyncDisabled prevents the orchestrator from starting the background
// catalog synchronisation loop. Primarily used in tests.
func WithSyncDisabled() Option {
	return func(o *options) {
		o.disableSync = true
	}
}

// WithCatalog injects an already-open catalog store instead of opening the
// SQLite database at the configured path.
func WithCatalog(store metadata.Store) Option {
	return func(o *options) {
		o.catalog = store
	}
}
