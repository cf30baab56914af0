// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/sqlite"
)

type closer interface {
	Close() error
}

// Orchestrator wires together the persistent stores that back the analysis
// server and exposes convenience accessors for the API layer. Unless disabled
// it also runs the loop that folds memory artifacts into the SQLite catalog.
type Orchestrator struct {
	cfg Config

	memoryStore *memory.Store
	catalog     metadata.Store

	syncDisabled bool
	syncCancel   context.CancelFunc
	syncDone     chan struct{}

	closers []closer
}

// New constructs an orchestrator from the provided configuration and optional
// overrides.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	memStore, err := memory.NewStore(cfg.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("init memory store: %w", err)
	}

	orch := &Orchestrator{
		cfg:          cfg,
		memoryStore:  memStore,
		syncDisabled: settings.disableSync,
	}
	if settings.catalog != nil {
		orch.catalog = settings.catalog
		if c, ok := settings.catalog.(closer); ok {
			orch.closers = append(orch.closers, c)
		}
	} else {
		catalog, err := sqlite.Open(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		orch.catalog = catalog
		orch.closers = append(orch.closers, catalog)
	}

	if !orch.syncDisabled {
		loopCtx, cancel := context.WithCancel(context.Background())
		orch.syncCancel = cancel
		orch.syncDone = make(chan struct{})
		go orch.runSyncLoop(loopCtx)
	}
	return orch, nil
}

// Memory exposes the configured artifact store.
func (o *Orchestrator) Memory() *memory.Store {
	if o == nil {
		return nil
	}
	return o.memoryStore
}

// Metadata exposes the metadata catalog interface.
func (o *Orchestrator) Metadata() metadata.Store {
	if o == nil {
		return nil
	}
	return o.catalog
}

// Catalog is an alias for the metadata catalog, maintained for clarity at call
// sites.
func (o *Orchestrator) Catalog() metadata.Store {
	if o == nil {
		return nil
	}
	return o.catalog
}

// Close stops the synchronisation loop and releases any resources associated
// with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	if o.syncCancel != nil {
		o.syncCancel()
		<-o.syncDone
		o.syncCancel = nil
	}
	var err error
	for i := len(o.closers) - 1; i >= 0; i-- {
		closer := o.closers[i]
		if closer == nil {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
