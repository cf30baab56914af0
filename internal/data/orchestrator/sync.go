// File path: internal/data/orchestrator/sync.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

// SyncStats summarises one catalog reconciliation pass.
type SyncStats struct {
	Datasets int `json:"datasets"`
	Synced   int `json:"synced"`
	Skipped  int `json:"skipped"`
}

// SyncCatalog replays the newest profile and domain artifacts recorded in the
// memory store into the catalog. Datasets without a profile artifact are
// skipped, and a failure on one dataset does not stop the pass.
func (o *Orchestrator) SyncCatalog(ctx context.Context) (SyncStats, error) {
	stats := SyncStats{}
	if o == nil || o.memoryStore == nil || o.catalog == nil {
		return stats, errors.New("orchestrator stores not configured")
	}
	logger := common.Logger()

	infos, err := o.memoryStore.Datasets(ctx)
	if err != nil {
		return stats, fmt.Errorf("list memory datasets: %w", err)
	}
	stats.Datasets = len(infos)

	var failures error
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		artifacts, err := o.memoryStore.AllArtifacts(ctx, info.ID)
		if err != nil {
			failures = errors.Join(failures, fmt.Errorf("load artifacts for %s: %w", info.ID, err))
			continue
		}
		prof, detection := latestProfileArtifacts(info.ID, artifacts, logger)
		if prof == nil {
			stats.Skipped++
			continue
		}
		if err := o.catalog.PersistProfile(ctx, info.ID, prof, detection); err != nil {
			failures = errors.Join(failures, fmt.Errorf("persist %s: %w", info.ID, err))
			continue
		}
		stats.Synced++
	}
	return stats, failures
}

// latestProfileArtifacts picks the newest profile and domain payloads for a
// dataset. Artifacts are appended in run order, so the last of each kind wins.
func latestProfileArtifacts(datasetID string, artifacts []memory.Artifact, logger *slog.Logger) (*profile.TableProfile, *domain.Detection) {
	var profRaw, domainRaw json.RawMessage
	for _, artifact := range artifacts {
		switch artifact.Kind {
		case memory.KindProfile:
			profRaw = artifact.Payload
		case memory.KindDomain:
			domainRaw = artifact.Payload
		}
	}
	if len(profRaw) == 0 {
		return nil, nil
	}
	var prof profile.TableProfile
	if err := json.Unmarshal(profRaw, &prof); err != nil {
		logger.Warn("orchestrator: decode profile artifact failed", "dataset", datasetID, "error", err)
		return nil, nil
	}
	var detection *domain.Detection
	if len(domainRaw) > 0 {
		decoded := domain.Detection{}
		if err := json.Unmarshal(domainRaw, &decoded); err != nil {
			logger.Warn("orchestrator: decode domain artifact failed", "dataset", datasetID, "error", err)
		} else {
			detection = &decoded
		}
	}
	return &prof, detection
}

func (o *Orchestrator) runSyncLoop(ctx context.Context) {
	defer close(o.syncDone)
	ticker := time.NewTicker(o.cfg.SyncInterval)
	defer ticker.Stop()

	o.syncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.syncOnce(ctx)
		}
	}
}

// syncOnce runs a single reconciliation with the configured per-pass timeout,
// retrying transient failures up to MaxSyncRetries with RetryBackoff pauses.
func (o *Orchestrator) syncOnce(ctx context.Context) {
	logger := common.Logger()
	for attempt := 0; ; attempt++ {
		syncCtx, cancel := context.WithTimeout(ctx, o.cfg.SyncTimeout)
		stats, err := o.SyncCatalog(syncCtx)
		cancel()
		if err == nil {
			if stats.Synced > 0 {
				logger.Debug("orchestrator: catalog sync complete",
					"datasets", stats.Datasets, "synced", stats.Synced, "skipped", stats.Skipped)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt >= o.cfg.MaxSyncRetries {
			logger.Warn("orchestrator: catalog sync failed", "error", err, "attempts", attempt+1)
			return
		}
		logger.Debug("orchestrator: catalog sync retry", "error", err, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.RetryBackoff):
		}
	}
}
