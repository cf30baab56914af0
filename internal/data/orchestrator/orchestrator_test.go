// File path: internal/data/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATALYSIS_MEMORY_PATH", "")
	t.Setenv("DATALYSIS_CATALOG_PATH", "")
	t.Setenv("DATALYSIS_SYNC_INTERVAL", "")
	t.Setenv("DATALYSIS_SYNC_TIMEOUT", "")
	t.Setenv("DATALYSIS_SYNC_RETRIES", "")
	t.Setenv("DATALYSIS_SYNC_BACKOFF", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	defaults := DefaultConfig()
	if cfg != defaults {
		t.Fatalf("LoadConfig defaults mismatch: %#v", cfg)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATALYSIS_MEMORY_PATH", "/tmp/artifacts.jsonl")
	t.Setenv("DATALYSIS_CATALOG_PATH", "/tmp/catalog.db")
	t.Setenv("DATALYSIS_SYNC_INTERVAL", "45s")
	t.Setenv("DATALYSIS_SYNC_TIMEOUT", "5s")
	t.Setenv("DATALYSIS_SYNC_RETRIES", "7")
	t.Setenv("DATALYSIS_SYNC_BACKOFF", "150ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MemoryPath != "/tmp/artifacts.jsonl" {
		t.Errorf("MemoryPath = %q", cfg.MemoryPath)
	}
	if cfg.CatalogPath != "/tmp/catalog.db" {
		t.Errorf("CatalogPath = %q", cfg.CatalogPath)
	}
	if cfg.SyncInterval != 45*time.Second {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.SyncTimeout != 5*time.Second {
		t.Errorf("SyncTimeout = %v", cfg.SyncTimeout)
	}
	if cfg.MaxSyncRetries != 7 {
		t.Errorf("MaxSyncRetries = %d", cfg.MaxSyncRetries)
	}
	if cfg.RetryBackoff != 150*time.Millisecond {
		t.Errorf("RetryBackoff = %v", cfg.RetryBackoff)
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		MemoryPath:  filepath.Join(dir, "artifacts.jsonl"),
		CatalogPath: filepath.Join(dir, "catalog.db"),
	}
}

func TestNewInitializesStores(t *testing.T) {
	orch, err := New(context.Background(), testConfig(t), WithSyncDisabled())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	if orch.Memory() == nil {
		t.Fatal("Memory store not initialised")
	}
	if orch.Metadata() == nil {
		t.Fatal("Metadata store not initialised")
	}
	if orch.Catalog() == nil {
		t.Fatal("Catalog store not initialised")
	}
}

func TestNewWithInjectedCatalog(t *testing.T) {
	catalog := &stubCatalog{}
	orch, err := New(context.Background(), testConfig(t), WithSyncDisabled(), WithCatalog(catalog))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if orch.Catalog() != catalog {
		t.Fatal("injected catalog not applied")
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if catalog.closed != 1 {
		t.Fatalf("expected catalog close count 1, got %d", catalog.closed)
	}
}

func seedProfileArtifacts(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	ctx := context.Background()
	table, err := dataset.ParseCSV(strings.NewReader("order_id,amount,region\n1,10.5,west\n2,20.0,east\n3,15.25,west\n"), id)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	prof, err := profile.NewProfiler().Profile(ctx, table)
	if err != nil {
		t.Fatalf("profile table: %v", err)
	}
	profPayload, err := json.Marshal(prof)
	if err != nil {
		t.Fatalf("marshal profile: %v", err)
	}
	domPayload, err := json.Marshal(domain.Detection{
		Domain:     domain.RetailSales,
		Confidence: 0.7,
		Reason:     "column names match retail signals",
	})
	if err != nil {
		t.Fatalf("marshal detection: %v", err)
	}
	err = store.AppendArtifacts(ctx, id, []memory.Artifact{
		{ID: "1", Kind: memory.KindProfile, Payload: profPayload},
		{ID: "2", Kind: memory.KindDomain, Payload: domPayload},
	})
	if err != nil {
		t.Fatalf("append artifacts: %v", err)
	}
}

func TestSyncCatalogReplaysArtifacts(t *testing.T) {
	ctx := context.Background()
	orch, err := New(ctx, testConfig(t), WithSyncDisabled())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	seedProfileArtifacts(t, orch.Memory(), "orders.csv")

	stats, err := orch.SyncCatalog(ctx)
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if stats.Datasets != 1 || stats.Synced != 1 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	page, err := orch.Catalog().QueryDatasets(ctx, metadata.QueryOptions{})
	if err != nil {
		t.Fatalf("query datasets: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("catalog total = %d, want 1", page.Total)
	}
	record := page.Datasets[0]
	if record.ID != "orders.csv" || record.Rows != 3 || record.ColumnCount != 3 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Domain != string(domain.RetailSales) {
		t.Fatalf("domain = %q, want %q", record.Domain, domain.RetailSales)
	}
}

func TestSyncCatalogSkipsDatasetsWithoutProfile(t *testing.T) {
	ctx := context.Background()
	orch, err := New(ctx, testConfig(t), WithSyncDisabled())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	err = orch.Memory().AppendArtifacts(ctx, "partial.csv", []memory.Artifact{
		{ID: "1", Kind: memory.KindEDA, Payload: []byte(`{}`)},
	})
	if err != nil {
		t.Fatalf("append artifacts: %v", err)
	}

	stats, err := orch.SyncCatalog(ctx)
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if stats.Datasets != 1 || stats.Synced != 0 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncLoopWritesCatalog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SyncInterval = 10 * time.Millisecond
	cfg.SyncTimeout = 5 * time.Second
	cfg.MaxSyncRetries = 1
	cfg.RetryBackoff = time.Millisecond

	seedStore, err := memory.NewStore(cfg.MemoryPath)
	if err != nil {
		t.Fatalf("open seed store: %v", err)
	}
	seedProfileArtifacts(t, seedStore, "orders.csv")

	orch, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		page, err := orch.Catalog().QueryDatasets(ctx, metadata.QueryOptions{})
		if err != nil {
			t.Fatalf("query datasets: %v", err)
		}
		if page.Total == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sync loop never persisted the dataset")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

type stubCatalog struct {
	closed int
}

func (s *stubCatalog) QueryDatasets(context.Context, metadata.QueryOptions) (metadata.DatasetsPage, error) {
	return metadata.DatasetsPage{}, nil
}
func (s *stubCatalog) StreamDatasets(context.Context, metadata.QueryOptions, func(metadata.DatasetRecord) error) error {
	return nil
}
func (s *stubCatalog) RecordRun(context.Context, string, string) (int64, error) { return 1, nil }
func (s *stubCatalog) CompleteRun(context.Context, int64, string, error) error  { return nil }
func (s *stubCatalog) RunHistory(context.Context, string, int) ([]metadata.RunRecord, error) {
	return nil, nil
}
func (s *stubCatalog) RecordArtifact(context.Context, metadata.RunArtifact) error { return nil }
func (s *stubCatalog) BatchUpsertDatasets(context.Context, []metadata.DatasetUpsert) error {
	return nil
}
func (s *stubCatalog) BatchUpsertColumns(context.Context, []metadata.ColumnUpsert) error { return nil }
func (s *stubCatalog) PersistProfile(context.Context, string, *profile.TableProfile, *domain.Detection) error {
	return nil
}
func (s *stubCatalog) DomainUsage(context.Context) ([]metadata.DomainUsage, error) { return nil, nil }
func (s *stubCatalog) AuditTrail(context.Context, string, int) ([]metadata.AuditEvent, error) {
	return nil, nil
}
func (s *stubCatalog) Close() error {
	s.closed++
	return nil
}
