// File path: internal/memory/store_test.go
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestReplaceArtifactsOverwritesExistingContent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "artifacts.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	initial := []Artifact{{ID: "1", DatasetID: "ds-1", Kind: KindProfile}}
	if err := store.AppendArtifacts(ctx, "ds-1", initial); err != nil {
		t.Fatalf("append artifacts: %v", err)
	}
	replacement := []Artifact{{ID: "2", DatasetID: "ds-1", Kind: KindEDA}}
	if err := store.ReplaceArtifacts(ctx, "ds-1", replacement); err != nil {
		t.Fatalf("replace artifacts: %v", err)
	}
	artifacts, err := store.AllArtifacts(ctx, "ds-1")
	if err != nil {
		t.Fatalf("all artifacts: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if artifacts[0].ID != "2" || artifacts[0].Kind != KindEDA {
		t.Fatalf("unexpected artifact: %+v", artifacts[0])
	}
}

func TestReplaceArtifactsClearsStoreWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "artifacts.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.AppendArtifacts(ctx, "ds-2", []Artifact{{ID: "1", Kind: KindProfile}}); err != nil {
		t.Fatalf("append artifacts: %v", err)
	}
	if err := store.ReplaceArtifacts(ctx, "ds-2", nil); err != nil {
		t.Fatalf("replace artifacts: %v", err)
	}
	artifacts, err := store.AllArtifacts(ctx, "ds-2")
	if err != nil {
		t.Fatalf("all artifacts: %v", err)
	}
	if len(artifacts) != 0 {
		t.Fatalf("expected store to be empty, got %d artifacts", len(artifacts))
	}
}

func TestAllArtifactsHandlesLargePayloads(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "artifacts.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	payload := fmt.Sprintf(`{"report":%q}`, strings.Repeat("large payload content ", 1<<15))
	artifact := Artifact{ID: "large", Kind: KindInsights, Payload: json.RawMessage(payload)}
	if len(artifact.Payload) <= 64<<10 {
		t.Fatalf("payload too small for test: %d bytes", len(artifact.Payload))
	}
	if err := store.AppendArtifacts(ctx, "ds-large", []Artifact{artifact}); err != nil {
		t.Fatalf("append artifacts: %v", err)
	}
	artifacts, err := store.AllArtifacts(ctx, "ds-large")
	if err != nil {
		t.Fatalf("all artifacts: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if artifacts[0].ID != artifact.ID || string(artifacts[0].Payload) != payload {
		t.Fatalf("unexpected artifact mismatch")
	}
}

func TestDatasetsListsStoredArtifacts(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "artifacts.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.AppendArtifacts(ctx, "ds-a", []Artifact{{ID: "1"}}); err != nil {
		t.Fatalf("append ds-a: %v", err)
	}
	if err := store.AppendArtifacts(ctx, "ds-b", []Artifact{{ID: "2"}, {ID: "3"}}); err != nil {
		t.Fatalf("append ds-b: %v", err)
	}
	infos, err := store.Datasets(ctx)
	if err != nil {
		t.Fatalf("datasets: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(infos))
	}
	got := map[string]int{}
	for _, info := range infos {
		got[info.ID] = info.Artifacts
	}
	if got["ds-a"] != 1 || got["ds-b"] != 2 {
		t.Fatalf("unexpected dataset info: %#v", got)
	}
}

func TestDatasetIDsSurviveFilenameEncoding(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	id := "sales/2024 Q1.csv"
	if err := store.AppendArtifacts(ctx, id, []Artifact{{ID: "1", DatasetID: id}}); err != nil {
		t.Fatalf("append artifacts: %v", err)
	}
	infos, err := store.Datasets(ctx)
	if err != nil {
		t.Fatalf("datasets: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != id {
		t.Fatalf("unexpected datasets: %#v", infos)
	}
	artifacts, err := store.AllArtifacts(ctx, id)
	if err != nil {
		t.Fatalf("all artifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].DatasetID != id {
		t.Fatalf("unexpected artifacts: %#v", artifacts)
	}
}
