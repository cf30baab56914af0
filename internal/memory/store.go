// File path: internal/memory/store.go
package memory

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Artifact kinds recorded by the analysis pipeline.
const (
	KindProfile        = "profile"
	KindDomain         = "domain"
	KindEDA            = "eda"
	KindInsights       = "insights"
	KindRecommendation = "recommendation"
	KindCleaning       = "cleaning"
	KindQuery          = "query"
)

// Artifact is one persisted pipeline output for a dataset. Payload holds the
// producing package's own JSON encoding.
type Artifact struct {
	ID        string          `json:"id"`
	DatasetID string          `json:"dataset_id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type Store struct {
	path string
	mu   sync.RWMutex
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path required")
	}
	basePath := determineRoot(path)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{path: basePath}, nil
}

func (s *Store) AppendArtifacts(ctx context.Context, datasetID string, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	filePath, err := s.datasetFile(datasetID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, artifact := range artifacts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := enc.Encode(artifact); err != nil {
			return fmt.Errorf("encode artifact: %w", err)
		}
	}
	return nil
}

// ReplaceArtifacts overwrites the stored artifacts for a dataset. The new
// contents are written to a temp file and renamed into place so readers never
// observe a half-written store.
func (s *Store) ReplaceArtifacts(ctx context.Context, datasetID string, artifacts []Artifact) error {
	filePath, err := s.datasetFile(datasetID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.path, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	tmpPath := tmp.Name()
	enc := json.NewEncoder(tmp)
	for _, artifact := range artifacts {
		select {
		case <-ctx.Done():
			tmp.Close()
			os.Remove(tmpPath)
			return ctx.Err()
		default:
		}
		if err := enc.Encode(artifact); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("encode artifact: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (s *Store) AllArtifacts(ctx context.Context, datasetID string) ([]Artifact, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.TrimSpace(datasetID) == "" {
		return s.readAllDatasets(ctx)
	}
	return s.readDataset(ctx, datasetID)
}

// Datasets returns metadata about stored datasets including their artifact counts.
func (s *Store) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	infos := make([]DatasetInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		datasetID, ok := decodeDatasetFile(entry.Name())
		if !ok {
			continue
		}
		artifacts, err := s.readDataset(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, DatasetInfo{ID: datasetID, Artifacts: len(artifacts)})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Root returns the underlying directory used for persistence.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.path
}

type DatasetInfo struct {
	ID        string
	Artifacts int
}

func (s *Store) readDataset(ctx context.Context, datasetID string) ([]Artifact, error) {
	filePath, err := s.datasetFile(datasetID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 8<<20)
	var artifacts []Artifact
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var artifact Artifact
		if err := json.Unmarshal(line, &artifact); err != nil {
			return nil, fmt.Errorf("decode artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	return artifacts, nil
}

func (s *Store) readAllDatasets(ctx context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var all []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		datasetID, ok := decodeDatasetFile(entry.Name())
		if !ok {
			continue
		}
		artifacts, err := s.readDataset(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		all = append(all, artifacts...)
	}
	return all, nil
}

func (s *Store) datasetFile(datasetID string) (string, error) {
	trimmed := strings.TrimSpace(datasetID)
	if trimmed == "" {
		return "", fmt.Errorf("dataset id required")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(trimmed))
	if encoded == "" {
		return "", fmt.Errorf("invalid dataset id")
	}
	name := fmt.Sprintf("dataset_%s.jsonl", encoded)
	return filepath.Join(s.path, name), nil
}

func decodeDatasetFile(name string) (string, bool) {
	if !strings.HasPrefix(name, "dataset_") || !strings.HasSuffix(name, ".jsonl") {
		return "", false
	}
	encoded := strings.TrimSuffix(strings.TrimPrefix(name, "dataset_"), ".jsonl")
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func determineRoot(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "."
	}
	info, err := os.Stat(trimmed)
	if err == nil {
		if info.IsDir() {
			return trimmed
		}
		return filepath.Dir(trimmed)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return filepath.Dir(trimmed)
	}
	// Path does not exist; assume caller intended a file if an extension is present.
	if ext := filepath.Ext(trimmed); ext != "" {
		dir := filepath.Dir(trimmed)
		if dir == "" || dir == "." {
			return "."
		}
		return dir
	}
	return trimmed
}
