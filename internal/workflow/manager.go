// File path: internal/workflow/manager.go
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const maxLogEntries = 500

var (
	ErrWorkflowRunning    = errors.New("workflow already running")
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrWorkflowNotRunning = errors.New("workflow not running")
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrArtifactNotFound   = errors.New("artifact not available")
	ErrArtifactInvalid    = errors.New("artifact invalid")
)

type Kind string

const (
	KindFull  Kind = "full"
	KindQuick Kind = "quick"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepCanceled  StepStatus = "canceled"
)

// Pipeline step names in execution order. Quick runs stop after the
// domain step.
const (
	StepNameProfile   = "profile"
	StepNameDomain    = "domain"
	StepNameEDA       = "eda"
	StepNameInsights  = "insights"
	StepNameRecommend = "recommend"
	StepNameCleaning  = "cleaning-plan"
)

// ArtifactCleanedCSV keys the cleaned dataset export in State.Artifacts.
const ArtifactCleanedCSV = "cleaned_csv"

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type Step struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type State struct {
	DatasetID  string            `json:"dataset_id"`
	Kind       Kind              `json:"kind,omitempty"`
	Status     string            `json:"status"`
	Running    bool              `json:"running"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Steps      []Step            `json:"steps"`
	Error      string            `json:"error,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}

type session struct {
	state  State
	cancel context.CancelFunc
}

// Manager owns the asynchronous analysis pipeline: one session per dataset,
// persisted run history, a capped log ring and the on-disk dataset and
// artifact roots.
type Manager struct {
	store    *memory.Store
	catalog  metadata.Store
	provider llm.Provider

	profiler *profile.Profiler
	detector *domain.Detector
	explorer *eda.Engine
	insights *insight.Generator

	historyPath string
	historyMu   sync.Mutex
	history     map[string]State

	logMu sync.Mutex
	logs  []LogEntry

	workflowMu sync.Mutex
	workflows  map[string]*session

	datasetRoot  string
	artifactRoot string
}

func NewManager(store *memory.Store, catalog metadata.Store, provider llm.Provider) *Manager {
	mgr := &Manager{
		store:     store,
		catalog:   catalog,
		provider:  provider,
		profiler:  profile.NewProfiler(),
		detector:  domain.NewDetector(provider),
		explorer:  eda.NewEngine(),
		insights:  insight.NewGenerator(provider),
		logs:      make([]LogEntry, 0, 32),
		workflows: make(map[string]*session),
		history:   make(map[string]State),
	}
	if store != nil {
		mgr.historyPath = filepath.Join(store.Root(), "datasets_history.json")
		mgr.datasetRoot = filepath.Join(store.Root(), "datasets")
		mgr.artifactRoot = filepath.Join(store.Root(), "artifacts")
	} else {
		mgr.datasetRoot = filepath.Join(os.TempDir(), "datalysis_datasets")
		mgr.artifactRoot = filepath.Join(os.TempDir(), "datalysis_artifacts")
	}
	if err := os.MkdirAll(mgr.datasetRoot, 0o755); err != nil {
		common.Logger().Warn("workflow: create dataset root failed", "error", err, "path", mgr.datasetRoot)
	}
	if err := os.MkdirAll(mgr.artifactRoot, 0o755); err != nil {
		common.Logger().Warn("workflow: create artifact root failed", "error", err, "path", mgr.artifactRoot)
		mgr.artifactRoot = ""
	}
	if err := mgr.loadHistory(); err != nil {
		common.Logger().Warn("workflow: load history failed", "error", err)
	}
	return mgr
}

func (m *Manager) AppendLog(level, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	entry := LogEntry{Time: time.Now().UTC(), Level: level, Message: text}
	m.logMu.Lock()
	m.logs = append(m.logs, entry)
	if len(m.logs) > maxLogEntries {
		m.logs = m.logs[len(m.logs)-maxLogEntries:]
	}
	m.logMu.Unlock()
	logger := common.Logger()
	switch level {
	case "error":
		logger.Error(text)
	case "warn":
		logger.Warn(text)
	case "debug":
		logger.Debug(text)
	default:
		logger.Info(text)
	}
}

func (m *Manager) Logs() []LogEntry {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	entries := make([]LogEntry, len(m.logs))
	copy(entries, m.logs)
	return entries
}

// Start launches the analysis pipeline for a stored dataset. The run
// proceeds in the background; Status reports progress.
func (m *Manager) Start(req Request) error {
	normalized, err := normalizeRequest(req)
	if err != nil {
		return err
	}
	if _, err := m.readManifest(normalized.DatasetID); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDatasetNotFound, normalized.DatasetID)
		}
		return err
	}
	steps := buildWorkflowSteps(normalized.kind)
	if len(steps) == 0 {
		return fmt.Errorf("no steps configured for workflow %s", normalized.Kind)
	}
	now := time.Now().UTC()
	state := State{
		DatasetID: normalized.DatasetID,
		Kind:      normalized.kind,
		Status:    "running",
		Running:   true,
		StartedAt: &now,
		Steps:     steps,
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.workflowMu.Lock()
	if existing, ok := m.workflows[normalized.DatasetID]; ok && existing.state.Running {
		m.workflowMu.Unlock()
		cancel()
		return ErrWorkflowRunning
	}
	m.workflows[normalized.DatasetID] = &session{state: state, cancel: cancel}
	m.workflowMu.Unlock()
	go m.runWorkflow(ctx, normalized.DatasetID, normalized)
	m.AppendLog("info", "Workflow started (%s) for dataset %s", normalized.Kind, normalized.DatasetID)
	return nil
}

func (m *Manager) Stop(datasetID string) error {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return fmt.Errorf("dataset id required")
	}
	m.workflowMu.Lock()
	session, ok := m.workflows[datasetID]
	if !ok {
		m.workflowMu.Unlock()
		return ErrWorkflowNotFound
	}
	if !session.state.Running || session.cancel == nil {
		m.workflowMu.Unlock()
		return ErrWorkflowNotRunning
	}
	if session.state.Status != "canceling" {
		session.state.Status = "canceling"
	}
	cancel := session.cancel
	m.workflowMu.Unlock()
	cancel()
	m.AppendLog("info", "Cancellation requested for dataset %s", datasetID)
	return nil
}

func (m *Manager) Status(datasetID string) State {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return newState("")
	}

	m.workflowMu.Lock()
	session, ok := m.workflows[datasetID]
	if ok {
		snapshot := cloneState(session.state)
		m.workflowMu.Unlock()
		return snapshot
	}
	m.workflowMu.Unlock()

	m.historyMu.Lock()
	historyState, ok := m.history[datasetID]
	if ok {
		snapshot := cloneState(historyState)
		m.historyMu.Unlock()
		return snapshot
	}
	m.historyMu.Unlock()

	return newState(datasetID)
}

// DatasetStates merges live sessions over the persisted history.
func (m *Manager) DatasetStates() map[string]State {
	result := make(map[string]State)
	m.historyMu.Lock()
	for id, state := range m.history {
		result[id] = cloneState(state)
	}
	m.historyMu.Unlock()
	m.workflowMu.Lock()
	for id, session := range m.workflows {
		result[id] = cloneState(session.state)
	}
	m.workflowMu.Unlock()
	return result
}

// ArtifactPath resolves a named artifact from the dataset's workflow state
// and validates it stays inside the artifact root.
func (m *Manager) ArtifactPath(datasetID, name string) (string, error) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return "", fmt.Errorf("dataset id required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("artifact name required")
	}
	state := m.Status(datasetID)
	var artifact string
	for key, value := range state.Artifacts {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			artifact = strings.TrimSpace(value)
			break
		}
	}
	if artifact == "" {
		return "", ErrArtifactNotFound
	}
	return m.validateArtifactPath(artifact)
}

func (m *Manager) validateArtifactPath(path string) (string, error) {
	absPath, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	root := strings.TrimSpace(m.artifactRoot)
	if root != "" {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("resolve artifact root: %w", err)
		}
		rel, err := filepath.Rel(rootAbs, absPath)
		if err != nil {
			return "", fmt.Errorf("resolve artifact path: %w", err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return "", ErrArtifactInvalid
		}
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return "", ErrArtifactInvalid
	}
	return absPath, nil
}

func newState(datasetID string) State {
	return State{DatasetID: datasetID, Status: "idle", Steps: []Step{}}
}

func cloneState(src State) State {
	clone := src
	if len(src.Steps) > 0 {
		clone.Steps = append([]Step(nil), src.Steps...)
	}
	if len(src.Artifacts) > 0 {
		clone.Artifacts = make(map[string]string, len(src.Artifacts))
		for key, value := range src.Artifacts {
			clone.Artifacts[key] = value
		}
	}
	return clone
}

func (m *Manager) loadHistory() error {
	if m.historyPath == "" {
		return nil
	}
	data, err := os.ReadFile(m.historyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var stored map[string]State
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	for id, state := range stored {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		snapshot := cloneState(state)
		if snapshot.DatasetID == "" {
			snapshot.DatasetID = trimmed
		}
		m.history[trimmed] = snapshot
	}
	return nil
}

func (m *Manager) saveHistoryLocked() error {
	if m.historyPath == "" {
		return nil
	}
	tmpPath := m.historyPath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	if err := enc.Encode(m.history); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, m.historyPath)
}

func (m *Manager) persistDatasetState(datasetID string, state State) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return
	}
	snapshot := cloneState(state)
	if snapshot.DatasetID == "" {
		snapshot.DatasetID = datasetID
	}
	m.historyMu.Lock()
	if m.history == nil {
		m.history = make(map[string]State)
	}
	m.history[datasetID] = snapshot
	if err := m.saveHistoryLocked(); err != nil {
		common.Logger().Warn("workflow: save history failed", "error", err)
	}
	m.historyMu.Unlock()
}
