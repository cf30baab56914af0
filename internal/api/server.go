// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/datalysis-ai/datalysis/internal/agent"
	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/data/orchestrator"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/memory"
	"github.com/datalysis-ai/datalysis/internal/metadata"
	"github.com/datalysis-ai/datalysis/internal/profile"
	"github.com/datalysis-ai/datalysis/internal/query"
	"github.com/datalysis-ai/datalysis/internal/workflow"
)

type Server struct {
	router   chi.Router
	store    *memory.Store
	metadata metadata.Store
	provider llm.Provider

	profiler *profile.Profiler
	detector *domain.Detector
	queries  *query.Engine
	agent    *agent.Runner
	workflow *workflow.Manager

	cfg Config

	orchestrator *orchestrator.Orchestrator
}

// Config controls how the API server accepts uploads and how large a table
// the synchronous processing endpoint will take on.
type Config struct {
	UploadRoot          string
	MaxUploadBytes      int64
	SyncProcessRowLimit int
}

// DefaultConfig returns the standard configuration used when no overrides are
// provided.
func DefaultConfig() Config {
	return Config{
		UploadRoot:          filepath.Join(os.TempDir(), "datalysis_uploads"),
		MaxUploadBytes:      64 << 20,
		SyncProcessRowLimit: 50000,
	}
}

// Merge overlays non-zero configuration values from the override onto the
// base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.UploadRoot) != "" {
		result.UploadRoot = strings.TrimSpace(override.UploadRoot)
	}
	if override.MaxUploadBytes > 0 {
		result.MaxUploadBytes = override.MaxUploadBytes
	}
	if override.SyncProcessRowLimit > 0 {
		result.SyncProcessRowLimit = override.SyncProcessRowLimit
	}
	return result
}

func NewServer(ctx context.Context, orch *orchestrator.Orchestrator, provider llm.Provider, cfg *Config) (*Server, error) {
	logger := common.Logger()
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	store := orch.Memory()
	if store == nil {
		return nil, fmt.Errorf("memory store unavailable")
	}
	catalog := orch.Catalog()
	if catalog == nil {
		return nil, fmt.Errorf("catalog store unavailable")
	}
	datasets, err := store.Datasets(ctx)
	if err != nil {
		logger.Error("api: failed to inspect artifact store", "error", err)
		return nil, err
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	if err := os.MkdirAll(configuration.UploadRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	providerName := "none"
	if provider != nil {
		providerName = provider.Name()
	}
	logger.Info(
		"api: building server",
		"datasets", len(datasets),
		"provider", providerName,
		"sync_row_limit", configuration.SyncProcessRowLimit,
	)
	srv := &Server{
		router:       chi.NewRouter(),
		store:        store,
		metadata:     catalog,
		provider:     provider,
		profiler:     profile.NewProfiler(),
		detector:     domain.NewDetector(provider),
		queries:      query.NewEngine(provider),
		agent:        agent.NewRunner(provider, store),
		workflow:     workflow.NewManager(store, catalog, provider),
		cfg:          configuration,
		orchestrator: orch,
	}
	srv.routes()
	logger.Info("api: server ready", "upload_root", configuration.UploadRoot)
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// MetadataStore returns the backing metadata catalog interface.
func (s *Server) MetadataStore() metadata.Store {
	if s == nil {
		return nil
	}
	return s.metadata
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/datasets", s.handleDatasetUpload)
	s.router.Get("/v1/datasets", s.handleDatasetList)
	s.router.Get("/v1/datasets/export", s.handleDatasetExport)
	s.router.Get("/v1/datasets/{datasetID}/runs", s.handleDatasetRuns)
	s.router.Get("/v1/datasets/{datasetID}/audit", s.handleDatasetAudit)
	s.router.Get("/v1/domain-usage", s.handleDomainUsage)
	s.router.Post("/v1/detect-domain", s.handleDetectDomain)
	s.router.Post("/v1/process-data", s.handleProcessData)
	s.router.Post("/v1/analyze-query", s.handleAnalyzeQuery)
	s.router.Get("/v1/example-queries", s.handleExampleQueries)
	s.router.Get("/v1/domain-visualizations", s.handleDomainVisualizations)
	s.router.Post("/v1/recommend", s.handleRecommend)
	s.router.Post("/v1/clean", s.handleClean)
	s.router.Post("/v1/workflow/start", s.handleWorkflowStart)
	s.router.Post("/v1/workflow/stop", s.handleWorkflowStop)
	s.router.Get("/v1/workflow/status", s.handleWorkflowStatus)
	s.router.Get("/v1/workflow/download", s.handleWorkflowDownload)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Get("/v1/agent/report", s.handleAgentReport)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
