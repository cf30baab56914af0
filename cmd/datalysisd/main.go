// File path: cmd/datalysisd/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/datalysis-ai/datalysis/internal/api"
	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/data/orchestrator"
	"github.com/datalysis-ai/datalysis/internal/llm"
)

const shutdownGrace = 10 * time.Second

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("datalysis: .env file not loaded", "error", err)
	} else {
		logger.Info("datalysis: environment loaded from .env")
	}

	addr := flag.String("addr", envOr("DATALYSIS_ADDR", ":8080"), "listen address")
	memoryPath := flag.String("memory-path", "", "path to the artifact store (overrides DATALYSIS_MEMORY_PATH)")
	catalogPath := flag.String("catalog-path", "", "path to the SQLite catalog database (overrides DATALYSIS_CATALOG_PATH)")
	uploadRoot := flag.String("upload-root", envOr("DATALYSIS_UPLOAD_ROOT", ""), "directory for spooling uploads")
	syncRowLimit := flag.Int("sync-row-limit", envIntOr("DATALYSIS_SYNC_ROW_LIMIT", 0), "max rows accepted by synchronous processing (0 uses the default)")
	flag.Parse()

	logger.Info("datalysis: startup initiated", "addr", *addr)

	orchCfg, err := orchestrator.LoadConfig()
	if err != nil {
		logger.Error("datalysis: orchestrator config load failed", "error", err)
		fmt.Println("orchestrator config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*memoryPath); trimmed != "" {
		orchCfg.MemoryPath = trimmed
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		orchCfg.CatalogPath = trimmed
	}

	orch, err := orchestrator.New(ctx, orchCfg)
	if err != nil {
		logger.Error("datalysis: orchestrator initialization failed", "error", err)
		fmt.Println("orchestrator error:", err)
		os.Exit(1)
	}
	defer orch.Close()

	provider := llm.NewProvider()
	logger.Info("datalysis: llm provider ready", "provider", provider.Name())

	apiCfg := api.Config{
		UploadRoot:          strings.TrimSpace(*uploadRoot),
		SyncProcessRowLimit: *syncRowLimit,
	}
	server, err := api.NewServer(ctx, orch, provider, &apiCfg)
	if err != nil {
		logger.Error("datalysis: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("datalysis: server listening", "addr", *addr, "health", "/healthz")
		fmt.Printf("Serving on %s\n", *addr)
		serverErrors <- srv.ListenAndServe()
	}()

	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("datalysis: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("datalysis: server stopped", "error", err)
		fmt.Println("server stopped:", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("datalysis: shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("datalysis: graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("datalysis: forced shutdown failed", "error", err)
		}
	}
	logger.Info("datalysis: server stopped")
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
