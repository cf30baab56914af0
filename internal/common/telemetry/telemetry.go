// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/datalysis-ai/datalysis/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

type MemoryLimitError struct {
	Component string
	Usage     uint64
	Limit     uint64
}

func (e MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded for %s: %d > %d", e.Component, e.Usage, e.Limit)
}

var (
	initOnce sync.Once

	datasetsIngested *expvar.Int
	datasetRowsTotal *expvar.Int

	runsStarted   *expvar.Map
	runsCompleted *expvar.Map
	runsFailed    *expvar.Map
	runLatencyMS  *expvar.Map

	queryAnswersTotal *expvar.Map
	llmCallsTotal     *expvar.Int
	llmFailuresTotal  *expvar.Int

	memoryLimitBytes uint64
	memoryLimitVar   *expvar.Int
	memoryUsageVar   *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		datasetsIngested = expvar.NewInt("datalysis_datasets_ingested_total")
		datasetRowsTotal = expvar.NewInt("datalysis_dataset_rows_total")

		runsStarted = expvar.NewMap("datalysis_runs_started_total")
		runsCompleted = expvar.NewMap("datalysis_runs_completed_total")
		runsFailed = expvar.NewMap("datalysis_runs_failed_total")
		runLatencyMS = expvar.NewMap("datalysis_run_latency_ms")

		queryAnswersTotal = expvar.NewMap("datalysis_query_answers_total")
		llmCallsTotal = expvar.NewInt("datalysis_llm_calls_total")
		llmFailuresTotal = expvar.NewInt("datalysis_llm_failures_total")

		memoryLimitVar = expvar.NewInt("datalysis_memory_limit_bytes")
		memoryUsageVar = expvar.NewInt("datalysis_memory_usage_bytes")

		memoryLimitBytes = loadMemoryLimit()
		memoryLimitVar.Set(int64(memoryLimitBytes))
	})
}

func loadMemoryLimit() uint64 {
	if limit := strings.TrimSpace(os.Getenv("DATALYSIS_MEMORY_LIMIT_BYTES")); limit != "" {
		if value, err := strconv.ParseUint(limit, 10, 64); err == nil {
			return value
		}
	}
	if limitMB := strings.TrimSpace(os.Getenv("DATALYSIS_MEMORY_LIMIT_MB")); limitMB != "" {
		if value, err := strconv.ParseUint(limitMB, 10, 64); err == nil {
			return value * 1024 * 1024
		}
	}
	return 0
}

// StartSpan records a named span on the context and returns an end function
// that debug-logs the elapsed duration along with any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		if sp == nil {
			return
		}
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordIngest counts an accepted dataset upload and its row volume.
func RecordIngest(rows int) {
	ensureInit()
	datasetsIngested.Add(1)
	if rows > 0 {
		datasetRowsTotal.Add(int64(rows))
	}
}

// RecordRunStart counts a workflow run of the given kind.
func RecordRunStart(kind string) {
	ensureInit()
	runsStarted.Add(runKey(kind), 1)
}

// RecordRunEnd counts a finished run and its latency, keyed by kind.
func RecordRunEnd(kind string, failed bool, duration time.Duration) {
	ensureInit()
	key := runKey(kind)
	if failed {
		runsFailed.Add(key, 1)
	} else {
		runsCompleted.Add(key, 1)
	}
	if duration > 0 {
		runLatencyMS.Add(key, duration.Milliseconds())
	}
}

// RecordQueryAnswer counts an answered natural-language query by intent.
func RecordQueryAnswer(intent string) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(intent))
	if key == "" {
		key = "unknown"
	}
	queryAnswersTotal.Add(key, 1)
}

// RecordLLMCall counts an outbound provider call and whether it failed.
func RecordLLMCall(failed bool) {
	ensureInit()
	llmCallsTotal.Add(1)
	if failed {
		llmFailuresTotal.Add(1)
	}
}

func runKey(kind string) string {
	key := strings.TrimSpace(strings.ToLower(kind))
	if key == "" {
		return "unknown"
	}
	return key
}

// CheckMemoryBudget compares current heap usage against the configured limit
// and returns a MemoryLimitError when it is exceeded. A zero limit disables
// the guard but still refreshes the usage gauge.
func CheckMemoryBudget(component string) error {
	ensureInit()
	if memoryLimitBytes == 0 {
		updateMemoryUsage()
		return nil
	}
	usage := updateMemoryUsage()
	if usage > memoryLimitBytes {
		err := MemoryLimitError{Component: component, Usage: usage, Limit: memoryLimitBytes}
		common.Logger().Warn("telemetry: memory guard tripped", "component", component, "usage", usage, "limit", memoryLimitBytes)
		return err
	}
	return nil
}

func updateMemoryUsage() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	usage := stats.Alloc
	memoryUsageVar.Set(int64(usage))
	return usage
}

// SpanDuration reports the elapsed time of the span carried by ctx, if any.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}
