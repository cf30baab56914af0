// File path: internal/query/intent.go
package query

import (
	"strings"

	"github.com/datalysis-ai/datalysis/internal/dataset"
)

// Statistics an aggregate question can request.
const (
	statMean  = "average"
	statSum   = "total"
	statMax   = "maximum"
	statMin   = "minimum"
	statCount = "count"
)

// Routing vocabularies, matched folded and by substring. Trend and
// compare run before summary and aggregate because their keywords are
// the more specific ones ("sum" hides inside "summarize").
var (
	trendKeywords     = []string{"trend", "over time", "growth", "change"}
	compareKeywords   = []string{"compare", "versus", "difference", "between"}
	summaryKeywords   = []string{"summarize", "overview", "describe"}
	aggregateKeywords = []string{"average", "mean", "total", "sum", "max", "min", "count"}
)

var statisticKeywords = []struct {
	stat  string
	words []string
}{
	{statMean, []string{"average", "mean"}},
	{statSum, []string{"total", "sum"}},
	{statMax, []string{"max"}},
	{statMin, []string{"min"}},
	{statCount, []string{"count"}},
}

func detectIntent(question string) (string, bool) {
	folded := strings.ToLower(question)
	switch {
	case containsAny(folded, trendKeywords):
		return IntentTrend, true
	case containsAny(folded, compareKeywords):
		return IntentCompare, true
	case containsAny(folded, summaryKeywords):
		return IntentSummary, true
	case containsAny(folded, aggregateKeywords):
		return IntentAggregate, true
	}
	return IntentSummary, false
}

func detectStatistic(question string) string {
	folded := strings.ToLower(question)
	for _, entry := range statisticKeywords {
		if containsAny(folded, entry.words) {
			return entry.stat
		}
	}
	return statMean
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

// matchColumn finds the header mentioned in the question, preferring the
// longest match so "total_price" beats "price". Underscores in headers
// match spaces in prose.
func matchColumn(question string, cols []dataset.Column) (string, bool) {
	folded := strings.ToLower(question)
	best := ""
	bestLen := 0
	for _, col := range cols {
		name := strings.ToLower(strings.TrimSpace(col.Name))
		if name == "" {
			continue
		}
		spaced := strings.ReplaceAll(name, "_", " ")
		if strings.Contains(folded, name) || strings.Contains(folded, spaced) {
			if len(name) > bestLen {
				best, bestLen = col.Name, len(name)
			}
		}
	}
	return best, best != ""
}

func numericColumns(table *dataset.Table) []dataset.Column {
	var out []dataset.Column
	for _, col := range table.Columns {
		if col.Type == dataset.TypeNumeric || col.Type == dataset.TypeIdentifier {
			out = append(out, col)
		}
	}
	return out
}

func categoricalColumns(table *dataset.Table) []dataset.Column {
	var out []dataset.Column
	for _, col := range table.Columns {
		if col.Type == dataset.TypeCategorical || col.Type == dataset.TypeBoolean {
			out = append(out, col)
		}
	}
	return out
}
