// File path: internal/query/examples.go
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/llm"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const (
	exampleLimit      = 5
	exampleSampleRows = 20
	exampleMinValid   = 3
)

var (
	nutrientNameHints = []string{"calorie", "protein", "fat", "carb", "sugar"}
	moneyNameHints    = []string{"price", "revenue", "cost", "sale", "amount"}
	healthNameHints   = []string{"age", "weight", "height", "bmi", "blood"}
	timeNameHints     = []string{"date", "time", "year", "month", "day"}
)

// Examples proposes up to five questions a user could ask about the
// table. A provider reply with at least three usable questions replaces
// the heuristics; anything less falls back to the domain templates.
func (e *Engine) Examples(ctx context.Context, table *dataset.Table, prof *profile.TableProfile, detection domain.Detection) []string {
	ctx, end := telemetry.StartSpan(ctx, "query.examples")
	defer end()
	logger := common.Logger()

	if e.provider != nil {
		generated, err := e.providerExamples(ctx, table, prof, detection)
		if err != nil {
			logger.Warn("query: example generation failed, using templates", "error", err)
		} else if len(generated) >= exampleMinValid {
			logger.Debug("query: provider examples", "count", len(generated))
			return generated
		}
	}
	examples := heuristicExamples(table, detection.Domain)
	logger.Debug("query: template examples", "count", len(examples), "domain", detection.Domain)
	return examples
}

func (e *Engine) providerExamples(ctx context.Context, table *dataset.Table, prof *profile.TableProfile, detection domain.Detection) ([]string, error) {
	prompt := fmt.Sprintf(`Generate five specific questions a data analyst would ask about this dataset.

Domain: %s
Domain context: %s
Sample data (first %d rows):
%s
Column information:
%s

Rules: only reference columns that appear in the sample, include at least one highest/lowest question, include a trend question when a date column exists, and phrase them the way a business user would.

Reply with JSON: {"queries": ["...", "...", "...", "...", "..."]}`,
		detection.Domain, detection.Reason, exampleSampleRows, table.HeadCSV(exampleSampleRows), columnInfoJSON(prof))

	reply, err := e.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You suggest data analysis questions. Reply with a single JSON object and nothing else."},
		{Role: "user", Content: prompt},
	})
	telemetry.RecordLLMCall(err != nil)
	if err != nil {
		return nil, fmt.Errorf("query: examples chat: %w", err)
	}

	blob := llm.ExtractJSON(reply)
	if blob == "" {
		return nil, fmt.Errorf("query: examples reply contained no JSON object")
	}
	var payload struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, fmt.Errorf("query: decode examples reply: %w", err)
	}
	var valid []string
	for _, q := range payload.Queries {
		if q = strings.TrimSpace(q); q != "" {
			valid = append(valid, q)
		}
	}
	return dedupe(valid, exampleLimit), nil
}

// heuristicExamples instantiates per-domain question templates with the
// detected columns, topping up with generic ones when the domain set
// comes out short.
func heuristicExamples(table *dataset.Table, domainName string) []string {
	numerics := numericColumns(table)
	categoricals := categoricalColumns(table)
	timeCols := columnsByNameHints(table, timeNameHints)

	var examples []string
	switch domainName {
	case domain.FoodNutrition:
		nutrients := filterByNameHints(numerics, nutrientNameHints)
		if lead, ok := firstColumn(nutrients, numerics); ok {
			examples = append(examples, fmt.Sprintf("Which items have the highest %s content?", lead))
			if len(nutrients) >= 2 {
				examples = append(examples, fmt.Sprintf("What is the relationship between %s and %s?", nutrients[0].Name, nutrients[1].Name))
			}
			if len(categoricals) > 0 {
				examples = append(examples, fmt.Sprintf("How does %s compare across %s categories?", lead, categoricals[0].Name))
			}
		}
	case domain.Finance, domain.RetailSales:
		money := filterByNameHints(numerics, moneyNameHints)
		if lead, ok := firstColumn(money, numerics); ok {
			examples = append(examples, fmt.Sprintf("What is the total %s?", lead))
			if len(categoricals) > 0 {
				examples = append(examples,
					fmt.Sprintf("Which %s has the highest %s?", categoricals[0].Name, lead),
					fmt.Sprintf("How is %s distributed across %s categories?", lead, categoricals[0].Name))
			}
			if len(timeCols) > 0 {
				examples = append(examples, fmt.Sprintf("What is the trend of %s over time based on %s?", lead, timeCols[0].Name))
			}
		}
	case domain.Healthcare:
		health := filterByNameHints(numerics, healthNameHints)
		if lead, ok := firstColumn(health, numerics); ok {
			examples = append(examples, fmt.Sprintf("What is the average %s across all records?", lead))
			if len(categoricals) > 0 {
				examples = append(examples, fmt.Sprintf("How does %s vary across %s groups?", lead, categoricals[0].Name))
			}
			if len(health) >= 2 {
				examples = append(examples, fmt.Sprintf("Is there a correlation between %s and %s?", health[0].Name, health[1].Name))
			}
		}
	}

	if len(examples) < exampleMinValid {
		if len(numerics) > 0 {
			examples = append(examples,
				fmt.Sprintf("What is the highest %s in the dataset?", numerics[0].Name),
				fmt.Sprintf("What is the average %s value?", numerics[0].Name))
		}
		if len(categoricals) > 0 {
			examples = append(examples, fmt.Sprintf("What is the distribution of %s in the dataset?", categoricals[0].Name))
		}
		if len(timeCols) > 0 && len(numerics) > 0 {
			examples = append(examples, fmt.Sprintf("How has %s changed over time according to %s?", numerics[0].Name, timeCols[0].Name))
		}
	}
	if len(examples) < exampleMinValid {
		examples = append(examples,
			"What interesting patterns can be found in this dataset?",
			"What are the key insights from this data?",
			"Which columns have the strongest relationships?")
	}
	return dedupe(examples, exampleLimit)
}

func columnsByNameHints(table *dataset.Table, hints []string) []dataset.Column {
	var out []dataset.Column
	for _, col := range table.Columns {
		if nameContainsAny(col.Name, hints) {
			out = append(out, col)
		}
	}
	return out
}

func filterByNameHints(cols []dataset.Column, hints []string) []dataset.Column {
	var out []dataset.Column
	for _, col := range cols {
		if nameContainsAny(col.Name, hints) {
			out = append(out, col)
		}
	}
	return out
}

func nameContainsAny(name string, hints []string) bool {
	folded := strings.ToLower(name)
	for _, hint := range hints {
		if strings.Contains(folded, hint) {
			return true
		}
	}
	return false
}

// firstColumn prefers the hint-filtered set, falling back to the full
// numeric set.
func firstColumn(preferred, fallback []dataset.Column) (string, bool) {
	if len(preferred) > 0 {
		return preferred[0].Name, true
	}
	if len(fallback) > 0 {
		return fallback[0].Name, true
	}
	return "", false
}

// dedupe keeps first occurrences in order, capped.
func dedupe(values []string, limit int) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
