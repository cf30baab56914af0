// File path: internal/domain/domain.go
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/common/telemetry"
	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/llm"
)

// Canonical domain names. Detection always resolves to one of these.
const (
	Finance       = "finance"
	FoodNutrition = "food_nutrition"
	RetailSales   = "retail_sales"
	Healthcare    = "healthcare"
	Education     = "education"
	HRPeople      = "hr_people"
	Marketing     = "marketing"
	Generic       = "generic"
)

// Detection is the outcome of domain inference for a dataset.
type Detection struct {
	Domain     string   `json:"domain"`
	Confidence float64  `json:"confidence"`
	Features   []string `json:"features,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

var financeKeywords = []string{
	"price", "cost", "revenue", "profit", "amount", "balance", "transaction",
	"account", "payment", "expense", "income", "budget", "invoice", "currency",
}

var nutritionKeywords = []string{
	"calorie", "protein", "fat", "carb", "sugar", "fiber", "sodium",
	"serving", "food", "nutrient", "vitamin", "cholesterol", "ingredient",
}

var salesKeywords = []string{
	"sale", "order", "product", "quantity", "customer", "discount", "sku",
	"store", "units", "inventory", "shipment", "cart",
}

var healthcareKeywords = []string{
	"patient", "diagnosis", "treatment", "blood", "heart", "bmi", "dose",
	"hospital", "symptom", "medication", "pressure", "glucose",
}

var educationKeywords = []string{
	"student", "grade", "score", "course", "teacher", "school", "gpa",
	"attendance", "exam", "semester", "enrollment",
}

var hrKeywords = []string{
	"employee", "salary", "department", "hire", "tenure", "manager",
	"title", "performance", "attrition", "promotion",
}

var marketingKeywords = []string{
	"campaign", "click", "impression", "conversion", "ctr", "channel",
	"engagement", "reach", "audience", "subscriber",
}

var domainKeywords = map[string][]string{
	Finance:       financeKeywords,
	FoodNutrition: nutritionKeywords,
	RetailSales:   salesKeywords,
	Healthcare:    healthcareKeywords,
	Education:     educationKeywords,
	HRPeople:      hrKeywords,
	Marketing:     marketingKeywords,
}

// Aliases an LLM might answer with, mapped back to canonical names.
var domainAliases = map[string]string{
	"financial":    Finance,
	"finance":      Finance,
	"banking":      Finance,
	"food":         FoodNutrition,
	"nutrition":    FoodNutrition,
	"sales":        RetailSales,
	"retail":       RetailSales,
	"ecommerce":    RetailSales,
	"health":       Healthcare,
	"healthcare":   Healthcare,
	"medical":      Healthcare,
	"education":    Education,
	"academic":     Education,
	"hr":           HRPeople,
	"people":       HRPeople,
	"workforce":    HRPeople,
	"marketing":    Marketing,
	"advertising":  Marketing,
	"demographics": Generic,
	"generic":      Generic,
	"general":      Generic,
	"unknown":      Generic,
}

const (
	detectionThreshold = 0.15
	genericConfidence  = 0.5
	defaultConfidence  = 0.7
)

// Detector infers the dataset domain. The heuristic pass always runs; a
// provider, when configured, may refine the result.
type Detector struct {
	provider llm.Provider
}

// NewDetector builds a detector. The provider is optional.
func NewDetector(provider llm.Provider) *Detector {
	return &Detector{provider: provider}
}

// Detect scores the column names against every domain keyword table and
// optionally refines the winner through one provider call. Provider failures
// fall back to the heuristic result and never surface to callers.
func (d *Detector) Detect(ctx context.Context, table *dataset.Table) Detection {
	logger := common.Logger()
	heuristic := DetectHeuristic(table)
	if d == nil || d.provider == nil {
		return heuristic
	}
	refined, err := d.refine(ctx, table, heuristic)
	if err != nil {
		logger.Warn("domain: provider refinement failed, using heuristic", "error", err, "domain", heuristic.Domain)
		return heuristic
	}
	logger.Info("domain: detection refined", "domain", refined.Domain, "confidence", refined.Confidence)
	return refined
}

// DetectHeuristic runs the keyword scoring pass on its own.
func DetectHeuristic(table *dataset.Table) Detection {
	if table == nil || len(table.Columns) == 0 {
		return Detection{Domain: Generic, Confidence: genericConfidence, Reason: "no columns to inspect"}
	}
	headers := table.Headers()

	type candidate struct {
		domain  string
		score   float64
		matched []string
	}
	candidates := make([]candidate, 0, len(domainKeywords))
	for name, keywords := range domainKeywords {
		matched := matchColumns(headers, keywords)
		if len(matched) == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			domain:  name,
			score:   float64(len(matched)) / float64(len(headers)),
			matched: matched,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].domain < candidates[j].domain
	})

	if len(candidates) == 0 || candidates[0].score < detectionThreshold {
		features := headers
		if len(features) > 5 {
			features = features[:5]
		}
		return Detection{
			Domain:     Generic,
			Confidence: genericConfidence,
			Features:   features,
			Reason:     "column names match no domain vocabulary",
		}
	}

	best := candidates[0]
	confidence := clamp(0.5+best.score, 0, 1)
	return Detection{
		Domain:     best.domain,
		Confidence: confidence,
		Features:   best.matched,
		Reason:     fmt.Sprintf("%d of %d columns match %s vocabulary", len(best.matched), len(headers), best.domain),
	}
}

func (d *Detector) refine(ctx context.Context, table *dataset.Table, heuristic Detection) (Detection, error) {
	prompt := buildDetectionPrompt(table)
	messages := []llm.Message{
		{Role: "system", Content: "You classify datasets into business domains. Reply with a JSON object {\"domain\": string, \"confidence\": number, \"reason\": string}. Known domains: finance, food_nutrition, retail_sales, healthcare, education, hr_people, marketing, generic."},
		{Role: "user", Content: prompt},
	}
	reply, err := d.provider.Chat(ctx, messages)
	telemetry.RecordLLMCall(err != nil)
	if err != nil {
		return Detection{}, err
	}
	blob := llm.ExtractJSON(reply)
	if blob == "" {
		return Detection{}, fmt.Errorf("no JSON object in provider reply")
	}
	var parsed struct {
		Domain     string  `json:"domain"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		return Detection{}, fmt.Errorf("decode provider reply: %w", err)
	}
	refined := Detection{
		Domain:     Normalize(parsed.Domain),
		Confidence: parsed.Confidence,
		Reason:     strings.TrimSpace(parsed.Reason),
		Features:   heuristic.Features,
	}
	if refined.Confidence == 0 {
		refined.Confidence = defaultConfidence
	}
	refined.Confidence = clamp(refined.Confidence, 0, 1)
	if refined.Reason == "" {
		refined.Reason = heuristic.Reason
	}
	return refined, nil
}

func buildDetectionPrompt(table *dataset.Table) string {
	var b strings.Builder
	b.WriteString("Columns: ")
	b.WriteString(strings.Join(table.Headers(), ", "))
	b.WriteString("\n")
	sampleRows := table.Rows
	if sampleRows > 3 {
		sampleRows = 3
	}
	for i := 0; i < sampleRows; i++ {
		cells := table.Row(i)
		for j, cell := range cells {
			cells[j] = truncateCell(cell)
		}
		b.WriteString(fmt.Sprintf("Row %d: %s\n", i+1, strings.Join(cells, ", ")))
	}
	return b.String()
}

func truncateCell(value string) string {
	if len(value) <= 100 {
		return value
	}
	return value[:97] + "..."
}

// Normalize maps free-form domain names onto the canonical set.
func Normalize(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	if _, ok := domainKeywords[key]; ok {
		return key
	}
	if key == Generic {
		return Generic
	}
	if canonical, ok := domainAliases[strings.TrimSuffix(key, "_data")]; ok {
		return canonical
	}
	if canonical, ok := domainAliases[key]; ok {
		return canonical
	}
	return Generic
}

// Names lists every canonical domain.
func Names() []string {
	return []string{Finance, FoodNutrition, RetailSales, Healthcare, Education, HRPeople, Marketing, Generic}
}

func matchColumns(headers, keywords []string) []string {
	var matched []string
	for _, header := range headers {
		folded := strings.ToLower(header)
		for _, keyword := range keywords {
			if strings.Contains(folded, keyword) {
				matched = append(matched, header)
				break
			}
		}
	}
	return matched
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
