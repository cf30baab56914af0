// File path: internal/eda/text.go
package eda

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/domain"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

var (
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	reURL   = regexp.MustCompile(`https?://\S+`)
	rePhone = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)
)

const (
	topWordLimit  = 20
	shortTextLen  = 5
	longTextLen   = 200
	noSpaceMinLen = 20
	minWordLen    = 3
)

// textSection profiles free-text columns: length and word statistics,
// contained entities, vocabulary and a composite quality score.
type textSection struct{}

func (s *textSection) Name() string { return "text" }

func (s *textSection) Applies(input Input) bool {
	if input.AnalysisType != domain.AnalysisTextual {
		return false
	}
	return len(input.Table.ColumnsOfType(dataset.TypeText)) > 0
}

func (s *textSection) Run(_ context.Context, input Input, report *Report) error {
	for _, col := range input.Table.ColumnsOfType(dataset.TypeText) {
		values := col.NonMissing()
		if len(values) == 0 {
			continue
		}
		report.Text = append(report.Text, summarizeText(col.Name, values))
	}
	return nil
}

func summarizeText(column string, values []string) TextSummary {
	summary := TextSummary{
		Column:    column,
		MinLength: len(values[0]),
	}
	var totalLen, totalWords int
	var short, long, caps, noSpaceCount int
	wordCounts := map[string]int{}
	for _, v := range values {
		n := len(v)
		totalLen += n
		if n < summary.MinLength {
			summary.MinLength = n
		}
		if n > summary.MaxLength {
			summary.MaxLength = n
		}
		words := strings.Fields(v)
		totalWords += len(words)
		for _, w := range words {
			w = normalizeWord(w)
			if len(w) >= minWordLen {
				wordCounts[w]++
			}
		}
		if reEmail.MatchString(v) {
			summary.EmailCount++
		}
		if reURL.MatchString(v) {
			summary.URLCount++
		}
		if rePhone.MatchString(v) {
			summary.PhoneCount++
		}
		switch {
		case n < shortTextLen:
			short++
		case n > longTextLen:
			long++
		}
		if isAllCaps(v) {
			caps++
		}
		if n > noSpaceMinLen && !strings.ContainsRune(v, ' ') {
			noSpaceCount++
		}
	}

	count := float64(len(values))
	summary.AvgLength = float64(totalLen) / count
	summary.AvgWords = float64(totalWords) / count
	summary.UppercasePct = 100 * float64(caps) / count
	summary.TopWords = topWords(wordCounts, topWordLimit)
	if totalWords > 0 {
		summary.VocabularyRichness = float64(len(wordCounts)) / float64(totalWords)
	}
	summary.QualityScore = textQualityScore(
		float64(short)/count,
		float64(long)/count,
		float64(caps)/count,
		float64(noSpaceCount)/count,
	)
	return summary
}

// textQualityScore penalizes the fractions of degenerate values. A column
// where every value is short, shouted and unsegmented bottoms out at 30.
func textQualityScore(shortFrac, longFrac, capsFrac, noSpaceFrac float64) float64 {
	score := 100 - 20*shortFrac - 10*longFrac - 15*capsFrac - 25*noSpaceFrac
	if score < 0 {
		score = 0
	}
	return score
}

func normalizeWord(w string) string {
	w = strings.ToLower(w)
	return strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isAllCaps(v string) bool {
	hasLetter := false
	for _, r := range v {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func topWords(counts map[string]int, limit int) []profile.ValueCount {
	out := make([]profile.ValueCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, profile.ValueCount{Value: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
