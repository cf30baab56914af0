// File path: internal/dataset/infer.go
package dataset

import (
	"strconv"
	"strings"
	"time"
)

const typeSampleSize = 20

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006/01/02",
	time.RFC3339,
	"Jan 2, 2006",
}

var booleanTokens = map[string]struct{}{
	"true": {}, "false": {},
	"yes": {}, "no": {},
	"y": {}, "n": {},
	"0": {}, "1": {},
}

// InferColumnType classifies a column from a sample of its non-missing
// values. Numeric and datetime checks must hold for the whole sample;
// identifier and categorical fall out of uniqueness ratios over the full
// column.
func InferColumnType(col *Column) ColumnType {
	if col == nil {
		return TypeUnknown
	}
	present := col.NonMissing()
	if len(present) == 0 {
		return TypeUnknown
	}

	sample := present
	if len(sample) > typeSampleSize {
		sample = sample[:typeSampleSize]
	}

	allNumeric := true
	allDates := true
	allBoolean := true
	for _, value := range sample {
		if _, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err != nil {
			allNumeric = false
		}
		if !IsDateString(value) {
			allDates = false
		}
		if _, ok := booleanTokens[strings.ToLower(value)]; !ok {
			allBoolean = false
		}
	}
	// "0"/"1" columns satisfy both checks; numbers win unless every sampled
	// value is a recognizable boolean word.
	if allBoolean && !allNumericWords(sample) {
		return TypeBoolean
	}
	if allNumeric {
		if isLikelyIdentifier(col, present) {
			return TypeIdentifier
		}
		return TypeNumeric
	}
	if allDates {
		return TypeDatetime
	}
	if isLikelyIdentifier(col, present) {
		return TypeIdentifier
	}

	distinct := col.DistinctCount()
	uniqueRatio := float64(distinct) / float64(len(present))
	if uniqueRatio < 0.15 || distinct < 20 {
		return TypeCategorical
	}
	return TypeText
}

func allNumericWords(sample []string) bool {
	for _, value := range sample {
		if value != "0" && value != "1" {
			return false
		}
	}
	return true
}

func isLikelyIdentifier(col *Column, present []string) bool {
	total := len(col.Values)
	if total == 0 || len(present) == 0 {
		return false
	}
	// Small tables make every column look unique; below the sample size the
	// uniqueness ratio carries no signal.
	if total < typeSampleSize {
		return false
	}
	missingRatio := float64(total-len(present)) / float64(total)
	seen := make(map[string]struct{}, len(present))
	for _, v := range present {
		seen[v] = struct{}{}
	}
	uniqueRatio := float64(len(seen)) / float64(len(present))
	return uniqueRatio > 0.9 && missingRatio < 0.05
}

// IsDateString reports whether the value parses in any supported layout.
func IsDateString(value string) bool {
	_, ok := ParseDate(value)
	return ok
}

// ParseDate attempts every supported layout and returns the first match.
func ParseDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if ts, err := time.Parse(format, trimmed); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseFloat parses a numeric cell, tolerating thousands separators.
func ParseFloat(value string) (float64, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FloatValues extracts the parseable numeric values from a column.
func FloatValues(col *Column) []float64 {
	if col == nil {
		return nil
	}
	out := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if IsMissing(v) {
			continue
		}
		if f, ok := ParseFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// TimeValues extracts the parseable datetime values from a column.
func TimeValues(col *Column) []time.Time {
	if col == nil {
		return nil
	}
	out := make([]time.Time, 0, len(col.Values))
	for _, v := range col.Values {
		if IsMissing(v) {
			continue
		}
		if ts, ok := ParseDate(v); ok {
			out = append(out, ts)
		}
	}
	return out
}
