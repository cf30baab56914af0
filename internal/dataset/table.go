// File path: internal/dataset/table.go
package dataset

import (
	"strings"
)

// ColumnType classifies the values observed in a column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeText        ColumnType = "text"
	TypeDatetime    ColumnType = "datetime"
	TypeBoolean     ColumnType = "boolean"
	TypeIdentifier  ColumnType = "identifier"
	TypeUnknown     ColumnType = "unknown"
)

// Column holds a single column of raw cell values. Cells keep their original
// string form; IsMissing decides what counts as absent.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Values []string   `json:"values"`
}

// Table is the in-memory representation of an uploaded dataset. Every engine
// treats it as read-only; transformations operate on copies.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    int      `json:"rows"`
}

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"null": {},
	"none": {},
	"nan":  {},
	"-":    {},
}

// IsMissing reports whether a raw cell value counts as a missing observation.
func IsMissing(value string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// Column returns the column with the given name, matched case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	target := strings.ToLower(strings.TrimSpace(name))
	for i := range t.Columns {
		if strings.ToLower(t.Columns[i].Name) == target {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Headers returns the column names in declaration order.
func (t *Table) Headers() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Name
	}
	return out
}

// Row materializes row i as a slice aligned with Headers. Out-of-range rows
// return nil.
func (t *Table) Row(i int) []string {
	if t == nil || i < 0 || i >= t.Rows {
		return nil
	}
	out := make([]string, len(t.Columns))
	for c, col := range t.Columns {
		if i < len(col.Values) {
			out[c] = col.Values[i]
		}
	}
	return out
}

// Records returns the table as CSV-shaped records with the header row first.
func (t *Table) Records() [][]string {
	if t == nil {
		return nil
	}
	out := make([][]string, 0, t.Rows+1)
	out = append(out, t.Headers())
	for i := 0; i < t.Rows; i++ {
		out = append(out, t.Row(i))
	}
	return out
}

// ColumnsOfType returns the columns carrying the requested type.
func (t *Table) ColumnsOfType(ct ColumnType) []Column {
	if t == nil {
		return nil
	}
	var out []Column
	for _, col := range t.Columns {
		if col.Type == ct {
			out = append(out, col)
		}
	}
	return out
}

// Clone deep-copies the table so cleaning steps can mutate freely.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	clone := &Table{Name: t.Name, Rows: t.Rows, Columns: make([]Column, len(t.Columns))}
	for i, col := range t.Columns {
		values := make([]string, len(col.Values))
		copy(values, col.Values)
		clone.Columns[i] = Column{Name: col.Name, Type: col.Type, Values: values}
	}
	return clone
}

// NonMissing returns the column's present values, trimmed.
func (c *Column) NonMissing() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if IsMissing(v) {
			continue
		}
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// MissingCount reports how many cells in the column are missing.
func (c *Column) MissingCount() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, v := range c.Values {
		if IsMissing(v) {
			count++
		}
	}
	return count
}

// DistinctCount reports unique non-missing values in the column.
func (c *Column) DistinctCount() int {
	if c == nil {
		return 0
	}
	seen := make(map[string]struct{})
	for _, v := range c.Values {
		if IsMissing(v) {
			continue
		}
		seen[strings.TrimSpace(v)] = struct{}{}
	}
	return len(seen)
}
