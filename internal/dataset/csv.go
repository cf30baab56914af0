// File path: internal/dataset/csv.go
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/common"
)

var (
	ErrEmptyInput      = errors.New("dataset: input contains no rows")
	ErrDuplicateColumn = errors.New("dataset: duplicate column name")
)

// ParseCSV reads an uploaded CSV stream into a Table. Ragged rows are
// tolerated: short rows are padded with empty cells, long rows truncated to
// the header width.
func ParseCSV(r io.Reader, name string) (*Table, error) {
	logger := common.Logger()
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", err)
	}
	table, err := ParseRecords(records, name)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset: csv parsed", "name", table.Name, "rows", table.Rows, "columns", len(table.Columns))
	return table, nil
}

// ParseRecords builds a Table from pre-split records. The first record is the
// header row.
func ParseRecords(records [][]string, name string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	headers := records[0]
	if len(headers) == 0 {
		return nil, ErrEmptyInput
	}
	seen := make(map[string]struct{}, len(headers))
	columns := make([]Column, len(headers))
	for i, raw := range headers {
		header := strings.TrimSpace(raw)
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(header)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, header)
		}
		seen[key] = struct{}{}
		columns[i] = Column{Name: header}
	}

	rows := records[1:]
	for i := range columns {
		columns[i].Values = make([]string, len(rows))
	}
	for r, record := range rows {
		for c := range columns {
			if c < len(record) {
				columns[c].Values[r] = strings.TrimSpace(record[c])
			}
		}
	}

	table := &Table{
		Name:    strings.TrimSpace(name),
		Columns: columns,
		Rows:    len(rows),
	}
	if table.Name == "" {
		table.Name = "dataset"
	}
	for i := range table.Columns {
		table.Columns[i].Type = InferColumnType(&table.Columns[i])
	}
	return table, nil
}

// HeadCSV renders the header plus up to limit rows back to CSV. Prompt
// builders use it to show providers a bounded sample.
func (t *Table) HeadCSV(limit int) string {
	records := t.Records()
	if len(records) > limit+1 {
		records = records[:limit+1]
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, record := range records {
		if err := w.Write(record); err != nil {
			break
		}
	}
	w.Flush()
	return b.String()
}
