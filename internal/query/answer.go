// File path: internal/query/answer.go
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/datalysis-ai/datalysis/internal/dataset"
	"github.com/datalysis-ai/datalysis/internal/eda"
	"github.com/datalysis-ai/datalysis/internal/insight"
	"github.com/datalysis-ai/datalysis/internal/profile"
)

const compareGroupLimit = 10

func summaryAnswer(table *dataset.Table, prof *profile.TableProfile) *Answer {
	numeric, categorical, text, datetime := 0, 0, 0, 0
	for _, cp := range prof.ColumnProfiles {
		switch cp.Type {
		case dataset.TypeNumeric, dataset.TypeIdentifier:
			numeric++
		case dataset.TypeCategorical, dataset.TypeBoolean:
			categorical++
		case dataset.TypeText:
			text++
		case dataset.TypeDatetime:
			datetime++
		}
	}
	overview := fmt.Sprintf(
		"%s has %d rows and %d columns (%d numeric, %d categorical, %d text, %d datetime). %s of cells are missing and %d rows are exact duplicates.",
		table.Name, prof.Rows, prof.Columns, numeric, categorical, text, datetime,
		fmtNum(prof.MissingPct)+"%", prof.DuplicateRows,
	)

	var viz *VizSpec
	var points []insight.ChartPoint
	for _, cp := range prof.ColumnProfiles {
		if cp.Missing > 0 {
			points = append(points, insight.ChartPoint{Label: cp.Name, Y: cp.MissingPct})
		}
	}
	if len(points) > 0 {
		viz = &VizSpec{
			Type:       "bar",
			Title:      "Missing values by column",
			XAxisLabel: "column",
			YAxisLabel: "missing %",
			Insights:   "Columns with tall bars need imputation or review before modeling.",
			Data:       points,
		}
	}
	return &Answer{
		Text:          overview,
		Intent:        IntentSummary,
		SQL:           fmt.Sprintf("SELECT * FROM %s LIMIT 10;", sqlTableName(table.Name)),
		Visualization: viz,
	}
}

func aggregateAnswer(question string, table *dataset.Table, prof *profile.TableProfile) *Answer {
	stat := detectStatistic(question)
	tableName := sqlTableName(table.Name)

	colName, found := matchColumn(question, table.Columns)
	if !found {
		if stat == statCount {
			return &Answer{
				Text:   fmt.Sprintf("%s has %d rows.", table.Name, prof.Rows),
				Intent: IntentAggregate,
				SQL:    fmt.Sprintf("SELECT COUNT(*) FROM %s;", tableName),
			}
		}
		return &Answer{
			Text:   "I could not find a column named in the question. Numeric columns available: " + columnNames(numericColumns(table)) + ".",
			Intent: IntentAggregate,
			SQL:    fmt.Sprintf("SELECT * FROM %s LIMIT 10;", tableName),
		}
	}

	cp, _ := prof.Column(colName)
	if stat == statCount {
		return &Answer{
			Text:   fmt.Sprintf("%s has %d non-missing values across %d rows.", colName, cp.Count, prof.Rows),
			Intent: IntentAggregate,
			SQL:    fmt.Sprintf("SELECT COUNT(%s) FROM %s;", colName, tableName),
		}
	}
	if cp.Numeric == nil {
		return &Answer{
			Text:   fmt.Sprintf("%s is not numeric, so %s cannot be computed. Numeric columns available: %s.", colName, stat, columnNames(numericColumns(table))),
			Intent: IntentAggregate,
			SQL:    fmt.Sprintf("SELECT %s FROM %s LIMIT 10;", colName, tableName),
		}
	}

	var value float64
	var sqlFunc string
	switch stat {
	case statSum:
		value, sqlFunc = cp.Numeric.Sum, "SUM"
	case statMax:
		value, sqlFunc = cp.Numeric.Max, "MAX"
	case statMin:
		value, sqlFunc = cp.Numeric.Min, "MIN"
	default:
		value, sqlFunc = cp.Numeric.Mean, "AVG"
	}

	var viz *VizSpec
	if col, ok := table.Column(colName); ok {
		if points := insight.HistogramPoints(dataset.FloatValues(col)); len(points) > 0 {
			viz = &VizSpec{
				Type:       "histogram",
				Title:      "Distribution of " + colName,
				XAxisLabel: colName,
				YAxisLabel: "count",
				Insights:   fmt.Sprintf("The %s of %s is %s.", stat, colName, fmtNum(value)),
				Data:       points,
			}
		}
	}
	return &Answer{
		Text:          fmt.Sprintf("The %s of %s is %s.", stat, colName, fmtNum(value)),
		Intent:        IntentAggregate,
		SQL:           fmt.Sprintf("SELECT %s(%s) FROM %s;", sqlFunc, colName, tableName),
		Visualization: viz,
	}
}

func compareAnswer(question string, table *dataset.Table, prof *profile.TableProfile) *Answer {
	tableName := sqlTableName(table.Name)
	categoricals := categoricalColumns(table)
	if len(categoricals) == 0 {
		return &Answer{
			Text:   "Comparisons need a categorical column to group by, and this dataset has none.",
			Intent: IntentCompare,
			SQL:    fmt.Sprintf("SELECT * FROM %s LIMIT 10;", tableName),
		}
	}
	catName, ok := matchColumn(question, categoricals)
	if !ok {
		catName = categoricals[0].Name
	}
	catCol, _ := table.Column(catName)

	measures := numericColumns(table)
	measureName, ok := matchColumn(question, measures)
	if !ok && len(measures) > 0 {
		measureName = measures[0].Name
	}

	if measureName == "" {
		points := insight.CategoryShares(catCol)
		text := fmt.Sprintf("Row counts by %s:", catName)
		if len(points) > 0 {
			text = fmt.Sprintf("%s is the most common %s with %d rows.", points[0].Label, catName, int(points[0].Y))
		}
		return &Answer{
			Text:   text,
			Intent: IntentCompare,
			SQL:    fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s;", catName, tableName, catName),
			Visualization: &VizSpec{
				Type:       "bar",
				Title:      "Count by " + catName,
				XAxisLabel: catName,
				YAxisLabel: "count",
				Data:       points,
			},
		}
	}

	measureCol, _ := table.Column(measureName)
	points := groupMeans(catCol, measureCol)
	if len(points) == 0 {
		return &Answer{
			Text:   fmt.Sprintf("No overlapping values between %s and %s to compare.", catName, measureName),
			Intent: IntentCompare,
			SQL:    fmt.Sprintf("SELECT %s, AVG(%s) FROM %s GROUP BY %s;", catName, measureName, tableName, catName),
		}
	}
	top := points[0]
	bottom := points[len(points)-1]
	text := fmt.Sprintf(
		"Across %d groups of %s, %s has the highest average %s (%s) and %s the lowest (%s).",
		len(points), catName, top.Label, measureName, fmtNum(top.Y), bottom.Label, fmtNum(bottom.Y),
	)
	return &Answer{
		Text:   text,
		Intent: IntentCompare,
		SQL:    fmt.Sprintf("SELECT %s, AVG(%s) FROM %s GROUP BY %s ORDER BY 2 DESC;", catName, measureName, tableName, catName),
		Visualization: &VizSpec{
			Type:       "bar",
			Title:      fmt.Sprintf("Average %s by %s", measureName, catName),
			XAxisLabel: catName,
			YAxisLabel: "average " + measureName,
			Insights:   fmt.Sprintf("%s leads, %s trails.", top.Label, bottom.Label),
			Data:       points,
		},
	}
}

func trendAnswer(question string, table *dataset.Table, prof *profile.TableProfile, report *eda.Report) *Answer {
	tableName := sqlTableName(table.Name)
	measures := numericColumns(table)
	if len(measures) == 0 {
		return &Answer{
			Text:   "Trend analysis needs a numeric column, and this dataset has none.",
			Intent: IntentTrend,
			SQL:    fmt.Sprintf("SELECT * FROM %s LIMIT 10;", tableName),
		}
	}
	measureName, ok := matchColumn(question, measures)
	if !ok {
		measureName = measures[0].Name
	}
	measureCol, _ := table.Column(measureName)

	trend := reportTrend(report, measureName)
	if trend == nil {
		fitted := eda.FitTrend(measureName, dataset.FloatValues(measureCol))
		trend = &fitted
	}

	dtCols := table.ColumnsOfType(dataset.TypeDatetime)
	var points []insight.ChartPoint
	sql := fmt.Sprintf("SELECT %s FROM %s;", measureName, tableName)
	span := ""
	if len(dtCols) > 0 {
		points = insight.TimeLine(dtCols[0], *measureCol)
		sql = fmt.Sprintf("SELECT %s, SUM(%s) FROM %s GROUP BY %s ORDER BY %s;",
			dtCols[0].Name, measureName, tableName, dtCols[0].Name, dtCols[0].Name)
		if cp, okc := prof.Column(dtCols[0].Name); okc && cp.Datetime != nil {
			span = fmt.Sprintf(" between %s and %s",
				cp.Datetime.MinTime.Format("2006-01-02"), cp.Datetime.MaxTime.Format("2006-01-02"))
		}
	} else {
		for i, v := range dataset.FloatValues(measureCol) {
			points = append(points, insight.ChartPoint{X: float64(i), Y: v})
		}
	}

	text := fmt.Sprintf("%s is %s (%s trend, r² %s)%s.",
		measureName, trend.Direction, trend.Strength, fmtNum(trend.R2), span)
	var viz *VizSpec
	if len(points) > 0 {
		viz = &VizSpec{
			Type:       "line",
			Title:      measureName + " over time",
			XAxisLabel: "time",
			YAxisLabel: measureName,
			Insights:   text,
			Data:       points,
		}
	}
	return &Answer{Text: text, Intent: IntentTrend, SQL: sql, Visualization: viz}
}

func reportTrend(report *eda.Report, column string) *eda.Trend {
	if report == nil {
		return nil
	}
	for i := range report.Trends {
		if strings.EqualFold(report.Trends[i].Column, column) {
			return &report.Trends[i]
		}
	}
	return nil
}

// groupMeans averages the measure per category, sorted by mean
// descending and capped to the chart limit.
func groupMeans(catCol, measureCol *dataset.Column) []insight.ChartPoint {
	n := len(catCol.Values)
	if len(measureCol.Values) < n {
		n = len(measureCol.Values)
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		group := strings.TrimSpace(catCol.Values[i])
		if dataset.IsMissing(group) {
			continue
		}
		v, ok := dataset.ParseFloat(measureCol.Values[i])
		if !ok {
			continue
		}
		sums[group] += v
		counts[group]++
	}
	points := make([]insight.ChartPoint, 0, len(sums))
	for group, sum := range sums {
		points = append(points, insight.ChartPoint{Label: group, Y: sum / float64(counts[group])})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Y != points[j].Y {
			return points[i].Y > points[j].Y
		}
		return points[i].Label < points[j].Label
	})
	if len(points) > compareGroupLimit {
		points = points[:compareGroupLimit]
	}
	return points
}

func columnNames(cols []dataset.Column) string {
	if len(cols) == 0 {
		return "none"
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return strings.Join(names, ", ")
}

// sqlTableName folds a dataset name into something usable as a SQL
// identifier in the illustrative queries.
func sqlTableName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" {
		return "dataset"
	}
	return cleaned
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
