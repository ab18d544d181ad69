package agent

import (
	"fmt"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// groupAccumulator collects the contributing values of one group.
type groupAccumulator struct {
	sum   float64
	count int
}

// ExecutePlan runs a declarative aggregate plan over the full dataset and
// returns one row per group, sorted by value descending. Ties keep the order
// in which group keys were first encountered. Rows whose group-key cell is
// absent are skipped entirely; rows whose value cell fails numeric parsing
// contribute nothing to sum/avg (they are not coerced to zero). A count
// aggregation never consults the value column.
//
// Scatter plans are not aggregations; ExecutePlan projects the two axis
// columns row by row instead.
func ExecutePlan(rows []Row, plan AnalysisPlan) []AggregatedRow {
	if plan.ChartType == ChartTypeScatter {
		return executeScatter(rows, plan)
	}

	groups := orderedmap.New[string, *groupAccumulator]()
	for _, row := range rows {
		keyCell, present := row[plan.GroupByColumn]
		if !present || keyCell == nil {
			continue
		}
		label := strings.TrimSpace(stringifyCell(keyCell))
		if label == "" || label == "undefined" || label == "null" {
			continue
		}

		acc, ok := groups.Get(label)
		if !ok {
			acc = &groupAccumulator{}
			groups.Set(label, acc)
		}

		if plan.Aggregation == AggregationCount {
			acc.count++
			continue
		}
		if v, ok := ParseNumeric(row[plan.ValueColumn]); ok {
			acc.sum += v
			acc.count++
		}
	}

	valueName := plan.ValueColumn
	if plan.Aggregation == AggregationCount && valueName == "" {
		valueName = "Count"
	}

	result := make([]AggregatedRow, 0, groups.Len())
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		var value float64
		switch plan.Aggregation {
		case AggregationCount:
			value = float64(pair.Value.count)
		case AggregationAvg:
			// Average of a group with no parsed values is defined as 0.
			if pair.Value.count > 0 {
				value = pair.Value.sum / float64(pair.Value.count)
			}
		default:
			value = pair.Value.sum
		}
		result = append(result, AggregatedRow{
			plan.GroupByColumn: pair.Key,
			valueName:          value,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return asFloat(result[i][valueName]) > asFloat(result[j][valueName])
	})
	return result
}

func executeScatter(rows []Row, plan AnalysisPlan) []AggregatedRow {
	result := make([]AggregatedRow, 0, len(rows))
	for _, row := range rows {
		x, okX := ParseNumeric(row[plan.XValueColumn])
		y, okY := ParseNumeric(row[plan.YValueColumn])
		if !okX || !okY {
			continue
		}
		result = append(result, AggregatedRow{
			plan.XValueColumn: x,
			plan.YValueColumn: y,
		})
	}
	return result
}

func asFloat(v interface{}) float64 {
	f, _ := ParseNumeric(v)
	return f
}

// OthersLabel is the synthetic group produced by ApplyTopNWithOthers.
const OthersLabel = "Others"

// ApplyTopNWithOthers keeps the top n-1 rows by value and folds the remainder
// into a single "Others" row whose value is the sum of the folded rows. The
// input is returned unchanged when it already has at most n rows. Pure; the
// input slice is never mutated.
func ApplyTopNWithOthers(rows []AggregatedRow, n int, groupColumn, valueColumn string) []AggregatedRow {
	if n <= 0 || len(rows) <= n {
		return rows
	}

	result := make([]AggregatedRow, 0, n)
	result = append(result, rows[:n-1]...)

	var folded float64
	for _, row := range rows[n-1:] {
		folded += asFloat(row[valueColumn])
	}
	result = append(result, AggregatedRow{
		groupColumn: OthersLabel,
		valueColumn: folded,
	})
	return result
}

// Unpivot reshapes wide rows into long form: one output row per input row and
// value column, carrying the index columns unchanged plus two new columns,
// variableName holding the value column's header and valueName holding its
// cell.
func Unpivot(rows []Row, indexColumns, valueColumns []string, variableName, valueName string) []Row {
	if variableName == "" {
		variableName = "variable"
	}
	if valueName == "" {
		valueName = "value"
	}

	result := make([]Row, 0, len(rows)*len(valueColumns))
	for _, row := range rows {
		for _, vc := range valueColumns {
			out := make(Row, len(indexColumns)+2)
			for _, ic := range indexColumns {
				out[ic] = row[ic]
			}
			out[variableName] = vc
			out[valueName] = row[vc]
			result = append(result, out)
		}
	}
	return result
}

// CleanRows drops every row matching any exclusion rule on that rule's column.
// Matching is case-insensitive. Used to strip report artifacts such as
// "Grand Total" rows before profiling.
func CleanRows(rows []Row, rules []ExclusionRule) []Row {
	if len(rules) == 0 {
		return rows
	}

	result := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !rowMatchesAnyRule(row, rules) {
			result = append(result, row)
		}
	}
	return result
}

func rowMatchesAnyRule(row Row, rules []ExclusionRule) bool {
	for _, rule := range rules {
		cell := strings.ToLower(strings.TrimSpace(stringifyCell(row[rule.Column])))
		switch {
		case rule.Contains != "" && strings.Contains(cell, strings.ToLower(rule.Contains)):
			return true
		case rule.Equals != "" && cell == strings.ToLower(rule.Equals):
			return true
		case rule.StartsWith != "" && strings.HasPrefix(cell, strings.ToLower(rule.StartsWith)):
			return true
		}
	}
	return false
}

// SampleRows returns the first limit rows without copying cell values.
func SampleRows(rows []Row, limit int) []Row {
	if len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}

// describeAggregatedRows renders a short textual digest of aggregated rows for
// prompts and memory indexing.
func describeAggregatedRows(rows []AggregatedRow, groupColumn, valueColumn string, limit int) string {
	var b strings.Builder
	for i, row := range rows {
		if i >= limit {
			fmt.Fprintf(&b, "... (%d more)", len(rows)-limit)
			break
		}
		fmt.Fprintf(&b, "%v: %v; ", row[groupColumn], row[valueColumn])
	}
	return strings.TrimSuffix(b.String(), "; ")
}
