// Package dataset contains the intake collaborators that turn external
// sources into row maps for the analysis pipeline. Rows are plain
// map[string]interface{} keyed by column header; all typing happens later in
// the profiler.
package dataset

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/extrame/xls"
	_ "github.com/go-sql-driver/mysql"
)

// Row mirrors agent.Row without importing the agent package; intake sits
// below the pipeline.
type Row = map[string]interface{}

// LoadCSV reads a CSV file whose first record is the header row.
func LoadCSV(path string) ([]Row, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are tolerated; missing cells stay absent

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv file is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for i, cell := range record {
			if i >= len(headers) {
				break
			}
			row[headers[i]] = cell
		}
		rows = append(rows, row)
	}
	return rows, headers, nil
}

// LoadXLS reads the first sheet of a legacy .xls workbook, first row as
// headers.
func LoadXLS(path string) ([]Row, []string, error) {
	workbook, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open xls: %w", err)
	}

	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, nil, fmt.Errorf("xls workbook has no sheets")
	}

	headerRow := sheet.Row(0)
	if headerRow == nil {
		return nil, nil, fmt.Errorf("xls sheet has no header row")
	}

	var headers []string
	for j := headerRow.FirstCol(); j < headerRow.LastCol(); j++ {
		headers = append(headers, strings.TrimSpace(headerRow.Col(j)))
	}
	if len(headers) == 0 {
		return nil, nil, fmt.Errorf("xls header row is empty")
	}

	var rows []Row
	for i := 1; i <= int(sheet.MaxRow); i++ {
		sheetRow := sheet.Row(i)
		if sheetRow == nil {
			continue
		}
		row := make(Row, len(headers))
		for j := 0; j < len(headers); j++ {
			row[headers[j]] = sheetRow.Col(j)
		}
		rows = append(rows, row)
	}
	return rows, headers, nil
}

// LoadMySQL runs a query against a MySQL data source and returns its result
// set as rows. Cell values arrive as strings; the profiler re-types them.
func LoadMySQL(dsn, query string) ([]Row, []string, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	defer db.Close()

	result, err := db.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	headers, err := result.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var rows []Row
	for result.Next() {
		raw := make([]sql.RawBytes, len(headers))
		scan := make([]interface{}, len(headers))
		for i := range raw {
			scan[i] = &raw[i]
		}
		if err := result.Scan(scan...); err != nil {
			return nil, nil, fmt.Errorf("scan failed: %w", err)
		}

		row := make(Row, len(headers))
		for i, h := range headers {
			if raw[i] == nil {
				row[h] = nil
				continue
			}
			row[h] = string(raw[i])
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return rows, headers, nil
}

// Load dispatches on the file extension, with MySQL handled by LoadMySQL
// directly.
func Load(path string) ([]Row, []string, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".xls"):
		return LoadXLS(path)
	default:
		return LoadCSV(path)
	}
}
