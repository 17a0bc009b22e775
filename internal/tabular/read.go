// Package tabular reads raw spreadsheets into gota data frames and writes
// frames back out as CSV.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// ErrEmptyTable is returned for inputs without a header row.
var ErrEmptyTable = errors.New("table has no header row")

// ReadRecords loads a .csv or .xlsx file as string rows, header first.
// Header names are trimmed, a leading UTF-8 BOM is dropped and short rows are
// padded with empty cells.
func ReadRecords(path string) ([][]string, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	default:
		records, err = readCSVFile(path)
	}
	if err != nil {
		return nil, err
	}
	return tidy(records)
}

// Load reads path into a DataFrame. Columns listed in types get that type;
// every other column is kept as a string.
func Load(path string, types map[string]series.Type) (dataframe.DataFrame, error) {
	records, err := ReadRecords(path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return FromRecords(records, types)
}

// FromRecords builds a DataFrame from header-first string rows.
func FromRecords(records [][]string, types map[string]series.Type) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, ErrEmptyTable
	}
	present := make(map[string]series.Type, len(types))
	for _, name := range records[0] {
		if t, ok := types[name]; ok {
			present[name] = t
		}
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(present),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build table: %w", df.Err)
	}
	return df, nil
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// tidy normalizes the header and makes every row as wide as the header.
// Rows wider than the header are an error.
func tidy(records [][]string) ([][]string, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmptyTable
	}
	header := records[0]
	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	out := make([][]string, 0, len(records))
	out = append(out, header)
	for i, row := range records[1:] {
		if isBlank(row) {
			continue
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		out = append(out, row)
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// MissingColumns returns the names in required that the frame lacks, sorted.
func MissingColumns(df dataframe.DataFrame, required ...string) []string {
	have := make(map[string]bool)
	for _, n := range df.Names() {
		have[n] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	slices.Sort(missing)
	return missing
}
