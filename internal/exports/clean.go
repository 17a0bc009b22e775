// Package exports cleans UN Comtrade IC export tables and builds the
// top-market report from the country-level customs export table.
package exports

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/tabular"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrMissingColumns is returned when an input table lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// Columns of the raw UN Comtrade download.
const (
	colPeriod     = "Period"
	colReporter   = "Reporter"
	colTradeValue = "Trade Value (US$)"
)

// Columns of the cleaned table.
const (
	ColYear           = "Year"
	ColReporter       = "Reporter"
	ColExportValueUSD = "ExportValueUSD"
)

// Drop reasons reported in Stats.
const (
	DropMissingValue = "missing_value"
	DropNonPositive  = "non_positive"
	DropBadYear      = "bad_year"
	DropOutOfRange   = "out_of_range"
	DropNotIC        = "not_ic"
)

// Stats counts rows seen, kept and dropped by reason.
type Stats struct {
	Rows    int
	Kept    int
	Dropped map[string]int
}

func newStats(rows int) Stats {
	return Stats{Rows: rows, Dropped: make(map[string]int)}
}

func (s Stats) drop(reason string) { s.Dropped[reason]++ }

// Clean keeps the year, reporter and trade value of a raw Comtrade table,
// drops rows whose value is missing, not numeric or not positive, and sorts
// the result by (Year, Reporter). Rows whose period is not a whole year are
// dropped as well.
func Clean(raw dataframe.DataFrame) (dataframe.DataFrame, Stats, error) {
	if missing := tabular.MissingColumns(raw, colPeriod, colReporter, colTradeValue); len(missing) > 0 {
		return dataframe.DataFrame{}, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	df := raw.Select([]string{colPeriod, colReporter, colTradeValue}).
		Rename(ColYear, colPeriod).
		Rename(ColExportValueUSD, colTradeValue)
	if df.Err != nil {
		return dataframe.DataFrame{}, Stats{}, fmt.Errorf("select columns: %w", df.Err)
	}

	stats := newStats(df.Nrow())
	yearCells := df.Col(ColYear).Records()
	valueCells := df.Col(ColExportValueUSD).Records()

	years := make([]int, 0, len(yearCells))
	values := make([]float64, 0, len(valueCells))
	keep := make([]int, 0, len(yearCells))
	for i := range yearCells {
		v, ok := parseNumber(valueCells[i])
		if !ok {
			stats.drop(DropMissingValue)
			continue
		}
		if v <= 0 {
			stats.drop(DropNonPositive)
			continue
		}
		y, ok := parseYear(yearCells[i])
		if !ok {
			stats.drop(DropBadYear)
			continue
		}
		keep = append(keep, i)
		years = append(years, y)
		values = append(values, v)
	}
	stats.Kept = len(keep)

	if len(keep) == 0 {
		return emptyCleaned(), stats, nil
	}

	out := df.Subset(keep).
		Mutate(series.New(years, series.Int, ColYear)).
		Mutate(series.New(values, series.Float, ColExportValueUSD)).
		Arrange(dataframe.Sort(ColYear), dataframe.Sort(ColReporter))
	if out.Err != nil {
		return dataframe.DataFrame{}, Stats{}, fmt.Errorf("clean rows: %w", out.Err)
	}
	return out, stats, nil
}

func emptyCleaned() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{}, series.Int, ColYear),
		series.New([]string{}, series.String, ColReporter),
		series.New([]float64{}, series.Float, ColExportValueUSD),
	)
}

// ExportRecords converts a cleaned frame into domain records.
func ExportRecords(df dataframe.DataFrame) []domain.ExportRecord {
	if df.Nrow() == 0 {
		return nil
	}
	years := df.Col(ColYear).Records()
	reporters := df.Col(ColReporter).Records()
	values := df.Col(ColExportValueUSD).Float()

	records := make([]domain.ExportRecord, len(years))
	for i := range years {
		y, _ := strconv.Atoi(years[i])
		records[i] = domain.ExportRecord{Year: y, Reporter: reporters[i], ExportValueUSD: values[i]}
	}
	return records
}

// WriteCleaned writes the cleaned table as Year,Reporter,ExportValueUSD.
func WriteCleaned(path string, df dataframe.DataFrame) error {
	if df.Nrow() > 0 {
		// gota prints float cells with a fixed six decimals.
		values := df.Col(ColExportValueUSD).Float()
		formatted := make([]string, len(values))
		for i, v := range values {
			formatted[i] = tabular.FormatFloat(v)
		}
		df = df.Mutate(series.New(formatted, series.String, ColExportValueUSD))
	}
	return tabular.WriteCSV(path, df, false)
}

// parseNumber coerces a cell to a finite float. Empty, NaN and infinite
// values are treated as missing.
func parseNumber(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseYear accepts integers and whole floats such as "2013.0".
func parseYear(cell string) (int, bool) {
	v, ok := parseNumber(cell)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
