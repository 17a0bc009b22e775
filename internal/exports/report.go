package exports

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/tabular"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Report table columns.
const (
	ColMarket    = "Market"
	ColExportUSD = "Export_USD"
)

// AverageColumn names the mean-exports column for a year range.
func AverageColumn(yearMin, yearMax int) string {
	return fmt.Sprintf("Avg_Exports_%d_%d_USD", yearMin, yearMax)
}

// AverageFileName is the file name of the top-market average table.
func AverageFileName(yearMin, yearMax int) string {
	return fmt.Sprintf("top10_export_markets_avg_%d_%d.csv", yearMin, yearMax)
}

// TrendFileName is the file name of the top-market trend table.
func TrendFileName(yearMin, yearMax int) string {
	return fmt.Sprintf("top10_export_markets_trend_%d_%d.csv", yearMin, yearMax)
}

// AverageFrame lays out the ranked markets as Market,Avg_Exports_<min>_<max>_USD.
func AverageFrame(r domain.MarketReport) dataframe.DataFrame {
	markets := make([]string, len(r.Top))
	avgs := make([]string, len(r.Top))
	for i, m := range r.Top {
		markets[i] = m.Market
		avgs[i] = tabular.FormatFloat(m.AvgUSD)
	}
	return dataframe.New(
		series.New(markets, series.String, ColMarket),
		series.New(avgs, series.String, AverageColumn(r.YearMin, r.YearMax)),
	)
}

// TrendFrame lays out the trend rows as Year,Market,Export_USD.
func TrendFrame(r domain.MarketReport) dataframe.DataFrame {
	years := make([]string, len(r.Trend))
	markets := make([]string, len(r.Trend))
	values := make([]string, len(r.Trend))
	for i, row := range r.Trend {
		years[i] = strconv.Itoa(row.Year)
		markets[i] = row.Market
		values[i] = tabular.FormatFloat(row.ExportUSD)
	}
	return dataframe.New(
		series.New(years, series.String, ColYear),
		series.New(markets, series.String, ColMarket),
		series.New(values, series.String, ColExportUSD),
	)
}

// ReportPaths are the files written by WriteReport.
type ReportPaths struct {
	Average string
	Trend   string
}

// WriteReport writes the average and trend tables into dir, each with a
// UTF-8 byte order mark.
func WriteReport(dir string, r domain.MarketReport) (ReportPaths, error) {
	paths := ReportPaths{
		Average: filepath.Join(dir, AverageFileName(r.YearMin, r.YearMax)),
		Trend:   filepath.Join(dir, TrendFileName(r.YearMin, r.YearMax)),
	}
	if err := tabular.WriteCSV(paths.Average, AverageFrame(r), true); err != nil {
		return ReportPaths{}, fmt.Errorf("write average table: %w", err)
	}
	if err := tabular.WriteCSV(paths.Trend, TrendFrame(r), true); err != nil {
		return ReportPaths{}, fmt.Errorf("write trend table: %w", err)
	}
	return paths, nil
}
