package domain

import "slices"

// ExportRecord is one cleaned UN Comtrade row.
type ExportRecord struct {
	Year           int
	Reporter       string
	ExportValueUSD float64
}

// MarketExport is the total IC export value to one market in one year.
type MarketExport struct {
	Year      int
	Market    string
	ExportUSD float64
}

// MarketAverage is a market's mean yearly export value over the years it appears.
type MarketAverage struct {
	Market string
	AvgUSD float64
}

// MarketReport holds the top export markets and their yearly trend rows.
type MarketReport struct {
	YearMin int
	YearMax int
	Top     []MarketAverage
	Trend   []MarketExport
}

// Len reports the number of trend rows.
func (r MarketReport) Len() int { return len(r.Trend) }

// Markets returns the market names of the top table in rank order.
func (r MarketReport) Markets() []string {
	names := make([]string, len(r.Top))
	for i, m := range r.Top {
		names[i] = m.Market
	}
	return names
}

// Years returns the distinct trend years in ascending order.
func (r MarketReport) Years() []int {
	var years []int
	seen := make(map[int]bool)
	for _, row := range r.Trend {
		if !seen[row.Year] {
			seen[row.Year] = true
			years = append(years, row.Year)
		}
	}
	slices.Sort(years)
	return years
}

// TrendFor returns the trend rows for a single year, in table order.
func (r MarketReport) TrendFor(year int) []MarketExport {
	var rows []MarketExport
	for _, row := range r.Trend {
		if row.Year == year {
			rows = append(rows, row)
		}
	}
	return rows
}
