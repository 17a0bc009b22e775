package exports

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/tabular"
	"github.com/go-gota/gota/dataframe"
)

// Columns of the country-level export table.
const (
	ColCountry     = "Country"
	ColHSCode      = "HS Code"
	ColDescription = "Description"
	ColExportValue = "Export Value (USD)"
)

// ICPrefix is the HS heading for electronic integrated circuits.
const ICPrefix = "8542"

// TopN is the number of markets kept in the report.
const TopN = 10

// Options control the top-market report.
type Options struct {
	YearMin       int
	YearMax       int
	IncludeOthers bool
}

// DefaultOptions covers 2013 to 2025 and excludes the Others bucket.
func DefaultOptions() Options {
	return Options{YearMin: 2013, YearMax: 2025}
}

// Validate checks the year range.
func (o Options) Validate() error {
	if o.YearMin > o.YearMax {
		return fmt.Errorf("year-min %d is after year-max %d", o.YearMin, o.YearMax)
	}
	return nil
}

type yearMarket struct {
	year   int
	market string
}

// PrepareTopMarkets aggregates IC exports per year and market, ranks markets
// by their mean yearly exports and returns the ten largest together with
// their trend rows sorted by (Year, Market).
func PrepareTopMarkets(raw dataframe.DataFrame, names CountryMap, opts Options) (domain.MarketReport, Stats, error) {
	if err := opts.Validate(); err != nil {
		return domain.MarketReport{}, Stats{}, err
	}
	if raw.Err != nil {
		return domain.MarketReport{}, Stats{}, fmt.Errorf("read export table: %w", raw.Err)
	}
	if missing := tabular.MissingColumns(raw, ColYear, ColCountry, ColHSCode, ColDescription, ColExportValue); len(missing) > 0 {
		return domain.MarketReport{}, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	years := raw.Col(ColYear).Records()
	countries := raw.Col(ColCountry).Records()
	codes := raw.Col(ColHSCode).Records()
	values := raw.Col(ColExportValue).Records()

	stats := newStats(raw.Nrow())
	totals := make(map[yearMarket]float64)
	for i := range years {
		year, okYear := parseYear(years[i])
		value, okValue := parseNumber(values[i])
		if !okYear || !okValue {
			stats.drop(DropMissingValue)
			continue
		}
		if year < opts.YearMin || year > opts.YearMax {
			stats.drop(DropOutOfRange)
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(codes[i]), ICPrefix) {
			stats.drop(DropNotIC)
			continue
		}
		totals[yearMarket{year: year, market: names.Market(countries[i])}] += value
		stats.Kept++
	}

	top := rankMarkets(totals, opts.IncludeOthers)
	inTop := make(map[string]bool, len(top))
	for _, m := range top {
		inTop[m.Market] = true
	}

	var trend []domain.MarketExport
	for k, v := range totals {
		if inTop[k.market] {
			trend = append(trend, domain.MarketExport{Year: k.year, Market: k.market, ExportUSD: v})
		}
	}
	slices.SortFunc(trend, func(a, b domain.MarketExport) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Market, b.Market))
	})

	return domain.MarketReport{
		YearMin: opts.YearMin,
		YearMax: opts.YearMax,
		Top:     top,
		Trend:   trend,
	}, stats, nil
}

// rankMarkets averages each market over the years it appears in and returns
// the TopN largest, ties broken by name.
func rankMarkets(totals map[yearMarket]float64, includeOthers bool) []domain.MarketAverage {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for k, v := range totals {
		sums[k.market] += v
		counts[k.market]++
	}

	avgs := make([]domain.MarketAverage, 0, len(sums))
	for market, sum := range sums {
		if !includeOthers && strings.EqualFold(market, OthersMarket) {
			continue
		}
		avgs = append(avgs, domain.MarketAverage{Market: market, AvgUSD: sum / float64(counts[market])})
	}
	slices.SortFunc(avgs, func(a, b domain.MarketAverage) int {
		return cmp.Or(cmp.Compare(b.AvgUSD, a.AvgUSD), cmp.Compare(a.Market, b.Market))
	})
	if len(avgs) > TopN {
		avgs = avgs[:TopN]
	}
	return avgs
}
