package catalog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/tabular"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CSV columns of a normalized quake table.
var Columns = []string{"time", "lat", "lon", "depth", "mag", "year"}

// Frame lays quakes out as time,lat,lon,depth,mag,year. Missing depth and
// magnitude are empty cells.
func Frame(quakes domain.QuakeTable) dataframe.DataFrame {
	cols := make([][]string, len(Columns))
	for i := range cols {
		cols[i] = make([]string, len(quakes))
	}
	for i, q := range quakes {
		cols[0][i] = q.Time.Format(domain.TimeLayout)
		cols[1][i] = tabular.FormatFloat(q.Lat)
		cols[2][i] = tabular.FormatFloat(q.Lon)
		cols[3][i] = optionalCell(q.Depth)
		cols[4][i] = optionalCell(q.Mag)
		cols[5][i] = strconv.Itoa(q.Year)
	}
	s := make([]series.Series, len(Columns))
	for i, name := range Columns {
		s[i] = series.New(cols[i], series.String, name)
	}
	return dataframe.New(s...)
}

// WriteCSV writes the normalized table to path, replacing it.
func WriteCSV(path string, quakes domain.QuakeTable) error {
	return tabular.WriteCSV(path, Frame(quakes), false)
}

// ReadCSV loads a table written by WriteCSV.
func ReadCSV(path string) (domain.QuakeTable, error) {
	df, err := tabular.Load(path, nil)
	if err != nil {
		return nil, err
	}
	if missing := tabular.MissingColumns(df, Columns...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: quake table lacks %v", ErrMalformedCatalog, missing)
	}

	records := df.Select(Columns).Records()
	quakes := make(domain.QuakeTable, 0, len(records)-1)
	for i, row := range records[1:] {
		q, err := quakeFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		quakes = append(quakes, q)
	}
	return quakes, nil
}

func quakeFromRow(row []string) (domain.Quake, error) {
	t, err := time.Parse(domain.TimeLayout, row[0])
	if err != nil {
		return domain.Quake{}, fmt.Errorf("time: %w", err)
	}
	lat, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return domain.Quake{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return domain.Quake{}, fmt.Errorf("lon: %w", err)
	}
	year, err := strconv.Atoi(row[5])
	if err != nil {
		return domain.Quake{}, fmt.Errorf("year: %w", err)
	}
	return domain.Quake{
		Time:  t,
		Lat:   lat,
		Lon:   lon,
		Depth: parseNumber(row[3]),
		Mag:   parseNumber(row[4]),
		Year:  year,
	}, nil
}

func optionalCell(v *float64) string {
	if v == nil {
		return ""
	}
	return tabular.FormatFloat(*v)
}
