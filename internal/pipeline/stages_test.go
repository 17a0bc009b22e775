package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/taiwan-data-etl/internal/catalog"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/exports"
	"github.com/couchcryptid/taiwan-data-etl/internal/pipeline"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(name string) string {
	return filepath.Join("testdata", name)
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

type stubGeocoder struct{}

func (stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	return domain.GeocodingResult{PlaceName: "Hualien"}, nil
}

func TestCleanJob(t *testing.T) {
	out := filepath.Join(t.TempDir(), "processed", "clean.csv")

	summary, err := pipeline.Run(context.Background(), pipeline.NewCleanJob(fixture("comtrade.csv"), out), discardLogger(), newTestMetrics())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.RowsIn)
	assert.Equal(t, 4, summary.RowsOut)
	assert.Equal(t, 1, summary.Dropped[exports.DropNonPositive])
	assert.Equal(t, 1, summary.Dropped[exports.DropMissingValue])
	assert.Equal(t, "Year,Reporter,ExportValueUSD\n"+
		"2013,Japan,27400000000\n"+
		"2013,Rep. of Korea,57115000000\n"+
		"2014,Other Asia nes,84850000000\n"+
		"2014,Rep. of Korea,62995000000\n", readString(t, out))
}

func TestCleanJob_MissingInput(t *testing.T) {
	_, err := pipeline.Run(context.Background(), pipeline.NewCleanJob(fixture("nope.csv"), filepath.Join(t.TempDir(), "x.csv")), discardLogger(), newTestMetrics())
	require.Error(t, err)
}

func TestPlotJob(t *testing.T) {
	names, err := exports.LoadCountryMap(fixture("country_map.json"))
	require.NoError(t, err)
	processed := filepath.Join(t.TempDir(), "processed")
	outDir := filepath.Join(t.TempDir(), "output")
	var paths exports.ReportPaths

	job := pipeline.NewPlotJob(fixture("exports_by_country.csv"), names, exports.Options{YearMin: 2013, YearMax: 2014}, processed, outDir, &paths, discardLogger())
	summary, err := pipeline.Run(context.Background(), job, discardLogger(), newTestMetrics())
	require.NoError(t, err)

	assert.Equal(t, 10, summary.RowsIn)
	assert.Equal(t, filepath.Join(processed, "top10_export_markets_avg_2013_2014.csv"), paths.Average)

	avg := readString(t, paths.Average)
	assert.Equal(t, "\ufeffMarket,Avg_Exports_2013_2014_USD\n"+
		"China,21000000000\n"+
		"Hong Kong,15500000000\n"+
		"Singapore,4000000000\n"+
		"United States,3250000000\n", avg)

	trend := readString(t, paths.Trend)
	assert.NotContains(t, trend, "Others")
	assert.Contains(t, trend, "2014,Singapore,4000000000\n")

	png, err := os.ReadFile(filepath.Join(outDir, render.TrendPNGName))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.Contains(t, readString(t, filepath.Join(outDir, render.BarRaceHTMLName)), `"year":2014`)
}

func quakeOpts(catalogPath string, bounds domain.Bounds) pipeline.QuakeJobOptions {
	return pipeline.QuakeJobOptions{
		CatalogPath: catalogPath,
		Shape:       catalog.ShapeAuto,
		Bounds:      bounds,
		Logger:      discardLogger(),
	}
}

func TestNormalizeJob_GDMS(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "quakes.csv")
	geoPath := filepath.Join(dir, "quakes.geojson")

	job := pipeline.NewQuakeJob("quakes-normalize", quakeOpts(fixture("gdms.json"), domain.TaiwanBounds),
		pipeline.QuakeCSVLoader{Path: csvPath}, pipeline.GeoJSONLoader{Path: geoPath})
	summary, err := pipeline.Run(context.Background(), job, discardLogger(), newTestMetrics())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.RowsIn)
	assert.Equal(t, 3, summary.RowsOut)
	assert.Equal(t, map[string]int{"missing_fields": 1, "out_of_bounds": 1}, summary.Dropped)

	assert.Equal(t, "time,lat,lon,depth,mag,year\n"+
		"2022-12-31 23:59:59,22.5,120.9,80.2,5,2022\n"+
		"2023-09-01 01:02:03,26.8,121.5,,4.1,2023\n"+
		"2024-04-03 07:58:09,23.77,121.67,15.5,7.2,2024\n", readString(t, csvPath))
	assert.Equal(t, 3, strings.Count(readString(t, geoPath), `"type":"Feature"`))
}

func TestNormalizeJob_Idempotent(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "quakes.csv")
	job := pipeline.NewQuakeJob("quakes-normalize", quakeOpts(fixture("cwa.json"), domain.TaiwanBounds), pipeline.QuakeCSVLoader{Path: csvPath})

	_, err := pipeline.Run(context.Background(), job, discardLogger(), newTestMetrics())
	require.NoError(t, err)
	first := readString(t, csvPath)
	_, err = pipeline.Run(context.Background(), job, discardLogger(), newTestMetrics())
	require.NoError(t, err)

	assert.Equal(t, first, readString(t, csvPath))
}

func TestQuakeJob_UnsupportedShape(t *testing.T) {
	loader := pipeline.QuakeCSVLoader{Path: filepath.Join(t.TempDir(), "quakes.csv")}

	_, err := pipeline.Run(context.Background(), pipeline.NewQuakeJob("strict", quakeOpts(fixture("unsupported.json"), domain.TaiwanBounds), loader), discardLogger(), newTestMetrics())
	require.ErrorIs(t, err, catalog.ErrUnsupportedShape)

	opts := quakeOpts(fixture("unsupported.json"), domain.TaiwanBounds)
	opts.Lenient = true
	summary, err := pipeline.Run(context.Background(), pipeline.NewQuakeJob("lenient", opts, loader), discardLogger(), newTestMetrics())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.RowsOut)
	assert.Equal(t, "time,lat,lon,depth,mag,year\n", readString(t, loader.Path))
}

func TestMapJob_Geocoded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.html")
	opts := quakeOpts(fixture("cwa.json"), render.VariantClassic.Bounds())
	opts.Geocoder = stubGeocoder{}

	job := pipeline.NewQuakeJob("quakes-map", opts, pipeline.MapLoader{Path: path, Options: render.MapOptions{Variant: render.VariantClassic}})
	summary, err := pipeline.Run(context.Background(), job, discardLogger(), newTestMetrics())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RowsOut)
	assert.Contains(t, readString(t, path), "Place: Hualien")
	assert.Contains(t, readString(t, render.SidecarPath(path)), `"place":"Hualien"`)
}

func TestMapJob_SingleYearWithoutRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.html")
	job := pipeline.NewQuakeJob("quakes-map", quakeOpts(fixture("gdms.json"), domain.TaiwanBounds),
		pipeline.MapLoader{Path: path, Options: render.MapOptions{Variant: render.VariantSingleYear, Year: 1999}})

	_, err := pipeline.Run(context.Background(), job, discardLogger(), newTestMetrics())

	require.True(t, errors.Is(err, render.ErrNoQuakesForYear))
	require.ErrorIs(t, err, pipeline.ErrSkipped)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
