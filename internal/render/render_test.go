package render_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quake(year int, lat, lon float64, depth, mag *float64) domain.Quake {
	return domain.Quake{
		Time:  time.Date(year, 4, 3, 7, 58, 9, 0, time.UTC),
		Lat:   lat,
		Lon:   lon,
		Depth: depth,
		Mag:   mag,
		Year:  year,
	}
}

func testQuakes() domain.QuakeTable {
	return domain.QuakeTable{
		quake(2023, 23.5, 121.5, domain.Float(10), domain.Float(4.2)),
		quake(2023, 26.8, 122.0, domain.Float(120), domain.Float(5)),
		quake(2024, 23.77, 121.67, domain.Float(15.5), domain.Float(7.2)),
		quake(2024, 0, 0, nil, nil),
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range render.Variants() {
		got, err := render.ParseVariant(" " + strings.ToUpper(string(v)) + " ")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err := render.ParseVariant("heatmap")
	assert.ErrorIs(t, err, render.ErrUnknownVariant)
}

func TestVariant_Bounds(t *testing.T) {
	assert.Equal(t, domain.TaiwanNearshoreBounds, render.VariantClassic.Bounds())
	assert.Equal(t, domain.TaiwanBounds, render.VariantByYear.Bounds())
	assert.Equal(t, domain.TaiwanBounds, render.VariantSingleYear.Bounds())
}

func TestMarkerStyle(t *testing.T) {
	tests := []struct {
		name    string
		variant render.Variant
		depth   *float64
		mag     *float64
		color   string
		radius  float64
	}{
		{"classic missing values", render.VariantClassic, nil, nil, "red", 12},
		{"classic missing depth only", render.VariantClassic, nil, domain.Float(2), "red", 4},
		{"classic missing magnitude only", render.VariantClassic, domain.Float(10), nil, "blue", 12},
		{"classic zero depth and magnitude", render.VariantClassic, domain.Float(0), domain.Float(0), "blue", 2},
		{"classic shallow", render.VariantClassic, domain.Float(69.9), domain.Float(3), "blue", 6},
		{"classic at 70 km", render.VariantClassic, domain.Float(70), domain.Float(0.5), "red", 2},
		{"classic radius capped", render.VariantClassic, domain.Float(10), domain.Float(7.2), "blue", 12},
		{"by-year missing values", render.VariantByYear, nil, nil, "#ff7f0e", 3},
		{"by-year at 70 km", render.VariantByYear, domain.Float(70), domain.Float(4), "#ff7f0e", 7},
		{"by-year deep", render.VariantByYear, domain.Float(70.1), domain.Float(5.5), "#d62728", 8.5},
		{"single-year deep", render.VariantSingleYear, domain.Float(300), domain.Float(6), "#d62728", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := tt.variant.MarkerStyle(quake(2024, 23, 121, tt.depth, tt.mag))
			assert.Equal(t, tt.color, style.Color)
			assert.InDelta(t, tt.radius, style.Radius, 1e-9)
		})
	}
}

func TestPopup(t *testing.T) {
	q := quake(2024, 23.77, 121.67, domain.Float(15.5), nil)
	q.Place = "Hualien <County>"

	classic := render.VariantClassic.Popup(q)
	assert.Equal(t, "Time: 2024-04-03 07:58:09<br>Magnitude: -<br>Depth: 15.5 km<br>Location: (23.77, 121.67)<br>Place: Hualien &lt;County&gt;", classic)

	byYear := render.VariantByYear.Popup(q)
	assert.NotContains(t, byYear, "Location")
	assert.Contains(t, byYear, "Depth: 15.5 km")
}

func TestQuakeFeatures(t *testing.T) {
	quakes := testQuakes()[:1]
	quakes[0].Place = "Hualien"

	fc := render.QuakeFeatures(quakes)

	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, orb.Point{121.5, 23.5}, f.Geometry)
	assert.Equal(t, quakes[0].ID(), f.ID)
	assert.Equal(t, "2023-04-03 07:58:09", f.Properties["time"])
	assert.Equal(t, 2023, f.Properties["year"])
	assert.Equal(t, 4.2, f.Properties["mag"])
	assert.Equal(t, "Hualien", f.Properties["place"])
}

func readFeatures(t *testing.T, path string) *geojson.FeatureCollection {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	return fc
}

func TestWriteMap_Classic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "map.html")

	require.NoError(t, render.WriteMap(path, testQuakes(), render.MapOptions{Variant: render.VariantClassic}))

	page, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(page), "tile.openstreetmap.org")
	assert.Contains(t, string(page), "L.geoJSON(quakes")
	assert.NotContains(t, string(page), "yearSelect")

	// 26.8 N is outside the nearshore box and (0,0) is outside every box.
	fc := readFeatures(t, filepath.Join(filepath.Dir(path), "map.geojson"))
	require.Len(t, fc.Features, 2)
	for _, f := range fc.Features {
		p := f.Geometry.(orb.Point)
		assert.True(t, domain.TaiwanNearshoreBounds.Contains(p.Lat(), p.Lon()))
	}
}

func TestWriteMap_ByYear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")

	require.NoError(t, render.WriteMap(path, testQuakes(), render.MapOptions{Variant: render.VariantByYear}))

	page, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "basemaps.cartocdn.com/light_all")
	assert.Contains(t, html, `<option value="all">All</option>`)
	assert.Contains(t, html, `<option value="2023">2023</option>`)
	assert.Contains(t, html, `<option value="2024">2024</option>`)
	assert.Contains(t, html, `sel.value = "2023"`)
	assert.Contains(t, html, "L.control.layers")

	fc := readFeatures(t, render.SidecarPath(path))
	assert.Len(t, fc.Features, 3)
}

func TestWriteMap_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	opts := render.MapOptions{Variant: render.VariantByYear}

	require.NoError(t, render.WriteMap(path, testQuakes(), opts))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	firstGeo, err := os.ReadFile(render.SidecarPath(path))
	require.NoError(t, err)

	require.NoError(t, render.WriteMap(path, testQuakes(), opts))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	secondGeo, err := os.ReadFile(render.SidecarPath(path))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstGeo, secondGeo)
}

func TestRenderMap_SingleYear(t *testing.T) {
	var buf bytes.Buffer
	err := render.RenderMap(&buf, testQuakes(), render.MapOptions{Variant: render.VariantSingleYear})
	require.ErrorIs(t, err, render.ErrNoYear)

	err = render.RenderMap(&buf, testQuakes(), render.MapOptions{Variant: render.VariantSingleYear, Year: 2019})
	require.ErrorIs(t, err, render.ErrNoQuakesForYear)

	quakes, err := render.MapQuakes(testQuakes(), render.MapOptions{Variant: render.VariantSingleYear, Year: 2024})
	require.NoError(t, err)
	require.Len(t, quakes, 1)
	assert.Equal(t, 23.77, quakes[0].Lat)

	buf.Reset()
	require.NoError(t, render.RenderMap(&buf, testQuakes(), render.MapOptions{Variant: render.VariantSingleYear, Year: 2024}))
	assert.Contains(t, buf.String(), "<title>Taiwan Earthquakes 2024</title>")
	assert.NotContains(t, buf.String(), "yearSelect")
}

func TestRenderMap_EmbedsEscapedFeatures(t *testing.T) {
	quakes := testQuakes()[:1]
	quakes[0].Place = "</script><b>"

	var buf bytes.Buffer
	require.NoError(t, render.RenderMap(&buf, quakes, render.MapOptions{Variant: render.VariantByYear}))

	assert.Equal(t, 1, strings.Count(buf.String(), "</script>\n</body>"))
	assert.NotContains(t, buf.String(), "</script><b>")
}

func testReport() domain.MarketReport {
	return domain.MarketReport{
		YearMin: 2013,
		YearMax: 2014,
		Top: []domain.MarketAverage{
			{Market: "China", AvgUSD: 40e9},
			{Market: "Japan", AvgUSD: 5e9},
		},
		Trend: []domain.MarketExport{
			{Year: 2013, Market: "China", ExportUSD: 30e9},
			{Year: 2013, Market: "Japan", ExportUSD: 4e9},
			{Year: 2014, Market: "China", ExportUSD: 50e9},
			{Year: 2014, Market: "Japan", ExportUSD: 6e9},
		},
	}
}

func TestWriteBarRace(t *testing.T) {
	path := filepath.Join(t.TempDir(), render.BarRaceHTMLName)

	require.NoError(t, render.WriteBarRace(path, testReport()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	html := string(first)
	assert.Contains(t, html, `id="bar_race"`)
	assert.Contains(t, html, "echarts.min.js")
	assert.Contains(t, html, `{"year":2013,"markets":["Japan","China"],"values":[4,30]}`)
	assert.Contains(t, html, `{"year":2014,"markets":["Japan","China"],"values":[6,50]}`)
	assert.Contains(t, html, "var chart = goecharts_bar_race;")
	assert.NotContains(t, html, "%MY_ECHARTS%")
	assert.Contains(t, html, `"Play"`)
	assert.Contains(t, html, `"Pause"`)
	assert.Contains(t, html, "Top 10 Markets (2013-2014)")

	require.NoError(t, render.WriteBarRace(path, testReport()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteBarRace_EmptyReport(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, render.RenderBarRace(&buf, domain.MarketReport{YearMin: 2013, YearMax: 2014}))
	assert.Contains(t, buf.String(), "var frames = [];")
}

func TestWriteTrendPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), render.TrendPNGName)

	require.NoError(t, render.WriteTrendPNG(path, testReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
}

func TestTrendTitle(t *testing.T) {
	assert.Equal(t, "Taiwan IC (HS 8542) Exports - Top 10 Markets Trend (2013-2014)", render.TrendTitle(testReport()))
}

func TestWriteGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quakes.geojson")

	require.NoError(t, render.WriteGeoJSON(path, testQuakes()[:2]))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, testQuakes()[0].ID(), doc.Features[0].ID)
}
