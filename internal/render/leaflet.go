package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
)

//go:embed templates/map.html.tmpl
var templateFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))

// ErrNoYear is returned when the single-year map is requested without a year.
var ErrNoYear = errors.New("single-year map needs a year")

// ErrNoQuakesForYear is returned when the chosen year has no quakes.
var ErrNoQuakesForYear = errors.New("no quakes for year")

// Map view defaults.
const (
	mapCenterLat = 23.7
	mapCenterLon = 121.0
	mapZoom      = 7
)

type tileLayer struct {
	url         string
	attribution string
}

var (
	osmTiles = tileLayer{
		url:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		attribution: "&copy; OpenStreetMap contributors",
	}
	positronTiles = tileLayer{
		url:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
	}
)

// MapOptions configure RenderMap.
type MapOptions struct {
	Variant Variant
	// Year is required by VariantSingleYear and ignored otherwise.
	Year  int
	Title string
}

type mapPage struct {
	Title           string
	CenterLat       float64
	CenterLon       float64
	Zoom            int
	TileURL         string
	TileAttribution string
	Features        json.RawMessage
	Years           []int
	Selected        string
}

// MapQuakes restricts quakes to what the variant draws: the variant's box
// and, for the single-year map, the chosen year.
func MapQuakes(quakes domain.QuakeTable, opts MapOptions) (domain.QuakeTable, error) {
	quakes = quakes.Within(opts.Variant.Bounds())
	if opts.Variant != VariantSingleYear {
		return quakes, nil
	}
	if opts.Year == 0 {
		return nil, ErrNoYear
	}
	yearly := quakes.ForYear(opts.Year)
	if len(yearly) == 0 {
		return nil, fmt.Errorf("%w %d", ErrNoQuakesForYear, opts.Year)
	}
	return yearly, nil
}

// RenderMap writes a self-contained Leaflet page for quakes.
func RenderMap(w io.Writer, quakes domain.QuakeTable, opts MapOptions) error {
	quakes, err := MapQuakes(quakes, opts)
	if err != nil {
		return err
	}

	features, err := styledFeatures(quakes, opts.Variant).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	page := mapPage{
		Title:     opts.Title,
		CenterLat: mapCenterLat,
		CenterLon: mapCenterLon,
		Zoom:      mapZoom,
		Features:  features,
	}
	if page.Title == "" {
		page.Title = defaultMapTitle(opts)
	}

	tiles := positronTiles
	if opts.Variant == VariantClassic {
		tiles = osmTiles
	}
	page.TileURL, page.TileAttribution = tiles.url, tiles.attribution

	if opts.Variant == VariantByYear {
		page.Years = quakes.Years()
		page.Selected = "all"
		if len(page.Years) > 0 {
			page.Selected = strconv.Itoa(page.Years[0])
		}
	}

	if err := mapTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

// WriteMap renders the map to path and writes the drawn quakes next to it as
// a .geojson sidecar. Both files are replaced.
func WriteMap(path string, quakes domain.QuakeTable, opts MapOptions) error {
	var buf bytes.Buffer
	if err := RenderMap(&buf, quakes, opts); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	drawn, err := MapQuakes(quakes, opts)
	if err != nil {
		return err
	}
	return WriteGeoJSON(SidecarPath(path), drawn)
}

func defaultMapTitle(opts MapOptions) string {
	switch opts.Variant {
	case VariantByYear:
		return "Taiwan Earthquakes by Year"
	case VariantSingleYear:
		return fmt.Sprintf("Taiwan Earthquakes %d", opts.Year)
	default:
		return "Taiwan Earthquakes"
	}
}
