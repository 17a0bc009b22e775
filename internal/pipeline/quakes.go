package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/taiwan-data-etl/internal/catalog"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
)

// QuakeSource decodes a catalog JSON file. With Lenient set, an unsupported
// or malformed document yields an empty table and a warning instead of an
// error.
type QuakeSource struct {
	Path    string
	Shape   catalog.Shape
	Lenient bool
	Logger  *slog.Logger
	stats   catalog.Stats
}

func (s *QuakeSource) Extract(_ context.Context) (domain.QuakeTable, error) {
	quakes, stats, err := catalog.DecodeFile(s.Path, s.Shape)
	if err != nil {
		if s.Lenient && (errors.Is(err, catalog.ErrUnsupportedShape) || errors.Is(err, catalog.ErrMalformedCatalog)) {
			s.Logger.Warn("catalog not recognised, continuing with no quakes", "path", s.Path, "error", err)
			return domain.QuakeTable{}, nil
		}
		return nil, err
	}
	s.stats = stats
	s.Logger.Info("catalog decoded", "path", s.Path, "shape", stats.Shape, "entries", stats.Rows)
	return quakes, nil
}

func (s *QuakeSource) Dropped() map[string]int {
	if s.stats.MissingFields == 0 {
		return nil
	}
	return map[string]int{"missing_fields": s.stats.MissingFields}
}

// QuakeTransformer restricts quakes to Bounds, sorts them by time and
// optionally fills place names through Geocoder.
type QuakeTransformer struct {
	Bounds   domain.Bounds
	Geocoder domain.Geocoder
	Logger   *slog.Logger
	dropped  int
}

func (t *QuakeTransformer) Transform(ctx context.Context, quakes domain.QuakeTable) (domain.QuakeTable, error) {
	out := catalog.Finalize(quakes, t.Bounds)
	t.dropped = len(quakes) - len(out)
	return domain.EnrichWithPlaces(ctx, out, t.Geocoder, t.Logger), nil
}

func (t *QuakeTransformer) Dropped() map[string]int {
	if t.dropped == 0 {
		return nil
	}
	return map[string]int{"out_of_bounds": t.dropped}
}

// QuakeCSVLoader writes the normalized table as CSV.
type QuakeCSVLoader struct {
	Path string
}

func (l QuakeCSVLoader) Load(_ context.Context, quakes domain.QuakeTable) error {
	return catalog.WriteCSV(l.Path, quakes)
}

func (QuakeCSVLoader) Kind() string { return "csv" }

// GeoJSONLoader writes the table as a GeoJSON FeatureCollection.
type GeoJSONLoader struct {
	Path string
}

func (l GeoJSONLoader) Load(_ context.Context, quakes domain.QuakeTable) error {
	return render.WriteGeoJSON(l.Path, quakes)
}

func (GeoJSONLoader) Kind() string { return "geojson" }

// MapLoader renders a Leaflet map and its GeoJSON sidecar.
type MapLoader struct {
	Path    string
	Options render.MapOptions
}

func (l MapLoader) Load(_ context.Context, quakes domain.QuakeTable) error {
	err := render.WriteMap(l.Path, quakes, l.Options)
	if errors.Is(err, render.ErrNoQuakesForYear) {
		return fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	return err
}

func (MapLoader) Kind() string { return "html" }

// QuakeJobOptions select the catalog and the processing of a quake job.
type QuakeJobOptions struct {
	CatalogPath string
	Shape       catalog.Shape
	Lenient     bool
	Bounds      domain.Bounds
	Geocoder    domain.Geocoder
	Logger      *slog.Logger
}

// NewQuakeJob builds a quake job that decodes, normalizes and hands the table
// to loaders.
func NewQuakeJob(name string, opts QuakeJobOptions, loaders ...Loader[domain.QuakeTable]) Job[domain.QuakeTable, domain.QuakeTable] {
	return Job[domain.QuakeTable, domain.QuakeTable]{
		Name: name,
		Extract: &QuakeSource{
			Path:    opts.CatalogPath,
			Shape:   opts.Shape,
			Lenient: opts.Lenient,
			Logger:  opts.Logger,
		},
		Transform: &QuakeTransformer{Bounds: opts.Bounds, Geocoder: opts.Geocoder, Logger: opts.Logger},
		Load:      loaders,
	}
}
