package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// QuakeFeatures converts quakes to a GeoJSON FeatureCollection of points,
// one feature per quake in table order.
func QuakeFeatures(quakes domain.QuakeTable) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, q := range quakes {
		f := geojson.NewFeature(orb.Point{q.Lon, q.Lat})
		f.ID = q.ID()
		f.Properties["time"] = q.Time.Format(domain.TimeLayout)
		f.Properties["year"] = q.Year
		if q.Depth != nil {
			f.Properties["depth"] = *q.Depth
		}
		if q.Mag != nil {
			f.Properties["mag"] = *q.Mag
		}
		if q.Place != "" {
			f.Properties["place"] = q.Place
		}
		fc.Append(f)
	}
	return fc
}

// styledFeatures adds marker style and popup properties for a map variant.
func styledFeatures(quakes domain.QuakeTable, v Variant) *geojson.FeatureCollection {
	fc := QuakeFeatures(quakes)
	for i, f := range fc.Features {
		style := v.MarkerStyle(quakes[i])
		f.Properties["color"] = style.Color
		f.Properties["radius"] = style.Radius
		f.Properties["weight"] = style.Weight
		f.Properties["fillOpacity"] = style.FillOpacity
		f.Properties["popup"] = v.Popup(quakes[i])
	}
	return fc
}

// WriteGeoJSON writes quakes as a FeatureCollection, replacing path.
func WriteGeoJSON(path string, quakes domain.QuakeTable) error {
	data, err := QuakeFeatures(quakes).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SidecarPath returns path with its extension replaced by .geojson.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".geojson"
}
