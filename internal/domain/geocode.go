package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlaces fills Place for each quake by reverse geocoding its
// epicentre. A nil geocoder returns the table unchanged. Lookup failures are
// logged and leave Place empty; they never fail the run.
func EnrichWithPlaces(ctx context.Context, quakes QuakeTable, geocoder Geocoder, logger *slog.Logger) QuakeTable {
	if geocoder == nil {
		return quakes
	}

	out := make(QuakeTable, len(quakes))
	failed := 0
	for i, q := range quakes {
		out[i] = q
		if ctx.Err() != nil {
			continue
		}
		result, err := geocoder.ReverseGeocode(ctx, q.Lat, q.Lon)
		if err != nil {
			failed++
			logger.Warn("reverse geocoding failed",
				"quake_id", q.ID(),
				"lat", q.Lat,
				"lon", q.Lon,
				"error", err,
			)
			continue
		}
		out[i].Place = placeLabel(result)
	}

	if failed > 0 {
		logger.Warn("some epicentres were not geocoded", "failed", failed, "total", len(quakes))
	}
	return out
}

func placeLabel(r GeocodingResult) string {
	if r.PlaceName != "" {
		return r.PlaceName
	}
	return r.FormattedAddress
}
