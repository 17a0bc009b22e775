package mapbox

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/observability"
	"github.com/patrickmn/go-cache"
)

// CachedGeocoder wraps a Geocoder with an in-memory expiring cache.
// Aftershock sequences repeat epicentres, so lookups are keyed on
// coordinates rounded to four decimals (about 11 m).
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *cache.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder whose
// entries expire after ttl.
func NewCachedGeocoder(inner domain.Geocoder, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.4f,%.4f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return v.(domain.GeocodingResult), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.SetDefault(key, result)
	}
	return result, nil
}

// Len reports the number of cached lookups, expired ones included until
// the janitor runs.
func (c *CachedGeocoder) Len() int {
	return c.cache.ItemCount()
}
