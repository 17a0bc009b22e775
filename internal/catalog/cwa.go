package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CWA open-data field names (product E-A0073-001 and relatives).
const (
	cwaOriginTime = "OriginTime"
	cwaLatitude   = "EpicenterLatitude"
	cwaLongitude  = "EpicenterLongitude"
	cwaDepth      = "FocalDepth"
	cwaMagnitude  = "LocalMagnitude"
)

// decodeCWA extracts cwaopendata.Dataset.Catalog.EarthquakeInfo. The entry
// list may also be a single object. Nested objects are flattened into dotted
// keys, so a field may appear as "EpicenterLatitude" or "Epicenter.EpicenterLatitude".
func decodeCWA(top map[string]json.RawMessage) ([]rawQuake, error) {
	root, err := decodeAny(top["cwaopendata"])
	if err != nil {
		return nil, fmt.Errorf("%w: cwaopendata: %v", ErrMalformedCatalog, err)
	}

	node := root
	for _, key := range []string{"Dataset", "Catalog", "EarthquakeInfo"} {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: cwaopendata has no %s section", ErrMalformedCatalog, key)
		}
		next, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("%w: cwaopendata has no %s section", ErrMalformedCatalog, key)
		}
		node = next
	}

	var items []any
	switch v := node.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("%w: EarthquakeInfo is neither a list nor an object", ErrMalformedCatalog)
	}

	rows := make([]rawQuake, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		flat := make(map[string]any)
		flatten("", obj, flat)

		var r rawQuake
		if v, ok := lookupField(flat, cwaOriginTime); ok {
			r.time, r.hasTime = parseTimestamp(normalizeTimestamp(cellString(v)))
		}
		if v, ok := lookupField(flat, cwaLatitude); ok {
			r.lat = parseNumber(v)
		}
		if v, ok := lookupField(flat, cwaLongitude); ok {
			r.lon = parseNumber(v)
		}
		if v, ok := lookupField(flat, cwaDepth); ok {
			r.depth = parseNumber(v)
		}
		if v, ok := lookupField(flat, cwaMagnitude); ok {
			r.mag = parseNumber(v)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// flatten copies nested objects into dst with dot-joined keys.
func flatten(prefix string, src map[string]any, dst map[string]any) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, dst)
			continue
		}
		dst[key] = v
	}
}

// lookupField finds name as a top-level key or, failing that, as the last
// segment of a flattened key. Among several nested matches the shortest key wins.
func lookupField(flat map[string]any, name string) (any, bool) {
	if v, ok := flat[name]; ok {
		return v, true
	}
	best := ""
	for k := range flat {
		if !strings.HasSuffix(k, "."+name) {
			continue
		}
		if best == "" || len(k) < len(best) || (len(k) == len(best) && k < best) {
			best = k
		}
	}
	if best == "" {
		return nil, false
	}
	return flat[best], true
}
