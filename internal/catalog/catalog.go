// Package catalog normalizes Taiwan earthquake catalog JSON into
// [domain.QuakeTable] rows.
//
// Two shapes are recognised. The Central Weather Administration open-data
// product nests its entries under cwaopendata.Dataset.Catalog.EarthquakeInfo
// with fixed field names. GDMS exports are a {header, body} table whose body
// rows may be arrays aligned with the header or objects, and whose column
// names vary between English and Chinese. Column names are matched against
// alias lists case-insensitively and timestamps are inferred from whichever
// date/time columns are present.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
)

// Shape identifies a catalog JSON layout.
type Shape string

const (
	ShapeAuto Shape = "auto"
	ShapeCWA  Shape = "cwa"
	ShapeGDMS Shape = "gdms"
)

var (
	// ErrUnsupportedShape is returned when the document matches neither layout.
	ErrUnsupportedShape = errors.New("unsupported catalog shape")

	// ErrMalformedCatalog is returned when the layout is recognised but a
	// required section or column is missing.
	ErrMalformedCatalog = errors.New("malformed catalog")
)

// ParseShape validates a shape name from the command line.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case "", ShapeAuto:
		return ShapeAuto, nil
	case ShapeCWA, ShapeGDMS:
		return Shape(s), nil
	default:
		return "", fmt.Errorf("unknown catalog shape %q (want auto, cwa or gdms)", s)
	}
}

// Stats describes one decode.
type Stats struct {
	Shape         Shape
	Rows          int // entries in the source document
	MissingFields int // entries dropped for lacking time, latitude or longitude
}

// Decode reads a catalog document and returns every entry that has a time,
// latitude and longitude. No bounding box is applied; see [Finalize].
// When shape is ShapeAuto the layout is detected from the top-level keys.
func Decode(r io.Reader, shape Shape) (domain.QuakeTable, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read catalog: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		if isJSONObject(data) {
			return nil, Stats{}, fmt.Errorf("parse catalog: %w", err)
		}
		return nil, Stats{}, fmt.Errorf("%w: top level is not a JSON object", ErrUnsupportedShape)
	}

	if shape == "" || shape == ShapeAuto {
		shape = detectShape(top)
	}

	var rows []rawQuake
	switch shape {
	case ShapeCWA:
		rows, err = decodeCWA(top)
	case ShapeGDMS:
		rows, err = decodeGDMS(top)
	default:
		return nil, Stats{}, fmt.Errorf("%w: expected cwaopendata or header/body keys", ErrUnsupportedShape)
	}
	if err != nil {
		return nil, Stats{Shape: shape}, err
	}

	stats := Stats{Shape: shape, Rows: len(rows)}
	table := make(domain.QuakeTable, 0, len(rows))
	for _, r := range rows {
		q, ok := r.quake()
		if !ok {
			stats.MissingFields++
			continue
		}
		table = append(table, q)
	}
	return table, stats, nil
}

// DecodeFile is Decode over the contents of path.
func DecodeFile(path string, shape Shape) (domain.QuakeTable, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f, shape)
}

// Finalize restricts quakes to the bounding box and orders them by time.
// The input is not modified.
func Finalize(quakes domain.QuakeTable, bounds domain.Bounds) domain.QuakeTable {
	out := quakes.Within(bounds)
	out.SortByTime()
	return out
}

func detectShape(top map[string]json.RawMessage) Shape {
	if _, ok := top["cwaopendata"]; ok {
		return ShapeCWA
	}
	_, hasHeader := top["header"]
	_, hasBody := top["body"]
	if hasHeader && hasBody {
		return ShapeGDMS
	}
	return ""
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decodeAny unmarshals raw JSON keeping numbers as json.Number so integer
// dates like 20240403 keep their digits.
func decodeAny(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
