// Package render draws the export charts and the earthquake maps.
package render

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
)

// Variant selects one of the earthquake map layouts.
type Variant string

const (
	// VariantClassic is the single-layer nearshore map.
	VariantClassic Variant = "classic"
	// VariantByYear groups markers into one toggleable layer per year.
	VariantByYear Variant = "by-year"
	// VariantSingleYear draws one chosen year.
	VariantSingleYear Variant = "single-year"
)

// ErrUnknownVariant is returned by ParseVariant.
var ErrUnknownVariant = errors.New("unknown map variant")

// DeepQuakeKm is the depth separating shallow and deep markers.
const DeepQuakeKm = 70

// Marker colours.
const (
	colorShallowClassic = "blue"
	colorDeepClassic    = "red"
	colorShallow        = "#ff7f0e"
	colorDeep           = "#d62728"
)

// Variants lists the supported map variants.
func Variants() []Variant {
	return []Variant{VariantClassic, VariantByYear, VariantSingleYear}
}

// ParseVariant maps a flag value to a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VariantClassic, VariantByYear, VariantSingleYear:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Bounds is the box quakes must fall in to be drawn.
func (v Variant) Bounds() domain.Bounds {
	if v == VariantClassic {
		return domain.TaiwanNearshoreBounds
	}
	return domain.TaiwanBounds
}

// DefaultOutput is the output file used when none is given.
func (v Variant) DefaultOutput() string {
	switch v {
	case VariantByYear:
		return "release/index.html"
	case VariantSingleYear:
		return "output/taiwan_earthquake_map_year.html"
	default:
		return "output/taiwan_earthquake_map.html"
	}
}

const (
	classicMinRadius float64 = 2
	classicMaxRadius float64 = 12
)

// Style is the look of one circle marker.
type Style struct {
	Color       string
	Radius      float64
	Weight      float64
	FillOpacity float64
}

// MarkerStyle returns the marker look of q in this variant.
func (v Variant) MarkerStyle(q domain.Quake) Style {
	if v == VariantClassic {
		// Missing depth draws deep and missing magnitude draws the largest marker.
		color := colorDeepClassic
		if q.Depth != nil && *q.Depth < DeepQuakeKm {
			color = colorShallowClassic
		}
		radius := classicMaxRadius
		if q.Mag != nil {
			radius = min(max(*q.Mag*2, classicMinRadius), classicMaxRadius)
		}
		return Style{Color: color, Radius: radius, Weight: 3, FillOpacity: 0.6}
	}

	color := colorShallow
	if q.Depth != nil && *q.Depth > DeepQuakeKm {
		color = colorDeep
	}
	return Style{Color: color, Radius: 3 + valueOrZero(q.Mag), Weight: 1, FillOpacity: 0.65}
}

// Popup returns the popup HTML of q in this variant.
func (v Variant) Popup(q domain.Quake) string {
	lines := []string{
		"Time: " + q.Time.Format(domain.TimeLayout),
		"Magnitude: " + formatOptional(q.Mag, "%.1f"),
		"Depth: " + formatOptional(q.Depth, "%.1f km"),
	}
	if v == VariantClassic {
		lines = append(lines, fmt.Sprintf("Location: (%g, %g)", q.Lat, q.Lon))
	}
	if q.Place != "" {
		lines = append(lines, "Place: "+html.EscapeString(q.Place))
	}
	return strings.Join(lines, "<br>")
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
