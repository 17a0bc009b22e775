package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"time"
)

// TimeLayout is the canonical timestamp format used in outputs and popups.
const TimeLayout = "2006-01-02 15:04:05"

// Bounds is an inclusive latitude/longitude rectangle.
type Bounds struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

var (
	// TaiwanBounds covers Taiwan, Penghu and the surrounding seas.
	TaiwanBounds = Bounds{MinLat: 20, MaxLat: 27, MinLon: 118, MaxLon: 124}

	// TaiwanNearshoreBounds is the tighter box used by the classic map.
	TaiwanNearshoreBounds = Bounds{MinLat: 20, MaxLat: 26.5, MinLon: 118, MaxLon: 123.8}
)

// Contains reports whether the point lies inside the box. NaN never matches.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Quake is one normalized earthquake catalog entry.
type Quake struct {
	Time  time.Time `json:"time"`
	Lat   float64   `json:"lat"`
	Lon   float64   `json:"lon"`
	Depth *float64  `json:"depth,omitempty"` // km
	Mag   *float64  `json:"mag,omitempty"`
	Year  int       `json:"year"`
	Place string    `json:"place,omitempty"` // reverse-geocoded, optional
}

// ID produces a deterministic identifier from the quake's key fields.
func (q Quake) ID() string {
	mag := "-"
	if q.Mag != nil {
		mag = fmt.Sprintf("%g", *q.Mag)
	}
	input := fmt.Sprintf("%s|%.4f|%.4f|%s", q.Time.Format(TimeLayout), q.Lat, q.Lon, mag)
	hash := sha256.Sum256([]byte(input))
	return "eq-" + hex.EncodeToString(hash[:8])
}

// QuakeTable is an ordered set of quakes.
type QuakeTable []Quake

// Len reports the number of rows.
func (t QuakeTable) Len() int { return len(t) }

// Years returns the distinct years in ascending order.
func (t QuakeTable) Years() []int {
	var years []int
	seen := make(map[int]bool)
	for _, q := range t {
		if !seen[q.Year] {
			seen[q.Year] = true
			years = append(years, q.Year)
		}
	}
	slices.Sort(years)
	return years
}

// ForYear returns the rows whose year equals y, preserving order.
func (t QuakeTable) ForYear(y int) QuakeTable {
	var out QuakeTable
	for _, q := range t {
		if q.Year == y {
			out = append(out, q)
		}
	}
	return out
}

// Within returns the rows inside b, preserving order.
func (t QuakeTable) Within(b Bounds) QuakeTable {
	out := make(QuakeTable, 0, len(t))
	for _, q := range t {
		if b.Contains(q.Lat, q.Lon) {
			out = append(out, q)
		}
	}
	return out
}

// SortByTime orders the table by origin time. Equal times keep their input order.
func (t QuakeTable) SortByTime() {
	slices.SortStableFunc(t, func(a, b Quake) int {
		return a.Time.Compare(b.Time)
	})
}

// Float returns a pointer to v, for optional depth and magnitude fields.
func Float(v float64) *float64 { return &v }
