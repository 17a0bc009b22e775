package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"golang.org/x/text/width"
)

var (
	// fullDateTimeRe matches a complete timestamp such as "2024-04-03 07:58:09"
	// or "2024/04/03T07:58:09".
	fullDateTimeRe = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}[ T]\d{2}:\d{2}:\d{2}$`)

	compactDateRe  = regexp.MustCompile(`^\d{8}$`)                // YYYYMMDD
	compactTimeRe  = regexp.MustCompile(`^\d{6}$`)                // HHMMSS
	colonTimeRe    = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)    // HH:MM:SS
	trailingHMSRe  = regexp.MustCompile(`(\d{2})(\d{2})(\d{2})$`) // bare HHMMSS suffix
	trailingDigits = regexp.MustCompile(`\d{6}$`)
)

// timestampLayouts are tried in order after normalization. Fractional
// seconds are accepted by time.Parse without being spelled out.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
	"20060102 15:04:05",
	"20060102",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
}

// cellString renders a decoded JSON value the way it appeared in the source.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// narrow folds full-width digits and punctuation, common in Chinese
// catalogs, to their ASCII forms.
func narrow(s string) string {
	return width.Narrow.String(strings.TrimSpace(s))
}

// parseNumber coerces a cell to a finite float. Anything else is missing.
func parseNumber(v any) *float64 {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = narrow(x)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// normalizeTimestamp rewrites common catalog spellings into
// "YYYY-MM-DD HH:MM:SS": a T separator becomes a space, slashes become
// dashes and a bare trailing HHMMSS gains colons.
func normalizeTimestamp(s string) string {
	s = narrow(s)
	s = strings.ReplaceAll(s, "T", " ")
	s = strings.ReplaceAll(s, "/", "-")
	if trailingDigits.MatchString(s) && !strings.Contains(lastN(s, 8), ":") {
		s = trailingHMSRe.ReplaceAllString(s, "$1:$2:$3")
	}
	return s
}

// parseTimestamp parses a normalized timestamp. Zone offsets are dropped and
// the wall-clock reading is kept, in UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
	}
	return time.Time{}, false
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// rawQuake is one catalog entry after column mapping, before validation.
type rawQuake struct {
	time     time.Time
	hasTime  bool
	lat, lon *float64
	depth    *float64
	mag      *float64
}

// quake converts the entry into a domain row. Entries without a time,
// latitude or longitude are rejected.
func (r rawQuake) quake() (domain.Quake, bool) {
	if !r.hasTime || r.lat == nil || r.lon == nil {
		return domain.Quake{}, false
	}
	return domain.Quake{
		Time:  r.time,
		Lat:   *r.lat,
		Lon:   *r.lon,
		Depth: r.depth,
		Mag:   r.mag,
		Year:  r.time.Year(),
	}, true
}
