// Command validate checks the outputs of a twdata run against the
// invariants the jobs promise: the cleaned export table keeps only positive
// values sorted by (Year, Reporter) and drawn from the raw table, and the
// normalized quake table stays inside its bounding box, sorted by time, with
// a GeoJSON sidecar describing the same rows.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-exports data/raw/ic_exports_comparison_uncomtrade_2013_2024.csv \
//	  -cleaned data/processed/ic_exports_comparison_clean_2013_2024.csv \
//	  -quakes data/processed/taiwan_earthquakes.csv \
//	  -box taiwan
package main

import (
	"cmp"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/catalog"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/exports"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/couchcryptid/taiwan-data-etl/internal/tabular"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawExports := flag.String("raw-exports", "", "raw Comtrade table the cleaned file came from (optional)")
	cleaned := flag.String("cleaned", "", "cleaned export CSV")
	quakes := flag.String("quakes", "", "normalized quake CSV")
	box := flag.String("box", "taiwan", "bounding box the quakes were restricted to: taiwan or nearshore")
	flag.Parse()

	if *cleaned == "" && *quakes == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawExports, *cleaned, *quakes, *box); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, cleanedPath, quakesPath, box string) int {
	fmt.Println("=== twdata Output Validation ===")
	fmt.Println()

	var phases []*phase
	if cleanedPath != "" {
		phases = append(phases, validateCleanedExports(cleanedPath, rawPath))
	}
	if quakesPath != "" {
		bounds := domain.TaiwanBounds
		if box == "nearshore" {
			bounds = domain.TaiwanNearshoreBounds
		}
		table, p := validateQuakeTable(quakesPath, bounds)
		phases = append(phases, p)
		if table != nil {
			phases = append(phases, validateSidecar(render.SidecarPath(quakesPath), table))
		}
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Exports ──

type exportKey struct {
	year     string
	reporter string
}

func validateCleanedExports(cleanedPath, rawPath string) *phase {
	p := &phase{name: "Cleaned exports: positive, sorted, subset"}

	records, err := tabular.ReadRecords(cleanedPath)
	if err != nil {
		p.errorf("read %s: %v", cleanedPath, err)
		return p
	}
	want := []string{exports.ColYear, exports.ColReporter, exports.ColExportValueUSD}
	if !slices.Equal(records[0], want) {
		p.errorf("header %v, want %v", records[0], want)
		return p
	}

	var raw map[exportKey][]float64
	if rawPath != "" {
		if raw, err = loadRawExports(rawPath); err != nil {
			p.errorf("read %s: %v", rawPath, err)
			return p
		}
	}

	rows := records[1:]
	for i, row := range rows {
		line := i + 2
		v, err := strconv.ParseFloat(row[2], 64)
		if err != nil || v <= 0 {
			p.errorf("line %d: value %q is not positive", line, row[2])
		}
		if i > 0 && compareExportRows(rows[i-1], row) > 0 {
			p.errorf("line %d: %v sorts before previous row %v", line, row[:2], rows[i-1][:2])
		}
		if raw != nil && !slices.ContainsFunc(raw[exportKey{row[0], row[1]}], func(rv float64) bool {
			return math.Abs(rv-v) < 1e-6
		}) {
			p.errorf("line %d: %v with value %s not found in the raw table", line, row[:2], row[2])
		}
	}
	fmt.Printf("Cleaned exports: %d rows\n", len(rows))
	return p
}

func compareExportRows(a, b []string) int {
	ya, _ := strconv.Atoi(a[0])
	yb, _ := strconv.Atoi(b[0])
	return cmp.Or(cmp.Compare(ya, yb), strings.Compare(a[1], b[1]))
}

func loadRawExports(path string) (map[exportKey][]float64, error) {
	records, err := tabular.ReadRecords(path)
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range records[0] {
		idx[h] = i
	}
	for _, col := range []string{"Period", "Reporter", "Trade Value (US$)"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("raw table lacks %q", col)
		}
	}
	out := map[exportKey][]float64{}
	for _, row := range records[1:] {
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[idx["Trade Value (US$)"]]), ",", ""), 64)
		if err != nil {
			continue
		}
		year := strings.TrimSpace(row[idx["Period"]])
		if f, err := strconv.ParseFloat(year, 64); err == nil {
			year = strconv.Itoa(int(f))
		}
		k := exportKey{year: year, reporter: row[idx["Reporter"]]}
		out[k] = append(out[k], v)
	}
	return out, nil
}

// ── Quakes ──

func validateQuakeTable(path string, bounds domain.Bounds) (domain.QuakeTable, *phase) {
	p := &phase{name: "Quake table: in bounds, sorted, year"}

	table, err := catalog.ReadCSV(path)
	if err != nil {
		p.errorf("read %s: %v", path, err)
		return nil, p
	}
	for i, q := range table {
		line := i + 2
		if !bounds.Contains(q.Lat, q.Lon) {
			p.errorf("line %d: (%g, %g) outside %+v", line, q.Lat, q.Lon, bounds)
		}
		if q.Year != q.Time.Year() {
			p.errorf("line %d: year %d does not match time %s", line, q.Year, q.Time.Format(domain.TimeLayout))
		}
		if i > 0 && q.Time.Before(table[i-1].Time) {
			p.errorf("line %d: %s is earlier than the previous row", line, q.Time.Format(domain.TimeLayout))
		}
	}
	fmt.Printf("Quakes: %d rows, years %v\n", len(table), table.Years())
	return table, p
}

func validateSidecar(path string, table domain.QuakeTable) *phase {
	p := &phase{name: "GeoJSON sidecar matches quake table"}

	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read %s: %v", path, err)
		return p
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		p.errorf("decode %s: %v", path, err)
		return p
	}
	if len(fc.Features) != len(table) {
		p.errorf("%d features, %d table rows", len(fc.Features), len(table))
		return p
	}
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			p.errorf("feature %d: geometry is %s, want Point", i, f.Geometry.GeoJSONType())
			continue
		}
		q := table[i]
		if math.Abs(pt.Lon()-q.Lon) > 1e-9 || math.Abs(pt.Lat()-q.Lat) > 1e-9 {
			p.errorf("feature %d: point %v, table row (%g, %g)", i, pt, q.Lat, q.Lon)
		}
		if id, _ := f.ID.(string); id != q.ID() {
			p.errorf("feature %d: id %v, want %s", i, f.ID, q.ID())
		}
	}
	return p
}
