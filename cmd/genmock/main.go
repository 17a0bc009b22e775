// Command genmock writes deterministic sample inputs for every twdata job:
// a UN Comtrade IC export table, an export-by-country table (CSV and XLSX)
// with its country name mapping, and the same synthetic earthquake catalog
// in both the GDMS and the CWA open-data JSON layouts.
//
// Usage:
//
//	go run ./cmd/genmock -out data -seed 42
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Chinese market names as the trade statistics portal exports them.
var markets = []struct {
	zh, en string
	base   float64 // 2013 exports, USD
}{
	{"中國大陸", "China", 52e9},
	{"香港", "Hong Kong", 38e9},
	{"新加坡", "Singapore", 9e9},
	{"美國", "United States", 5e9},
	{"日本", "Japan", 6e9},
	{"南韓", "South Korea", 7e9},
	{"馬來西亞", "Malaysia", 4.5e9},
	{"越南", "Vietnam", 2e9},
	{"菲律賓", "Philippines", 3e9},
	{"泰國", "Thailand", 1.5e9},
	{"德國", "Germany", 1.2e9},
	{"墨西哥", "México", 0.8e9},
	{"其他", "", 6e9},
}

var reporters = []string{"China", "Malaysia", "Other Asia, nes", "Rep. of Korea", "Singapore", "USA"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data", "root directory for the generated inputs")
	seed := flag.Uint64("seed", 42, "random seed")
	quakes := flag.Int("quakes", 400, "number of synthetic earthquakes")
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed))

	steps := []struct {
		name string
		fn   func() error
	}{
		{"comtrade", func() error {
			return writeComtrade(filepath.Join(*outDir, "raw", "ic_exports_comparison_uncomtrade_2013_2024.csv"), rng)
		}},
		{"exports by country", func() error {
			return writeExportsByCountry(filepath.Join(*outDir, "raw", "taiwan_exports_by_country_2013_2025"), rng)
		}},
		{"country map", func() error {
			return writeCountryMap(filepath.Join(*outDir, "mappings", "country_name_map_full.json"))
		}},
		{"catalogs", func() error {
			return writeCatalogs(filepath.Join(*outDir, "earthquakes"), syntheticQuakes(rng, *quakes))
		}},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		log.Printf("%s: ok", s.name)
	}
	return nil
}

func writeComtrade(path string, rng *rand.Rand) error {
	rows := [][]string{{"Classification", "Period", "Reporter", "Partner", "Commodity Code", "Trade Value (US$)"}}
	for year := 2013; year <= 2024; year++ {
		for i, r := range reporters {
			value := strconv.FormatFloat((20+float64(i)*15)*1e9*(1+0.08*float64(year-2013))*(0.9+0.2*rng.Float64()), 'f', 0, 64)
			switch rng.IntN(40) {
			case 0:
				value = ""
			case 1:
				value = "0"
			}
			rows = append(rows, []string{"H6", strconv.Itoa(year), r, "World", "8542", value})
		}
	}
	return writeCSV(path, rows)
}

func exportRows(rng *rand.Rand) [][]any {
	hs := []struct{ code, desc string }{
		{"854231", "處理器及控制器"},
		{"854232", "記憶體"},
		{"854239", "其他積體電路"},
	}
	var rows [][]any
	for year := 2013; year <= 2025; year++ {
		growth := 1 + 0.1*float64(year-2013)
		for _, m := range markets {
			for _, h := range hs {
				v := m.base * growth * (0.2 + 0.3*rng.Float64())
				rows = append(rows, []any{year, m.zh, h.code, h.desc, int64(v)})
			}
		}
		// Non-IC rows the report must ignore.
		rows = append(rows, []any{year, "美國", "847130", "筆記型電腦", int64(3e9 * growth)})
	}
	return rows
}

func writeExportsByCountry(base string, rng *rand.Rand) error {
	header := []any{"Year", "Country", "HS Code", "Description", "Export Value (USD)"}
	rows := exportRows(rng)

	records := make([][]string, 0, len(rows)+1)
	records = append(records, toStrings(header))
	for _, r := range rows {
		records = append(records, toStrings(r))
	}
	if err := writeCSV(base+".csv", records); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			return err
		}
	}
	return f.SaveAs(base + ".xlsx")
}

func writeCountryMap(path string) error {
	m := make(map[string]string, len(markets))
	for _, mk := range markets {
		m[mk.zh] = mk.en
	}
	return writeJSON(path, m)
}

func syntheticQuakes(rng *rand.Rand, n int) domain.QuakeTable {
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	span := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Sub(start)
	out := make(domain.QuakeTable, n)
	for i := range out {
		ts := start.Add(time.Duration(rng.Int64N(int64(span)))).Truncate(time.Second)
		q := domain.Quake{
			Time:  ts,
			Lat:   round(19.5+rng.Float64()*8, 3),
			Lon:   round(117.5+rng.Float64()*7, 3),
			Depth: domain.Float(round(rng.ExpFloat64()*25, 1)),
			Mag:   domain.Float(round(2+rng.ExpFloat64(), 1)),
			Year:  ts.Year(),
		}
		if rng.IntN(25) == 0 {
			q.Depth = nil
		}
		out[i] = q
	}
	return out
}

func writeCatalogs(dir string, quakes domain.QuakeTable) error {
	body := make([][]string, len(quakes))
	info := make([]map[string]string, len(quakes))
	for i, q := range quakes {
		depth := ""
		if q.Depth != nil {
			depth = strconv.FormatFloat(*q.Depth, 'f', -1, 64)
		}
		mag := strconv.FormatFloat(*q.Mag, 'f', -1, 64)
		lat := strconv.FormatFloat(q.Lat, 'f', -1, 64)
		lon := strconv.FormatFloat(q.Lon, 'f', -1, 64)
		body[i] = []string{q.Time.Format("2006-01-02"), q.Time.Format("15:04:05"), lat, lon, depth, mag}
		info[i] = map[string]string{
			"OriginTime":         q.Time.Format(domain.TimeLayout),
			"EpicenterLatitude":  lat,
			"EpicenterLongitude": lon,
			"FocalDepth":         depth,
			"LocalMagnitude":     mag,
		}
	}

	gdms := map[string]any{
		"header": []string{"date", "time", "lat", "lon", "depth", "ML"},
		"body":   body,
	}
	if err := writeJSON(filepath.Join(dir, "GDMScatalog.json"), gdms); err != nil {
		return err
	}
	cwa := map[string]any{
		"cwaopendata": map[string]any{
			"Dataset": map[string]any{
				"Catalog": map[string]any{"EarthquakeInfo": info},
			},
		},
	}
	return writeJSON(filepath.Join(dir, "E-A0073-001.json"), cwa)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func round(v float64, places int) float64 {
	p := 1.0
	for range places {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
