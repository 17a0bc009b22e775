package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Column aliases, matched case-insensitively in order.
var (
	dateAliases     = []string{"date", "日期"}
	timeAliases     = []string{"time", "時間"}
	datetimeAliases = []string{"datetime", "origintime", "eventtime", "發震時刻", "time"}
	latAliases      = []string{"lat", "latitude", "緯度", "y", "震央緯度"}
	lonAliases      = []string{"lon", "longitude", "經度", "x", "震央經度"}
	depthAliases    = []string{"depth", "focaldepth", "深度"}
	magAliases      = []string{"mag", "magnitude", "規模", "ml", "mw"}
)

// frame is a GDMS body laid out as rows aligned with columns.
type frame struct {
	columns []string
	rows    [][]any
}

// pick returns the index of the first alias present among the columns,
// ignoring case. When two columns fold to the same name the later one wins.
func (f frame) pick(aliases []string) (int, bool) {
	lower := make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		lower[strings.ToLower(c)] = i
	}
	for _, a := range aliases {
		if i, ok := lower[strings.ToLower(a)]; ok {
			return i, true
		}
	}
	return 0, false
}

func (f frame) cell(row []any, col int) any {
	if col < len(row) {
		return row[col]
	}
	return nil
}

// decodeGDMS maps a {header, body} document onto canonical quake fields.
func decodeGDMS(top map[string]json.RawMessage) ([]rawQuake, error) {
	f, err := buildFrame(top)
	if err != nil {
		return nil, err
	}

	latCol, ok := f.pick(latAliases)
	if !ok {
		return nil, fmt.Errorf("%w: no latitude column in %v", ErrMalformedCatalog, f.columns)
	}
	lonCol, ok := f.pick(lonAliases)
	if !ok {
		return nil, fmt.Errorf("%w: no longitude column in %v", ErrMalformedCatalog, f.columns)
	}
	depthCol, hasDepth := f.pick(depthAliases)
	magCol, hasMag := f.pick(magAliases)

	timeOf := f.timeResolver()

	rows := make([]rawQuake, 0, len(f.rows))
	for _, row := range f.rows {
		r := rawQuake{
			lat: parseNumber(f.cell(row, latCol)),
			lon: parseNumber(f.cell(row, lonCol)),
		}
		if hasDepth {
			r.depth = parseNumber(f.cell(row, depthCol))
		}
		if hasMag {
			r.mag = parseNumber(f.cell(row, magCol))
		}
		r.time, r.hasTime = parseTimestamp(timeOf(row))
		rows = append(rows, r)
	}
	return rows, nil
}

// timeResolver chooses how timestamps are read for the whole table: separate
// date and time columns, else a combined datetime column, else per-row inference.
func (f frame) timeResolver() func(row []any) string {
	dateCol, hasDate := f.pick(dateAliases)
	timeCol, hasTime := f.pick(timeAliases)
	if hasDate && hasTime {
		return func(row []any) string {
			joined := strings.TrimSpace(cellString(f.cell(row, dateCol))) + " " +
				strings.TrimSpace(cellString(f.cell(row, timeCol)))
			return normalizeTimestamp(joined)
		}
	}

	if dtCol, ok := f.pick(datetimeAliases); ok {
		return func(row []any) string {
			return normalizeTimestamp(cellString(f.cell(row, dtCol)))
		}
	}

	return inferRowTime
}

// inferRowTime scans a row's values for something that looks like a time:
// first a complete timestamp, then a YYYYMMDD date paired with an HHMMSS or
// HH:MM:SS time. When several values qualify the last one wins.
func inferRowTime(row []any) string {
	values := make([]string, len(row))
	for i, v := range row {
		values[i] = narrow(cellString(v))
	}

	for _, s := range values {
		if fullDateTimeRe.MatchString(s) {
			s = strings.ReplaceAll(s, "T", " ")
			return strings.ReplaceAll(s, "/", "-")
		}
	}

	var date, clock string
	for _, s := range values {
		if compactDateRe.MatchString(s) {
			date = s
		}
		if compactTimeRe.MatchString(s) || colonTimeRe.MatchString(s) {
			clock = s
		}
	}
	if date == "" || clock == "" {
		return ""
	}
	if !strings.Contains(clock, ":") {
		clock = clock[:2] + ":" + clock[2:4] + ":" + clock[4:6]
	}
	return date[:4] + "-" + date[4:6] + "-" + date[6:8] + " " + clock
}

// buildFrame validates header/body and aligns body rows with column names.
// Array rows are padded to the longest row; header entries beyond that
// length are ignored and missing names become col_<i>. Object rows contribute
// columns in first-seen key order.
func buildFrame(top map[string]json.RawMessage) (frame, error) {
	var header []any
	if firstByte(top["header"]) != '[' {
		return frame{}, fmt.Errorf("%w: header is not a list", ErrMalformedCatalog)
	}
	if err := json.Unmarshal(top["header"], &header); err != nil {
		return frame{}, fmt.Errorf("%w: header is not a list", ErrMalformedCatalog)
	}
	var body []json.RawMessage
	if firstByte(top["body"]) != '[' {
		return frame{}, fmt.Errorf("%w: body is not a list", ErrMalformedCatalog)
	}
	if err := json.Unmarshal(top["body"], &body); err != nil {
		return frame{}, fmt.Errorf("%w: body is not a list", ErrMalformedCatalog)
	}
	if len(body) == 0 {
		return frame{}, fmt.Errorf("%w: body is empty", ErrMalformedCatalog)
	}

	if firstByte(body[0]) == '[' {
		return arrayFrame(header, body)
	}
	return objectFrame(body)
}

func arrayFrame(header []any, body []json.RawMessage) (frame, error) {
	rows := make([][]any, len(body))
	maxLen := 0
	for i, raw := range body {
		v, err := decodeAny(raw)
		if err != nil {
			return frame{}, fmt.Errorf("%w: body row %d: %v", ErrMalformedCatalog, i, err)
		}
		row, _ := v.([]any)
		rows[i] = row
		maxLen = max(maxLen, len(row))
	}

	columns := make([]string, maxLen)
	for i := range columns {
		if i < len(header) {
			columns[i] = cellString(header[i])
		} else {
			columns[i] = fmt.Sprintf("col_%d", i)
		}
	}
	for i, row := range rows {
		if len(row) < maxLen {
			padded := make([]any, maxLen)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return frame{columns: columns, rows: rows}, nil
}

func objectFrame(body []json.RawMessage) (frame, error) {
	var columns []string
	index := make(map[string]int)
	records := make([]map[string]any, len(body))

	for i, raw := range body {
		keys, err := objectKeys(raw)
		if err != nil {
			return frame{}, fmt.Errorf("%w: body row %d: %v", ErrMalformedCatalog, i, err)
		}
		v, err := decodeAny(raw)
		if err != nil {
			return frame{}, fmt.Errorf("%w: body row %d: %v", ErrMalformedCatalog, i, err)
		}
		records[i], _ = v.(map[string]any)
		for _, k := range keys {
			if _, seen := index[k]; !seen {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for k, v := range rec {
			row[index[k]] = v
		}
		rows[i] = row
	}
	return frame{columns: columns, rows: rows}, nil
}

// objectKeys lists an object's keys in document order. Non-objects yield none.
func objectKeys(raw json.RawMessage) ([]string, error) {
	if firstByte(raw) != '{' {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
