package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-04-03 07:58:09", "2024-04-03 07:58:09"},
		{"2024/04/03T07:58:09", "2024-04-03 07:58:09"},
		{"2024-04-03 075809", "2024-04-03 07:58:09"},
		{"20240403 075809", "20240403 07:58:09"},
		{"２０２４-０４-０３ ０７:５８:０９", "2024-04-03 07:58:09"},
		{"  2024-04-03 07:58  ", "2024-04-03 07:58"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeTimestamp(tt.in))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"2024-04-03 07:58:09", true, "2024-04-03 07:58:09"},
		{"2024-04-03 07:58:09.25", true, "2024-04-03 07:58:09"},
		{"2024-04-03 07:58", true, "2024-04-03 07:58:00"},
		{"2024-04-03", true, "2024-04-03 00:00:00"},
		{"20240403 07:58:09", true, "2024-04-03 07:58:09"},
		{"2024-4-3 07:58:09", true, "2024-04-03 07:58:09"},
		{"2024-04-03 07:58:09+08:00", true, "2024-04-03 07:58:09"},
		{"2024-04-03 07:58:09Z", true, "2024-04-03 07:58:09"},
		{"", false, ""},
		{"yesterday", false, ""},
		{"2024-13-40 07:58:09", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02 15:04:05"))
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"json number", json.Number("23.77"), ptr(23.77)},
		{"string", " 121.5 ", ptr(121.5)},
		{"full-width", "１５.５", ptr(15.5)},
		{"empty", "", nil},
		{"text", "UNK", nil},
		{"nan", "NaN", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseNumber(tt.in))
		})
	}
}

func TestInferRowTime(t *testing.T) {
	tests := []struct {
		name string
		row  []any
		want string
	}{
		{"full timestamp", []any{"x", "2024/04/03T07:58:09"}, "2024-04-03 07:58:09"},
		{"compact date and time", []any{json.Number("20240403"), "075809"}, "2024-04-03 07:58:09"},
		{"compact date, colon time", []any{"20240403", "07:58:09"}, "2024-04-03 07:58:09"},
		{"last match wins", []any{"20240101", "20240403", "075809"}, "2024-04-03 07:58:09"},
		{"date only", []any{"20240403"}, ""},
		{"float is not a date", []any{json.Number("20240403.0"), "075809"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferRowTime(tt.row))
		})
	}
}

func ptr(v float64) *float64 { return &v }
