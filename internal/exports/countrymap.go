package exports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// OthersMarket is the aggregate bucket for countries without an English name.
const OthersMarket = "Others"

// UnknownMarket replaces labels that have no ASCII characters left.
const UnknownMarket = "Unknown"

// CountryMap translates customs country names to English market names.
type CountryMap map[string]string

// LoadCountryMap reads a JSON or YAML object of name to English name.
// Keys and values are trimmed; an empty value maps to Others.
func LoadCountryMap(path string) (CountryMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read country map: %w", err)
	}

	var raw map[string]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse country map %s: %w", path, err)
	}
	return NewCountryMap(raw), nil
}

// NewCountryMap normalizes a raw mapping.
func NewCountryMap(raw map[string]string) CountryMap {
	m := make(CountryMap, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			v = OthersMarket
		}
		m[strings.TrimSpace(k)] = v
	}
	return m
}

// Market returns the ASCII-safe English label for a country, Others when the
// country is not mapped.
func (m CountryMap) Market(country string) string {
	name, ok := m[strings.TrimSpace(country)]
	if !ok {
		name = OthersMarket
	}
	return ASCIISafe(name)
}

// ASCIISafe returns s unchanged when it is pure ASCII. Otherwise diacritics
// are folded, remaining non-ASCII runes are removed and an empty result
// becomes Unknown.
func ASCIISafe(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil || folded == "" {
		return UnknownMarket
	}
	return folded
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
