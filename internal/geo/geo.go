// Package geo normalizes country and state names to their ISO-3166
// two-letter forms before remote writes. Unknown names map to "" so a
// bad address never blocks a sync.
package geo

import (
	_ "embed"
	"encoding/json"
	"strings"

	"girder/internal/logs"
)

//go:embed codes.json
var codesJSON []byte

var tables struct {
	Countries map[string]string            `json:"countries"`
	States    map[string]map[string]string `json:"states"`
}

func init() {
	if err := json.Unmarshal(codesJSON, &tables); err != nil {
		panic("geo: bad codes.json: " + err.Error())
	}
}

// CountryCode converts a country name or alias to its upper-case
// ISO-3166 alpha-2 code, or "" when unknown.
func CountryCode(name string) string {
	if name == "" {
		return ""
	}
	code, ok := tables.Countries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		logs.Logger.Debugf("geo: no country code for %q", name)
		return ""
	}
	return strings.ToUpper(code)
}

// StateCode converts a state/province name or abbreviation within the
// given country to its upper-case subdivision code, or "" when unknown.
func StateCode(country, state string) string {
	if country == "" || state == "" {
		return ""
	}
	cc := CountryCode(country)
	if cc == "" {
		return ""
	}
	m, ok := tables.States[strings.ToLower(cc)]
	if !ok {
		logs.Logger.Debugf("geo: no state table for country %q", country)
		return ""
	}
	code, ok := m[strings.ToLower(strings.TrimSpace(state))]
	if !ok {
		logs.Logger.Debugf("geo: no state code for %q in %q", state, country)
		return ""
	}
	return strings.ToUpper(code)
}
