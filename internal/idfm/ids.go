// Package idfm implements the IDFM-specific dialects: identifier conversion
// between the open-data namespace and the canonical STIF namespace used by the
// real-time endpoint, transport-mode classification, and parsing of SIRI
// StopMonitoring payloads into departures.
package idfm

import (
	"strings"

	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
)

// ParisLocation is the reference time zone every departure time is rendered
// in.
var ParisLocation = clock.ParisLocation

// CanonicalStopID converts an open-data stop identifier to the STIF form the
// stop-monitoring endpoint requires. Already-canonical ids pass through. The
// conversion is best effort and never fails: input without any digits comes
// back unchanged.
func CanonicalStopID(raw string) string {
	if strings.HasPrefix(raw, "STIF:") {
		return raw
	}
	if strings.HasPrefix(raw, "IDFM:") {
		numeric := strings.TrimPrefix(raw, "IDFM:")
		numeric = strings.ReplaceAll(numeric, "monomodalStopPlace:", "")
		return wrapStopID(numeric)
	}
	if isDigits(raw) {
		return wrapStopID(raw)
	}
	if digits := lastDigitRun(raw); digits != "" {
		return wrapStopID(digits)
	}
	return raw
}

// CanonicalLineID converts an open-data line identifier to the STIF form.
// Unlike stops there is no digit-extraction fallback: a bare code is wrapped
// directly and an empty input stays empty.
func CanonicalLineID(raw string) string {
	if strings.HasPrefix(raw, "STIF:") {
		return raw
	}
	if strings.HasPrefix(raw, "IDFM:") {
		return wrapLineID(strings.TrimPrefix(raw, "IDFM:"))
	}
	if raw == "" {
		return ""
	}
	return wrapLineID(raw)
}

// CategoryFromMode maps an open-data transport mode name to a dashboard
// category. Unknown modes count as bus.
func CategoryFromMode(mode string) string {
	mode = strings.ToLower(mode)
	switch {
	case strings.Contains(mode, "metro") || strings.Contains(mode, "métro"):
		return "metro"
	case strings.Contains(mode, "rer") || strings.Contains(mode, "rapidtransit"):
		return "rer"
	case strings.Contains(mode, "tram"):
		return "tram"
	case strings.Contains(mode, "train") || strings.Contains(mode, "localtrain"):
		return "train"
	default:
		return "bus"
	}
}

// lineCategories maps canonical line codes to their network for the lines
// whose category cannot be read off the name.
var lineCategories = map[string]string{
	"C01742": "rer", // RER A
	"C01743": "rer", // RER B
	"C01727": "rer", // RER C
	"C01728": "rer", // RER D
	"C01729": "rer", // RER E
	"C01371": "metro",
	"C01372": "metro",
	"C01373": "metro",
	"C01374": "metro",
	"C01375": "metro",
	"C01376": "metro",
	"C01377": "metro",
	"C01378": "metro",
	"C01379": "metro",
	"C01380": "metro",
	"C01381": "metro",
	"C01382": "metro",
	"C01383": "metro",
	"C01384": "metro",
}

// CategoryForLine classifies a line by its canonical id, falling back to the
// T<digits> naming convention for trams. Everything else counts as bus.
func CategoryForLine(lineID, lineName string) string {
	code := strings.ReplaceAll(strings.ReplaceAll(lineID, "STIF:Line::", ""), ":", "")
	if category, ok := lineCategories[code]; ok {
		return category
	}
	if len(lineName) > 1 && lineName[0] == 'T' && isDigits(lineName[1:]) {
		return "tram"
	}
	return "bus"
}

func wrapStopID(numeric string) string {
	return "STIF:StopPoint:Q:" + numeric + ":"
}

func wrapLineID(code string) string {
	return "STIF:Line::" + code + ":"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// lastDigitRun returns the last maximal run of ASCII digits in s, or "".
func lastDigitRun(s string) string {
	end := -1
	for i := len(s) - 1; i >= 0; i-- {
		isDigit := s[i] >= '0' && s[i] <= '9'
		if isDigit && end < 0 {
			end = i + 1
		}
		if !isDigit && end >= 0 {
			return s[i+1 : end]
		}
	}
	if end >= 0 {
		return s[:end]
	}
	return ""
}
