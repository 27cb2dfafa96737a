package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var nonDigitRe = regexp.MustCompile(`[^\d]`)

var byteUnits = map[string]int64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
	"PB": 1 << 50,
}

// ParseByteCount converts a GUI byte counter to bytes. Exports emit two
// shapes and the dot is ambiguous between them: with a unit suffix it is a
// decimal separator ("1.5 GB"), without one it is a thousands separator
// ("44.728.514"). Unparseable input yields 0.
func ParseByteCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Fields(s)
	if len(parts) >= 2 {
		val, err := strconv.ParseFloat(strings.ReplaceAll(parts[0], ",", ""), 64)
		if err != nil {
			return 0
		}
		unit, ok := byteUnits[strings.ToUpper(parts[1])]
		if !ok {
			unit = 1
		}
		return int64(val * float64(unit))
	}
	return ParseHitCount(parts[0])
}

// ParseHitCount converts a formatted integer ("44.728.514", "1,000") to
// its value by stripping every non-digit. Unparseable input yields 0.
func ParseHitCount(s string) int64 {
	cleaned := nonDigitRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
