package utils

import (
	"strconv"
	"strings"
)

// NormalizeMMSI trims whitespace and strips float artefacts ("230145000.0")
// that some feeds emit for numeric identifiers
func NormalizeMMSI(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	return s
}

// ParseList splits a comma-separated list, trimming entries and dropping blanks
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseFloats parses a comma-separated list of floats
func ParseFloats(raw string) ([]float64, error) {
	parts := ParseList(raw)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
