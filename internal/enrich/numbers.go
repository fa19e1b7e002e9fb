package enrich

import (
	"math"
	"strconv"
	"strings"
)

var abbrevMultipliers = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// parseAbbrevCount parses follower counts as social pages render them:
// plain integers ("12345"), grouped digits ("1,234,567"), and abbreviated
// magnitudes ("1.2K" is 1200, "3.4M" is 3400000).
func parseAbbrevCount(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	last := strings.ToUpper(s[len(s)-1:])
	if m, ok := abbrevMultipliers[last[0]]; ok {
		multiplier = m
		s = s[:len(s)-1]
	}
	if s == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return int64(math.Round(value * multiplier)), true
}
