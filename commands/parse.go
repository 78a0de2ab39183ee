package commands

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// splitArgs splits raw into at most n arguments. The last one takes the rest
// of the input verbatim.
func splitArgs(raw string, n int) []string {
	var out []string
	rest := strings.TrimSpace(raw)
	for len(out) < n && rest != "" {
		if len(out) == n-1 {
			return append(out, rest)
		}
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			return append(out, rest)
		}
		out = append(out, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	return out
}

// ParseBool reads on/off style toggles. An empty argument means true.
func ParseBool(arg string) (value, ok bool) {
	switch strings.ToLower(arg) {
	case "", "true", "on":
		return true, true
	case "false", "off":
		return false, true
	}
	return false, false
}

var (
	durationRe = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)?(?:s|mo|m|h|d|w))+$|^\d+(?:\.\d+)?$`)
	segmentRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)(s|mo|m|h|d|w)?`)
)

var durationUnits = map[string]time.Duration{
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"mo": 30 * 24 * time.Hour,
}

// ParseDuration reads "90", "10m", "1.5h", "1h30m", "2w" or "1mo". A bare
// number is seconds; unit segments are summed.
func ParseDuration(arg string) (time.Duration, bool) {
	if !durationRe.MatchString(arg) {
		return 0, false
	}
	var total time.Duration
	for _, seg := range segmentRe.FindAllStringSubmatch(arg, -1) {
		v, err := strconv.ParseFloat(seg[1], 64)
		if err != nil {
			return 0, false
		}
		unit := time.Second
		if seg[2] != "" {
			unit = durationUnits[strings.ToLower(seg[2])]
		}
		total += time.Duration(v * float64(unit))
	}
	return total, true
}

// normalizeLogin strips a leading @ or # and lowercases.
func normalizeLogin(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "@#")
	return strings.ToLower(s)
}
