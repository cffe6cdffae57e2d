package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts a compact ISO-8601 duration such as "PT1H2M3S" or
// "P1DT2H" into whole seconds. Every component is optional but at least one
// must be present.
func ParseISODuration(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	units := []int{86400, 3600, 60, 1}
	total := 0
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += n * unit
	}
	return total, nil
}

// FormatISODuration renders seconds in canonical compact form. Zero and
// negative values render as "PT0S".
func FormatISODuration(seconds int) string {
	if seconds <= 0 {
		return "PT0S"
	}

	days := seconds / 86400
	seconds %= 86400
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60

	var b strings.Builder
	b.WriteString("P")
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if h == 0 && m == 0 && s == 0 {
		return b.String()
	}
	b.WriteString("T")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
