// Package duration parses and formats the human-readable track durations reported by playlist sources.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var textual = regexp.MustCompile(`^(?:(\d+)\s*(?:minutes?|mins?))?\s*(?:(\d+)\s*(?:seconds?|secs?))?$`)

// Parse converts s to a number of seconds.
//
// Recognized forms are "SS", "MM:SS", "HH:MM:SS" and free text such as "3 minutes 43 seconds", "3 mins 43 secs" or "3 min".
// ok is false when s cannot be parsed, which includes negative fields; seconds is then 0.
func Parse(s string) (seconds int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	if n, ok := parseColon(s); ok {
		return n, true
	}

	m := textual.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, false
	}

	total := 0
	if m[1] != "" {
		mins, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		total += mins * 60
	}
	if m[2] != "" {
		secs, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, false
		}
		total += secs
	}
	return total, true
}

// ParseSeconds is [Parse] with the zero fallback, for comparisons that treat unknown as 0.
func ParseSeconds(s string) int {
	n, _ := Parse(s)
	return n
}

func parseColon(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}

	total := 0
	for _, p := range parts {
		if p == "" {
			return 0, false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return 0, false
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// Format renders seconds as "M:SS", or "H:MM:SS" past an hour.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Human renders d as "Xm Ys", rounded to the nearest second.
func Human(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
