package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`(\d+)\s*(ns|us|µs|ms|s|m|h|d|w|M)`)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"M":  30 * 24 * time.Hour,
}

// ParseDuration accepts Go durations plus d (day), w (week) and M
// (30-day month), e.g. "1w", "2d12h". A bare integer is read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	matches := durationPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	consumed := 0
	for _, m := range matches {
		if strings.TrimSpace(s[consumed:m[0]]) != "" {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		value, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(value) * durationUnits[s[m[4]:m[5]]]
		consumed = m[1]
	}
	if strings.TrimSpace(s[consumed:]) != "" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}
