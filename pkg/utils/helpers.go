package utils

import (
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil || duration <= 0 {
		return 5 * time.Minute
	}
	return duration
}

// ParseValue turns a text cell into an int, a float or the trimmed string.
// Identifiers with leading zeros stay strings so "00123" is not read as 123.
func ParseValue(s string) interface{} {
	s = strings.TrimSpace(s)
	if hasLeadingZero(s) {
		return s
	}

	// try int
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
