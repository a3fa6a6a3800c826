package models

import (
	"strings"
	"time"
)

// timeLayouts are tried in order. The backend mixes RFC 3339 with naive
// ISO timestamps (no zone, optional fractional seconds) and bare dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
}

// ParseTime parses a backend timestamp. Naive timestamps are read as UTC.
// It reports false for empty or unrecognised input instead of failing.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
