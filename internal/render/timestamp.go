// Package render turns status snapshots into display-ready text. Everything here
// is a pure function of its inputs.
package render

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Placeholder is shown for absent values.
const Placeholder = "–"

// DisplayLayout is the local-time layout for timestamps.
const DisplayLayout = "2006-01-02 15:04:05"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the timestamp forms the backend emits. Values without
// a zone are read in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp converts a backend timestamp to local display time. Absent
// values give Placeholder; values that do not parse are returned unchanged.
func FormatTimestamp(raw string, loc *time.Location) string {
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}
	if loc == nil {
		loc = time.Local
	}
	t, ok := ParseTimestamp(raw, loc)
	if !ok {
		return raw
	}
	return t.In(loc).Format(DisplayLayout)
}

// Relative describes a timestamp relative to now, e.g. "3 minutes from now".
// It returns "" when the timestamp is absent or unparsable.
func Relative(raw string, now time.Time) string {
	t, ok := ParseTimestamp(raw, time.Local)
	if !ok {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
