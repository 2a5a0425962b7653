package payload

import (
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

var (
	minTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// ParseTime accepts the timestamp shapes providers send. Values without a zone
// are read as UTC. Bare integers are unix epochs whose unit follows the digit
// count: seconds up to 12 digits, then milliseconds, microseconds (16+) and
// nanoseconds (19). Results outside 1970..9999 are rejected. The result is
// always UTC.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		return inRange(unixByDigits(n, len(strings.TrimLeft(raw, "+0"))))
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f <= 0 || f > float64(maxTime.Unix()) {
			return time.Time{}, false
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * float64(time.Second))
		return inRange(time.Unix(sec, nsec))
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return inRange(t)
		}
	}
	return time.Time{}, false
}

func unixByDigits(n int64, digits int) time.Time {
	switch {
	case digits >= 19:
		return time.Unix(0, n)
	case digits >= 16:
		return time.UnixMicro(n)
	case digits >= 13:
		return time.UnixMilli(n)
	default:
		return time.Unix(n, 0)
	}
}

func inRange(t time.Time) (time.Time, bool) {
	t = t.UTC()
	if t.Before(minTime) || t.After(maxTime) {
		return time.Time{}, false
	}
	return t, true
}
