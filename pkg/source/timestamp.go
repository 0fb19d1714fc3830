package source

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// millisThreshold separates Unix seconds from Unix milliseconds.
const millisThreshold = 10_000_000_000

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RubyDate, // X legacy: "Mon Jan 02 15:04:05 -0700 2006"
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// ParseTimestamp converts a raw timestamp into a UTC time. It accepts ISO
// strings, X legacy dates, and Unix epochs in seconds or milliseconds
// (numbers or numeric strings). Values above 10^10 are milliseconds.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t.UTC(), !t.IsZero()
	case float64:
		return fromEpoch(t)
	case int64:
		return fromEpoch(float64(t))
	case int:
		return fromEpoch(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(f)
	case string:
		return parseTimeString(t)
	}
	return time.Time{}, false
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	if v > millisThreshold {
		return time.UnixMilli(int64(v)).UTC(), true
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
