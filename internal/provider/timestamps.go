package provider

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts tried in order after numeric epochs
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// ParseTimestamp converts a provider timestamp into UTC. Numeric values are
// epochs in seconds, milliseconds or microseconds, told apart by magnitude;
// strings are tried against a fixed list of layouts. When nothing matches
// the fallback is returned with ok=false.
func ParseTimestamp(raw any, fallback time.Time) (t time.Time, ok bool) {
	switch v := raw.(type) {
	case nil:
	case time.Time:
		if !v.IsZero() {
			return v.UTC(), true
		}
	case int64:
		return fromEpoch(v, fallback)
	case int:
		return fromEpoch(int64(v), fallback)
	case float64:
		return fromEpochFloat(v, fallback)
	case number:
		if i, err := v.Int64(); err == nil {
			return fromEpoch(i, fallback)
		}
		if f, err := v.Float64(); err == nil {
			return fromEpochFloat(f, fallback)
		}
	case string:
		return parseTimestampString(v, fallback)
	}
	return fallback.UTC(), false
}

func parseTimestampString(s string, fallback time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC(), false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(i, fallback)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpochFloat(f, fallback)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return fallback.UTC(), false
}

func fromEpoch(ts int64, fallback time.Time) (time.Time, bool) {
	switch {
	case ts <= 0:
		return fallback.UTC(), false
	case ts < 100_000_000_000:
		return time.Unix(ts, 0).UTC(), true
	case ts < 100_000_000_000_000:
		return time.UnixMilli(ts).UTC(), true
	case ts < 100_000_000_000_000_000:
		return time.UnixMicro(ts).UTC(), true
	default:
		return time.Unix(0, ts).UTC(), true
	}
}

func fromEpochFloat(f float64, fallback time.Time) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return fallback.UTC(), false
	}
	if f >= 100_000_000_000 {
		return fromEpoch(int64(f), fallback)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
