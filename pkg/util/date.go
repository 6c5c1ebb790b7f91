package util

import (
    "strconv"
    "time"
)

// offsetLayout is the provider's reporting timestamp form: RFC3339 with a
// zone offset that has no colon ("2024-10-10T10:10:10-0700").
const offsetLayout = "2006-01-02T15:04:05-0700"

// ParseTime tries RFC3339, RFC3339Nano, the provider offset layout, and
// unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(offsetLayout, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// FirstTime resolves the first parseable timestamp from candidates, in order.
func FirstTime(candidates ...string) (time.Time, bool) {
    for _, c := range candidates {
        if t, ok := ParseTime(c); ok {
            return t, true
        }
    }
    return time.Time{}, false
}

// ParseAmount parses a signed decimal amount. Non-numeric or empty values
// are reported as absent rather than errors.
func ParseAmount(s string) (float64, bool) {
    if s == "" {
        return 0, false
    }
    f, err := strconv.ParseFloat(s, 64)
    if err != nil {
        return 0, false
    }
    return f, true
}
