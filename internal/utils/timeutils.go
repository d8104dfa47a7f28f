package utils

import (
	"fmt"
	"time"
)

// ParseTimestamp returns a time parsed from the flat-file timestamp formats
// accepted on ingest: RFC3339 first, then the space-separated layout the CSV
// exporters emit.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

// WindowBounds returns the inclusive correlation window around an anomaly
// timestamp.
func WindowBounds(t time.Time, windowMinutes int) (time.Time, time.Time) {
	window := time.Duration(windowMinutes) * time.Minute
	return t.Add(-window), t.Add(window)
}

// InWindow reports whether ts falls within [start, end], bounds included.
func InWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
