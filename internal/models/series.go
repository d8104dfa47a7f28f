package models

import "time"

// LogLevel enumerates the log severities understood by the correlator.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// MetricSample is one row of the metrics table: a timestamp plus named numeric
// fields (cpu_usage, memory_usage, latency_ms, ...).
type MetricSample struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Value returns the named metric field and whether it is present.
func (s MetricSample) Value(column string) (float64, bool) {
	v, ok := s.Values[column]
	return v, ok
}

// LogRecord is one row of the logs table.
type LogRecord struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
}

// IsErrorLevel reports whether the record should feed root-cause classification.
// INFO records are excluded from causal reasoning but still count toward
// logs-analyzed totals.
func (r LogRecord) IsErrorLevel() bool {
	return r.Level == LevelError || r.Level == LevelWarn
}
