package models

import "time"

// Severity captures the impact level assigned to an anomaly.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AnnotatedSample is a metric row with detection output attached. Rolling
// statistics are forward-filled; leading positions with no defined window carry
// zero statistics and are never anomalous.
type AnnotatedSample struct {
	MetricSample
	RollingMean      float64
	RollingStd       float64
	ZScore           float64
	Anomaly          bool
	CorrelatedErrors []string
}

// AnalysisResult is the annotated metrics table produced by one detection run.
type AnalysisResult struct {
	Column  string
	Samples []AnnotatedSample
}

// Anomalies returns the flagged samples in detection order.
func (r AnalysisResult) Anomalies() []AnnotatedSample {
	anomalies := make([]AnnotatedSample, 0)
	for _, s := range r.Samples {
		if s.Anomaly {
			anomalies = append(anomalies, s)
		}
	}
	return anomalies
}

// RootCauseEntry explains a single anomaly: correlated error patterns, severity
// and remediation steps.
type RootCauseEntry struct {
	Timestamp          time.Time
	MetricValue        float64
	LogsAnalyzed       int
	ErrorCounts        map[string]int
	Explanation        string
	Severity           Severity
	RecommendedActions []string

	// Narrative fields are filled by the service layer when a narrator is
	// configured; Explanation always carries the deterministic text.
	Narrative       string
	NarrativeSource string
}

// TimeRange bounds a set of anomaly timestamps.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// AnomalySummary aggregates one analysis run for dashboard display.
type AnomalySummary struct {
	TotalAnomalies       int
	AnomalyRate          float64
	SeverityDistribution map[Severity]int
	TimeRange            *TimeRange
}

// Report is a persisted record of a completed analysis.
type Report struct {
	ID         string
	Column     string
	CreatedAt  time.Time
	Summary    AnomalySummary
	RootCauses []RootCauseEntry
}
