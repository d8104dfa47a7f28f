package engine

import (
	"github.com/opsightstack/opsight-rca/internal/models"
)

// Summarize aggregates one analysis run for dashboard display. The severity
// distribution is derived from the supplied root-cause entries and stays empty
// when severity was not computed. A zero-sample result yields a zero rate, not
// NaN.
func Summarize(result models.AnalysisResult, causes []models.RootCauseEntry) models.AnomalySummary {
	summary := models.AnomalySummary{
		SeverityDistribution: make(map[models.Severity]int),
	}

	anomalies := result.Anomalies()
	summary.TotalAnomalies = len(anomalies)
	if total := len(result.Samples); total > 0 {
		summary.AnomalyRate = 100 * float64(summary.TotalAnomalies) / float64(total)
	}

	if len(anomalies) > 0 {
		tr := models.TimeRange{
			Start: anomalies[0].Timestamp,
			End:   anomalies[0].Timestamp,
		}
		for _, a := range anomalies[1:] {
			if a.Timestamp.Before(tr.Start) {
				tr.Start = a.Timestamp
			}
			if a.Timestamp.After(tr.End) {
				tr.End = a.Timestamp
			}
		}
		summary.TimeRange = &tr
	}

	for _, cause := range causes {
		if cause.Severity != "" {
			summary.SeverityDistribution[cause.Severity]++
		}
	}
	return summary
}
