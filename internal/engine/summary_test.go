package engine

import (
	"testing"
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
)

func annotated(ts time.Time, anomaly bool) models.AnnotatedSample {
	return models.AnnotatedSample{
		MetricSample: models.MetricSample{Timestamp: ts, Values: map[string]float64{"cpu_usage": 50}},
		Anomaly:      anomaly,
	}
}

func TestSummarizeRateAndRange(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := models.AnalysisResult{
		Column: "cpu_usage",
		Samples: []models.AnnotatedSample{
			annotated(base, false),
			annotated(base.Add(1*time.Minute), true),
			annotated(base.Add(2*time.Minute), false),
			annotated(base.Add(3*time.Minute), true),
		},
	}
	causes := []models.RootCauseEntry{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityHigh},
	}

	summary := Summarize(result, causes)

	if summary.TotalAnomalies != 2 {
		t.Errorf("got %d anomalies, want 2", summary.TotalAnomalies)
	}
	if summary.AnomalyRate != 50 {
		t.Errorf("got rate %.2f, want 50", summary.AnomalyRate)
	}
	if summary.TimeRange == nil {
		t.Fatal("expected a time range")
	}
	if !summary.TimeRange.Start.Equal(base.Add(1*time.Minute)) || !summary.TimeRange.End.Equal(base.Add(3*time.Minute)) {
		t.Errorf("unexpected range: %+v", summary.TimeRange)
	}
	if summary.SeverityDistribution[models.SeverityCritical] != 1 || summary.SeverityDistribution[models.SeverityHigh] != 1 {
		t.Errorf("unexpected distribution: %v", summary.SeverityDistribution)
	}
}

func TestSummarizeNoAnomalies(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := models.AnalysisResult{
		Column:  "cpu_usage",
		Samples: []models.AnnotatedSample{annotated(base, false), annotated(base.Add(time.Minute), false)},
	}

	summary := Summarize(result, nil)

	if summary.TotalAnomalies != 0 || summary.AnomalyRate != 0 {
		t.Errorf("got %d anomalies rate %.2f, want zeros", summary.TotalAnomalies, summary.AnomalyRate)
	}
	if summary.TimeRange != nil {
		t.Errorf("time range must be absent with no anomalies, got %+v", summary.TimeRange)
	}
	if len(summary.SeverityDistribution) != 0 {
		t.Errorf("distribution must be empty: %v", summary.SeverityDistribution)
	}
}

func TestSummarizeEmptyResult(t *testing.T) {
	summary := Summarize(models.AnalysisResult{Column: "cpu_usage"}, nil)
	if summary.AnomalyRate != 0 {
		t.Errorf("empty series must not divide by zero, got %.2f", summary.AnomalyRate)
	}
}
