package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// flatSeriesWithSpike builds a 200-sample minutely series at value 50 with
// positions 100..105 raised to 95.
func flatSeriesWithSpike(base time.Time) []models.MetricSample {
	samples := make([]models.MetricSample, 200)
	for i := range samples {
		value := 50.0
		if i >= 100 && i <= 105 {
			value = 95.0
		}
		samples[i] = models.MetricSample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Values:    map[string]float64{"cpu_usage": value, "memory_usage": 60},
		}
	}
	return samples
}

func TestDetectAnomaliesFlagsSpike(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(metrics, nil, Options{Column: "cpu_usage"})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(result.Samples) != 200 {
		t.Fatalf("got %d samples, want 200", len(result.Samples))
	}

	for i, sample := range result.Samples {
		wantAnomaly := i >= 100 && i <= 105
		if sample.Anomaly != wantAnomaly {
			t.Errorf("position %d: anomaly=%v want %v (z=%.3f)", i, sample.Anomaly, wantAnomaly, sample.ZScore)
		}
	}
}

func TestDetectAnomaliesFlatSeriesNeverFlags(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]models.MetricSample, 100)
	for i := range samples {
		samples[i] = models.MetricSample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Values:    map[string]float64{"cpu_usage": 50},
		}
	}

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(samples, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for i, sample := range result.Samples {
		if sample.Anomaly || sample.ZScore != 0 {
			t.Errorf("position %d: flat series must score zero, got z=%.3f anomaly=%v", i, sample.ZScore, sample.Anomaly)
		}
	}
}

func TestDetectAnomaliesCorrelatesErrors(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)
	spikeAt := base.Add(102 * time.Minute)
	logs := []models.LogRecord{
		{Timestamp: spikeAt.Add(-time.Minute), Level: models.LevelError, Message: "Out of memory error."},
		{Timestamp: spikeAt, Level: models.LevelInfo, Message: "Heartbeat check passed."},
		{Timestamp: base, Level: models.LevelError, Message: "far away"},
	}

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(metrics, logs, Options{CorrelationWindowMinutes: 5})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	spikeSample := result.Samples[102]
	if !spikeSample.Anomaly {
		t.Fatal("position 102 should be anomalous")
	}
	if len(spikeSample.CorrelatedErrors) != 1 || spikeSample.CorrelatedErrors[0] != "Out of memory error." {
		t.Errorf("unexpected correlated errors: %v", spikeSample.CorrelatedErrors)
	}

	// Non-anomalous rows carry an empty, non-nil slice.
	if result.Samples[0].CorrelatedErrors == nil || len(result.Samples[0].CorrelatedErrors) != 0 {
		t.Errorf("non-anomalous rows must carry an empty slice, got %v", result.Samples[0].CorrelatedErrors)
	}
}

func TestDetectAnomaliesDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)

	p := NewPipeline(nil, nil)
	first, err := p.DetectAnomalies(metrics, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	second, err := p.DetectAnomalies(metrics, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for i := range first.Samples {
		if first.Samples[i].ZScore != second.Samples[i].ZScore || first.Samples[i].Anomaly != second.Samples[i].Anomaly {
			t.Fatalf("position %d differs between identical runs", i)
		}
	}
}

func TestDetectAnomaliesValidation(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := NewPipeline(nil, nil)

	t.Run("missing column", func(t *testing.T) {
		metrics := []models.MetricSample{{Timestamp: base, Values: map[string]float64{"memory_usage": 1}}}
		_, err := p.DetectAnomalies(metrics, nil, Options{Column: "cpu_usage"})
		var validation *utils.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("zero timestamp", func(t *testing.T) {
		metrics := []models.MetricSample{{Values: map[string]float64{"cpu_usage": 1}}}
		_, err := p.DetectAnomalies(metrics, nil, Options{})
		var validation *utils.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("bad log timestamp", func(t *testing.T) {
		metrics := []models.MetricSample{{Timestamp: base, Values: map[string]float64{"cpu_usage": 1}}}
		logs := []models.LogRecord{{Level: models.LevelError, Message: "no timestamp"}}
		_, err := p.DetectAnomalies(metrics, logs, Options{})
		var validation *utils.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})
}

func TestDetectAnomaliesEmptyInput(t *testing.T) {
	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(nil, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(result.Samples) != 0 {
		t.Errorf("got %d samples, want 0", len(result.Samples))
	}
}

func TestDetectAnomaliesSortsUnorderedInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)
	// Reverse the series; annotation must still come back in time order.
	reversed := make([]models.MetricSample, len(metrics))
	for i, sample := range metrics {
		reversed[len(metrics)-1-i] = sample
	}

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(reversed, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for i := 1; i < len(result.Samples); i++ {
		if result.Samples[i].Timestamp.Before(result.Samples[i-1].Timestamp) {
			t.Fatalf("samples not sorted at %d", i)
		}
	}
	if !result.Samples[102].Anomaly {
		t.Error("spike should still be flagged after sorting")
	}
}

func TestExplainRootCause(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)
	spikeAt := base.Add(100 * time.Minute)
	logs := []models.LogRecord{
		{Timestamp: spikeAt.Add(-2 * time.Minute), Level: models.LevelError, Message: "Out of memory error."},
		{Timestamp: spikeAt.Add(-time.Minute), Level: models.LevelInfo, Message: "Heartbeat check passed."},
	}

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(metrics, logs, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	causes, err := p.ExplainRootCause(metrics, logs, result, Options{})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}

	if len(causes) != 6 {
		t.Fatalf("got %d entries, want 6", len(causes))
	}

	first := causes[0]
	if !first.Timestamp.Equal(spikeAt) {
		t.Errorf("entries must follow detection order, got %v", first.Timestamp)
	}
	if first.MetricValue != 95 {
		t.Errorf("got metric value %.1f, want 95", first.MetricValue)
	}
	// INFO records count toward LogsAnalyzed but not toward error counts.
	if first.LogsAnalyzed != 2 {
		t.Errorf("got %d logs analyzed, want 2", first.LogsAnalyzed)
	}
	if first.ErrorCounts[PatternOutOfMemory] != 1 {
		t.Errorf("unexpected error counts: %v", first.ErrorCounts)
	}
	if first.Severity != models.SeverityCritical {
		t.Errorf("got severity %s, want CRITICAL", first.Severity)
	}
	if first.Explanation == "" || len(first.RecommendedActions) == 0 {
		t.Error("explanation and actions must be populated")
	}
}

func TestExplainRootCauseCapsEntries(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(metrics, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	causes, err := p.ExplainRootCause(metrics, nil, result, Options{MaxRootCauses: 2})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if len(causes) != 2 {
		t.Fatalf("got %d entries, want cap of 2", len(causes))
	}
}

func TestExplainRootCauseEmptyLogs(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(metrics, nil, Options{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	causes, err := p.ExplainRootCause(metrics, nil, result, Options{})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	for _, cause := range causes {
		if len(cause.ErrorCounts) != 0 {
			t.Errorf("error counts must be empty without logs: %v", cause.ErrorCounts)
		}
		if cause.LogsAnalyzed != 0 {
			t.Errorf("got %d logs analyzed", cause.LogsAnalyzed)
		}
		// With no patterns the cascade falls through to the value bands.
		if cause.Severity != models.SeverityCritical {
			t.Errorf("value 95 lands in the critical band, got %s", cause.Severity)
		}
	}
}

func TestExplainRootCauseUsesResultColumn(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	metrics := flatSeriesWithSpike(base)

	p := NewPipeline(nil, nil)
	result, err := p.DetectAnomalies(metrics, nil, Options{Column: "cpu_usage"})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	// Options carry a different column; the result's column wins.
	causes, err := p.ExplainRootCause(metrics, nil, result, Options{Column: "memory_usage"})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if len(causes) == 0 {
		t.Fatal("expected entries")
	}
	if causes[0].MetricValue != 95 {
		t.Errorf("got %.1f, want the cpu_usage spike value 95", causes[0].MetricValue)
	}
}
