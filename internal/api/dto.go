package api

import (
	"fmt"
	"time"

	"github.com/opsightstack/opsight-rca/internal/engine"
	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/patterns"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// IngestRequest is the agent payload: one metrics row plus a batch of logs.
type IngestRequest struct {
	Hostname string         `json:"hostname"`
	System   string         `json:"system"`
	Metrics  map[string]any `json:"metrics"`
	Logs     []LogDTO       `json:"logs"`
}

// LogDTO is one log row on the wire.
type LogDTO struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// AnalysisOptionsDTO carries per-request detection overrides.
type AnalysisOptionsDTO struct {
	Column        string  `json:"column"`
	Window        int     `json:"window"`
	MinPeriods    int     `json:"min_periods"`
	ZThreshold    float64 `json:"z_threshold"`
	WindowMode    string  `json:"window_mode"`
	WindowMinutes int     `json:"window_minutes"`
	MaxRootCauses int     `json:"max_root_causes"`
}

// AnnotatedSampleDTO is one annotated metrics row on the wire.
type AnnotatedSampleDTO struct {
	Timestamp        time.Time          `json:"timestamp"`
	Values           map[string]float64 `json:"values"`
	RollingMean      float64            `json:"rolling_mean"`
	RollingStd       float64            `json:"rolling_std"`
	ZScore           float64            `json:"z_score"`
	Anomaly          bool               `json:"anomaly"`
	CorrelatedErrors []string           `json:"correlated_errors"`
}

// AnalysisResponse is the annotated metrics table.
type AnalysisResponse struct {
	Column  string               `json:"column"`
	Samples []AnnotatedSampleDTO `json:"samples"`
}

// RootCauseDTO is one explained anomaly on the wire.
type RootCauseDTO struct {
	Timestamp          time.Time      `json:"timestamp"`
	MetricValue        float64        `json:"metric_value"`
	LogsAnalyzed       int            `json:"logs_analyzed"`
	ErrorCounts        map[string]int `json:"error_counts"`
	Explanation        string         `json:"explanation"`
	Severity           string         `json:"severity"`
	RecommendedActions []string       `json:"recommended_actions"`
	Narrative          string         `json:"narrative,omitempty"`
	NarrativeSource    string         `json:"narrative_source,omitempty"`
}

// TimeRangeDTO bounds the anomaly timestamps.
type TimeRangeDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SummaryDTO is the dashboard summary payload.
type SummaryDTO struct {
	TotalAnomalies       int            `json:"total_anomalies"`
	AnomalyRate          float64        `json:"anomaly_rate"`
	SeverityDistribution map[string]int `json:"severity_distribution"`
	TimeRange            *TimeRangeDTO  `json:"time_range"`
}

// ReportDTO is a persisted analysis report on the wire.
type ReportDTO struct {
	ID         string         `json:"id"`
	Column     string         `json:"column"`
	CreatedAt  time.Time      `json:"created_at"`
	Summary    SummaryDTO     `json:"summary"`
	RootCauses []RootCauseDTO `json:"root_causes"`
}

// FrequentPatternDTO is one mined pattern on the wire.
type FrequentPatternDTO struct {
	Name        string    `json:"name"`
	Occurrences int       `json:"occurrences"`
	Reports     int       `json:"reports"`
	TopSeverity string    `json:"top_severity"`
	LastSeen    time.Time `json:"last_seen"`
}

// ToOptions maps wire overrides into engine options.
func (d AnalysisOptionsDTO) ToOptions() engine.Options {
	return engine.Options{
		Column:                   d.Column,
		Window:                   d.Window,
		MinPeriods:               d.MinPeriods,
		ZThreshold:               d.ZThreshold,
		Mode:                     windowMode(d.WindowMode),
		CorrelationWindowMinutes: d.WindowMinutes,
		MaxRootCauses:            d.MaxRootCauses,
	}
}

// ParseIngest converts the agent payload into domain rows. The metrics object
// carries a timestamp field next to arbitrary numeric fields.
func ParseIngest(req IngestRequest) ([]models.MetricSample, []models.LogRecord, error) {
	var samples []models.MetricSample
	if len(req.Metrics) > 0 {
		raw, ok := req.Metrics["timestamp"].(string)
		if !ok {
			return nil, nil, utils.NewMissingColumnsError("metrics", "timestamp")
		}
		ts, err := utils.ParseTimestamp(raw)
		if err != nil {
			return nil, nil, utils.NewBadTimestampError("metrics", err.Error())
		}

		values := make(map[string]float64, len(req.Metrics)-1)
		for field, value := range req.Metrics {
			if field == "timestamp" {
				continue
			}
			number, ok := value.(float64)
			if !ok {
				return nil, nil, utils.NewAppError("api.ingest", fmt.Sprintf("metric field %s is not numeric", field), nil)
			}
			values[field] = number
		}
		samples = append(samples, models.MetricSample{Timestamp: ts, Values: values})
	}

	records := make([]models.LogRecord, 0, len(req.Logs))
	for _, entry := range req.Logs {
		ts, err := utils.ParseTimestamp(entry.Timestamp)
		if err != nil {
			return nil, nil, utils.NewBadTimestampError("logs", err.Error())
		}
		records = append(records, models.LogRecord{
			Timestamp: ts,
			Level:     models.LogLevel(entry.Level),
			Message:   entry.Message,
		})
	}
	return samples, records, nil
}

// FromAnalysisResult converts a detection result into its wire shape.
func FromAnalysisResult(result models.AnalysisResult) AnalysisResponse {
	resp := AnalysisResponse{
		Column:  result.Column,
		Samples: make([]AnnotatedSampleDTO, 0, len(result.Samples)),
	}
	for _, sample := range result.Samples {
		correlated := sample.CorrelatedErrors
		if correlated == nil {
			correlated = []string{}
		}
		resp.Samples = append(resp.Samples, AnnotatedSampleDTO{
			Timestamp:        sample.Timestamp,
			Values:           sample.Values,
			RollingMean:      sample.RollingMean,
			RollingStd:       sample.RollingStd,
			ZScore:           sample.ZScore,
			Anomaly:          sample.Anomaly,
			CorrelatedErrors: correlated,
		})
	}
	return resp
}

// FromRootCauses converts explained anomalies into their wire shape.
func FromRootCauses(causes []models.RootCauseEntry) []RootCauseDTO {
	out := make([]RootCauseDTO, 0, len(causes))
	for _, cause := range causes {
		out = append(out, RootCauseDTO{
			Timestamp:          cause.Timestamp,
			MetricValue:        cause.MetricValue,
			LogsAnalyzed:       cause.LogsAnalyzed,
			ErrorCounts:        cause.ErrorCounts,
			Explanation:        cause.Explanation,
			Severity:           string(cause.Severity),
			RecommendedActions: cause.RecommendedActions,
			Narrative:          cause.Narrative,
			NarrativeSource:    cause.NarrativeSource,
		})
	}
	return out
}

// FromSummary converts a summary into its wire shape.
func FromSummary(summary models.AnomalySummary) SummaryDTO {
	dto := SummaryDTO{
		TotalAnomalies:       summary.TotalAnomalies,
		AnomalyRate:          summary.AnomalyRate,
		SeverityDistribution: make(map[string]int, len(summary.SeverityDistribution)),
	}
	for severity, count := range summary.SeverityDistribution {
		dto.SeverityDistribution[string(severity)] = count
	}
	if summary.TimeRange != nil {
		dto.TimeRange = &TimeRangeDTO{Start: summary.TimeRange.Start, End: summary.TimeRange.End}
	}
	return dto
}

// FromReport converts a persisted report into its wire shape.
func FromReport(report models.Report) ReportDTO {
	return ReportDTO{
		ID:         report.ID,
		Column:     report.Column,
		CreatedAt:  report.CreatedAt,
		Summary:    FromSummary(report.Summary),
		RootCauses: FromRootCauses(report.RootCauses),
	}
}

// FromPatterns converts mined patterns into their wire shape.
func FromPatterns(mined []patterns.FrequentPattern) []FrequentPatternDTO {
	out := make([]FrequentPatternDTO, 0, len(mined))
	for _, p := range mined {
		out = append(out, FrequentPatternDTO{
			Name:        p.Name,
			Occurrences: p.Occurrences,
			Reports:     p.Reports,
			TopSeverity: string(p.TopSeverity),
			LastSeen:    p.LastSeen,
		})
	}
	return out
}
