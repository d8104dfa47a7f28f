package engine

import (
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// Correlate retrieves, for every anomaly timestamp, the log records inside the
// symmetric window [T-windowMinutes, T+windowMinutes], both bounds inclusive.
// Anomalies with overlapping windows independently pick up the same records;
// each anomaly's explanation is self-contained, so no deduplication happens
// across anomalies.
func Correlate(anomalyTimes []time.Time, logs []models.LogRecord, windowMinutes int) map[time.Time][]models.LogRecord {
	correlated := make(map[time.Time][]models.LogRecord, len(anomalyTimes))

	for _, t := range anomalyTimes {
		start, end := utils.WindowBounds(t, windowMinutes)
		var window []models.LogRecord
		for _, record := range logs {
			if utils.InWindow(record.Timestamp, start, end) {
				window = append(window, record)
			}
		}
		correlated[t] = window
	}
	return correlated
}

// ErrorMessages extracts the messages of ERROR and WARN records, preserving
// order. INFO records are excluded from root-cause reasoning.
func ErrorMessages(records []models.LogRecord) []string {
	messages := make([]string, 0, len(records))
	for _, record := range records {
		if record.IsErrorLevel() {
			messages = append(messages, record.Message)
		}
	}
	return messages
}
