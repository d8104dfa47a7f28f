package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
)

// Patterns that override the metric-value severity bands. The cascade checks
// these before falling back to value-based severity, so a low metric reading
// with a crash signature still rates CRITICAL.
var (
	criticalPatterns = []string{PatternOutOfMemory, PatternServiceCrash, PatternDiskSpace}
	highPatterns     = []string{PatternDatabaseTimeout, PatternAPITimeout}
)

// DetermineSeverity runs the severity cascade: critical error patterns first,
// then repeated timeout patterns, then metric-value bands. The order is
// load-bearing; later steps are fallbacks only reached when pattern checks
// fail.
func DetermineSeverity(metricValue float64, errorCounts map[string]int) models.Severity {
	for _, pattern := range criticalPatterns {
		if errorCounts[pattern] > 0 {
			return models.SeverityCritical
		}
	}
	for _, pattern := range highPatterns {
		if errorCounts[pattern] > 2 {
			return models.SeverityHigh
		}
	}

	switch {
	case metricValue >= 95:
		return models.SeverityCritical
	case metricValue >= 85:
		return models.SeverityHigh
	case metricValue >= 75:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// BuildExplanation assembles the human-readable root-cause text: header,
// top correlated error patterns, window metric averages, then a single likely
// cause sentence.
func BuildExplanation(timestamp time.Time, column string, metricValue float64, errorCounts map[string]int, windowMetrics []models.MetricSample) string {
	fragments := []string{
		fmt.Sprintf("Anomaly detected at %s", timestamp.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("%s: %.1f", column, metricValue),
	}

	if len(errorCounts) > 0 {
		top := topErrors(errorCounts, 3)
		descriptions := make([]string, 0, len(top))
		for _, e := range top {
			descriptions = append(descriptions, fmt.Sprintf("%s (%d occurrences)", e.name, e.count))
		}
		fragments = append(fragments, "Correlated errors: "+strings.Join(descriptions, ", "))
	}

	if averages := windowAverages(windowMetrics); len(averages) > 0 {
		parts := make([]string, 0, len(averages))
		for _, avg := range averages {
			parts = append(parts, fmt.Sprintf("%s: %.1f", avg.column, avg.value))
		}
		fragments = append(fragments, "Window averages - "+strings.Join(parts, ", "))
	}

	fragments = append(fragments, likelyCause(errorCounts))
	return strings.Join(fragments, " ")
}

// RecommendActions returns remediation steps ordered most urgent first:
// severity-driven actions, then pattern-specific steps, then the two
// always-present monitoring actions.
func RecommendActions(errorCounts map[string]int, severity models.Severity) []string {
	actions := make([]string, 0, 8)

	switch severity {
	case models.SeverityCritical:
		actions = append(actions,
			"Immediate system restart or failover required",
			"Scale up resources immediately")
	case models.SeverityHigh:
		actions = append(actions,
			"Investigate and resolve within 30 minutes",
			"Consider scaling resources")
	}

	if errorCounts[PatternOutOfMemory] > 0 {
		actions = append(actions,
			"Increase memory allocation or optimize memory usage",
			"Check for memory leaks in application code")
	}
	if errorCounts[PatternDatabaseTimeout] > 0 {
		actions = append(actions,
			"Optimize database queries or increase connection pool",
			"Check database server performance")
	}
	if errorCounts[PatternDiskSpace] > 0 {
		actions = append(actions,
			"Clean up disk space or increase storage",
			"Implement log rotation and cleanup")
	}
	if errorCounts[PatternAPITimeout] > 0 {
		actions = append(actions,
			"Check external service health and response times",
			"Implement circuit breaker pattern")
	}

	actions = append(actions,
		"Set up alerts for similar patterns",
		"Review system logs for additional context")
	return actions
}

func likelyCause(errorCounts map[string]int) string {
	switch {
	case errorCounts[PatternOutOfMemory] > 0:
		return "Likely cause: Memory exhaustion leading to system instability"
	case errorCounts[PatternDatabaseTimeout] > 0:
		return "Likely cause: Database performance issues affecting system response"
	case errorCounts[PatternDiskSpace] > 0:
		return "Likely cause: Storage constraints impacting system performance"
	case errorCounts[PatternAPITimeout] > 0:
		return "Likely cause: External service dependencies causing delays"
	default:
		return "Likely cause: System resource contention or unknown external factors"
	}
}

type errorCount struct {
	name  string
	count int
}

// topErrors ranks patterns by count descending, name ascending on ties so the
// output is deterministic.
func topErrors(errorCounts map[string]int, limit int) []errorCount {
	ranked := make([]errorCount, 0, len(errorCounts))
	for name, count := range errorCounts {
		ranked = append(ranked, errorCount{name: name, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

type columnAverage struct {
	column string
	value  float64
}

// windowAverages computes the mean of every tracked metric column across the
// window, sorted by column name.
func windowAverages(windowMetrics []models.MetricSample) []columnAverage {
	if len(windowMetrics) == 0 {
		return nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, sample := range windowMetrics {
		for column, value := range sample.Values {
			sums[column] += value
			counts[column]++
		}
	}

	averages := make([]columnAverage, 0, len(sums))
	for column, sum := range sums {
		averages = append(averages, columnAverage{column: column, value: sum / float64(counts[column])})
	}
	sort.Slice(averages, func(i, j int) bool { return averages[i].column < averages[j].column })
	return averages
}
