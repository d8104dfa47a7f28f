package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/opsightstack/opsight-rca/internal/detectors"
	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// Options consolidates every caller-tunable parameter for one analysis pass.
// No package-level mutable defaults exist; zero fields fall back to the values
// below at call time.
type Options struct {
	// Column names the metric field to analyse.
	Column string
	// Window is the rolling window size in samples.
	Window int
	// MinPeriods is the minimum sample count for a defined window position.
	MinPeriods int
	// ZThreshold is the absolute z-score above which a sample is anomalous.
	ZThreshold float64
	// Mode anchors the rolling window (centered by default).
	Mode detectors.WindowMode
	// CorrelationWindowMinutes bounds the symmetric log correlation window.
	CorrelationWindowMinutes int
	// MaxRootCauses caps how many anomalies ExplainRootCause analyses.
	MaxRootCauses int
}

const (
	defaultColumn            = "cpu_usage"
	defaultCorrelationWindow = 5
	defaultMaxRootCauses     = 10
)

func (o Options) withDefaults() Options {
	if o.Column == "" {
		o.Column = defaultColumn
	}
	if o.Window <= 0 {
		o.Window = detectors.DefaultWindow
	}
	if o.MinPeriods <= 0 {
		o.MinPeriods = detectors.DefaultMinPeriods
	}
	if o.ZThreshold <= 0 {
		o.ZThreshold = detectors.DefaultZThreshold
	}
	if o.Mode == "" {
		o.Mode = detectors.WindowCentered
	}
	if o.CorrelationWindowMinutes <= 0 {
		o.CorrelationWindowMinutes = defaultCorrelationWindow
	}
	if o.MaxRootCauses <= 0 {
		o.MaxRootCauses = defaultMaxRootCauses
	}
	return o
}

// Pipeline runs the detection, correlation and explanation flow. It holds no
// mutable state: every call is pure given its input tables and options, so
// concurrent callers with different snapshots are safe.
type Pipeline struct {
	logger     *slog.Logger
	classifier *Classifier
}

// NewPipeline constructs a Pipeline; nil arguments fall back to defaults.
func NewPipeline(logger *slog.Logger, classifier *Classifier) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Pipeline{logger: logger, classifier: classifier}
}

// DetectAnomalies annotates every metric row with rolling statistics, z-score,
// anomaly flag and the error messages correlated within the configured window.
// Schema and timestamp problems abort before any computation; empty inputs
// return an empty result.
func (p *Pipeline) DetectAnomalies(metrics []models.MetricSample, logs []models.LogRecord, opts Options) (models.AnalysisResult, error) {
	opts = opts.withDefaults()

	if err := validateMetrics(metrics, opts.Column); err != nil {
		return models.AnalysisResult{}, err
	}
	if err := validateLogs(logs); err != nil {
		return models.AnalysisResult{}, err
	}

	sorted := sortedMetrics(metrics)

	values := make([]float64, len(sorted))
	for i, sample := range sorted {
		values[i], _ = sample.Value(opts.Column)
	}

	stats := detectors.RollingStats(values, opts.Window, opts.MinPeriods, opts.Mode)

	result := models.AnalysisResult{
		Column:  opts.Column,
		Samples: make([]models.AnnotatedSample, len(sorted)),
	}

	anomalyTimes := make([]time.Time, 0)
	for i, sample := range sorted {
		z, anomalous := detectors.Evaluate(values[i], stats[i], opts.ZThreshold)
		annotated := models.AnnotatedSample{
			MetricSample: sample,
			RollingMean:  stats[i].Mean,
			RollingStd:   stats[i].Std,
			ZScore:       z,
			Anomaly:      anomalous,
		}
		if anomalous {
			anomalyTimes = append(anomalyTimes, sample.Timestamp)
		}
		result.Samples[i] = annotated
	}

	correlated := Correlate(anomalyTimes, sortedLogs(logs), opts.CorrelationWindowMinutes)
	for i := range result.Samples {
		if !result.Samples[i].Anomaly {
			result.Samples[i].CorrelatedErrors = []string{}
			continue
		}
		result.Samples[i].CorrelatedErrors = ErrorMessages(correlated[result.Samples[i].Timestamp])
	}

	p.logger.Debug("anomaly detection completed",
		slog.String("column", opts.Column),
		slog.Int("samples", len(result.Samples)),
		slog.Int("anomalies", len(anomalyTimes)))

	return result, nil
}

// ExplainRootCause analyses the first MaxRootCauses anomalies of a detection
// result, in detection order, producing severity-rated explanations with
// recommended actions.
func (p *Pipeline) ExplainRootCause(metrics []models.MetricSample, logs []models.LogRecord, result models.AnalysisResult, opts Options) ([]models.RootCauseEntry, error) {
	opts = opts.withDefaults()
	if result.Column != "" {
		opts.Column = result.Column
	}

	if err := validateMetrics(metrics, opts.Column); err != nil {
		return nil, err
	}
	if err := validateLogs(logs); err != nil {
		return nil, err
	}

	anomalies := result.Anomalies()
	if len(anomalies) > opts.MaxRootCauses {
		anomalies = anomalies[:opts.MaxRootCauses]
	}

	sortedM := sortedMetrics(metrics)
	sortedL := sortedLogs(logs)

	entries := make([]models.RootCauseEntry, 0, len(anomalies))
	for _, anomaly := range anomalies {
		start, end := utils.WindowBounds(anomaly.Timestamp, opts.CorrelationWindowMinutes)

		windowMetrics := make([]models.MetricSample, 0)
		for _, sample := range sortedM {
			if utils.InWindow(sample.Timestamp, start, end) {
				windowMetrics = append(windowMetrics, sample)
			}
		}

		windowLogs := make([]models.LogRecord, 0)
		for _, record := range sortedL {
			if utils.InWindow(record.Timestamp, start, end) {
				windowLogs = append(windowLogs, record)
			}
		}

		metricValue, _ := anomaly.Value(opts.Column)
		errorCounts := p.classifier.Classify(ErrorMessages(windowLogs))
		severity := DetermineSeverity(metricValue, errorCounts)

		entries = append(entries, models.RootCauseEntry{
			Timestamp:          anomaly.Timestamp,
			MetricValue:        metricValue,
			LogsAnalyzed:       len(windowLogs),
			ErrorCounts:        errorCounts,
			Explanation:        BuildExplanation(anomaly.Timestamp, opts.Column, metricValue, errorCounts, windowMetrics),
			Severity:           severity,
			RecommendedActions: RecommendActions(errorCounts, severity),
		})
	}

	p.logger.Debug("root cause analysis completed", slog.Int("anomalies_analyzed", len(entries)))
	return entries, nil
}

// Summarize aggregates a detection result; see Summarize.
func (p *Pipeline) Summarize(result models.AnalysisResult, causes []models.RootCauseEntry) models.AnomalySummary {
	return Summarize(result, causes)
}

func validateMetrics(metrics []models.MetricSample, column string) error {
	for _, sample := range metrics {
		if sample.Timestamp.IsZero() {
			return utils.NewBadTimestampError("metrics", "zero timestamp")
		}
		if _, ok := sample.Value(column); !ok {
			return utils.NewMissingColumnsError("metrics", column)
		}
	}
	return nil
}

func validateLogs(logs []models.LogRecord) error {
	for _, record := range logs {
		if record.Timestamp.IsZero() {
			return utils.NewBadTimestampError("logs", "zero timestamp")
		}
	}
	return nil
}

// sortedMetrics returns a copy sorted by timestamp ascending. The stores keep
// series sorted; sorting here is defensive for callers handing in raw tables.
func sortedMetrics(metrics []models.MetricSample) []models.MetricSample {
	sorted := append([]models.MetricSample(nil), metrics...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

func sortedLogs(logs []models.LogRecord) []models.LogRecord {
	sorted := append([]models.LogRecord(nil), logs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
