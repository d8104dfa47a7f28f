package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opsightstack/opsight-rca/internal/cache"
	"github.com/opsightstack/opsight-rca/internal/engine"
	"github.com/opsightstack/opsight-rca/internal/metrics"
	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/patterns"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// Store abstracts the flat-file metric/log tables behind the service.
type Store interface {
	LoadMetrics() ([]models.MetricSample, error)
	LoadLogs() ([]models.LogRecord, error)
	AppendMetrics(samples []models.MetricSample) error
	AppendLogs(records []models.LogRecord) error
}

// History abstracts report persistence.
type History interface {
	Append(report models.Report) error
	List(limit int) ([]models.Report, error)
}

// Narrator matches narrative.Chain: text, strategy name, error.
type Narrator interface {
	Narrate(ctx context.Context, entry models.RootCauseEntry) (string, string, error)
}

// AnalysisService orchestrates store snapshot, detection pipeline, narration,
// report history and caching behind the HTTP API.
type AnalysisService struct {
	logger    *slog.Logger
	store     Store
	history   History
	cache     cache.Provider
	pipeline  *engine.Pipeline
	miner     *patterns.Miner
	narrator  Narrator
	defaults  engine.Options
	ttl       time.Duration
	latencies *utils.LatencyTracker
}

// NewAnalysisService wires the service facade. cache and narrator may be nil.
func NewAnalysisService(
	logger *slog.Logger,
	store Store,
	history History,
	cacheProvider cache.Provider,
	pipeline *engine.Pipeline,
	narrator Narrator,
	defaults engine.Options,
	summaryTTL time.Duration,
) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if pipeline == nil {
		pipeline = engine.NewPipeline(logger, nil)
	}
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}
	return &AnalysisService{
		logger:    logger,
		store:     store,
		history:   history,
		cache:     cacheProvider,
		pipeline:  pipeline,
		miner:     patterns.NewMiner(logger),
		narrator:  narrator,
		defaults:  defaults,
		ttl:       summaryTTL,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Ingest appends agent-supplied samples and records to the store and drops
// cached summaries, which the new data invalidates.
func (s *AnalysisService) Ingest(ctx context.Context, samples []models.MetricSample, records []models.LogRecord) error {
	if err := s.store.AppendMetrics(samples); err != nil {
		return fmt.Errorf("append metrics: %w", err)
	}
	if err := s.store.AppendLogs(records); err != nil {
		return fmt.Errorf("append logs: %w", err)
	}
	if err := s.cache.Del(ctx, s.summaryKey(s.defaults)); err != nil {
		s.logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
	return nil
}

// Analyze runs anomaly detection over the current store snapshot.
func (s *AnalysisService) Analyze(ctx context.Context, overrides engine.Options) (models.AnalysisResult, error) {
	opts := s.merged(overrides)

	metricsTable, logsTable, err := s.snapshot()
	if err != nil {
		return models.AnalysisResult{}, err
	}

	start := time.Now()
	result, err := s.pipeline.DetectAnomalies(metricsTable, logsTable, opts)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError, 0)
		return models.AnalysisResult{}, err
	}

	anomalies := len(result.Anomalies())
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess, anomalies)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	return result, nil
}

// RootCause runs the full detect-explain-summarize flow, narrates the entries
// when a narrator is configured, and persists the report.
func (s *AnalysisService) RootCause(ctx context.Context, overrides engine.Options) (models.Report, error) {
	opts := s.merged(overrides)

	metricsTable, logsTable, err := s.snapshot()
	if err != nil {
		return models.Report{}, err
	}

	start := time.Now()
	result, err := s.pipeline.DetectAnomalies(metricsTable, logsTable, opts)
	if err != nil {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeError, 0)
		return models.Report{}, err
	}
	causes, err := s.pipeline.ExplainRootCause(metricsTable, logsTable, result, opts)
	if err != nil {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeError, 0)
		return models.Report{}, err
	}
	duration := time.Since(start)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess, len(result.Anomalies()))
	s.latencies.Observe(duration)

	if s.narrator != nil {
		for i := range causes {
			text, source, err := s.narrator.Narrate(ctx, causes[i])
			if err != nil {
				s.logger.Warn("narration unavailable", slog.Any("error", err))
				continue
			}
			causes[i].Narrative = text
			causes[i].NarrativeSource = source
		}
	}

	report := models.Report{
		ID:         uuid.NewString(),
		Column:     result.Column,
		CreatedAt:  time.Now().UTC(),
		Summary:    s.pipeline.Summarize(result, causes),
		RootCauses: causes,
	}

	if s.history != nil {
		if err := s.history.Append(report); err != nil {
			s.logger.Warn("failed to persist report", slog.Any("error", err))
		}
	}
	return report, nil
}

// Summary returns the aggregate anomaly statistics for the current snapshot,
// served from cache when fresh.
func (s *AnalysisService) Summary(ctx context.Context, overrides engine.Options) (models.AnomalySummary, error) {
	opts := s.merged(overrides)
	key := s.summaryKey(opts)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		var summary models.AnomalySummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return summary, nil
		}
		s.logger.Warn("discarding malformed cached summary", slog.String("key", key))
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("summary cache read failed", slog.Any("error", err))
	}

	metricsTable, logsTable, err := s.snapshot()
	if err != nil {
		return models.AnomalySummary{}, err
	}
	result, err := s.pipeline.DetectAnomalies(metricsTable, logsTable, opts)
	if err != nil {
		return models.AnomalySummary{}, err
	}
	causes, err := s.pipeline.ExplainRootCause(metricsTable, logsTable, result, opts)
	if err != nil {
		return models.AnomalySummary{}, err
	}
	summary := s.pipeline.Summarize(result, causes)

	if payload, err := json.Marshal(summary); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.logger.Warn("summary cache write failed", slog.Any("error", err))
		}
	}
	return summary, nil
}

// Reports returns up to limit stored reports, most recent first.
func (s *AnalysisService) Reports(_ context.Context, limit int) ([]models.Report, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(limit)
}

// Patterns mines recurring error patterns from the stored reports.
func (s *AnalysisService) Patterns(_ context.Context) ([]patterns.FrequentPattern, error) {
	if s.history == nil {
		return nil, nil
	}
	reports, err := s.history.List(0)
	if err != nil {
		return nil, err
	}
	return s.miner.Mine(reports), nil
}

// LatencyP95 returns the current p95 analysis latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// snapshot loads consistent copies of both tables; analysis never touches the
// store afterwards.
func (s *AnalysisService) snapshot() ([]models.MetricSample, []models.LogRecord, error) {
	metricsTable, err := s.store.LoadMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("load metrics: %w", err)
	}
	logsTable, err := s.store.LoadLogs()
	if err != nil {
		return nil, nil, fmt.Errorf("load logs: %w", err)
	}
	return metricsTable, logsTable, nil
}

// merged applies per-request overrides on top of the configured defaults.
func (s *AnalysisService) merged(overrides engine.Options) engine.Options {
	opts := s.defaults
	if overrides.Column != "" {
		opts.Column = overrides.Column
	}
	if overrides.Window > 0 {
		opts.Window = overrides.Window
	}
	if overrides.MinPeriods > 0 {
		opts.MinPeriods = overrides.MinPeriods
	}
	if overrides.ZThreshold > 0 {
		opts.ZThreshold = overrides.ZThreshold
	}
	if overrides.Mode != "" {
		opts.Mode = overrides.Mode
	}
	if overrides.CorrelationWindowMinutes > 0 {
		opts.CorrelationWindowMinutes = overrides.CorrelationWindowMinutes
	}
	if overrides.MaxRootCauses > 0 {
		opts.MaxRootCauses = overrides.MaxRootCauses
	}
	return opts
}

func (s *AnalysisService) summaryKey(opts engine.Options) string {
	return fmt.Sprintf("opsight:summary:%s:%d:%d:%.2f:%d:%s",
		opts.Column, opts.Window, opts.MinPeriods, opts.ZThreshold,
		opts.CorrelationWindowMinutes, opts.Mode)
}
