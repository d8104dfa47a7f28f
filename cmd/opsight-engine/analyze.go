package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsightstack/opsight-rca/internal/api"
	"github.com/opsightstack/opsight-rca/internal/config"
	"github.com/opsightstack/opsight-rca/internal/detectors"
	"github.com/opsightstack/opsight-rca/internal/engine"
	"github.com/opsightstack/opsight-rca/internal/repo"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// analyzeOutput is the one-shot report printed by the analyze command, using
// the same wire shapes the HTTP API serves.
type analyzeOutput struct {
	Column     string             `json:"column"`
	Summary    api.SummaryDTO     `json:"summary"`
	RootCauses []api.RootCauseDTO `json:"root_causes"`
}

func newAnalyzeCommand() *cobra.Command {
	var (
		column     string
		window     int
		minPeriods int
		zThreshold float64
		mode       string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a one-shot analysis over the stored data and print the report",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAnalyze(column, window, minPeriods, zThreshold, mode)
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "metric column to analyse (defaults to configured column)")
	cmd.Flags().IntVar(&window, "window", 0, "rolling window size in samples")
	cmd.Flags().IntVar(&minPeriods, "min-periods", 0, "minimum samples required for a defined window")
	cmd.Flags().Float64Var(&zThreshold, "z-threshold", 0, "anomaly threshold on |z|")
	cmd.Flags().StringVar(&mode, "window-mode", "", "window anchoring: centered or trailing")
	return cmd
}

func runAnalyze(column string, window, minPeriods int, zThreshold float64, mode string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.JSON)

	store, err := repo.NewFileStore(cfg.Data.Dir, logger)
	if err != nil {
		return err
	}
	metrics, err := store.LoadMetrics()
	if err != nil {
		return err
	}
	logs, err := store.LoadLogs()
	if err != nil {
		return err
	}

	classifier, err := engine.NewClassifierFromPack(cfg.Patterns.Path)
	if err != nil {
		return err
	}
	pipeline := engine.NewPipeline(logger, classifier)

	opts := engine.Options{
		Column:                   cfg.Analysis.Column,
		Window:                   cfg.Analysis.Window,
		MinPeriods:               cfg.Analysis.MinPeriods,
		ZThreshold:               cfg.Analysis.ZThreshold,
		Mode:                     detectors.WindowMode(cfg.Analysis.WindowMode),
		CorrelationWindowMinutes: cfg.Analysis.CorrelationWindowMinutes,
		MaxRootCauses:            cfg.Analysis.MaxRootCauses,
	}
	if column != "" {
		opts.Column = column
	}
	if window > 0 {
		opts.Window = window
	}
	if minPeriods > 0 {
		opts.MinPeriods = minPeriods
	}
	if zThreshold > 0 {
		opts.ZThreshold = zThreshold
	}
	if mode != "" {
		opts.Mode = detectors.WindowMode(mode)
	}

	result, err := pipeline.DetectAnomalies(metrics, logs, opts)
	if err != nil {
		return err
	}
	causes, err := pipeline.ExplainRootCause(metrics, logs, result, opts)
	if err != nil {
		return err
	}

	out := analyzeOutput{
		Column:     result.Column,
		Summary:    api.FromSummary(pipeline.Summarize(result, causes)),
		RootCauses: api.FromRootCauses(causes),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
