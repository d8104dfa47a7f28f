package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opsightstack/opsight-rca/internal/api"
	"github.com/opsightstack/opsight-rca/internal/cache"
	"github.com/opsightstack/opsight-rca/internal/config"
	"github.com/opsightstack/opsight-rca/internal/detectors"
	"github.com/opsightstack/opsight-rca/internal/engine"
	"github.com/opsightstack/opsight-rca/internal/metrics"
	"github.com/opsightstack/opsight-rca/internal/narrative"
	"github.com/opsightstack/opsight-rca/internal/repo"
	"github.com/opsightstack/opsight-rca/internal/services"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting opsight-rca", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	var cacheProvider cache.Provider = cache.NewMemoryProvider()
	var redisCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, using in-memory cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
			redisCloser = provider
		}
	}
	if redisCloser != nil {
		defer redisCloser.Close()
	}

	store, err := repo.NewFileStore(cfg.Data.Dir, logger)
	if err != nil {
		logger.Error("failed to open data store", slog.String("dir", cfg.Data.Dir), slog.Any("error", err))
		return err
	}
	history, err := repo.NewReportHistory(cfg.Data.Dir, logger)
	if err != nil {
		logger.Error("failed to open report history", slog.Any("error", err))
		return err
	}

	classifier, err := engine.NewClassifierFromPack(cfg.Patterns.Path)
	if err != nil {
		logger.Error("failed to load pattern pack", slog.String("path", cfg.Patterns.Path), slog.Any("error", err))
		return err
	}
	pipeline := engine.NewPipeline(logger, classifier)

	narrators := []narrative.Narrator{}
	if cfg.Narrative.Endpoint != "" {
		narrators = append(narrators, narrative.NewHTTPNarrator(cfg.Narrative.Endpoint, cfg.Narrative.Timeout))
	}
	narrators = append(narrators, narrative.TemplateNarrator{})
	chain := narrative.NewChain(logger, narrators...)

	defaults := engine.Options{
		Column:                   cfg.Analysis.Column,
		Window:                   cfg.Analysis.Window,
		MinPeriods:               cfg.Analysis.MinPeriods,
		ZThreshold:               cfg.Analysis.ZThreshold,
		Mode:                     detectors.WindowMode(cfg.Analysis.WindowMode),
		CorrelationWindowMinutes: cfg.Analysis.CorrelationWindowMinutes,
		MaxRootCauses:            cfg.Analysis.MaxRootCauses,
	}
	svc := services.NewAnalysisService(logger, store, history, cacheProvider, pipeline, chain, defaults, cfg.Analysis.SummaryTTL)

	server, err := api.NewServer(cfg.Server, api.NewHandlers(logger, svc))
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("opsight-rca stopped")
	return nil
}
