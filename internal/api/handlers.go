package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/opsightstack/opsight-rca/internal/detectors"
	"github.com/opsightstack/opsight-rca/internal/engine"
	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/patterns"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

// AnalysisAPI is the service surface the handlers require.
type AnalysisAPI interface {
	Ingest(ctx context.Context, samples []models.MetricSample, records []models.LogRecord) error
	Analyze(ctx context.Context, overrides engine.Options) (models.AnalysisResult, error)
	RootCause(ctx context.Context, overrides engine.Options) (models.Report, error)
	Summary(ctx context.Context, overrides engine.Options) (models.AnomalySummary, error)
	Reports(ctx context.Context, limit int) ([]models.Report, error)
	Patterns(ctx context.Context) ([]patterns.FrequentPattern, error)
}

// Handlers exposes the analysis service over HTTP.
type Handlers struct {
	logger *slog.Logger
	svc    AnalysisAPI
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(logger *slog.Logger, svc AnalysisAPI) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, svc: svc}
}

// Register mounts all routes on the router.
func (h *Handlers) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ingest", h.handleIngest).Methods(http.MethodPost)
	api.HandleFunc("/analyze", h.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/rootcause", h.handleRootCause).Methods(http.MethodPost)
	api.HandleFunc("/summary", h.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/reports", h.handleReports).Methods(http.MethodGet)
	api.HandleFunc("/patterns", h.handlePatterns).Methods(http.MethodGet)
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	samples, records, err := ParseIngest(req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if len(samples) == 0 && len(records) == 0 {
		h.writeError(w, http.StatusBadRequest, "no data received")
		return
	}

	if err := h.svc.Ingest(r.Context(), samples, records); err != nil {
		h.writeFailure(w, err)
		return
	}

	h.logger.Debug("ingest accepted",
		slog.String("hostname", req.Hostname),
		slog.Int("metrics", len(samples)),
		slog.Int("logs", len(records)))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromBody(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Analyze(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromAnalysisResult(result))
}

func (h *Handlers) handleRootCause(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromBody(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.svc.RootCause(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromReport(report))
}

func (h *Handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.Summary(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromSummary(summary))
}

func (h *Handlers) handleReports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	reports, err := h.svc.Reports(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	out := make([]ReportDTO, 0, len(reports))
	for _, report := range reports {
		out = append(out, FromReport(report))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) handlePatterns(w http.ResponseWriter, r *http.Request) {
	mined, err := h.svc.Patterns(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromPatterns(mined))
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// optionsFromBody decodes overrides from an optional JSON body.
func optionsFromBody(r *http.Request) (engine.Options, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return engine.Options{}, nil
	}
	var dto AnalysisOptionsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return engine.Options{}, errors.New("invalid JSON body")
	}
	return dto.ToOptions(), nil
}

// optionsFromQuery decodes overrides from URL query parameters.
func optionsFromQuery(r *http.Request) (engine.Options, error) {
	q := r.URL.Query()
	opts := engine.Options{
		Column: q.Get("column"),
		Mode:   windowMode(q.Get("window_mode")),
	}

	intParams := []struct {
		name string
		dst  *int
	}{
		{"window", &opts.Window},
		{"min_periods", &opts.MinPeriods},
		{"window_minutes", &opts.CorrelationWindowMinutes},
		{"max_root_causes", &opts.MaxRootCauses},
	}
	for _, param := range intParams {
		if v := q.Get(param.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return engine.Options{}, errors.New(param.name + " must be a positive integer")
			}
			*param.dst = n
		}
	}

	if v := q.Get("z_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return engine.Options{}, errors.New("z_threshold must be a positive number")
		}
		opts.ZThreshold = f
	}
	return opts, nil
}

func windowMode(raw string) detectors.WindowMode {
	switch raw {
	case string(detectors.WindowTrailing):
		return detectors.WindowTrailing
	case string(detectors.WindowCentered):
		return detectors.WindowCentered
	default:
		return ""
	}
}

// writeFailure maps validation errors to 400 and everything else to 500.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	var validation *utils.ValidationError
	if errors.As(err, &validation) {
		h.writeError(w, http.StatusBadRequest, validation.Error())
		return
	}
	h.logger.Error("request failed", slog.Any("error", err))
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response failed", slog.Any("error", err))
	}
}
