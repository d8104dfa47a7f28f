package repo

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

const reportsFileName = "reports.jsonl"

// ReportHistory persists completed analysis reports as JSON lines, newest
// last. It backs the reports API and the pattern miner.
type ReportHistory struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewReportHistory stores reports under dir.
func NewReportHistory(dir string, logger *slog.Logger) (*ReportHistory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, utils.NewAppError("history.new", "create data directory", err)
	}
	return &ReportHistory{path: filepath.Join(dir, reportsFileName), logger: logger}, nil
}

// Append persists one report.
func (h *ReportHistory) Append(report models.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line, err := json.Marshal(report)
	if err != nil {
		return utils.NewAppError("history.append", "marshal report", err)
	}

	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return utils.NewAppError("history.append", "open reports file", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return utils.NewAppError("history.append", "write report", err)
	}
	return nil
}

// List returns up to limit reports, most recent first. A missing file means an
// empty history.
func (h *ReportHistory) List(limit int) ([]models.Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, utils.NewAppError("history.list", "open reports file", err)
	}
	defer file.Close()

	var reports []models.Report
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var report models.Report
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			h.logger.Warn("skipping malformed report line", slog.Any("error", err))
			continue
		}
		reports = append(reports, report)
	}
	if err := scanner.Err(); err != nil {
		return nil, utils.NewAppError("history.list", "scan reports file", err)
	}

	// Newest first.
	for i, j := 0, len(reports)-1; i < j; i, j = i+1, j-1 {
		reports[i], reports[j] = reports[j], reports[i]
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
