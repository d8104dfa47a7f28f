package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

const (
	metricsFileName = "metrics.csv"
	logsFileName    = "logs.csv"

	timestampColumn = "timestamp"
	levelColumn     = "level"
	messageColumn   = "message"
)

// FileStore persists the metrics and logs tables as flat CSV files, the
// storage binding used by the dashboard collaborators. Loads return a
// consistent snapshot; appends are serialised so concurrent ingest calls do
// not interleave rows.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	metricsPath string
	logsPath    string
	logger      *slog.Logger
}

// NewFileStore roots the store at dir, creating it when absent.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, utils.NewAppError("filestore.new", "create data directory", err)
	}
	return &FileStore{
		dir:         dir,
		metricsPath: filepath.Join(dir, metricsFileName),
		logsPath:    filepath.Join(dir, logsFileName),
		logger:      logger,
	}, nil
}

// LoadMetrics reads the whole metrics table. A missing file is the empty-input
// condition, not an error. Header or timestamp problems surface as validation
// failures naming the offending column.
func (s *FileStore) LoadMetrics() ([]models.MetricSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readCSV(s.metricsPath)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}

	header := rows[0]
	if len(header) == 0 || header[0] != timestampColumn {
		return nil, utils.NewMissingColumnsError("metrics", timestampColumn)
	}

	samples := make([]models.MetricSample, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, utils.NewAppError("filestore.load", fmt.Sprintf("metrics row has %d fields, header has %d", len(row), len(header)), nil)
		}
		ts, err := utils.ParseTimestamp(row[0])
		if err != nil {
			return nil, utils.NewBadTimestampError("metrics", err.Error())
		}
		values := make(map[string]float64, len(header)-1)
		for i := 1; i < len(header); i++ {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, utils.NewAppError("filestore.load", fmt.Sprintf("column %s is not numeric", header[i]), err)
			}
			values[header[i]] = v
		}
		samples = append(samples, models.MetricSample{Timestamp: ts, Values: values})
	}
	return samples, nil
}

// LoadLogs reads the whole logs table; the header must carry timestamp, level
// and message columns.
func (s *FileStore) LoadLogs() ([]models.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readCSV(s.logsPath)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	var missing []string
	for _, required := range []string{timestampColumn, levelColumn, messageColumn} {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, utils.NewMissingColumnsError("logs", missing...)
	}

	records := make([]models.LogRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		ts, err := utils.ParseTimestamp(row[index[timestampColumn]])
		if err != nil {
			return nil, utils.NewBadTimestampError("logs", err.Error())
		}
		records = append(records, models.LogRecord{
			Timestamp: ts,
			Level:     models.LogLevel(row[index[levelColumn]]),
			Message:   row[index[messageColumn]],
		})
	}
	return records, nil
}

// AppendMetrics appends samples to the metrics table, writing the header on
// first use. The column order is fixed by the existing header; new samples
// must cover it, extra fields are dropped.
func (s *FileStore) AppendMetrics(samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	columns, err := s.metricColumns(samples[0])
	if err != nil {
		return err
	}

	file, created, err := openAppend(s.metricsPath)
	if err != nil {
		return utils.NewAppError("filestore.append", "open metrics file", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if created {
		if err := w.Write(append([]string{timestampColumn}, columns...)); err != nil {
			return utils.NewAppError("filestore.append", "write metrics header", err)
		}
	}
	for _, sample := range samples {
		row := make([]string, 0, len(columns)+1)
		row = append(row, sample.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"))
		for _, column := range columns {
			v, ok := sample.Value(column)
			if !ok {
				return utils.NewMissingColumnsError("metrics", column)
			}
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return utils.NewAppError("filestore.append", "write metrics row", err)
		}
	}
	w.Flush()
	return w.Error()
}

// AppendLogs appends records to the logs table, writing the header on first
// use.
func (s *FileStore) AppendLogs(records []models.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, created, err := openAppend(s.logsPath)
	if err != nil {
		return utils.NewAppError("filestore.append", "open logs file", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if created {
		if err := w.Write([]string{timestampColumn, levelColumn, messageColumn}); err != nil {
			return utils.NewAppError("filestore.append", "write logs header", err)
		}
	}
	for _, record := range records {
		row := []string{
			record.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			string(record.Level),
			record.Message,
		}
		if err := w.Write(row); err != nil {
			return utils.NewAppError("filestore.append", "write logs row", err)
		}
	}
	w.Flush()
	return w.Error()
}

// metricColumns returns the value columns in the order of the existing header,
// or a sorted order derived from the sample when the file does not exist yet.
func (s *FileStore) metricColumns(sample models.MetricSample) ([]string, error) {
	rows, err := readCSV(s.metricsPath)
	if err != nil {
		return nil, err
	}
	if rows != nil {
		header := rows[0]
		if len(header) == 0 || header[0] != timestampColumn {
			return nil, utils.NewMissingColumnsError("metrics", timestampColumn)
		}
		return header[1:], nil
	}

	columns := make([]string, 0, len(sample.Values))
	for column := range sample.Values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, utils.NewAppError("filestore.read", "open "+path, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, utils.NewAppError("filestore.read", "parse "+path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows, nil
}

func openAppend(path string) (*os.File, bool, error) {
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, err
	}
	return file, created, nil
}
