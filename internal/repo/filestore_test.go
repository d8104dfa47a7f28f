package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsightstack/opsight-rca/internal/models"
	"github.com/opsightstack/opsight-rca/internal/utils"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestFileStoreMetricsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	samples := []models.MetricSample{
		{Timestamp: base, Values: map[string]float64{"cpu_usage": 42.5, "memory_usage": 61}},
		{Timestamp: base.Add(time.Minute), Values: map[string]float64{"cpu_usage": 43, "memory_usage": 62.25}},
	}
	require.NoError(t, store.AppendMetrics(samples))

	loaded, err := store.LoadMetrics()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.True(t, loaded[0].Timestamp.Equal(base))
	assert.Equal(t, 42.5, loaded[0].Values["cpu_usage"])
	assert.Equal(t, 62.25, loaded[1].Values["memory_usage"])
}

func TestFileStoreAppendKeepsColumnOrder(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendMetrics([]models.MetricSample{
		{Timestamp: base, Values: map[string]float64{"cpu_usage": 1, "latency_ms": 100}},
	}))
	// A second batch with the same columns appends under the existing header.
	require.NoError(t, store.AppendMetrics([]models.MetricSample{
		{Timestamp: base.Add(time.Minute), Values: map[string]float64{"latency_ms": 200, "cpu_usage": 2}},
	}))

	loaded, err := store.LoadMetrics()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 200.0, loaded[1].Values["latency_ms"])
	assert.Equal(t, 2.0, loaded[1].Values["cpu_usage"])
}

func TestFileStoreAppendRejectsMissingColumn(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendMetrics([]models.MetricSample{
		{Timestamp: base, Values: map[string]float64{"cpu_usage": 1, "memory_usage": 2}},
	}))

	err := store.AppendMetrics([]models.MetricSample{
		{Timestamp: base.Add(time.Minute), Values: map[string]float64{"cpu_usage": 3}},
	})
	var validation *utils.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Columns, "memory_usage")
}

func TestFileStoreLoadMissingFiles(t *testing.T) {
	store := newTestStore(t)

	metrics, err := store.LoadMetrics()
	require.NoError(t, err)
	assert.Empty(t, metrics)

	logs, err := store.LoadLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestFileStoreLoadMetricsBadHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metrics.csv"), []byte("time,cpu_usage\n2026-03-01T12:00:00Z,42\n"), 0o644))

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	_, err = store.LoadMetrics()
	var validation *utils.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "metrics", validation.Table)
}

func TestFileStoreLoadMetricsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metrics.csv"), []byte("timestamp,cpu_usage\nnot-a-time,42\n"), 0o644))

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	_, err = store.LoadMetrics()
	var validation *utils.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestFileStoreLoadMetricsNonNumeric(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metrics.csv"), []byte("timestamp,cpu_usage\n2026-03-01T12:00:00Z,high\n"), 0o644))

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	_, err = store.LoadMetrics()
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Msg, "cpu_usage")
}

func TestFileStoreLogsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []models.LogRecord{
		{Timestamp: base, Level: models.LevelError, Message: "Out of memory error."},
		{Timestamp: base.Add(time.Second), Level: models.LevelInfo, Message: "message, with comma"},
	}
	require.NoError(t, store.AppendLogs(records))

	loaded, err := store.LoadLogs()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, models.LevelError, loaded[0].Level)
	assert.Equal(t, "message, with comma", loaded[1].Message)
}

func TestFileStoreLoadLogsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs.csv"), []byte("timestamp,msg\n2026-03-01T12:00:00Z,oops\n"), 0o644))

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	_, err = store.LoadLogs()
	var validation *utils.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.ElementsMatch(t, []string{"level", "message"}, validation.Columns)
}

func TestFileStoreLoadLogsToleratesColumnOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs.csv"), []byte("message,timestamp,level\nall good,2026-03-01 12:00:00,INFO\n"), 0o644))

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	loaded, err := store.LoadLogs()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "all good", loaded[0].Message)
	assert.Equal(t, models.LevelInfo, loaded[0].Level)
}
