package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsightstack/opsight-rca/internal/models"
)

func testReport(id string, created time.Time) models.Report {
	return models.Report{
		ID:        id,
		Column:    "cpu_usage",
		CreatedAt: created,
		Summary: models.AnomalySummary{
			TotalAnomalies:       3,
			AnomalyRate:          1.5,
			SeverityDistribution: map[models.Severity]int{models.SeverityCritical: 3},
		},
		RootCauses: []models.RootCauseEntry{
			{
				Timestamp:   created,
				MetricValue: 97,
				ErrorCounts: map[string]int{"Out of memory": 2},
				Severity:    models.SeverityCritical,
			},
		},
	}
}

func TestReportHistoryNewestFirst(t *testing.T) {
	history, err := NewReportHistory(t.TempDir(), nil)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, history.Append(testReport("first", base)))
	require.NoError(t, history.Append(testReport("second", base.Add(time.Hour))))
	require.NoError(t, history.Append(testReport("third", base.Add(2*time.Hour))))

	reports, err := history.List(2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "third", reports[0].ID)
	assert.Equal(t, "second", reports[1].ID)
}

func TestReportHistoryRoundTrip(t *testing.T) {
	history, err := NewReportHistory(t.TempDir(), nil)
	require.NoError(t, err)

	want := testReport("r1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, history.Append(want))

	reports, err := history.List(0)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	got := reports[0]
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Summary.TotalAnomalies, got.Summary.TotalAnomalies)
	require.Len(t, got.RootCauses, 1)
	assert.Equal(t, 2, got.RootCauses[0].ErrorCounts["Out of memory"])
}

func TestReportHistoryEmpty(t *testing.T) {
	history, err := NewReportHistory(t.TempDir(), nil)
	require.NoError(t, err)

	reports, err := history.List(10)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestReportHistorySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	history, err := NewReportHistory(dir, nil)
	require.NoError(t, err)

	require.NoError(t, history.Append(testReport("good", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))))

	f, err := os.OpenFile(filepath.Join(dir, "reports.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reports, err := history.List(0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "good", reports[0].ID)
}
