package patterns

import (
	"log/slog"
	"sort"
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
)

// FrequentPattern summarises how often an error pattern recurred across
// stored analysis reports.
type FrequentPattern struct {
	Name        string
	Occurrences int
	Reports     int
	TopSeverity models.Severity
	LastSeen    time.Time
}

// Miner aggregates recurring error patterns from report history so the
// dashboard can surface chronic failure modes, not just the latest incident.
type Miner struct {
	logger *slog.Logger
}

// NewMiner constructs a Miner.
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{logger: logger}
}

// Mine walks every root-cause entry of every report and ranks the error
// patterns by total occurrences, name ascending on ties.
func (m *Miner) Mine(reports []models.Report) []FrequentPattern {
	if len(reports) == 0 {
		return nil
	}

	aggregates := make(map[string]*FrequentPattern)
	for _, report := range reports {
		seenInReport := make(map[string]struct{})
		for _, cause := range report.RootCauses {
			for name, count := range cause.ErrorCounts {
				agg, ok := aggregates[name]
				if !ok {
					agg = &FrequentPattern{Name: name}
					aggregates[name] = agg
				}
				agg.Occurrences += count
				if _, seen := seenInReport[name]; !seen {
					agg.Reports++
					seenInReport[name] = struct{}{}
				}
				if severityRank(cause.Severity) > severityRank(agg.TopSeverity) {
					agg.TopSeverity = cause.Severity
				}
				if report.CreatedAt.After(agg.LastSeen) {
					agg.LastSeen = report.CreatedAt
				}
			}
		}
	}

	mined := make([]FrequentPattern, 0, len(aggregates))
	for _, agg := range aggregates {
		mined = append(mined, *agg)
	}
	sort.Slice(mined, func(i, j int) bool {
		if mined[i].Occurrences != mined[j].Occurrences {
			return mined[i].Occurrences > mined[j].Occurrences
		}
		return mined[i].Name < mined[j].Name
	})

	m.logger.Debug("pattern mining completed",
		slog.Int("reports", len(reports)),
		slog.Int("patterns", len(mined)))
	return mined
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 4
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	default:
		return 0
	}
}
