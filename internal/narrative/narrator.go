package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsightstack/opsight-rca/internal/models"
)

// Narrator turns a root-cause entry into assistant prose. Implementations are
// tried in a fixed order by Chain; the winning strategy is surfaced to the
// caller instead of being swallowed behind silent fallbacks.
type Narrator interface {
	Name() string
	Narrate(ctx context.Context, entry models.RootCauseEntry) (string, error)
}

// Chain tries each narrator in order and reports which one produced the text.
type Chain struct {
	logger    *slog.Logger
	narrators []Narrator
}

// NewChain constructs a Chain over the given narrators, first preferred.
func NewChain(logger *slog.Logger, narrators ...Narrator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger, narrators: narrators}
}

// Narrate returns the first successful narration and the name of the strategy
// that produced it. Every failed attempt is logged; when all strategies fail
// the last error is returned rather than a canned string.
func (c *Chain) Narrate(ctx context.Context, entry models.RootCauseEntry) (string, string, error) {
	if len(c.narrators) == 0 {
		return "", "", fmt.Errorf("no narrators configured")
	}

	var lastErr error
	for _, narrator := range c.narrators {
		text, err := narrator.Narrate(ctx, entry)
		if err != nil {
			c.logger.Warn("narrator failed",
				slog.String("strategy", narrator.Name()),
				slog.Any("error", err))
			lastErr = err
			continue
		}
		return text, narrator.Name(), nil
	}
	return "", "", fmt.Errorf("all narrators failed: %w", lastErr)
}

// TemplateNarrator renders deterministic rule-based prose with no external
// dependencies. It always succeeds, so it belongs last in a chain.
type TemplateNarrator struct{}

// Name identifies the strategy in logs and API responses.
func (TemplateNarrator) Name() string { return "template" }

// Narrate composes a short assistant answer from the structured entry.
func (TemplateNarrator) Narrate(_ context.Context, entry models.RootCauseEntry) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s severity anomaly was detected at %s. ",
		strings.ToLower(string(entry.Severity)), entry.Timestamp.Format("15:04 on Jan 2"))
	b.WriteString(entry.Explanation)
	if len(entry.RecommendedActions) > 0 {
		fmt.Fprintf(&b, " Recommended first step: %s.", strings.TrimRight(entry.RecommendedActions[0], "."))
	}
	return b.String(), nil
}
