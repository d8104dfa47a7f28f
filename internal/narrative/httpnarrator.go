package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
)

// HTTPNarrator delegates prose generation to an external language-model
// service speaking a small JSON contract.
type HTTPNarrator struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPNarrator targets the configured narration endpoint.
func NewHTTPNarrator(endpoint string, timeout time.Duration) *HTTPNarrator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPNarrator{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the strategy in logs and API responses.
func (n *HTTPNarrator) Name() string { return "llm" }

// Narrate posts the structured entry and returns the generated text.
func (n *HTTPNarrator) Narrate(ctx context.Context, entry models.RootCauseEntry) (string, error) {
	if n.endpoint == "" {
		return "", fmt.Errorf("narration endpoint not configured")
	}

	payload := map[string]any{
		"timestamp":    entry.Timestamp.Format(time.RFC3339),
		"metric_value": entry.MetricValue,
		"severity":     entry.Severity,
		"explanation":  entry.Explanation,
		"actions":      entry.RecommendedActions,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narration service returned %s", resp.Status)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Text == "" {
		return "", fmt.Errorf("narration service returned empty text")
	}
	return out.Text, nil
}
