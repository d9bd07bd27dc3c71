// Package notify posts collection run events to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C
	colorGreen = 5763719  // 0x57F287
	colorBlue  = 3447003  // 0x3498DB

	defaultWebhookTimeout = 10 * time.Second

	// Max attempts when Discord rate limits us
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// RunStart describes a run that is about to begin.
type RunStart struct {
	RunID    string
	Tier     string
	Players  int
	Restored int
	Target   int
}

// RunResult describes how a run ended.
type RunResult struct {
	RunID     string
	Collected int
	Total     int
	Target    int
	Failed    int
	Runtime   time.Duration
}

// NewRunStartedPayload announces a new collection run.
func NewRunStartedPayload(s RunStart) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{{
			Title: "Collection Run Started",
			Color: colorBlue,
			Fields: []EmbedField{
				{Name: "Ladder", Value: fmt.Sprintf("%s (%s players)", s.Tier, formatNumber(s.Players)), Inline: true},
				{Name: "Progress", Value: fmt.Sprintf("%s / %s", formatNumber(s.Restored), formatNumber(s.Target)), Inline: true},
			},
			Footer: &EmbedFooter{Text: "run " + s.RunID},
		}},
	}
}

// NewRunFinishedPayload reports a run that reached its end normally.
func NewRunFinishedPayload(r RunResult) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{{
			Title:  "Collection Run Finished",
			Color:  colorGreen,
			Fields: resultFields(r),
			Footer: &EmbedFooter{Text: "run " + r.RunID},
		}},
	}
}

// NewRunAbortedPayload reports a run that stopped on an error. It mentions
// @here since someone usually has to act.
func NewRunAbortedPayload(r RunResult, reason string) WebhookPayload {
	return WebhookPayload{
		Content: "@here Collection run aborted",
		Embeds: []Embed{{
			Title:       "Collection Run Aborted",
			Description: reason,
			Color:       colorRed,
			Fields:      resultFields(r),
			Footer:      &EmbedFooter{Text: "run " + r.RunID + " - progress up to the last checkpoint is kept"},
		}},
	}
}

func resultFields(r RunResult) []EmbedField {
	return []EmbedField{
		{Name: "Matches Collected", Value: formatNumber(r.Collected), Inline: true},
		{Name: "Total", Value: fmt.Sprintf("%s / %s", formatNumber(r.Total), formatNumber(r.Target)), Inline: true},
		{Name: "Runtime", Value: formatDuration(r.Runtime), Inline: true},
		{Name: "Failed Matches", Value: formatNumber(r.Failed), Inline: true},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// RunStarted sends the run started notification.
func (c *WebhookClient) RunStarted(ctx context.Context, s RunStart) error {
	return c.Send(ctx, NewRunStartedPayload(s))
}

// RunFinished sends the run finished notification.
func (c *WebhookClient) RunFinished(ctx context.Context, r RunResult) error {
	return c.Send(ctx, NewRunFinishedPayload(r))
}

// RunAborted sends the run aborted notification.
func (c *WebhookClient) RunAborted(ctx context.Context, r RunResult, reason string) error {
	return c.Send(ctx, NewRunAbortedPayload(r, reason))
}

// Send posts a payload, retrying when rate limited.
func (c *WebhookClient) Send(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym" (e.g., 18h 32m)
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
