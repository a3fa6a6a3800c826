package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// ErrNoText is returned when the model answers without a text block.
var ErrNoText = errors.New("no text content in API response")

// Insights are short coaching notes derived from an analytics snapshot.
type Insights struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

// Client wraps the Anthropic API.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates a client. Extra request options are passed through to
// the SDK, which is how tests point it at a local server.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	var all []option.RequestOption
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	client := anthropic.NewClient(all...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

const insightsSystem = `You are a pragmatic job-search coach. You receive statistics about a person's job applications and return a JSON object with exactly two fields:

- "summary": two or three sentences describing how the search is going
- "suggestions": an array of three to five short, concrete next steps

Rules:
- Base every statement on the numbers given; do not invent data
- Mention the response rate and success rate when there are applications
- If there are no applications, encourage getting started
- Return valid JSON only, no markdown fencing or explanation`

// buildInsightsPrompt renders the snapshot as plain text for the model.
func buildInsightsPrompt(snap *analytics.Snapshot, recent []models.ActivityEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Window: %s days\n", snap.Window)
	fmt.Fprintf(&sb, "Applications: %d\n", snap.Total)
	fmt.Fprintf(&sb, "Success rate: %.1f%%\n", snap.SuccessRate)
	fmt.Fprintf(&sb, "Response rate: %.1f%%\n", snap.ResponseRate)
	fmt.Fprintf(&sb, "Average per day: %.2f\n", snap.AverageApplicationsPerDay)

	sb.WriteString("\nBy status:\n")
	for _, c := range snap.StatusBreakdown() {
		fmt.Fprintf(&sb, "- %s: %d\n", c.Label, c.Count)
	}
	if top := snap.TopCompanies(5); len(top) > 0 {
		sb.WriteString("\nTop companies:\n")
		for _, c := range top {
			fmt.Fprintf(&sb, "- %s: %d\n", c.Label, c.Count)
		}
	}
	if months := snap.MonthlyTrend(); len(months) > 0 {
		sb.WriteString("\nMonthly applications:\n")
		for _, c := range months {
			fmt.Fprintf(&sb, "- %s: %d\n", c.Label, c.Count)
		}
	}
	if len(recent) > 0 {
		sb.WriteString("\nRecent activity:\n")
		for _, e := range recent {
			fmt.Fprintf(&sb, "- %s %s at %s (%s)\n", e.Kind, e.Title, e.Company, e.Status)
		}
	}
	return sb.String()
}

// Insights asks the model for coaching notes about snap.
func (c *Client) Insights(ctx context.Context, snap *analytics.Snapshot, recent []models.ActivityEntry) (*Insights, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: insightsSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildInsightsPrompt(snap, recent))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, ErrNoText
	}

	var out Insights
	if err := json.Unmarshal([]byte(stripFence(text)), &out); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return &out, nil
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if _, rest, ok := strings.Cut(text, "\n"); ok {
		text = rest
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
