package llm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/models"
)

func testSnapshot() *analytics.Snapshot {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	e := analytics.NewEngineAt(func() time.Time { return now })
	return e.Compute([]models.ApplicationRecord{
		{ID: "1", Company: "Acme", Status: models.ApplicationStatusInterview, DateApplied: "2025-06-01"},
		{ID: "2", Company: "Globex", DateApplied: "2025-05-20"},
	}, analytics.LastDays(30))
}

func TestBuildInsightsPrompt(t *testing.T) {
	recent := []models.ActivityEntry{{Kind: models.ActivityKindApplied, Title: "SRE", Company: "Acme", Status: "interview"}}
	user := buildInsightsPrompt(testSnapshot(), recent)

	assert.Contains(t, user, "Window: 30 days")
	assert.Contains(t, user, "Applications: 2")
	assert.Contains(t, user, "Success rate: 50.0%")
	assert.Contains(t, user, "- interview: 1")
	assert.Contains(t, user, "Top companies:")
	assert.Contains(t, user, "Jun 2025")
	assert.Contains(t, user, "applied SRE at Acme (interview)")
}

func TestInsightsSystemPrompt(t *testing.T) {
	assert.Contains(t, insightsSystem, `"summary"`)
	assert.Contains(t, insightsSystem, `"suggestions"`)
	assert.Contains(t, insightsSystem, "JSON")
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
}

func fakeAnthropic(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Applications: 2")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       DefaultModel,
			"content":     []map[string]any{{"type": "text", "text": reply}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInsights(t *testing.T) {
	srv := fakeAnthropic(t, "```json\n{\"summary\":\"Steady progress.\",\"suggestions\":[\"Follow up with Globex\",\"Apply to 3 more roles\"]}\n```")
	c := NewClient("test-key", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	got, err := c.Insights(t.Context(), testSnapshot(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Steady progress.", got.Summary)
	assert.Equal(t, []string{"Follow up with Globex", "Apply to 3 more roles"}, got.Suggestions)
}

func TestInsights_BadJSON(t *testing.T) {
	srv := fakeAnthropic(t, "I think you're doing great!")
	c := NewClient("test-key", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := c.Insights(t.Context(), testSnapshot(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse LLM response")
}
