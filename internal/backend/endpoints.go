package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joescharf/jobdash/internal/models"
)

// Health checks that the backend answers at all.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

// CredentialsConfigured reports whether LinkedIn credentials are stored on the backend.
func (c *Client) CredentialsConfigured(ctx context.Context) (bool, error) {
	var resp struct {
		Configured bool `json:"configured"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/get_credentials", nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.Configured, nil
}

// --- Sessions ---

// StartSession registers a session with the backend.
func (c *Client) StartSession(ctx context.Context, sessionID string, mode models.AutomationMode) error {
	body := map[string]string{
		"session_id":      sessionID,
		"automation_mode": string(mode),
	}
	return c.do(ctx, http.MethodPost, "/api/session/start", nil, body, nil)
}

// UpdateSession pushes the full stats bag for a session.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, stats models.SessionStats) error {
	q := url.Values{"session_id": {sessionID}}
	return c.do(ctx, http.MethodPost, "/api/session/update", q, stats, nil)
}

// EndSession closes a session on the backend.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	q := url.Values{"session_id": {sessionID}}
	return c.do(ctx, http.MethodPost, "/api/session/end", q, nil, nil)
}

// --- Jobs ---

// ListAppliedJobs returns every application record. A missing array is empty.
func (c *Client) ListAppliedJobs(ctx context.Context) ([]models.ApplicationRecord, error) {
	var resp struct {
		AppliedJobs []models.ApplicationRecord `json:"applied_jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/list_applied_jobs", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.AppliedJobs == nil {
		return []models.ApplicationRecord{}, nil
	}
	return resp.AppliedJobs, nil
}

// ListSavedJobs returns every saved job. A missing array is empty.
func (c *Client) ListSavedJobs(ctx context.Context) ([]models.SavedJobRecord, error) {
	var resp struct {
		SavedJobs []models.SavedJobRecord `json:"saved_jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/list_saved_jobs", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.SavedJobs == nil {
		return []models.SavedJobRecord{}, nil
	}
	return resp.SavedJobs, nil
}

// ApplicationAnalytics returns whatever pre-aggregated fields the backend
// supplies. Client-side analytics remain authoritative.
func (c *Client) ApplicationAnalytics(ctx context.Context) (map[string]any, error) {
	var resp struct {
		Analytics map[string]any `json:"analytics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/application_analytics", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Analytics == nil {
		return map[string]any{}, nil
	}
	return resp.Analytics, nil
}

// --- Automation ---

type automationStatsWire struct {
	JobsFound           int             `json:"jobsFound"`
	JobsApplied         int             `json:"jobsApplied"`
	JobsSaved           int             `json:"jobsSaved"`
	ConnectionsMade     int             `json:"connectionsMade"`
	MessagesSent        int             `json:"messagesSent"`
	InterviewsScheduled int             `json:"interviewsScheduled"`
	LastRun             json.RawMessage `json:"lastRun"`
}

// AutomationStatus reads the engine status and stats.
func (c *Client) AutomationStatus(ctx context.Context) (models.AutomationStatus, models.AutomationStats, error) {
	var resp struct {
		Status string              `json:"status"`
		Stats  automationStatsWire `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/automation/status", nil, nil, &resp); err != nil {
		return "", models.AutomationStats{}, err
	}

	status := models.AutomationStatus(strings.ToLower(strings.TrimSpace(resp.Status)))
	if status == "" {
		status = models.AutomationStatusIdle
	}
	stats := models.AutomationStats{
		JobsFound:           resp.Stats.JobsFound,
		JobsApplied:         resp.Stats.JobsApplied,
		JobsSaved:           resp.Stats.JobsSaved,
		ConnectionsMade:     resp.Stats.ConnectionsMade,
		MessagesSent:        resp.Stats.MessagesSent,
		InterviewsScheduled: resp.Stats.InterviewsScheduled,
		LastRun:             parseLastRun(resp.Stats.LastRun),
	}
	return status, stats, nil
}

// AutomationAction sends start, pause, stop or reset to the engine.
func (c *Client) AutomationAction(ctx context.Context, action models.AutomationAction) error {
	return c.do(ctx, http.MethodPost, "/api/automation/"+string(action), nil, nil, nil)
}

// parseLastRun accepts a timestamp string, epoch seconds or epoch millis.
func parseLastRun(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, ok := models.ParseTime(s); ok {
			return &t
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		var t time.Time
		if n > 1e12 {
			t = time.UnixMilli(int64(n)).UTC()
		} else {
			t = time.Unix(int64(n), 0).UTC()
		}
		return &t
	}
	return nil
}
