package models

import "time"

// AutomationMode is how the user drives job applications during a session.
type AutomationMode string

const (
	AutomationModeManual AutomationMode = "manual"
	AutomationModeAuto   AutomationMode = "auto"
)

// SessionStats holds the client-owned usage counters mirrored to the backend.
type SessionStats struct {
	JobsViewed  int `json:"jobsViewed"`
	JobsApplied int `json:"jobsApplied"`
	JobsSaved   int `json:"jobsSaved"`
	Errors      int `json:"errors"`
}

// SessionStatsUpdate is a partial stats bag. Nil fields are left untouched.
type SessionStatsUpdate struct {
	JobsViewed  *int `json:"jobsViewed,omitempty"`
	JobsApplied *int `json:"jobsApplied,omitempty"`
	JobsSaved   *int `json:"jobsSaved,omitempty"`
	Errors      *int `json:"errors,omitempty"`
}

// Merge returns s with every non-nil field of u applied.
func (s SessionStats) Merge(u SessionStatsUpdate) SessionStats {
	if u.JobsViewed != nil {
		s.JobsViewed = *u.JobsViewed
	}
	if u.JobsApplied != nil {
		s.JobsApplied = *u.JobsApplied
	}
	if u.JobsSaved != nil {
		s.JobsSaved = *u.JobsSaved
	}
	if u.Errors != nil {
		s.Errors = *u.Errors
	}
	return s
}

// Session is the client-side browsing session correlated with backend counters.
type Session struct {
	ID             string         `json:"session_id"`
	AutomationMode AutomationMode `json:"automation_mode"`
	Stats          SessionStats   `json:"stats"`
	Resumed        bool           `json:"resumed"`
	StartedAt      time.Time      `json:"started_at"`
}

// SessionRecord is a locally archived session, kept for history views.
type SessionRecord struct {
	ID             string         `json:"session_id"`
	AutomationMode AutomationMode `json:"automation_mode"`
	Stats          SessionStats   `json:"stats"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
}
