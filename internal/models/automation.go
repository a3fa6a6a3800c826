package models

import "time"

// AutomationStatus represents the lifecycle state of the backend automation engine.
type AutomationStatus string

const (
	AutomationStatusIdle    AutomationStatus = "idle"
	AutomationStatusRunning AutomationStatus = "running"
	AutomationStatusPaused  AutomationStatus = "paused"
	AutomationStatusError   AutomationStatus = "error"
)

// AutomationAction is a control request sent to the automation engine.
type AutomationAction string

const (
	AutomationActionStart AutomationAction = "start"
	AutomationActionPause AutomationAction = "pause"
	AutomationActionStop  AutomationAction = "stop"
	AutomationActionReset AutomationAction = "reset"
)

// AutomationStats are the counters reported by the automation engine.
type AutomationStats struct {
	JobsFound           int        `json:"jobsFound"`
	JobsApplied         int        `json:"jobsApplied"`
	JobsSaved           int        `json:"jobsSaved"`
	ConnectionsMade     int        `json:"connectionsMade"`
	MessagesSent        int        `json:"messagesSent"`
	InterviewsScheduled int        `json:"interviewsScheduled"`
	LastRun             *time.Time `json:"lastRun"`
}

// AutomationState is the locally tracked view of the automation engine.
type AutomationState struct {
	Status    AutomationStatus `json:"status"`
	Stats     AutomationStats  `json:"stats"`
	LastError string           `json:"last_error,omitempty"`
	PollError string           `json:"poll_error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}
